package models

import (
	"time"
)

// Product is a catalog entry for the shop. Stock is only decremented by the
// checkout commit; operators set everything else through the admin API.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Price       float64   `gorm:"not null;default:0" json:"price"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	SoldOut     bool      `gorm:"not null;default:false" json:"sold_out"`
	IsNew       bool      `gorm:"not null;default:false" json:"is_new"`
	Category    string    `gorm:"type:varchar(128);index" json:"category,omitempty"`
	ImageURL    string    `gorm:"type:text" json:"image_url,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Purchasable reports whether the product can be put on a payment line.
func (p Product) Purchasable() bool {
	return p.Price > 0
}

// Unavailable is true when the operator flagged the product or stock ran out.
func (p Product) Unavailable() bool {
	return p.SoldOut || p.Stock <= 0
}

// CreateProductRequest is the payload for POST /admin/products.
type CreateProductRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	SoldOut     bool    `json:"sold_out"`
	IsNew       bool    `json:"is_new"`
	Category    string  `json:"category" validate:"max=128"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
}

// UpdateProductRequest is the payload for PUT /admin/products/:id. Nil fields
// are left untouched.
type UpdateProductRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=255"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	SoldOut     *bool    `json:"sold_out"`
	IsNew       *bool    `json:"is_new"`
	Category    *string  `json:"category" validate:"omitempty,max=128"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,url"`
}

// Updates converts the request into a gorm column map.
func (r *UpdateProductRequest) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if r.Title != nil {
		updates["title"] = *r.Title
	}
	if r.Description != nil {
		updates["description"] = *r.Description
	}
	if r.Price != nil {
		updates["price"] = *r.Price
	}
	if r.Stock != nil {
		updates["stock"] = *r.Stock
	}
	if r.SoldOut != nil {
		updates["sold_out"] = *r.SoldOut
	}
	if r.IsNew != nil {
		updates["is_new"] = *r.IsNew
	}
	if r.Category != nil {
		updates["category"] = *r.Category
	}
	if r.ImageURL != nil {
		updates["image_url"] = *r.ImageURL
	}
	return updates
}

// StockChange records the effect of a checkout commit on one product.
type StockChange struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
	Previous  int  `json:"previous"`
	Current   int  `json:"current"`
	SoldOut   bool `json:"sold_out"`
}

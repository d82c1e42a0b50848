package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"shop-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProductNotFound is returned when no product has the requested id.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository is the catalog store.
type ProductRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Product, error)
	// FindByIDs returns the products that exist, keyed by id. Missing ids are
	// simply absent from the map.
	FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
	List(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	// CommitStock decrements stock for every cart entry, floored at zero,
	// marking products that reach zero as sold out. All or nothing.
	CommitStock(ctx context.Context, cart models.Cart) ([]models.StockChange, error)
}

// GormProductRepository implements ProductRepository on Postgres.
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	out := make(map[uint]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *GormProductRepository) List(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *GormProductRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// CommitStock locks each product row in id order so concurrent commits for
// the same product serialize instead of overselling.
func (r *GormProductRepository) CommitStock(ctx context.Context, cart models.Cart) ([]models.StockChange, error) {
	var changes []models.StockChange

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range cart.IDs() {
			quantity := cart[id]

			var product models.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			change := decrement(product.Stock, quantity)
			change.ProductID = id

			updates := map[string]interface{}{"stock": change.Current}
			if change.SoldOut {
				updates["sold_out"] = true
			}
			if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func decrement(stock, quantity int) models.StockChange {
	current := stock - quantity
	if current < 0 {
		current = 0
	}
	return models.StockChange{
		Quantity: quantity,
		Previous: stock,
		Current:  current,
		SoldOut:  current == 0,
	}
}

// MemoryProductRepository keeps the catalog in process. It backs the
// CATALOG_BACKEND=memory mode and the service tests.
type MemoryProductRepository struct {
	mu       sync.Mutex
	products map[uint]*models.Product
	nextID   uint
}

func NewMemoryProductRepository(seed ...models.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{
		products: make(map[uint]*models.Product),
		nextID:   1,
	}
	for i := range seed {
		p := seed[i]
		if p.ID == 0 {
			p.ID = r.nextID
		}
		if p.ID >= r.nextID {
			r.nextID = p.ID + 1
		}
		r.products[p.ID] = &p
	}
	return r
}

func (r *MemoryProductRepository) FindByID(_ context.Context, id uint) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProductRepository) FindByIDs(_ context.Context, ids []uint) (map[uint]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *MemoryProductRepository) List(_ context.Context, category string, page, limit int) ([]models.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []models.Product
	for id := uint(1); id < r.nextID; id++ {
		p, ok := r.products[id]
		if !ok || (category != "" && p.Category != category) {
			continue
		}
		all = append(all, *p)
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) || start < 0 {
		return []models.Product{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product.ID = r.nextID
	r.nextID++
	now := time.Now()
	product.CreatedAt, product.UpdatedAt = now, now
	cp := *product
	r.products[cp.ID] = &cp
	return nil
}

func (r *MemoryProductRepository) Update(_ context.Context, id uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return ErrProductNotFound
	}
	applyUpdates(p, updates)
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProductRepository) CommitStock(_ context.Context, cart models.Cart) ([]models.StockChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []models.StockChange
	for _, id := range cart.IDs() {
		p, ok := r.products[id]
		if !ok {
			continue
		}
		change := decrement(p.Stock, cart[id])
		change.ProductID = id
		p.Stock = change.Current
		if change.SoldOut {
			p.SoldOut = true
		}
		p.UpdatedAt = time.Now()
		changes = append(changes, change)
	}
	return changes, nil
}

func applyUpdates(p *models.Product, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "title":
			p.Title, _ = v.(string)
		case "description":
			p.Description, _ = v.(string)
		case "price":
			p.Price, _ = v.(float64)
		case "stock":
			p.Stock, _ = v.(int)
		case "sold_out":
			p.SoldOut, _ = v.(bool)
		case "is_new":
			p.IsNew, _ = v.(bool)
		case "category":
			p.Category, _ = v.(string)
		case "image_url":
			p.ImageURL, _ = v.(string)
		}
	}
}

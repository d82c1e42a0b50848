package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"shop-service/middleware"
	"shop-service/models"
	"shop-service/repository"
	"shop-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ShopController renders the storefront pages.
type ShopController struct {
	Products *services.ProductService
	Carts    *services.CartService
	Currency string
	Logger   *zap.Logger
}

func NewShopController(products *services.ProductService, carts *services.CartService, currency string, logger *zap.Logger) *ShopController {
	return &ShopController{Products: products, Carts: carts, Currency: currency, Logger: logger}
}

// List renders GET /shop.
func (sc *ShopController) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	products, total, err := sc.Products.ListProducts(c.Request.Context(), services.ListProductsParams{
		Page:     page,
		PerPage:  24,
		Category: c.Query("category"),
	})
	if err != nil {
		sc.Logger.Error("Failed to list products", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "checkout_error.html", gin.H{"Message": "The shop is unavailable right now.", "CartCount": 0})
		return
	}
	c.HTML(http.StatusOK, "shop.html", gin.H{
		"Products":  products,
		"Total":     total,
		"Currency":  sc.Currency,
		"CartCount": sc.Carts.Count(c.Request.Context(), middleware.GetSessionID(c)),
	})
}

// Product renders GET /shop/:id.
func (sc *ShopController) Product(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	id := models.ParseID(c.Param("id"))
	product, err := sc.Products.GetProduct(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		message := "The shop is unavailable right now."
		if errors.Is(err, repository.ErrProductNotFound) {
			status, message = http.StatusNotFound, "Product not found"
		}
		c.HTML(status, "checkout_error.html", gin.H{
			"Message":   message,
			"CartCount": sc.Carts.Count(c.Request.Context(), sessionID),
		})
		return
	}
	c.HTML(http.StatusOK, "product.html", gin.H{
		"Product":   product,
		"Currency":  sc.Currency,
		"CartCount": sc.Carts.Count(c.Request.Context(), sessionID),
	})
}

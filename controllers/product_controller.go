package controllers

import (
	"net/http"
	"strconv"

	"shop-service/models"
	"shop-service/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ProductController serves the catalog admin API.
type ProductController struct {
	Products *services.ProductService
	Logger   *zap.Logger
	validate *validator.Validate
}

func NewProductController(products *services.ProductService, logger *zap.Logger) *ProductController {
	return &ProductController{Products: products, Logger: logger, validate: validator.New()}
}

func (pc *ProductController) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	products, total, err := pc.Products.ListProducts(c.Request.Context(), services.ListProductsParams{
		Page:     page,
		PerPage:  perPage,
		Category: c.Query("category"),
	})
	if err != nil {
		pc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": total, "page": page})
}

func (pc *ProductController) Get(c *gin.Context) {
	id, ok := pc.productID(c)
	if !ok {
		return
	}
	product, err := pc.Products.GetProduct(c.Request.Context(), id)
	if err != nil {
		pc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) Create(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := pc.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := pc.Products.CreateProduct(c.Request.Context(), req)
	if err != nil {
		pc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (pc *ProductController) Update(c *gin.Context) {
	id, ok := pc.productID(c)
	if !ok {
		return
	}
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := pc.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := pc.Products.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		pc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) productID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return uint(id), true
}

func (pc *ProductController) fail(c *gin.Context, err error) {
	se := services.ToServiceError(err)
	if se.StatusCode >= http.StatusInternalServerError {
		pc.Logger.Error("Catalog request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(se.StatusCode, gin.H{"error": se.Message})
}

package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"shop-service/cache"
	"shop-service/models"
	"shop-service/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ListProductsParams defines the parameters for listing products.
type ListProductsParams struct {
	Page     int
	PerPage  int
	Category string
}

// ProductService is the catalog surface used by the shop pages and the
// admin API.
type ProductService struct {
	repo   repository.ProductRepository
	cache  cache.ProductCache
	sfg    singleflight.Group
	logger *zap.Logger
}

func NewProductService(repo repository.ProductRepository, productCache cache.ProductCache, logger *zap.Logger) *ProductService {
	if productCache == nil {
		productCache = cache.NopProductCache{}
	}
	return &ProductService{
		repo:   repo,
		cache:  productCache,
		logger: logger,
	}
}

// GetProduct reads through the product cache. Concurrent misses for the same
// id share one catalog lookup. The cache version is taken before the catalog
// read, so a stock commit that lands in between keeps the stale copy out.
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	v, err, _ := s.sfg.Do(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		product, err := s.cache.Get(ctx, id)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Product cache read failed", zap.Uint("product_id", id), zap.Error(err))
		}

		version, verErr := s.cache.Version(ctx, id)
		if verErr != nil {
			s.logger.Warn("Product cache version read failed", zap.Uint("product_id", id), zap.Error(verErr))
		}

		product, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if verErr == nil {
			s.cacheProduct(*product, version)
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*models.Product)
	return &cp, nil
}

func (s *ProductService) cacheProduct(p models.Product, version int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, &p, version); err != nil {
		s.logger.Warn("Failed to cache product", zap.Uint("product_id", p.ID), zap.Error(err))
	}
}

func (s *ProductService) ListProducts(ctx context.Context, params ListProductsParams) ([]models.Product, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 || params.PerPage > 100 {
		params.PerPage = 20
	}
	return s.repo.List(ctx, params.Category, params.Page, params.PerPage)
}

func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		SoldOut:     req.SoldOut,
		IsNew:       req.IsNew,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", zap.String("title", req.Title), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Product created", zap.Uint("product_id", product.ID), zap.String("title", product.Title))
	return product, nil
}

// UpdateProduct applies the non-nil fields of req. Raising stock does not
// clear the sold-out flag; operators set it explicitly.
func (s *ProductService) UpdateProduct(ctx context.Context, id uint, req models.UpdateProductRequest) (*models.Product, error) {
	if err := s.repo.Update(ctx, id, req.Updates()); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Uint("product_id", id), zap.Error(err))
	}
	return s.repo.FindByID(ctx, id)
}

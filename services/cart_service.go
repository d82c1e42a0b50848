package services

import (
	"context"

	"shop-service/models"
	"shop-service/repository"

	"go.uber.org/zap"
)

// CartService implements the session cart operations. Unknown or malformed
// product ids are never an error; only storage failures are.
type CartService struct {
	repo   repository.CartRepository
	logger *zap.Logger
}

func NewCartService(repo repository.CartRepository, logger *zap.Logger) *CartService {
	return &CartService{repo: repo, logger: logger}
}

// Add increments productID by one.
func (s *CartService) Add(ctx context.Context, sessionID string, productID uint) (models.Cart, error) {
	if productID == 0 {
		return s.Get(ctx, sessionID)
	}
	cart, err := s.repo.Update(ctx, sessionID, func(c models.Cart) (models.Cart, error) {
		c.Add(productID)
		return c, nil
	})
	if err != nil {
		s.logger.Error("Failed to add item to cart", zap.String("session_id", sessionID), zap.Uint("product_id", productID), zap.Error(err))
		return nil, err
	}
	return cart, nil
}

// SetQuantity overwrites the quantity of an item already in the cart.
func (s *CartService) SetQuantity(ctx context.Context, sessionID string, productID uint, quantity int) (models.Cart, error) {
	if productID == 0 {
		return s.Get(ctx, sessionID)
	}
	cart, err := s.repo.Update(ctx, sessionID, func(c models.Cart) (models.Cart, error) {
		c.SetQuantity(productID, quantity)
		return c, nil
	})
	if err != nil {
		s.logger.Error("Failed to update cart quantity", zap.String("session_id", sessionID), zap.Uint("product_id", productID), zap.Error(err))
		return nil, err
	}
	return cart, nil
}

// Remove drops productID from the cart.
func (s *CartService) Remove(ctx context.Context, sessionID string, productID uint) (models.Cart, error) {
	if productID == 0 {
		return s.Get(ctx, sessionID)
	}
	cart, err := s.repo.Update(ctx, sessionID, func(c models.Cart) (models.Cart, error) {
		c.Remove(productID)
		return c, nil
	})
	if err != nil {
		s.logger.Error("Failed to remove item from cart", zap.String("session_id", sessionID), zap.Uint("product_id", productID), zap.Error(err))
		return nil, err
	}
	return cart, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (models.Cart, error) {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	return models.NewCart(), nil
}

// Get returns the current cart.
func (s *CartService) Get(ctx context.Context, sessionID string) (models.Cart, error) {
	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to get cart", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	return cart, nil
}

// Count returns the summed quantity for the cart badge. Storage errors count
// as an empty cart so page rendering never fails on the badge.
func (s *CartService) Count(ctx context.Context, sessionID string) int {
	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to read cart for badge", zap.String("session_id", sessionID), zap.Error(err))
		return 0
	}
	return cart.Count()
}

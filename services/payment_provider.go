package services

import (
	"context"

	"shop-service/models"
)

// PaymentProvider creates and inspects hosted payment sessions.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error)
	GetSession(ctx context.Context, id string) (*models.PaymentSession, error)
}

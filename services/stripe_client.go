package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shop-service/models"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

// StripeService is the Stripe Checkout PaymentProvider. Session creation and
// session lookups trip separate circuit breakers, and only provider-side
// failures count against them.
type StripeService struct {
	api           *client.API
	webhookKey    string
	createBreaker *gobreaker.CircuitBreaker[*models.PaymentSession]
	lookupBreaker *gobreaker.CircuitBreaker[*models.PaymentSession]
	logger        *zap.Logger
}

// StripeOption configures a StripeService.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
}

// WithStripeBackends points the client at custom API backends.
func WithStripeBackends(b *stripe.Backends) StripeOption {
	return func(o *stripeOptions) { o.backends = b }
}

func NewStripeService(secretKey, webhookKey string, logger *zap.Logger, opts ...StripeOption) *StripeService {
	var o stripeOptions
	for _, opt := range opts {
		opt(&o)
	}

	api := &client.API{}
	api.Init(secretKey, o.backends)

	return &StripeService{
		api:           api,
		webhookKey:    webhookKey,
		createBreaker: newStripeBreaker("stripe-checkout-create", logger),
		lookupBreaker: newStripeBreaker("stripe-checkout-lookup", logger),
		logger:        logger,
	}
}

func newStripeBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker[*models.PaymentSession] {
	return gobreaker.NewCircuitBreaker[*models.PaymentSession](gobreaker.Settings{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		IsSuccessful: isStripeClientError,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// isStripeClientError reports whether err leaves the breaker untouched: no
// error, or a Stripe rejection of the request itself (4xx other than 429).
func isStripeClientError(err error) bool {
	if err == nil {
		return true
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 &&
			se.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	params.Context = ctx

	session, err := s.createBreaker.Execute(func() (*models.PaymentSession, error) {
		sess, err := s.api.CheckoutSessions.New(params)
		if err != nil {
			return nil, err
		}
		return toPaymentSession(sess), nil
	})
	if err != nil {
		return nil, &providerError{cause: err}
	}
	return session, nil
}

func (s *StripeService) GetSession(ctx context.Context, id string) (*models.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := s.lookupBreaker.Execute(func() (*models.PaymentSession, error) {
		sess, err := s.api.CheckoutSessions.Get(id, params)
		if err != nil {
			return nil, err
		}
		return toPaymentSession(sess), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentLookup, err)
	}
	return session, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// The request body is restored for later readers.
func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func toPaymentSession(sess *stripe.CheckoutSession) *models.PaymentSession {
	return &models.PaymentSession{
		ID:                sess.ID,
		URL:               sess.URL,
		Paid:              sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: sess.ClientReferenceID,
	}
}

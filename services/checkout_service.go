package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop-service/cache"
	"shop-service/config"
	"shop-service/models"
	aws_pkg "shop-service/pkg/aws"
	"shop-service/repository"

	"go.uber.org/zap"
)

const (
	// paymentClaimTTL bounds how long a consumed payment session id is
	// remembered.
	paymentClaimTTL = 30 * 24 * time.Hour

	checkoutCompletedEvent = "checkout_completed"
)

// CheckoutRequest is one visit to the checkout page.
type CheckoutRequest struct {
	SessionID string
	// Success is set when the visitor returns from the hosted payment page.
	Success          bool
	PaymentSessionID string
}

// CheckoutService validates the cart against stock, builds the payment
// session, and commits stock when the visitor returns from a payment.
type CheckoutService struct {
	cfg       *config.Config
	carts     repository.CartRepository
	products  repository.ProductRepository
	cache     cache.ProductCache
	provider  PaymentProvider
	publisher aws_pkg.EventPublisher
	metrics   aws_pkg.MetricsRecorder
	logger    *zap.Logger
}

// CheckoutOption configures optional CheckoutService collaborators.
type CheckoutOption func(*CheckoutService)

// WithEventPublisher publishes checkout_completed events to the configured
// SNS topic.
func WithEventPublisher(p aws_pkg.EventPublisher) CheckoutOption {
	return func(s *CheckoutService) { s.publisher = p }
}

// WithMetrics records checkout counters.
func WithMetrics(m aws_pkg.MetricsRecorder) CheckoutOption {
	return func(s *CheckoutService) { s.metrics = m }
}

// WithProductCache invalidates cached products after a stock commit.
func WithProductCache(c cache.ProductCache) CheckoutOption {
	return func(s *CheckoutService) { s.cache = c }
}

// NewCheckoutService builds the orchestrator. provider may be nil, in which
// case every checkout reports ErrPaymentUnavailable.
func NewCheckoutService(
	cfg *config.Config,
	carts repository.CartRepository,
	products repository.ProductRepository,
	provider PaymentProvider,
	logger *zap.Logger,
	opts ...CheckoutOption,
) *CheckoutService {
	s := &CheckoutService{
		cfg:      cfg,
		carts:    carts,
		products: products,
		cache:    cache.NopProductCache{},
		provider: provider,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout runs the checkout flow for one page view.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*models.CheckoutView, error) {
	if !s.cfg.StripeConfigured() {
		return nil, ErrPaymentNotConfigured
	}
	if s.provider == nil {
		return nil, ErrPaymentUnavailable
	}

	cart, err := s.carts.Get(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	view := &models.CheckoutView{
		Currency:       s.cfg.Currency,
		PublishableKey: s.cfg.StripePublishableKey,
		CartCount:      cart.Count(),
	}

	if req.Success {
		if len(cart) > 0 {
			if err := s.commit(ctx, req, cart, view); err != nil {
				return nil, err
			}
		}
		view.Success = true
		view.CartCount = 0
		return view, nil
	}

	if len(cart) == 0 {
		return view, nil
	}

	products, err := s.products.FindByIDs(ctx, cart.IDs())
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	s.validate(cart, products, view)
	if len(view.Errors) > 0 {
		s.record(ctx, aws_pkg.MetricStockShortfall)
		s.logger.Info("Checkout blocked by stock shortfall",
			zap.String("session_id", req.SessionID),
			zap.Int("shortfalls", len(view.Errors)),
		)
		return view, nil
	}
	if len(view.LineItems) == 0 {
		return view, nil
	}

	session, err := s.provider.CreateCheckoutSession(ctx, models.PaymentSessionRequest{
		Currency:          s.cfg.Currency,
		LineItems:         view.LineItems,
		SuccessURL:        s.cfg.BaseURL + "/checkout?success=1&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.cfg.BaseURL + "/checkout",
		ClientReferenceID: req.SessionID,
	})
	if err != nil {
		s.record(ctx, aws_pkg.MetricPaymentSessionFail)
		s.logger.Error("Failed to create payment session",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return nil, err
	}
	view.Session = session
	s.record(ctx, aws_pkg.MetricCartCheckouts)
	return view, nil
}

// validate fills rows, totals and line items, collecting every shortfall.
// Missing products count as out of stock; unpriced products that are in
// stock are left off the payment lines.
func (s *CheckoutService) validate(cart models.Cart, products map[uint]*models.Product, view *models.CheckoutView) {
	for _, id := range cart.IDs() {
		quantity := cart[id]
		product, ok := products[id]

		available := 0
		title := fmt.Sprintf("Product #%d", id)
		if ok {
			available = product.Stock
			if product.Title != "" {
				title = product.Title
			}
		}

		if available < quantity {
			view.Errors = append(view.Errors, models.StockShortfall{
				ProductID: id,
				Title:     title,
				Requested: quantity,
				Available: available,
			})
			continue
		}

		row := models.CheckoutRow{ProductID: id, Title: title, Price: product.Price, Quantity: quantity}
		if product.Purchasable() {
			row.Subtotal = product.Price * float64(quantity)
			view.Total += row.Subtotal
			view.LineItems = append(view.LineItems, models.LineItem{
				Name:       title,
				UnitAmount: models.MinorUnits(product.Price),
				Quantity:   int64(quantity),
			})
		}
		view.Rows = append(view.Rows, row)
	}
}

// commit verifies the payment, decrements stock and clears the cart. The view
// receives the receipt rows priced before the commit. A payment claim taken
// during verification is released if the commit does not go through.
func (s *CheckoutService) commit(ctx context.Context, req CheckoutRequest, cart models.Cart, view *models.CheckoutView) (err error) {
	if s.cfg.VerifyPayment {
		if err := s.verifyPayment(ctx, req); err != nil {
			s.logger.Warn("Payment verification failed",
				zap.String("session_id", req.SessionID),
				zap.String("payment_session_id", req.PaymentSessionID),
				zap.Error(err),
			)
			return err
		}
		defer func() {
			if err != nil {
				s.releasePayment(req)
			}
		}()
	}

	products, err := s.products.FindByIDs(ctx, cart.IDs())
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	for _, id := range cart.IDs() {
		row := models.CheckoutRow{ProductID: id, Title: fmt.Sprintf("Product #%d", id), Quantity: cart[id]}
		if p, ok := products[id]; ok {
			if p.Title != "" {
				row.Title = p.Title
			}
			row.Price = p.Price
			row.Subtotal = p.Price * float64(cart[id])
			view.Total += row.Subtotal
		}
		view.Rows = append(view.Rows, row)
	}

	changes, err := s.products.CommitStock(ctx, cart)
	if err != nil {
		s.logger.Error("Failed to commit stock",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return fmt.Errorf("commit stock: %w", err)
	}

	if err := s.carts.Delete(ctx, req.SessionID); err != nil {
		s.logger.Error("Failed to clear cart after stock commit",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
	}

	ids := make([]uint, 0, len(changes))
	for _, c := range changes {
		ids = append(ids, c.ProductID)
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}

	s.logger.Info("Checkout committed",
		zap.String("session_id", req.SessionID),
		zap.String("payment_session_id", req.PaymentSessionID),
		zap.Int("products", len(changes)),
	)
	s.record(ctx, aws_pkg.MetricCheckoutCommitted)
	s.publish(ctx, models.CheckoutCompletedEvent{
		EventType:        checkoutCompletedEvent,
		SessionID:        req.SessionID,
		PaymentSessionID: req.PaymentSessionID,
		Changes:          changes,
		Total:            view.Total,
		Currency:         s.cfg.Currency,
		Timestamp:        time.Now().UTC(),
	})
	return nil
}

// verifyPayment checks the returned session is paid, belongs to this visitor
// and has not been consumed before.
func (s *CheckoutService) verifyPayment(ctx context.Context, req CheckoutRequest) error {
	if req.PaymentSessionID == "" {
		return fmt.Errorf("%w: missing payment session id", ErrPaymentNotVerified)
	}
	session, err := s.provider.GetSession(ctx, req.PaymentSessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
	}
	if !session.Paid {
		return fmt.Errorf("%w: session not paid", ErrPaymentNotVerified)
	}
	if session.ClientReferenceID != req.SessionID {
		return fmt.Errorf("%w: session belongs to another visitor", ErrPaymentNotVerified)
	}
	claimed, err := s.carts.ClaimPayment(ctx, req.PaymentSessionID, paymentClaimTTL)
	if err != nil {
		return fmt.Errorf("claim payment: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: payment session already used", ErrPaymentNotVerified)
	}
	return nil
}

// releasePayment runs on a fresh context so a cancelled request still frees
// the claim.
func (s *CheckoutService) releasePayment(req CheckoutRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.carts.ReleasePayment(ctx, req.PaymentSessionID); err != nil {
		s.logger.Error("Failed to release payment claim",
			zap.String("session_id", req.SessionID),
			zap.String("payment_session_id", req.PaymentSessionID),
			zap.Error(err),
		)
	}
}

func (s *CheckoutService) publish(ctx context.Context, event models.CheckoutCompletedEvent) {
	if s.publisher == nil || s.cfg.CheckoutSNSTopicARN == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal checkout event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishEvent(ctx, s.cfg.CheckoutSNSTopicARN, event.EventType, payload); err != nil {
		s.logger.Error("Failed to publish checkout event",
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
	}
}

func (s *CheckoutService) record(ctx context.Context, metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "shop"}); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

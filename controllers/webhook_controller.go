package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// WebhookParser verifies and decodes a provider webhook request.
type WebhookParser interface {
	ParseWebhook(r *http.Request) (stripe.Event, error)
}

// WebhookController records provider confirmations for operators. Stock is
// committed on the visitor's return, not here.
type WebhookController struct {
	Parser WebhookParser
	Logger *zap.Logger
}

func NewWebhookController(parser WebhookParser, logger *zap.Logger) *WebhookController {
	return &WebhookController{Parser: parser, Logger: logger}
}

func (wc *WebhookController) Stripe(c *gin.Context) {
	if wc.Parser == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}
	event, err := wc.Parser.ParseWebhook(c.Request)
	if err != nil {
		wc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			wc.Logger.Error("Failed to unmarshal checkout session", zap.Error(err))
			break
		}
		wc.Logger.Info("Checkout session completed",
			zap.String("event_id", event.ID),
			zap.String("payment_session_id", sess.ID),
			zap.String("session_id", sess.ClientReferenceID),
			zap.String("payment_status", string(sess.PaymentStatus)),
			zap.Int64("amount_total", sess.AmountTotal),
		)
	default:
		wc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

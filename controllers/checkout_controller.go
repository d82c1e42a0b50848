package controllers

import (
	"net/http"

	"shop-service/middleware"
	"shop-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Checkout *services.CheckoutService
	Carts    *services.CartService
	Logger   *zap.Logger
}

func NewCheckoutController(checkout *services.CheckoutService, carts *services.CartService, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{Checkout: checkout, Carts: carts, Logger: logger}
}

// Page renders GET /checkout.
func (cc *CheckoutController) Page(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	view, err := cc.Checkout.Checkout(c.Request.Context(), checkoutRequest(c, sessionID))
	if err != nil {
		se := services.ToServiceError(err)
		cc.Logger.Warn("Checkout failed", zap.String("session_id", sessionID), zap.Int("status", se.StatusCode), zap.Error(err))
		c.HTML(se.StatusCode, "checkout_error.html", gin.H{
			"Message":   se.Message,
			"CartCount": cc.Carts.Count(c.Request.Context(), sessionID),
		})
		return
	}
	c.HTML(http.StatusOK, "checkout.html", view)
}

// JSON serves GET /checkout.json with the same view.
func (cc *CheckoutController) JSON(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	view, err := cc.Checkout.Checkout(c.Request.Context(), checkoutRequest(c, sessionID))
	if err != nil {
		se := services.ToServiceError(err)
		c.JSON(se.StatusCode, gin.H{"success": false, "data": gin.H{"message": se.Message}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// Clear handles POST /checkout/clear from the shortfall panel.
func (cc *CheckoutController) Clear(c *gin.Context) {
	if _, err := cc.Carts.Clear(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		c.HTML(http.StatusInternalServerError, "checkout_error.html", gin.H{"Message": "Could not clear your cart. Please try again.", "CartCount": 0})
		return
	}
	c.Redirect(http.StatusSeeOther, "/checkout")
}

func checkoutRequest(c *gin.Context, sessionID string) services.CheckoutRequest {
	return services.CheckoutRequest{
		SessionID:        sessionID,
		Success:          c.Query("success") == "1",
		PaymentSessionID: c.Query("session_id"),
	}
}

package controllers

import (
	"net/http"

	"shop-service/middleware"
	"shop-service/models"
	"shop-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActionFunc handles one AJAX action for the visitor session.
type ActionFunc func(c *gin.Context, sessionID string) (int, models.Response)

// AjaxController dispatches admin-ajax style requests by their action field.
type AjaxController struct {
	Carts   *services.CartService
	Logger  *zap.Logger
	actions map[string]ActionFunc
}

func NewAjaxController(carts *services.CartService, logger *zap.Logger) *AjaxController {
	ac := &AjaxController{Carts: carts, Logger: logger}
	ac.actions = map[string]ActionFunc{
		"add_to_cart":          ac.addToCart,
		"update_cart_quantity": ac.updateQuantity,
		"remove_from_cart":     ac.removeFromCart,
		"get_cart_count":       ac.getCart,
		"clear_cart":           ac.clearCart,
	}
	return ac
}

// Handle is mounted on POST /ajax.
func (ac *AjaxController) Handle(c *gin.Context) {
	action := param(c, "action")
	fn, ok := ac.actions[action]
	if !ok {
		c.JSON(http.StatusBadRequest, models.Fail("unknown_action", "Unknown action"))
		return
	}
	status, resp := fn(c, middleware.GetSessionID(c))
	c.JSON(status, resp)
}

func (ac *AjaxController) addToCart(c *gin.Context, sessionID string) (int, models.Response) {
	cart, err := ac.Carts.Add(c.Request.Context(), sessionID, models.ParseID(param(c, "product_id")))
	return cartResponse(cart, err)
}

func (ac *AjaxController) updateQuantity(c *gin.Context, sessionID string) (int, models.Response) {
	cart, err := ac.Carts.SetQuantity(c.Request.Context(), sessionID,
		models.ParseID(param(c, "product_id")),
		models.ParseInt(param(c, "quantity")),
	)
	return cartResponse(cart, err)
}

func (ac *AjaxController) removeFromCart(c *gin.Context, sessionID string) (int, models.Response) {
	cart, err := ac.Carts.Remove(c.Request.Context(), sessionID, models.ParseID(param(c, "product_id")))
	return cartResponse(cart, err)
}

func (ac *AjaxController) getCart(c *gin.Context, sessionID string) (int, models.Response) {
	cart, err := ac.Carts.Get(c.Request.Context(), sessionID)
	return cartResponse(cart, err)
}

func (ac *AjaxController) clearCart(c *gin.Context, sessionID string) (int, models.Response) {
	cart, err := ac.Carts.Clear(c.Request.Context(), sessionID)
	return cartResponse(cart, err)
}

func cartResponse(cart models.Cart, err error) (int, models.Response) {
	if err != nil {
		return http.StatusInternalServerError, models.Fail("cart_unavailable", "Cart storage is unavailable")
	}
	if cart == nil {
		cart = models.NewCart()
	}
	return http.StatusOK, models.OK(cart)
}

// param reads a form value, falling back to the query string.
func param(c *gin.Context, key string) string {
	if v, ok := c.GetPostForm(key); ok {
		return v
	}
	return c.Query(key)
}

package routes

import (
	"net/http"

	"shop-service/controllers"
	"shop-service/middleware"

	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Ajax     *controllers.AjaxController
	Checkout *controllers.CheckoutController
	Shop     *controllers.ShopController
	Products *controllers.ProductController
	Images   *controllers.ImageController
	Webhook  *controllers.WebhookController
}

// Options carries the per-route middleware settings.
type Options struct {
	SessionCookie string
	SecureCookie  bool
	AdminAPIKey   string
	AjaxPerMinute int
}

func RegisterRoutes(r *gin.Engine, h Controllers, opts Options) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	r.POST("/stripe/webhook", h.Webhook.Stripe)

	admin := r.Group("/admin/products")
	admin.Use(middleware.AdminKey(opts.AdminAPIKey))
	{
		admin.GET("", h.Products.List)
		admin.POST("", h.Products.Create)
		admin.GET("/:id", h.Products.Get)
		admin.PUT("/:id", h.Products.Update)
		admin.POST("/:id/image", h.Images.PresignUpload)
	}

	perMinute := opts.AjaxPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}

	site := r.Group("/")
	site.Use(middleware.Session(opts.SessionCookie, opts.SecureCookie))
	{
		ajax := site.Group("")
		ajax.Use(middleware.RateLimit(perMinute, perMinute/2+1))
		ajax.POST("/ajax", h.Ajax.Handle)
		ajax.POST("/wp-admin/admin-ajax.php", h.Ajax.Handle)

		site.GET("/shop", h.Shop.List)
		site.GET("/shop/:id", h.Shop.Product)
		site.GET("/checkout", h.Checkout.Page)
		site.GET("/checkout.json", h.Checkout.JSON)
		site.POST("/checkout/clear", h.Checkout.Clear)
	}
}

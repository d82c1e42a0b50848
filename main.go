package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shop-service/cache"
	"shop-service/config"
	"shop-service/controllers"
	"shop-service/database"
	"shop-service/logger"
	"shop-service/middleware"
	"shop-service/models"
	aws_pkg "shop-service/pkg/aws"
	"shop-service/repository"
	"shop-service/routes"
	"shop-service/services"
	"shop-service/web"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[ShopService] failed to load config: %v", err)
	}

	ctx := context.Background()

	var sinks []io.Writer
	if os.Getenv("CLOUDWATCH_ENABLED") == "true" {
		if shipper, err := newLogShipper(ctx); err != nil {
			log.Printf("[ShopService] CloudWatch Logs disabled: %v", err)
		} else {
			sinks = append(sinks, shipper)
		}
	}

	zapLogger, err := logger.New(cfg.Env, sinks...)
	if err != nil {
		log.Fatalf("[ShopService] failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	// Carts
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	cartRepo := repository.NewRedisCartRepository(redisClient, cfg.CartTTL)

	// Catalog
	var db *gorm.DB
	var productRepo repository.ProductRepository
	switch cfg.CatalogBackend {
	case "memory":
		productRepo = repository.NewMemoryProductRepository()
		zapLogger.Warn("Using in-memory catalog; products are lost on restart")
	default:
		db, err = database.ConnectPostgres(cfg.PostgresDSN(), zapLogger, &models.Product{})
		if err != nil {
			zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer database.Close(db)
		productRepo = repository.NewGormProductRepository(db)
	}

	cacheClient := cache.NewRedisClient(cfg.RedisURL)
	defer cacheClient.Close()
	productCache := cache.NewRedisProductCache(cacheClient, cfg.ProductCache)

	// AWS
	metrics, err := aws_pkg.NewMetricsClient(ctx)
	if err != nil {
		zapLogger.Warn("CloudWatch metrics disabled", zap.Error(err))
	}
	opts := []services.CheckoutOption{
		services.WithProductCache(productCache),
		services.WithMetrics(metrics),
	}
	if cfg.CheckoutSNSTopicARN != "" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(ctx); err != nil {
			zapLogger.Warn("Checkout events disabled", zap.Error(err))
		} else {
			opts = append(opts, services.WithEventPublisher(aws_pkg.NewSNSPublisher(awsCfg)))
		}
	}

	var images aws_pkg.ImagePresigner
	if cfg.ImageBucket != "" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(ctx); err != nil {
			zapLogger.Warn("Product image uploads disabled", zap.Error(err))
		} else {
			images = aws_pkg.NewS3ImageStore(awsCfg, cfg.ImageBucket, cfg.ImagePublicBaseURL)
		}
	}

	// Payments
	var provider services.PaymentProvider
	var webhookParser controllers.WebhookParser
	if cfg.StripeConfigured() {
		stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, zapLogger)
		provider = stripeSvc
		if cfg.StripeWebhookKey != "" {
			webhookParser = stripeSvc
		}
	} else {
		zapLogger.Warn("Stripe keys missing; checkout will report a configuration error")
	}

	cartSvc := services.NewCartService(cartRepo, zapLogger)
	productSvc := services.NewProductService(productRepo, productCache, zapLogger)
	checkoutSvc := services.NewCheckoutService(cfg, cartRepo, productRepo, provider, zapLogger, opts...)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Metrics(metrics, "shop"))

	// 30-second request timeout
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	tmpl, err := web.Templates()
	if err != nil {
		zapLogger.Fatal("Failed to parse templates", zap.Error(err))
	}
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", http.FS(web.Static()))

	routes.RegisterRoutes(router, routes.Controllers{
		Ajax:     controllers.NewAjaxController(cartSvc, zapLogger),
		Checkout: controllers.NewCheckoutController(checkoutSvc, cartSvc, zapLogger),
		Shop:     controllers.NewShopController(productSvc, cartSvc, cfg.Currency, zapLogger),
		Products: controllers.NewProductController(productSvc, zapLogger),
		Images:   controllers.NewImageController(productSvc, images, zapLogger),
		Webhook:  controllers.NewWebhookController(webhookParser, zapLogger),
	}, routes.Options{
		SessionCookie: cfg.SessionCookie,
		SecureCookie:  strings.HasPrefix(cfg.BaseURL, "https://"),
		AdminAPIKey:   cfg.AdminAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Shop service is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLogger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Shutdown error", zap.Error(err))
	}
	zapLogger.Info("Server shutdown complete")
}

func newLogShipper(ctx context.Context) (*aws_pkg.LogShipper, error) {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return aws_pkg.NewLogShipper(ctx, awsCfg, "shop")
}

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vastra/internal/config"
	"vastra/internal/handlers"
	"vastra/internal/logger"
	"vastra/internal/middleware"
	"vastra/internal/models"
	"vastra/internal/repositories"
	"vastra/internal/services"
	"vastra/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	// --- Database ---
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.Variant{},
		&models.User{},
		&models.Order{},
		&models.OrderLineItem{},
	); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// --- RabbitMQ ---
	// Event publishing is best-effort: without a broker the store still
	// takes orders, it just emits no fulfillment events.
	var mqClient *rabbitmq.Client
	mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		log.Warn("RabbitMQ unavailable, order events disabled", zap.Error(err))
		mqClient = nil
	} else {
		defer mqClient.Close()
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	if cfg.AppEnv == "development" {
		seedCatalog(productRepo)
	}

	// --- Services ---
	productService := services.NewProductService(productRepo)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)
	var publisher services.EventPublisher
	if mqClient != nil {
		publisher = mqClient
	}
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, publisher)

	// --- Handlers & app ---
	app := NewApp(
		authService,
		handlers.NewAuthHandler(authService),
		handlers.NewProductHandler(productService),
		handlers.NewOrderHandler(orderService),
	)

	// --- Order events consumer (fulfillment hook point) ---
	if mqClient != nil {
		if err := mqClient.ConsumeOrderEvents(func(msg amqp.Delivery) error {
			log.Info("order event received",
				zap.Uint64("delivery_tag", msg.DeliveryTag),
				zap.ByteString("body", msg.Body),
			)
			return nil
		}); err != nil {
			log.Warn("failed to start order events consumer", zap.Error(err))
		}
	}

	// --- Start HTTP server with graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", zap.String("port", cfg.AppPort))
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

// NewApp builds the Fiber application with all middleware and routes.
// Pulled out of main so tests can drive the full router in-process.
func NewApp(
	authService *services.AuthService,
	authHandler *handlers.AuthHandler,
	productHandler *handlers.ProductHandler,
	orderHandler *handlers.OrderHandler,
) *fiber.App {
	app := fiber.New()

	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		rid, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		c.SetUserContext(logger.WithRequestID(c.UserContext(), rid))
		return c.Next()
	})
	app.Use(fiberlogger.New())

	rl := middleware.NewRateLimiter(rate.Limit(10), 20)
	apiV1 := app.Group("/api/v1", rl.Handler())

	// Public routes.
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)
	orderHandler.RegisterWebhookRoutes(apiV1)

	// Routes requiring an authenticated user.
	protected := apiV1.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(protected)

	// Back-office routes.
	admin := protected.Group("", middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app
}

// seedCatalog populates an empty development database with a small
// apparel catalog so the API is browsable out of the box.
func seedCatalog(repo repositories.ProductRepository) {
	existing, err := repo.GetAll()
	if err != nil || len(existing) > 0 {
		return
	}

	sale := 1499.0
	products := []models.Product{
		{
			Name:        "Heavyweight Oversized Tee",
			Slug:        "heavyweight-oversized-tee",
			Description: "240gsm cotton, drop shoulder",
			Category:    "t-shirts",
			Price:       1299.00,
			Variants: []models.Variant{
				{SKU: "TEE-BLK-M", Size: "M", Color: "Black", Stock: 25},
				{SKU: "TEE-BLK-L", Size: "L", Color: "Black", Stock: 18},
				{SKU: "TEE-WHT-M", Size: "M", Color: "White", Stock: 30},
			},
		},
		{
			Name:        "Relaxed Fit Hoodie",
			Slug:        "relaxed-fit-hoodie",
			Description: "Brushed fleece, kangaroo pocket",
			Category:    "hoodies",
			Price:       2499.00,
			SalePrice:   &sale,
			Variants: []models.Variant{
				{SKU: "HOOD-GRY-M", Size: "M", Color: "Grey", Stock: 12},
				{SKU: "HOOD-GRY-XL", Size: "XL", Color: "Grey", Stock: 7},
			},
		},
	}

	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			logger.L().Warn("failed to seed product",
				zap.String("name", products[i].Name),
				zap.Error(err),
			)
		}
	}
}

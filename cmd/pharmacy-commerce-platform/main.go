package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/handlers"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/middleware"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/config"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/health"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/metrics"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
	redisRepo "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories/redis"
	service "github.com/pharmaplace/pharmacy-commerce-platform/internal/services"
	"github.com/pharmaplace/pharmacy-commerce-platform/pkg/sendgrid"
	"github.com/pharmaplace/pharmacy-commerce-platform/pkg/stripe"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the database", "error", err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	// Redis setup
	redisClient, err := redisRepo.NewClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", "error", err.Error())
		os.Exit(1)
	}

	rateLimiter := redisRepo.NewSlidingWindowLimiter(redisClient, &cfg.RateConfig)

	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret)
	emailService := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)

	cartService := service.NewCartService(repos.Cart, repos.Shipping)
	promoService := service.NewPromoCodeService(repos.PromoCode, repos.Cart)
	catalogService := service.NewCatalogService(repos.Product, repos.Shipping)
	orderService := service.NewOrderService(repos.Order)
	checkoutService := service.NewCheckoutService(
		repos.Cart,
		repos.Order,
		repos.PromoCode,
		repos.Shipping,
		repos.User,
		promoService,
		stripeClient,
		emailService,
		cfg.Stripe.Currency,
	)

	cartSession := middleware.NewSessionMiddleware([]byte(cfg.Security.JWTKey), cfg.Session.CookieName, cfg.Session.TTL, cfg.IsProduction())

	cartHandler := handlers.NewCartHandler(cartService, promoService, checkoutService, cartSession)
	productHandler := handlers.NewProductHandler(catalogService)
	orderHandler := handlers.NewOrderHandler(orderService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)

	healthHandler, err := health.NewHealthHandler(cfg, &health.Endpoints{
		DB:           repos.DB,
		RedisClient:  redisClient,
		StripeClient: stripeClient,
	})
	if err != nil {
		slog.Error("❌ Error building health checks", "error", err.Error())
		os.Exit(1)
	}

	rateLimit := middleware.RateLimit(rateLimiter)

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/v1/products", rateLimit(productHandler.ListProducts()))
	routerMux.HandleFunc("GET /api/v1/products/{id}", rateLimit(productHandler.GetProduct()))
	routerMux.HandleFunc("GET /api/v1/shipping-methods", rateLimit(productHandler.ListShippingMethods()))
	routerMux.HandleFunc("GET /api/v1/cart", cartHandler.GetCart())
	routerMux.HandleFunc("POST /api/v1/cart/items", cartHandler.AddItem())
	routerMux.HandleFunc("PUT /api/v1/cart/items/{id}", cartHandler.UpdateItemQuantity())
	routerMux.HandleFunc("DELETE /api/v1/cart/items/{id}", cartHandler.RemoveItem())
	routerMux.HandleFunc("PATCH /api/v1/cart/shipping-method", cartHandler.SetShippingMethod())
	routerMux.HandleFunc("POST /api/v1/cart/promo-code", cartHandler.ApplyPromoCode())
	routerMux.HandleFunc("DELETE /api/v1/cart/promo-code", cartHandler.RemovePromoCode())
	routerMux.HandleFunc("POST /api/v1/checkout/payment-intent", checkoutHandler.CreatePaymentIntent())
	routerMux.HandleFunc("POST /api/v1/payments/webhook", checkoutHandler.HandleWebhook())
	routerMux.HandleFunc("GET /api/v1/orders/{id}", cartSession.RequireUser(orderHandler.GetOrder()))
	routerMux.HandleFunc("GET /api/v1/orders", cartSession.RequireUser(orderHandler.ListOrders()))
	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = cartSession.Resolve(handler)
	handler = middleware.Logging(handler)
	handler = metrics.Middleware(handler)

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("❌ Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}
}

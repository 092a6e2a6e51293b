package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/config"
	"swiftdash/internal/database"
	"swiftdash/internal/events"
	"swiftdash/internal/handlers"
	"swiftdash/internal/inventory"
	"swiftdash/internal/kvstore"
	"swiftdash/internal/metrics"
	"swiftdash/internal/middleware"
	"swiftdash/internal/orders"
	"swiftdash/internal/principal"
	"swiftdash/internal/routing"
	"swiftdash/internal/storage/mongodb"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		logrus.Fatal("MongoDB connection failed: ", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}()

	db := client.Database(config.AppEnv.DBName)
	logrus.Info("MongoDB connected to: ", db.Name())

	if err := database.EnsureProductIndexes(db); err != nil {
		logrus.Warn("product index setup: ", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		logrus.Warn("order index setup: ", err)
	}
	if err := database.EnsurePartnerIndexes(db); err != nil {
		logrus.Warn("partner index setup: ", err)
	}

	m := metrics.New()
	bus := events.NewBus(config.AppEnv.EventBufferSize, m)
	kv := kvstore.NewMemoryStore()

	orderStore := mongodb.NewOrderStore(db)
	productStore := mongodb.NewProductStore(db)
	directory := mongodb.NewDirectory(db)

	ledger := inventory.NewLedger(productStore, m, config.AppEnv.DefaultLowStockThreshold)

	var provider routing.Provider
	if config.AppEnv.DirectionsURL != "" {
		provider = routing.NewHTTPProvider(
			config.AppEnv.DirectionsURL,
			config.AppEnv.DirectionsAPIKey,
			config.AppEnv.DirectionsTimeout,
		)
	}
	estimator := routing.NewEstimator(provider, routing.Config{
		SpeedKmh:      config.AppEnv.DeliverySpeedKmh,
		TrafficFactor: config.AppEnv.TrafficFactor,
	})

	svc := orders.NewService(orderStore, directory, productStore, ledger, bus, estimator, kv, m, orders.Config{
		BaseDeliveryFee:    config.AppEnv.BaseDeliveryFee,
		PerKmFee:           config.AppEnv.PerKmFee,
		CODLimit:           config.AppEnv.CODLimit,
		LocationRateLimit:  int64(config.AppEnv.LocationRateLimit),
		LocationRateWindow: config.AppEnv.LocationRateWindow,
	})

	resolver := principal.NewResolver()
	resolver.Register(principal.RoleCustomer, func(ctx context.Context, id primitive.ObjectID) (principal.Principal, error) {
		customer, err := directory.FindCustomer(ctx, id)
		if err != nil {
			return principal.Principal{}, err
		}
		return principal.Principal{ID: customer.ID, Role: principal.RoleCustomer, Name: customer.Name}, nil
	})
	resolver.Register(principal.RoleDeliveryPartner, func(ctx context.Context, id primitive.ObjectID) (principal.Principal, error) {
		partner, err := directory.FindDeliveryPartner(ctx, id)
		if err != nil {
			return principal.Principal{}, err
		}
		return principal.Principal{ID: partner.ID, Role: principal.RoleDeliveryPartner, Name: partner.Name}, nil
	})
	// Admin identities live in the token only; there is no admin collection.
	resolver.Register(principal.RoleAdmin, func(ctx context.Context, id primitive.ObjectID) (principal.Principal, error) {
		return principal.Principal{ID: id, Role: principal.RoleAdmin}, nil
	})

	// Expired rate-limit and payment-dedupe keys are swept in the background.
	go func() {
		for range time.Tick(time.Minute) {
			kv.Purge()
		}
	}()

	handlers.RegisterValidators()

	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Payment confirmations arrive from the gateway callback, not a user
	// session, so they sit outside the auth group.
	r.POST("/payments/confirm", handlers.ConfirmPayment(svc))

	auth := middleware.Auth(config.AppEnv.JWTSecret, resolver)

	api := r.Group("/api")
	api.Use(auth)
	{
		api.POST("/orders", handlers.CreateOrder(svc))
		api.GET("/orders/:id", handlers.GetOrder(svc))
		api.POST("/orders/:id/accept", handlers.AcceptOrder(svc))
		api.POST("/orders/:id/pickup", handlers.PickupOrder(svc))
		api.POST("/orders/:id/delivered", handlers.MarkDelivered(svc))
		api.POST("/orders/:id/confirm", handlers.ConfirmDelivery(svc))
		api.POST("/orders/:id/cancel", handlers.CancelOrder(svc))
		api.PATCH("/orders/:id/status", handlers.UpdateOrderStatus(svc))
		api.POST("/orders/:id/location", handlers.UpdateLocation(svc))

		api.GET("/orders/:id/stream", handlers.StreamOrder(bus))
		api.GET("/branches/:id/stream", handlers.StreamBranch(bus, directory))
		api.GET("/customers/me/stream", handlers.StreamCustomer(bus))
	}

	admin := r.Group("/admin/api")
	admin.Use(auth, middleware.RequireRole(principal.RoleAdmin))
	{
		admin.DELETE("/orders/:id", handlers.DeleteOrder(svc))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logrus.Info("listening on :", port)
	if err := r.Run(":" + port); err != nil {
		logrus.Fatal(err)
	}
}

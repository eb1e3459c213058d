package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/catalog"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/events"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/handler"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/idempotency"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/repository"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/repository/memory"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/service"
	"github.com/cloud-wave-best-zizon/storefront-service/pkg/auth"
	"github.com/cloud-wave-best-zizon/storefront-service/pkg/config"
	"github.com/cloud-wave-best-zizon/storefront-service/pkg/middleware"
	pkgtls "github.com/cloud-wave-best-zizon/storefront-service/pkg/tls"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const serviceName = "storefront-service"

// backend bundles the three repositories the services need.
type backend struct {
	inventory interface {
		service.Inventory
		catalog.ProductWriter
	}
	carts  service.CartRepository
	orders service.OrderRepository
	ping   func(ctx context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	tlsConfig := &pkgtls.TLSConfig{}
	if err := envconfig.Process("", tlsConfig); err != nil {
		logger.Fatal("Failed to load TLS config", zap.Error(err))
	}

	logger.Info("Service configuration",
		zap.String("port", cfg.Port),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("kafka_enabled", cfg.KafkaEnabled),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.Bool("redis_idempotency", cfg.RedisURL != ""),
		zap.Bool("tls_enabled", tlsConfig.Enabled),
		zap.Bool("internal_tls", cfg.InternalTLSEnabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize components
	store, err := newBackend(cfg)
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}

	if cfg.SeedFile != "" {
		if _, err := catalog.Load(ctx, cfg.SeedFile, store.inventory, logger); err != nil {
			logger.Fatal("Failed to seed catalog", zap.Error(err))
		}
	}

	healthChecks := []handler.HealthCheck{{Name: "store", Check: store.ping}}

	var (
		publisher    service.EventPublisher
		compensation service.CompensationPublisher
	)
	if cfg.KafkaEnabled {
		kafkaProducer, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, logger)
		if err != nil {
			logger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		defer kafkaProducer.Close()
		compensationProducer := events.NewCompensationProducer(cfg.KafkaBrokers, cfg.CompensationTopic, logger)
		defer compensationProducer.Close()

		publisher, compensation = kafkaProducer, compensationProducer
		healthChecks = append(healthChecks, handler.HealthCheck{Name: "kafka", Check: kafkaProducer.HealthCheck})
	} else {
		logPublisher := events.NewLogPublisher(logger)
		publisher, compensation = logPublisher, logPublisher
	}

	var keys service.IdempotencyStore = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisURL != "" {
		redisStore, err := idempotency.NewRedisStore(cfg.RedisURL, cfg.IdempotencyTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisStore.Close()
		keys = redisStore
		healthChecks = append(healthChecks, handler.HealthCheck{Name: "redis", Check: redisStore.Ping})
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecrets, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal("Failed to create token verifier", zap.Error(err))
	}

	cartService := service.NewCartService(store.carts, store.inventory, logger)
	checkoutService := service.NewCheckoutService(store.carts, store.inventory, store.orders, publisher, compensation, logger,
		service.WithIdempotency(keys),
		service.WithReleasePolicy(cfg.ReleaseRetries, cfg.ReleaseBackoff))
	orderService := service.NewOrderService(store.orders, publisher, logger, cfg.RecentOrders)

	// Setup Gin Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	handler.Register(router, handler.Handlers{
		Cart:   handler.NewCartHandler(cartService, logger),
		Order:  handler.NewOrderHandler(checkoutService, orderService, logger),
		Admin:  handler.NewAdminHandler(orderService, logger),
		Health: handler.NewHealthHandler(serviceName, logger, healthChecks...),
	}, verifier)

	var wg sync.WaitGroup
	servers := []*http.Server{}

	// HTTP Server for ALB
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers = append(servers, httpServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// mTLS Server for service-to-service (port 8443)
	if cfg.InternalTLSEnabled {
		if httpsServer := startInternalTLS(ctx, &wg, tlsConfig, router, logger); httpsServer != nil {
			servers = append(servers, httpsServer)
		}
	}

	// Graceful Shutdown
	<-ctx.Done()

	logger.Info("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}

	wg.Wait()
	logger.Info("All servers stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func newBackend(cfg *config.Config) (*backend, error) {
	if cfg.StoreBackend == config.BackendMemory {
		s := memory.NewStore()
		return &backend{inventory: s, carts: s, orders: s, ping: s.Ping}, nil
	}

	dynamoClient, err := repository.NewDynamoDBClient(cfg)
	if err != nil {
		return nil, err
	}
	return &backend{
		inventory: repository.NewProductRepository(dynamoClient, cfg.TableName),
		carts:     repository.NewCartRepository(dynamoClient, cfg.TableName),
		orders:    repository.NewOrderRepository(dynamoClient, cfg.TableName),
		ping: func(ctx context.Context) error {
			return repository.Ping(ctx, dynamoClient, cfg.TableName)
		},
	}, nil
}

func startInternalTLS(ctx context.Context, wg *sync.WaitGroup, tlsConfig *pkgtls.TLSConfig, router http.Handler, logger *zap.Logger) *http.Server {
	reloader, err := pkgtls.NewReloader(tlsConfig)
	if err != nil {
		logger.Error("Failed to load certificates", zap.Error(err))
		return nil
	}
	tlsCfg, err := pkgtls.LoadTLSConfig(tlsConfig, reloader, logger)
	if err != nil {
		logger.Error("Failed to load TLS config", zap.Error(err))
		return nil
	}
	httpsServer := &http.Server{
		Addr:              ":8443",
		Handler:           router,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		logger.Info("Starting mTLS server for internal communication", zap.String("port", "8443"))
		if err := httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			logger.Error("mTLS server failed", zap.Error(err))
		}
	}()
	// Watch for certificate updates
	go func() {
		defer wg.Done()
		pkgtls.WatchCertificates(ctx, tlsConfig, reloader, logger)
	}()
	return httpsServer
}

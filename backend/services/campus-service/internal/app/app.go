package app

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "campuswallet/backend/libs/redis"
	"campuswallet/backend/services/campus-service/internal/clients"
	"campuswallet/backend/services/campus-service/internal/config"
	"campuswallet/backend/services/campus-service/internal/db"
	"campuswallet/backend/services/campus-service/internal/events"
	httpserver "campuswallet/backend/services/campus-service/internal/http"
	"campuswallet/backend/services/campus-service/internal/http/handlers"
	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/password"
	redisstore "campuswallet/backend/services/campus-service/internal/redis"
	"campuswallet/backend/services/campus-service/internal/repository"
	"campuswallet/backend/services/campus-service/internal/repository/memory"
	"campuswallet/backend/services/campus-service/internal/service"
	"campuswallet/backend/services/campus-service/internal/ws"
)

// App wires campus-service dependencies.
type App struct {
	server      *httpserver.Server
	store       repository.Store
	redisClient *redis.Client
	bus         *redisstore.Bus
	reconciler  *service.Reconciler
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, sqlDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	hub := ws.NewHub(logger)
	notify := clients.NewNotifyClient(cfg.Notify.URL, cfg.Notify.Events, logger)

	var (
		bus       *redisstore.Bus
		scanCache service.ScanCache
		local     events.Publisher = hub
	)
	if redisClient != nil {
		bus = redisstore.NewBus(redisClient, cfg.Redis.Channel, hub, logger)
		local = bus
		scanCache = redisstore.NewScanStore(redisClient, cfg.Redis.KeyPrefix, cfg.ScanTTL())
	} else {
		scanCache = service.NewMemoryScanCache(cfg.ScanTTL())
	}
	publisher := events.Fanout{local, notify}

	hasher := password.NewBcryptHasher(cfg.Password.BcryptCost)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.TokenTTL())

	wallet := service.NewWalletService(store, publisher, logger)
	transactions := service.NewTransactionService(store, wallet, publisher, logger)
	commerce := service.NewCommerceService(store)
	students := service.NewStudentService(store, wallet, hasher, logger)
	items := service.NewItemService(store, publisher, logger)
	auth := service.NewAuthService(store, hasher, tokens, logger)
	scans := service.NewScanService(commerce, transactions, scanCache, publisher, logger)
	payments := service.NewPaymentService(newGateway(cfg, logger), wallet, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret, logger)

	if cfg.Admin.Email != "" {
		if err := auth.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			closeAll(store, redisClient, logger)
			return nil, err
		}
	}

	checks := map[string]handlers.Pinger{}
	if sqlDB != nil {
		checks["postgres"] = handlers.PingFunc(sqlDB.PingContext)
	}
	if redisClient != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	wsServer := ws.NewServer(hub, tokens, cfg.WriteTimeout(), cfg.PingInterval(), logger)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Tokens:       tokens,
		DeviceKey:    cfg.Device.APIKey,
		Auth:         handlers.NewAuthHandlers(auth, students, logger),
		Students:     handlers.NewStudentHandlers(students, commerce, logger),
		Items:        handlers.NewItemHandlers(items, logger),
		Transactions: handlers.NewTransactionHandlers(transactions, wallet, commerce, logger),
		Commerce:     handlers.NewCommerceHandlers(commerce, logger),
		Wallet:       handlers.NewWalletHandlers(wallet, logger),
		Payments:     handlers.NewPaymentHandlers(payments, logger),
		RFID:         handlers.NewRFIDHandlers(scans, logger),
		Health:       handlers.NewHealthHandler(checks),
		Events:       wsServer.HandleWS,
	})
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger,
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
	)

	return &App{
		server:      server,
		store:       store,
		redisClient: redisClient,
		bus:         bus,
		reconciler:  service.NewReconciler(wallet, cfg.ReconcileInterval(), logger),
		logger:      logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, *sql.DB, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil, nil
	}

	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
	}
	return repository.NewPostgresStore(sqlDB), sqlDB, nil
}

// newGateway returns nil when no key pair is configured; payment endpoints then answer 503.
func newGateway(cfg *config.Config, logger *zap.Logger) service.PaymentGateway {
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		logger.Warn("razorpay keys not configured, wallet top-ups disabled")
		return nil
	}
	gateway, err := clients.NewRazorpayClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret,
		cfg.Razorpay.Currency, clients.NewDefaultHTTPClient(15*time.Second))
	if err != nil {
		logger.Warn("razorpay client disabled", zap.Error(err))
		return nil
	}
	return gateway
}

// Handler exposes the routed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts background workers and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.reconciler.Run(ctx)
	}()
	if a.bus != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.bus.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("event bus stopped", zap.Error(err))
			}
		}()
	}

	err := a.server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// Close releases resources.
func (a *App) Close() {
	closeAll(a.store, a.redisClient, a.logger)
}

func closeAll(store repository.Store, redisClient *redis.Client, logger *zap.Logger) {
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}

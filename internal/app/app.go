package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	httphandler "github.com/nitin-nirvajna/crypto-mockfolio/internal/handler/http"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/repository"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/service"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/websocket"
	"github.com/nitin-nirvajna/crypto-mockfolio/storage/postgres"
	"github.com/nitin-nirvajna/crypto-mockfolio/storage/redis"
)

type App struct {
	cfg         *config.Config
	log         *slog.Logger
	httpServer  *http.Server
	storage     *postgres.Storage
	redisClient *goredis.Client
	subscriber  *redis.Subscriber
	wsManager   *websocket.Manager
	marketStore *market.Store

	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := postgres.New(cfg.Database)
	if err != nil {
		panic(fmt.Errorf("failed to init storage: %w", err))
	}

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	snapshotCache := redis.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL)
	subscriber := redis.NewSubscriber(redisClient, log)

	usersRepo := repository.NewUsersRepository(storage.DB)
	holdingsRepo := repository.NewHoldingsRepository(storage.DB)
	tradesRepo := repository.NewTradesRepository(storage.DB)

	verifier, err := service.NewDemoVerifier(cfg.Demo)
	if err != nil {
		panic(fmt.Errorf("failed to init credential verifier: %w", err))
	}

	sessionsService := service.NewSessionsService(usersRepo, verifier, cfg.Token)
	portfolioService := service.NewPortfolioService(holdingsRepo, tradesRepo, usersRepo, storage.DB, cfg.Billing.FreeTierLimit)
	billingService := service.NewBillingService(service.NewSandboxGateway(log), sessionsService, cfg.Billing)

	marketClient := market.NewClient(cfg.Market, log)
	marketStore := market.NewStore(marketClient, snapshotCache, log)

	wsManager := websocket.NewManager(log, subscriber, holdingsRepo, marketStore)

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	handler := httphandler.NewHandler(sessionsService, portfolioService, billingService, marketStore, wsManager, log, cfg.Token.Secret)
	handler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler: ginEngine,
	}

	return &App{
		cfg:         cfg,
		log:         log,
		httpServer:  httpServer,
		storage:     storage,
		redisClient: redisClient,
		subscriber:  subscriber,
		wsManager:   wsManager,
		marketStore: marketStore,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 1)
	a.log.Info("starting application components...")

	// One best-effort fetch per process. A failure leaves the service
	// degraded (valuations fall back to cost basis) until an explicit
	// refresh succeeds.
	if err := a.marketStore.Refresh(a.ctx); err != nil {
		a.log.Warn("starting without live market data", "error", err)
	}

	go func() {
		a.log.Info("websocket manager started")
		a.wsManager.Run(a.ctx)
		a.log.Info("websocket manager stopped")
	}()

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	err := <-errChan
	a.log.Warn("shutting down application due to an error", "error", err)

	a.Stop()
	return err
}

func (a *App) Stop() {
	a.log.Info("stopping application components gracefully...")

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
	} else {
		a.log.Info("HTTP server stopped")
	}

	a.subscriber.Close()

	if err := a.redisClient.Close(); err != nil {
		a.log.Warn("failed to close redis client", "error", err)
	}

	if err := a.storage.Stop(); err != nil {
		a.log.Error("failed to stop storage", "error", err)
	} else {
		a.log.Info("database connection closed")
	}
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

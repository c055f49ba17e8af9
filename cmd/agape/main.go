package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/agape-erp/agape-erp/internal/app"
	"github.com/agape-erp/agape-erp/internal/auth"
	"github.com/agape-erp/agape-erp/internal/masterdata/items"
	"github.com/agape-erp/agape-erp/internal/masterdata/partners"
	"github.com/agape-erp/agape-erp/internal/masterdata/slots"
	"github.com/agape-erp/agape-erp/internal/observability"
	"github.com/agape-erp/agape-erp/internal/platform/cache"
	"github.com/agape-erp/agape-erp/internal/platform/db"
	"github.com/agape-erp/agape-erp/internal/stock"
	"github.com/agape-erp/agape-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Stock statistics degrade to direct queries without Redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := auth.NewHandler(logger, authService, validate)

	slotsRepo := slots.NewRepository(dbpool)
	partnersRepo := partners.NewRepository(dbpool)
	itemsRepo := items.NewRepository(dbpool)

	partnersHandler := partners.NewHandler(logger, partners.NewService(partnersRepo))
	itemsHandler := items.NewHandler(logger, itemsRepo)
	slotsHandler := slots.NewHandler(logger, slotsRepo)

	stockCache := stock.NewCache(redisClient, cfg.StockCacheTTL)
	stockService := stock.NewService(stock.NewRepository(dbpool), stockCache, cfg.StockTopN)
	stockHandler := stock.NewHandler(logger, stockService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Pool:            dbpool,
		Validate:        validate,
		AuthService:     authService,
		AuthHandler:     authHandler,
		SlotsRepo:       slotsRepo,
		PartnersRepo:    partnersRepo,
		ItemsRepo:       itemsRepo,
		PartnersHandler: partnersHandler,
		ItemsHandler:    itemsHandler,
		SlotsHandler:    slotsHandler,
		StockHandler:    stockHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

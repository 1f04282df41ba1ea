package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/app"
	"github.com/paroquia-cms/paroquia-cms/internal/audit"
	audithttp "github.com/paroquia-cms/paroquia-cms/internal/audit/http"
	"github.com/paroquia-cms/paroquia-cms/internal/auth"
	"github.com/paroquia-cms/paroquia-cms/internal/entities"
	"github.com/paroquia-cms/paroquia-cms/internal/observability"
	"github.com/paroquia-cms/paroquia-cms/internal/platform/cache"
	"github.com/paroquia-cms/paroquia-cms/internal/platform/db"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	resourcehttp "github.com/paroquia-cms/paroquia-cms/internal/resource/http"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
	"github.com/paroquia-cms/paroquia-cms/internal/users"
	"github.com/paroquia-cms/paroquia-cms/internal/view"
	"github.com/paroquia-cms/paroquia-cms/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var (
		store       resource.Store
		auditLogger shared.AuditRecorder
		auditRepo   audit.Repository
	)
	switch cfg.StoreDriver {
	case app.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = resource.NewMemoryStore(nil)
		memoryLog := audit.NewMemoryLog(nil)
		auditLogger, auditRepo = memoryLog, memoryLog
	default:
		dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
		store = resource.NewPGStore(dbpool)
		auditLogger = shared.NewAuditLogger(dbpool)
		auditRepo = audit.NewPGRepository(dbpool)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, view cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	registry, err := entities.NewRegistry()
	if err != nil {
		logger.Error("build registry", slog.Any("error", err))
		os.Exit(1)
	}
	usersDescriptor := registry.MustGet(entities.Users)

	metrics := observability.NewMetrics()
	engine := resource.NewEngine(store, resource.WithLocation(cfg.Location()))
	viewCache := resourcehttp.NewViewCache(redisClient, cfg.ViewCacheTTL, metrics, logger)

	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(store, usersDescriptor), tokens)
	authenticator := auth.Authenticator{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, app.LoginLimiter(cfg))

	usersService := users.NewService(engine, usersDescriptor, users.BcryptHasher{}, rbacService)
	if cfg.BootstrapAdminEmail != "" {
		if err := usersService.Bootstrap(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
	}
	usersHandler := users.NewHandler(logger, usersService, usersDescriptor, authenticator.Require, rbacMiddleware, auditLogger)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditRepo, store), authenticator.Require, rbacMiddleware, cfg.Location())

	templates, err := view.NewEngine(cfg.Location())
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	var pdfClient *report.Client
	if cfg.GotenbergURL != "" {
		pdfClient = report.NewClient(cfg.GotenbergURL)
	}
	printer := report.NewPrinter(templates, pdfClient)
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := printer.Ping(pingCtx); err != nil {
		logger.Warn("pdf rendering unavailable", slog.Any("error", err))
	}
	cancelPing()

	deps := resourcehttp.Deps{
		Logger:  logger,
		Engine:  engine,
		Authn:   authenticator.Require,
		RBAC:    rbacMiddleware,
		Cache:   viewCache,
		Audit:   auditLogger,
		Metrics: metrics,
		Printer: printer,
	}
	resourceHandlers := make(map[string]*resourcehttp.Handler, len(entities.Content))
	for _, name := range entities.Content {
		resourceHandlers[name] = resourcehttp.NewHandler(registry.MustGet(name), deps)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		Authenticator:      authenticator,
		UsersHandler:       usersHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService),
		AuditHandler:       auditHandler,
		ResourceHandlers:   resourceHandlers,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
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

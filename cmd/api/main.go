package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"arbsignals/internal/catalog"
	"arbsignals/internal/client/nowpayments"
	"arbsignals/internal/config"
	cronrunner "arbsignals/internal/cron"
	"arbsignals/internal/db"
	"arbsignals/internal/extractor"
	"arbsignals/internal/handler"
	"arbsignals/internal/logger"
	gormrepository "arbsignals/internal/repository/gorm"
	"arbsignals/internal/service"

	_ "arbsignals/docs"
)

func main() {
	cfgPath := os.Getenv("AS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("AS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	ext := &extractor.Extractor{
		Source:    extractor.DirSource{Dir: cfg.Extractor.DataDir},
		Exchanges: cfg.Extractor.Exchanges,
		Logger:    logger,
	}
	signalCatalog := &catalog.Catalog{
		Extractor: ext,
		Logger:    logger,
		Timeout:   cfg.Extractor.RefreshTimeout,
	}

	npHTTP := &http.Client{Timeout: cfg.NOWPayments.Timeout}
	npClient := nowpayments.NewClient(npHTTP, cfg.NOWPayments.BaseURL, cfg.NOWPayments.APIKey)

	lifecycle := &service.CustomerLifecycleService{Store: store, Logger: logger}
	entitlements := &service.EntitlementService{Store: store, Logger: logger}
	payments := &service.PaymentService{
		Store:          store,
		Lifecycle:      lifecycle,
		Provider:       npClient,
		IPNCallbackURL: cfg.NOWPayments.IPNCallbackURL,
		Logger:         logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	statusHandler := &handler.StatusHandler{Catalog: signalCatalog}
	statusHandler.Register(engine)
	signalsHandler := &handler.SignalsHandler{
		Catalog:      signalCatalog,
		Entitlements: entitlements,
		Logger:       logger,
	}
	signalsHandler.Register(engine)
	billingHandler := &handler.BillingHandler{
		Payments: payments,
		Verifier: nowpayments.IPNVerifier{Secret: cfg.NOWPayments.IPNSecret},
		Repo:     store,
		Logger:   logger,
	}
	billingHandler.Register(engine)
	dashboardHandler := &handler.DashboardHandler{
		Repo:    store,
		Catalog: signalCatalog,
		Logger:  logger,
	}
	dashboardHandler.Register(engine)
	adminHandler := &handler.AdminHandler{Lifecycle: lifecycle, Repo: store, Logger: logger}
	adminHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serve real data from the first request instead of an empty snapshot.
	logger.Info("running initial signal refresh")
	if _, err := signalCatalog.Refresh(ctx); err != nil {
		logger.Warn("initial signal refresh failed (continuing)", zap.Error(err))
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.SignalRefresh, func(ctx context.Context) {
			started, err := signalCatalog.Refresh(ctx)
			if err != nil {
				logger.Warn("cron signal refresh failed", zap.Error(err))
				return
			}
			if !started {
				logger.Debug("cron signal refresh skipped, previous run still active")
			}
		})
		if err != nil {
			logger.Warn("cron register signal refresh failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.PricingSweep, func(ctx context.Context) {
			count, err := lifecycle.CheckPricingTransitions(ctx)
			if err != nil {
				logger.Warn("cron pricing sweep failed", zap.Error(err))
				return
			}
			if count > 0 {
				logger.Info("cron pricing sweep ok", zap.Int("transitioned", count))
			}
		})
		if err != nil {
			logger.Warn("cron register pricing sweep failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelshare/pkg/cache"
	"reelshare/pkg/chain"
	"reelshare/pkg/config"
	"reelshare/pkg/database"
	"reelshare/pkg/jwt"
	"reelshare/pkg/logger"
	"reelshare/pkg/metrics"
	"reelshare/pkg/middleware"
	"reelshare/pkg/queue"
	"reelshare/pkg/s3"
	"reelshare/pkg/wallet"
	filmHTTP "reelshare/services/film/internal/controller/http"
	sessionCache "reelshare/services/film/internal/repo/cache"
	"reelshare/services/film/internal/repo/persistent"
	"reelshare/services/film/internal/usecase"
	"reelshare/services/film/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "reelshare/services/film/docs" // Swagger docs
)

const localViewQueueSize = 1024

type App struct {
	cfg         *config.Config
	log         *logger.Logger
	db          *gorm.DB
	redisClient *redis.Client
	queueClient *queue.Client
	localViews  *worker.LocalQueue
	s3Client    *s3.Client
	jwtService  *jwt.Service
	deriver     *wallet.Deriver
	gateway     *chain.Gateway
	platform    chain.Signer
	httpServer  *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logger.NewWithFile(cfg.LogFile)

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v (purchase sessions kept in memory)", err)
		redisClient = nil
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		return nil, err
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Warn("Failed to connect to RabbitMQ: %v (views queued in process)", err)
		queueClient = nil
	}

	deriver, err := wallet.NewDeriver(cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("WALLET_DERIVATION_SECRET: %w", err)
	}

	var platform chain.Signer
	if cfg.PlatformPrivateKey != "" {
		signer, err := chain.KeySignerFromHex(cfg.PlatformPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("PLATFORM_PRIVATE_KEY: %w", err)
		}
		log.Info("Platform wallet %s", signer.Address().Hex())
		platform = signer
	} else {
		log.Warn("PLATFORM_PRIVATE_KEY is not set: uploads, view recording and payouts are disabled")
	}

	networks, err := chain.DialNetworks(cfg.Networks)
	if err != nil {
		log.Error("Failed to connect to chains: %v", err)
		return nil, err
	}

	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		queueClient: queueClient,
		s3Client:    s3Client,
		jwtService:  jwt.NewService(cfg.JWTSecret),
		deriver:     deriver,
		gateway:     chain.NewGateway(networks, log, chain.OptionsFromConfig(cfg)),
		platform:    platform,
	}, nil
}

func (a *App) Run() error {
	contentRepo := persistent.NewContentRepository(a.db)
	userRepo := persistent.NewUserRepository(a.db)
	ledgerRepo := persistent.NewLedgerRepository(a.db)

	var sessions sessionCache.SessionStore
	if a.redisClient != nil {
		sessions = sessionCache.NewRedisSessionStore(a.redisClient)
	} else {
		sessions = sessionCache.NewMemorySessionStore()
	}

	var (
		views    usecase.ViewPublisher
		consumer worker.ViewConsumer
		backlog  worker.Backlog
	)
	if a.queueClient != nil {
		views, consumer, backlog = a.queueClient, a.queueClient, a.queueClient
	} else {
		a.localViews = worker.NewLocalQueue(localViewQueueSize, a.log)
		views, consumer, backlog = a.localViews, a.localViews, a.localViews
	}

	ledger := usecase.NewLedger(ledgerRepo, metrics.Market(), a.log)
	purchaseUseCase := usecase.NewOrchestrator(contentRepo, userRepo, sessions, a.gateway, a.deriver, ledger, usecase.OrchestratorConfig{
		SettlementDecimals: a.cfg.SettlementDecimals,
		QuoteTTL:           a.cfg.QuoteTTL,
	}, a.log)
	filmUseCase := usecase.NewFilmUseCase(contentRepo, userRepo, ledgerRepo, ledger, a.s3Client, views, a.gateway, a.platform, a.deriver, usecase.FilmConfig{
		SettlementDecimals: a.cfg.SettlementDecimals,
		DefaultNetwork:     a.cfg.DefaultNetwork,
		StreamURLTTL:       a.cfg.StreamURLTTL,
		Payouts:            a.platform != nil,
	}, a.log)

	if a.platform != nil {
		recorder := worker.NewViewRecorder(consumer, filmUseCase.RecordView, a.cfg.ChainReceiptTimeout+a.cfg.ChainCallTimeout, a.log)
		if err := recorder.Start(); err != nil {
			a.log.Error("Error starting view recorder: %v", err)
		}
	}

	filmHandler := filmHTTP.NewFilmHandler(filmUseCase, purchaseUseCase, a.log)
	purchaseHandler := filmHTTP.NewPurchaseHandler(purchaseUseCase)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/health", healthHandler(backlog, a.log))
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(a.jwtService))
	{
		films := api.Group("/films")
		{
			films.POST("/upload", middleware.RequireRole("producer"), filmHandler.UploadFilm)
			films.POST("/purchase", filmHandler.PurchaseFilm)
			films.GET("/stream/:tokenId", filmHandler.StreamFilm)
			films.POST("/resell", filmHandler.ResellFilm)
			films.GET("/analytics/:filmId", middleware.RequireRole("producer"), filmHandler.Analytics)
			films.GET("/producer/revenue", middleware.RequireRole("producer"), filmHandler.ProducerRevenue)
			films.GET("/:id", filmHandler.GetFilm)
		}

		purchases := api.Group("/purchases")
		purchases.Use(middleware.RateLimitMiddleware(a.redisClient, 60, time.Minute))
		{
			purchases.POST("/quote", purchaseHandler.Quote)
			purchases.GET("/:id", purchaseHandler.GetSession)
			purchases.POST("/:id/approve", purchaseHandler.Approve)
			purchases.POST("/:id/execute", purchaseHandler.Execute)
			purchases.POST("/:id/refresh", purchaseHandler.Refresh)
			purchases.POST("/:id/cancel", purchaseHandler.Cancel)
			purchases.POST("/:id/confirm", purchaseHandler.Confirm)
		}

		api.POST("/investments/:contentId/claim", filmHandler.ClaimEarnings)
	}

	a.httpServer = &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: r,
	}

	go func() {
		a.log.Info("Film service starting on port %s", a.cfg.ServerPort)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	return nil
}

func (a *App) Wait() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.log.Info("Shutting down film service...")
}

func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("Server forced to shutdown: %v", err)
		return err
	}

	if a.queueClient != nil {
		if err := a.queueClient.Close(); err != nil {
			a.log.Error("Error closing RabbitMQ: %v", err)
		}
	}
	if a.localViews != nil {
		a.localViews.Close()
	}

	sqlDB, err := a.db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Error("Error closing database: %v", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("Error closing Redis: %v", err)
		}
	}

	a.log.Info("Film service exited")
	return nil
}

// healthHandler reports liveness along with the number of views still
// waiting to be recorded on chain. A broker that cannot be inspected does
// not fail the check.
func healthHandler(backlog worker.Backlog, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		pending, err := backlog.QueueLength()
		if err != nil {
			log.Warn("Error inspecting view queue: %v", err)
			status["view_queue"] = "unavailable"
		} else {
			status["pending_views"] = pending
		}
		c.JSON(http.StatusOK, status)
	}
}

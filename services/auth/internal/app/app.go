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
	"reelshare/pkg/wallet"
	authHTTP "reelshare/services/auth/internal/controller/http"
	nonceCache "reelshare/services/auth/internal/repo/cache"
	"reelshare/services/auth/internal/repo/persistent"
	"reelshare/services/auth/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "reelshare/services/auth/docs" // Swagger docs
)

const balanceCacheTTL = 24 * time.Hour

type App struct {
	cfg         *config.Config
	log         *logger.Logger
	db          *gorm.DB
	redisClient *redis.Client
	jwtService  *jwt.Service
	deriver     *wallet.Deriver
	gateway     *chain.Gateway
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
		log.Error("Failed to connect to redis: %v (nonces kept in memory)", err)
		redisClient = nil
	}

	deriver, err := wallet.NewDeriver(cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("WALLET_DERIVATION_SECRET: %w", err)
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
		jwtService:  jwt.NewService(cfg.JWTSecret),
		deriver:     deriver,
		gateway:     chain.NewGateway(networks, log, chain.OptionsFromConfig(cfg)),
	}, nil
}

func (a *App) Run() error {
	userRepo := persistent.NewUserRepository(a.db)

	var (
		nonces       nonceCache.NonceStore
		balanceCache wallet.Cache
	)
	if a.redisClient != nil {
		nonces = nonceCache.NewRedisNonceStore(a.redisClient)
		balanceCache = wallet.NewRedisCache(a.redisClient, balanceCacheTTL)
	} else {
		nonces = nonceCache.NewMemoryNonceStore()
	}

	authUseCase := usecase.NewAuthUseCase(
		userRepo,
		nonces,
		a.jwtService,
		a.deriver,
		a.gateway,
		wallet.NewAggregator(a.gateway, balanceCache, a.log),
		a.log,
	)

	authHandler := authHTTP.NewAuthHandler(authUseCase)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		signIn := api.Group("/users")
		signIn.Use(middleware.RateLimitMiddleware(a.redisClient, 20, time.Minute))
		{
			signIn.GET("/nonce", authHandler.Nonce)
			signIn.POST("/authenticate", authHandler.Authenticate)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(a.jwtService))
		{
			protected.GET("/me", authHandler.Me)
			protected.GET("/wallet/balances", authHandler.Balances)
		}
	}

	a.httpServer = &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: r,
	}

	go func() {
		a.log.Info("Auth service starting on port %s", a.cfg.ServerPort)
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
	a.log.Info("Shutting down auth service...")
}

func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

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

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("Server forced to shutdown: %v", err)
		return err
	}

	a.log.Info("Auth service exited")
	return nil
}

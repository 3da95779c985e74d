package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "veriboard/docs"
	"veriboard/internal/config"
	"veriboard/internal/handlers"
	"veriboard/internal/logger"
	"veriboard/internal/metrics"
	"veriboard/internal/middleware"
	"veriboard/internal/migrations"
	"veriboard/internal/pdf"
	"veriboard/internal/repositories"
	"veriboard/internal/routes"
	"veriboard/internal/services"
	"veriboard/internal/storage"
)

const appName = "veriboard"

func Run() {
	cfg := config.MustLoad()
	logger.Init(appName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	db, err := sql.Open("postgres", withStatementTimeout(cfg.Database.DSN, cfg.Database.StatementTimeout))
	if err != nil {
		logger.Log.WithError(err).Fatal("[app] open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Log.WithError(err).Warn("[app] close database")
		}
	}()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.Log.WithError(err).Fatal("[app] database unreachable")
	}
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(db); err != nil {
			logger.Log.WithError(err).Fatal("[app] migrate")
		}
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	employmentRepo := repositories.NewEmploymentRepository(db)
	companyRepo := repositories.NewCompanyRepository(db)

	// === Services ===
	limiter := newRateLimiter(ctx, cfg)
	otpService := services.NewOTPService(otpRepo, limiter, services.OTPOptions{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	})

	transports := services.TransportsFromConfig(cfg.Email)
	if len(transports) == 0 {
		logger.Log.Warn("[app] no mail transport configured; codes are only recoverable from logs")
	}
	notificationService := services.NewNotificationService(transports, services.NotificationOptions{
		MaxAttempts: cfg.Email.MaxAttempts,
		SendTimeout: cfg.Email.SendTimeout,
		LogCodes:    cfg.Email.LogCodes,
		CodeTTL:     cfg.OTP.TTL,
	})

	tokenService := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	authService := services.NewAuthService(userRepo, otpService, notificationService, tokenService, services.AuthOptions{
		EnableOTPOnLogin:     cfg.Auth.EnableOTPOnLogin,
		RequireOTPOnRegister: cfg.Auth.RequireOTPOnRegister,
	})
	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Log.WithError(err).Error("[app] bootstrap admin")
	}

	var store services.DocumentStore
	if cfg.Storage.Endpoint != "" {
		client, err := storage.NewClient(ctx, cfg.Storage)
		if err != nil {
			logger.Log.WithError(err).Error("[app] object storage disabled")
		} else {
			store = client
		}
	}

	notifier := services.NoopNotifier()
	if cfg.Telegram.BotToken != "" && cfg.Telegram.AdminChatID != 0 {
		tg, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)
		if err != nil {
			logger.Log.WithError(err).Warn("[app] telegram notifier disabled")
		} else {
			notifier = tg
		}
	}

	verificationService := services.NewVerificationService(
		userRepo,
		employmentRepo,
		companyRepo,
		store,
		pdf.NewCertificateGenerator(cfg.Files.FontPath),
		notifier,
		services.VerificationOptions{
			MaxUploadBytes: cfg.Storage.MaxUploadBytes,
			PresignTTL:     cfg.Storage.PresignTTL,
		},
	)

	cleanup := services.NewCleanupService(otpService, cfg.OTP.PurgeAfter)
	if err := cleanup.Start(); err != nil {
		logger.Log.WithError(err).Error("[app] cleanup scheduler")
	}

	// === Handlers ===
	handlers.RegisterValidators()
	authHandler := handlers.NewAuthHandler(authService)
	employmentHandler := handlers.NewEmploymentHandler(verificationService)
	companyHandler := handlers.NewCompanyHandler(verificationService)
	adminHandler := handlers.NewAdminHandler(verificationService)

	// === Gin ===
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(metrics.GinMiddleware())

	router.GET("/healthz", healthz(db))
	router.GET("/metrics", metrics.Handler())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, tokenService, authHandler, employmentHandler, companyHandler, adminHandler)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           corsHandler(cfg.Server.TrustedOrigins).Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Log.WithField("addr", srv.Addr).Info("[app] server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("[app] listen")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("[app] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("[app] graceful shutdown")
	}
	cleanup.Stop(shutdownCtx)
}

// newRateLimiter prefers Redis so limits hold across replicas.
func newRateLimiter(ctx context.Context, cfg *config.Config) services.RateLimiter {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := client.Ping(pingCtx).Err()
		if err == nil {
			return services.NewRedisRateLimiter(client, cfg.OTP.RequestsPerWindow, cfg.OTP.Window)
		}
		logger.Log.WithError(err).Warn("[app] redis unavailable, using in-process rate limiter")
		_ = client.Close()
	}
	return services.NewMemoryRateLimiter(cfg.OTP.RequestsPerWindow, cfg.OTP.Window)
}

func corsHandler(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}

func healthz(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			middleware.LoggerFrom(c).WithError(err).Error("[health] database ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// withStatementTimeout adds a server-side statement_timeout to URL-style DSNs;
// lib/pq forwards unknown keys as run-time parameters.
func withStatementTimeout(dsn string, d time.Duration) string {
	if d <= 0 {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	q := u.Query()
	if q.Get("statement_timeout") == "" {
		q.Set("statement_timeout", strconv.FormatInt(d.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

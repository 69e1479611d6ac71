package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/silasmoran/bastion/internal/auth"
	"github.com/silasmoran/bastion/internal/background"
	"github.com/silasmoran/bastion/internal/config"
	"github.com/silasmoran/bastion/internal/database"
	"github.com/silasmoran/bastion/internal/handlers"
	"github.com/silasmoran/bastion/internal/middleware"
	"github.com/silasmoran/bastion/internal/policy"
	"github.com/silasmoran/bastion/internal/repositories"
	"github.com/silasmoran/bastion/internal/risk"
	"github.com/silasmoran/bastion/internal/services"
	pkghttp "github.com/silasmoran/bastion/pkg/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	backupCodeRepo := repositories.NewBackupCodeRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	// Crypto managers
	tokenManager, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenIssuer)
	if err != nil {
		logger.Error("failed to initialize token manager", slog.Any("error", err))
		os.Exit(1)
	}

	totpManager, err := auth.NewTOTPManager(cfg.MFA.EncryptionKey, cfg.MFA.Issuer, cfg.MFA.Skew)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Policies from configuration
	lockoutPolicy := policy.LockoutPolicy{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	}
	sessionPolicy := policy.SessionPolicy{
		DefaultDuration:       cfg.Session.DefaultDuration,
		ElevatedRiskDuration:  cfg.Session.ElevatedRiskDuration,
		HighRiskDuration:      cfg.Session.HighRiskDuration,
		RememberDuration:      cfg.Session.RememberDuration,
		ElevatedRiskThreshold: cfg.Risk.ElevatedThreshold,
		HighRiskThreshold:     cfg.Risk.HighThreshold,
		RiskCeiling:           cfg.Risk.Ceiling,
		AccessRefreshInterval: cfg.Session.AccessRefreshInterval,
	}
	riskAnalyzer := risk.NewAnalyzer(risk.Config{
		Weights: risk.Weights{
			NewIP:            cfg.Risk.NewIPWeight,
			NewDevice:        cfg.Risk.NewDeviceWeight,
			PossibleStuffing: cfg.Risk.PossibleStuffingWeight,
		},
		StuffingWindow: cfg.Risk.StuffingWindow,
	})

	// Services
	auditService := services.NewAuditService(auditLogRepo, logger)

	var alertSender services.LoginAlertSender
	if cfg.Email.Enabled {
		sesService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		alertSender = sesService
	}

	mfaService := services.NewMFAService(userRepo, backupCodeRepo, totpManager, auditService, logger,
		services.MFAConfig{BackupCodeCount: cfg.MFA.BackupCodeCount})
	sessionService := services.NewSessionService(sessionRepo, sessionPolicy, auditService, logger)
	authService := services.NewAuthService(
		userRepo, sessionRepo, mfaService, riskAnalyzer, tokenManager,
		auditService, alertSender, lockoutPolicy, sessionPolicy, logger,
	)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, sessionService, ipConfig, logger)
	mfaHandler := handlers.NewMFAHandler(mfaService, logger)

	sessionAuth := handlers.SessionAuth(sessionService)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	router.Route("/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(middleware.DefaultLoginRateLimit())).
			Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Get("/sessions", authHandler.ListSessions)
		})
	})

	router.Route("/v1/mfa", func(r chi.Router) {
		r.Use(sessionAuth)
		r.Post("/setup", mfaHandler.Setup)
		r.Post("/enable", mfaHandler.Enable)
		r.Post("/verify", mfaHandler.Verify)
		r.Post("/disable", mfaHandler.Disable)
		r.Get("/backup-codes", mfaHandler.BackupCodes)
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Retention sweep for expired sessions
	cleanupManager := background.NewCleanupManager(sessionService, logger, cfg.Session.CleanupInterval, cfg.Session.Retention)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

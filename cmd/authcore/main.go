package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/backoffice-kit/authcore"
	"github.com/backoffice-kit/authcore/internal/config"
	"github.com/backoffice-kit/authcore/pkg/auth"
	"github.com/backoffice-kit/authcore/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	coreCfg := authcore.Config{
		DB:                        db,
		JWTSecret:                 cfg.JWTSecret,
		JWTIssuer:                 cfg.JWTIssuer,
		MFATokenSecret:            cfg.MFATokenSecret,
		MFAEncryptionKey:          cfg.MFAEncryptionKey,
		MFAIssuer:                 cfg.MFAIssuer,
		AccessTokenTTL:            cfg.AccessTokenTTL,
		RefreshTokenTTL:           cfg.RefreshTokenTTL,
		RememberMeRefreshTokenTTL: cfg.RememberMeRefreshTokenTTL,
		BcryptCost:                cfg.BcryptCost,
		PasswordPolicy: &auth.PasswordPolicy{
			MinLength:        cfg.PasswordMinLength,
			RequireUppercase: cfg.PasswordRequireUpper,
			RequireLowercase: cfg.PasswordRequireLower,
			RequireNumber:    cfg.PasswordRequireNumber,
			RequireSpecial:   cfg.PasswordRequireSpecial,
		},
		Throttle: auth.ThrottleConfig{
			CaptchaThreshold: cfg.CaptchaThreshold,
			Delay:            cfg.ThrottleDelay,
			Window:           cfg.ThrottleWindow,
		},
		MFATempTokenTTL:      cfg.MFATempTokenTTL,
		MFAMaxAttempts:       cfg.MFAMaxAttempts,
		MFALockoutDuration:   cfg.MFALockoutDuration,
		AppBaseURL:           cfg.AppBaseURL,
		EmailVerificationTTL: cfg.EmailVerificationTTL,
		PasswordResetTTL:     cfg.PasswordResetTTL,
		Logger:               logger,
	}
	if cfg.HasSMTP() {
		coreCfg.SMTP = &authcore.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}
		logger.Info("email service enabled")
	}
	if cfg.HasMFA() {
		logger.Info("MFA service enabled")
	}

	core, err := authcore.New(coreCfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// Background sweep of expired sessions, throttle, and CAPTCHA state
	maintenanceCtx, stopMaintenance := context.WithCancel(context.Background())
	defer stopMaintenance()
	go core.RunMaintenance(maintenanceCtx, cfg.CleanupInterval)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      core.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopMaintenance()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

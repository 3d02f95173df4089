package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/accounts/accounts-go/internal/config"
	"github.com/accounts/accounts-go/internal/crypto"
	"github.com/accounts/accounts-go/internal/handler"
	"github.com/accounts/accounts-go/internal/notify"
	"github.com/accounts/accounts-go/internal/repository"
	"github.com/accounts/accounts-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	db, err := repository.NewDB(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := repository.RunMigrations(context.Background(), db); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	hasher := crypto.NewArgon2Hasher()
	resets := crypto.NewResetTokenGenerator(cfg.SecretKey, cfg.ResetTimeout, cfg.ResetGranularity)

	authService := service.NewAuthService(userRepo, tokenRepo, hasher, resets, notify.NewLogNotifier(nil), cfg.ResetURL)
	userService := service.NewUserService(userRepo, hasher)

	router := handler.NewRouter(
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService),
		authService,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// newLogger writes JSON in production and text everywhere else.
func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

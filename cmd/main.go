// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/activity-board/internal/banner"
	"github.com/Shivanand-hulikatti/activity-board/internal/config"
	"github.com/Shivanand-hulikatti/activity-board/internal/handler"
	"github.com/Shivanand-hulikatti/activity-board/internal/i18n"
	"github.com/Shivanand-hulikatti/activity-board/internal/logger"
	"github.com/Shivanand-hulikatti/activity-board/internal/repository"
	"github.com/Shivanand-hulikatti/activity-board/internal/service"
	"github.com/Shivanand-hulikatti/activity-board/internal/session"
	"github.com/Shivanand-hulikatti/activity-board/internal/view"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("activity board: %v", err)
	}
}

func run() error {
	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appLog, err := logger.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = appLog.Sync() }()

	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}
	if csrfKey == nil {
		appLog.Warn("CSRF_KEY not set; form posts are not CSRF-protected")
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	// A zero timeout leaves requests to the transport's own defaults.
	apiClient := &http.Client{Timeout: cfg.APITimeout}
	activities := repository.NewActivityRepository(cfg.APIBaseURL, apiClient)
	translator := i18n.NewTranslator(cfg.DefaultLocale, appLog.Named("i18n"))
	boardLog := appLog.Named("board")

	newBoard := func(acceptLanguage string) *service.Board {
		return service.NewBoard(
			activities,
			translator.For(acceptLanguage),
			banner.New(cfg.BannerTTL, nil),
			boardLog,
		)
	}
	sessions := session.NewStore[*service.Board](cfg.SessionIdleTTL, (*service.Board).Close)

	pages, err := view.NewRenderer()
	if err != nil {
		return err
	}
	boardHandler := handler.NewBoardHandler(sessions, newBoard, pages, boardLog)

	// ── 3. Build the router ───────────────────────────────────────────────
	router := handler.NewRouter(boardHandler, appLog.Named("http"), handler.RouterOptions{
		CSRFKey:       csrfKey,
		SecureCookies: cfg.Environment == "production",
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx, cfg.SessionSweepInterval)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("activity_api", cfg.APIBaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	appLog.Info("server stopped")
	return nil
}

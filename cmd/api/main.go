package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"mockupstudio/internal/http/handlers"
	httpapi "mockupstudio/internal/http/httpapi"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/notify"
	"mockupstudio/internal/providers/genai"
	"mockupstudio/internal/providers/image"
	"mockupstudio/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := genai.NewClient(ctx, genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.GeminiTimeout},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}
	generator := image.NewGeminiGenerator(client)

	hub := notify.NewHub(cfg.NoticeDismiss, cfg.CORSAllowedOrigins, &logger)
	sessions := session.NewStore(cfg.SessionTTL, &logger)
	sessions.OnEvict(hub.CloseSession)

	app := handlers.NewApp(handlers.Options{
		Sessions:       sessions,
		Generator:      generator,
		Hub:            hub,
		Logger:         &logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		NoticeDismiss:  cfg.NoticeDismiss,
	})
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("model", client.Model()).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		return sessions.RunJanitor(gctx, cfg.SessionSweep)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

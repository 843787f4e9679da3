package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/imagegen"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/notify"
	"mockupstudio/internal/providers/genai"
	"mockupstudio/internal/providers/image"
	"mockupstudio/internal/session"
)

type stderrNotifier struct{}

func (stderrNotifier) Notify(_ context.Context, kind notify.Kind, message string) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", kind, message)
}

func main() {
	var (
		inFlag     string
		outFlag    string
		designFlag string
		styleFlag  string
		repairFlag bool
	)
	flag.StringVar(&inFlag, "in", "", "Design image to mock up (PNG, JPEG or WebP)")
	flag.StringVar(&outFlag, "out", "mockup.png", "Where to write the generated mockup")
	flag.StringVar(&designFlag, "design", "", "Design type: book or brochure")
	flag.StringVar(&styleFlag, "style", string(domain.DefaultStyle), "Mockup style")
	flag.BoolVar(&repairFlag, "repair", false, "Remove people and retry once when the design is blocked for safety")
	flag.Parse()

	_ = godotenv.Load()

	if strings.TrimSpace(inFlag) == "" {
		fmt.Fprintln(os.Stderr, "-in is required")
		os.Exit(2)
	}
	design, err := domain.ParseDesignType(designFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-design must be book or brochure")
		os.Exit(2)
	}
	style, err := domain.ParseStyle(styleFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unsupported style %q\n", styleFlag)
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLogger("cli", cfg.LogLevel).With().Str("cmd", "mockup").Logger()

	data, err := os.ReadFile(inFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("read design")
	}
	src, err := imagegen.LoadSource(data, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("load design")
	}

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
		logger.Fatal().Err(err).Msg("create gemini client")
	}
	gen := image.NewGeminiGenerator(client)

	sess := session.NewStore(0, &logger).Create(src)
	sess.SetDesign(design)
	sess.SetStyle(style)
	req, err := sess.Request()
	if err != nil {
		logger.Fatal().Err(err).Msg("build request")
	}

	logger.Info().Str("subject", req.Subject()).Str("style", string(style)).Str("model", client.Model()).Msg("generating mockup")
	img, err := gen.Generate(ctx, req)
	if err != nil && repairFlag && domain.IsSafetyBlocked(err) {
		flow := imagegen.NewRepairFlow(gen, sess, stderrNotifier{}, &logger)
		res, runErr := flow.Run(ctx, req, err)
		if runErr != nil {
			logger.Fatal().Err(runErr).Msg("repair")
		}
		img, err = res.Image, res.Err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, domain.UserMessage(err))
		var f *domain.Failure
		if errors.As(err, &f) && f.Kind == domain.FailureSafetyBlocked && !repairFlag {
			fmt.Fprintln(os.Stderr, "rerun with -repair to remove people from the design and retry")
		}
		os.Exit(1)
	}

	if err := os.WriteFile(outFlag, img.Data, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write mockup")
	}
	logger.Info().Str("out", outFlag).Int("bytes", len(img.Data)).Msg("mockup written")
}

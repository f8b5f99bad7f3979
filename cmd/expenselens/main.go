package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/sgrimes/expenselens/internal/expense"
	"github.com/sgrimes/expenselens/internal/ocr"
	"github.com/sgrimes/expenselens/internal/pipeline"
	"github.com/sgrimes/expenselens/internal/scanning"
)

func main() {
	fs := ff.NewFlagSet("expenselens")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "expenselens.db", "Database file path")
		storagePath = fs.StringLong("storage", "./receipts", "Storage directory path")

		extractorType = fs.StringLong("extractor", "ollama", "Extraction backend: 'ollama', 'openai' or 'gemini'")
		endpoint      = fs.StringLong("endpoint", "", "Extraction service base URL (defaults per backend)")
		model         = fs.StringLong("model", "", "Extraction model name (defaults per backend)")
		apiKey        = fs.StringLong("api-key", "", "Extraction service API key (or set EXPENSELENS_API_KEY)")
		temperature   = fs.Float64Long("temperature", 0, "Extraction sampling temperature")
		timeout       = fs.DurationLong("timeout", 60*time.Second, "Extraction request timeout")

		tessBinary = fs.StringLong("tesseract", "tesseract", "Tesseract binary path")
		tessLang   = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		tessData   = fs.StringLong("tessdata-dir", "", "Tesseract tessdata directory (optional)")

		authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		debug    = fs.BoolLong("debug", "Enable debug logging")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSELENS"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	db, err := expense.NewBoltDB(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		extractor scanning.Extractor
		health    expense.HealthFunc
	)
	switch *extractorType {
	case "ollama":
		cfg := scanning.GenerateConfig{
			BaseURL:     *endpoint,
			Model:       *model,
			Temperature: *temperature,
			Timeout:     *timeout,
		}
		gen := scanning.NewGenerate(cfg, logger)
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		health = func(ctx context.Context) error {
			return scanning.Probe(ctx, base, "/api/tags")
		}
		extractor = gen
	case "openai":
		if *apiKey == "" {
			logger.Error("an API key is required for the openai backend")
			os.Exit(1)
		}
		cfg := scanning.ChatConfig{
			BaseURL:     *endpoint,
			APIKey:      *apiKey,
			Model:       *model,
			Temperature: *temperature,
			Timeout:     *timeout,
		}
		extractor = scanning.NewChat(cfg, logger)
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		health = func(ctx context.Context) error {
			return scanning.Probe(ctx, base, "/models")
		}
	case "gemini":
		if *apiKey == "" {
			logger.Error("an API key is required for the gemini backend")
			os.Exit(1)
		}
		extractor, err = scanning.NewGemini(scanning.GeminiConfig{
			APIKey:      *apiKey,
			Model:       *model,
			Temperature: *temperature,
			Timeout:     *timeout,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize gemini backend", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("invalid extractor type", "type", *extractorType, "valid", "ollama, openai or gemini")
		os.Exit(1)
	}
	defer extractor.Close()

	textSource := ocr.NewTesseract(ocr.TesseractConfig{
		Binary:      *tessBinary,
		Language:    *tessLang,
		TessdataDir: *tessData,
	}, logger)

	store, err := expense.NewLocalStorage(*storagePath)
	if err != nil {
		logger.Error("failed to initialize storage", "path", *storagePath, "error", err)
		os.Exit(1)
	}

	scanner := pipeline.New(textSource, extractor, logger)
	service := expense.NewService(db, scanner, store, logger)

	server := expense.NewServer(service, expense.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}, health, logger)

	addr := fmt.Sprintf(":%d", *port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	logger.Info("server started", "address", fmt.Sprintf("http://localhost%s", addr), "extractor", *extractorType)
	if *authUser != "" || *authPass != "" {
		logger.Info("basic auth enabled", "user", *authUser)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}
}

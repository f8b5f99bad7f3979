package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini SDK backend.
type GeminiConfig struct {
	APIKey      string
	Model       string // default "gemini-2.5-pro"
	Temperature float64
	Timeout     time.Duration
}

// Gemini implements Extractor through the Gemini SDK. Same prompt contract
// and inner payload as the HTTP backends; only the transport differs.
type Gemini struct {
	cfg    GeminiConfig
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewGemini(cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	temp := float32(cfg.Temperature)
	model.Temperature = &temp

	return &Gemini{cfg: cfg, client: client, model: model, logger: logger}, nil
}

// Extract performs exactly one extraction attempt through the SDK.
func (g *Gemini) Extract(ctx context.Context, image []byte, ocrText string) (*StructuredResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	parts := []genai.Part{
		genai.ImageData("png", image),
		genai.Text(buildPrompt(ocrText)),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		g.logger.Error("scan.gemini.send_error", "model", g.cfg.Model, "error", err)
		return nil, &ExtractionError{Kind: FailureNetwork, Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ExtractionError{Kind: FailureEnvelope, Err: fmt.Errorf("no candidates in gemini response")}
	}

	var payload strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			payload.WriteString(string(text))
		}
	}

	result, err := decodeInner(payload.String())
	if err != nil {
		g.logger.Error("scan.gemini.schema_error",
			"model", g.cfg.Model, "prompt_version", PromptVersion,
			"error", err, "payload", truncateBody([]byte(payload.String())),
		)
		return nil, &ExtractionError{Kind: FailureSchema, Body: truncateBody([]byte(payload.String())), Err: err}
	}

	g.logger.Info("scan.gemini.ok",
		"model", g.cfg.Model,
		"vendor", result.Vendor.DisplayName(),
		"items", len(result.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Close releases the SDK client.
func (g *Gemini) Close() error { return g.client.Close() }

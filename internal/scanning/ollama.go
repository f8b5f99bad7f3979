package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one structured-extraction attempt.
const DefaultTimeout = 60 * time.Second

// GenerateConfig configures the generate-API client. All fields are read
// once at construction; nothing here is mutated afterwards.
type GenerateConfig struct {
	BaseURL     string        // default http://localhost:11434
	Model       string        // default "llava"
	Temperature float64       // 0 disables sampling noise, which suits extraction
	Timeout     time.Duration // default DefaultTimeout
}

// Generate talks to an Ollama-compatible /api/generate endpoint. This is the
// primary wire shape: prompt plus base64 image in, a single JSON envelope
// whose "response" string holds the structured payload out.
type Generate struct {
	cfg    GenerateConfig
	client *http.Client
	logger *slog.Logger
}

func NewGenerate(cfg GenerateConfig, logger *slog.Logger) *Generate {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llava"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generate{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Format  string          `json:"format"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

// Extract performs exactly one extraction attempt. Retrying is the caller's
// decision.
func (g *Generate) Extract(ctx context.Context, image []byte, ocrText string) (*StructuredResult, error) {
	reqBody := generateRequest{
		Model:   g.cfg.Model,
		Prompt:  buildPrompt(ocrText),
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
		Format:  "json",
		Stream:  false,
		Options: generateOptions{Temperature: g.cfg.Temperature},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ExtractionError{Kind: FailureNetwork, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	start := time.Now()
	url := g.cfg.BaseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &ExtractionError{Kind: FailureNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("scan.generate.send_error", "model", g.cfg.Model, "error", err)
		return nil, &ExtractionError{Kind: FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		g.logger.Error("scan.generate.bad_status",
			"model", g.cfg.Model,
			"status", resp.StatusCode,
			"body", truncateBody(raw),
		)
		return nil, &ExtractionError{
			Kind:   FailureStatus,
			Status: resp.StatusCode,
			Body:   truncateBody(raw),
			Err:    fmt.Errorf("non-2xx status"),
		}
	}

	payload, err := decodeEnvelope(raw)
	if err != nil {
		g.logger.Error("scan.generate.envelope_error",
			"model", g.cfg.Model, "error", err, "body", truncateBody(raw),
		)
		return nil, &ExtractionError{Kind: FailureEnvelope, Body: truncateBody(raw), Err: err}
	}

	result, err := decodeInner(payload)
	if err != nil {
		g.logger.Error("scan.generate.schema_error",
			"model", g.cfg.Model, "prompt_version", PromptVersion,
			"error", err, "payload", truncateBody([]byte(payload)),
		)
		return nil, &ExtractionError{Kind: FailureSchema, Body: truncateBody([]byte(payload)), Err: err}
	}

	g.logger.Info("scan.generate.ok",
		"model", g.cfg.Model,
		"vendor", result.Vendor.DisplayName(),
		"items", len(result.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Close is a no-op for the HTTP client.
func (g *Generate) Close() error { return nil }

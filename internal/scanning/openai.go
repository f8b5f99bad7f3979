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

// ChatConfig configures the chat-completions client.
type ChatConfig struct {
	BaseURL     string // default https://api.openai.com/v1
	APIKey      string
	Model       string // default "gpt-4o-mini"
	Temperature float64
	MaxTokens   int // default 4096
	Timeout     time.Duration
}

// Chat talks to an OpenAI-compatible /chat/completions endpoint. This is the
// alternate wire shape: a multi-part message carrying the instruction text
// and the image, whose reply embeds the same structured payload inside the
// message content, possibly wrapped in Markdown fences.
type Chat struct {
	cfg    ChatConfig
	client *http.Client
	logger *slog.Logger
}

func NewChat(cfg ChatConfig, logger *slog.Logger) *Chat {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract performs exactly one extraction attempt against the chat endpoint.
func (c *Chat) Extract(ctx context.Context, image []byte, ocrText string) (*StructuredResult, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []chatPart{
					{Type: "text", Text: buildPrompt(ocrText)},
					{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ExtractionError{Kind: FailureNetwork, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &ExtractionError{Kind: FailureNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("scan.chat.send_error", "model", c.cfg.Model, "error", err)
		return nil, &ExtractionError{Kind: FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("scan.chat.bad_status",
			"model", c.cfg.Model,
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

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		c.logger.Error("scan.chat.envelope_error",
			"model", c.cfg.Model, "error", err, "body", truncateBody(raw),
		)
		return nil, &ExtractionError{Kind: FailureEnvelope, Body: truncateBody(raw), Err: fmt.Errorf("decoding chat response: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &ExtractionError{Kind: FailureEnvelope, Body: truncateBody(raw), Err: fmt.Errorf("no choices in chat response")}
	}

	payload := chatResp.Choices[0].Message.Content
	result, err := decodeInner(payload)
	if err != nil {
		c.logger.Error("scan.chat.schema_error",
			"model", c.cfg.Model, "prompt_version", PromptVersion,
			"error", err, "payload", truncateBody([]byte(payload)),
		)
		return nil, &ExtractionError{Kind: FailureSchema, Body: truncateBody([]byte(payload)), Err: err}
	}

	c.logger.Info("scan.chat.ok",
		"model", c.cfg.Model,
		"vendor", result.Vendor.DisplayName(),
		"items", len(result.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Close is a no-op for the HTTP client.
func (c *Chat) Close() error { return nil }

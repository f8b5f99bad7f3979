package scanning

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Probe performs a lightweight reachability check against an extraction
// service by listing its models. A success status means the endpoint is
// configured correctly; it says nothing about model quality.
func Probe(ctx context.Context, baseURL, modelsPath string) error {
	if modelsPath == "" {
		modelsPath = "/api/tags"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+modelsPath, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}
	return nil
}

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HTTPCompletionProvider asks the marketplace profile service for a
// business's completion percentage.
type HTTPCompletionProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCompletionProvider(baseURL string) *HTTPCompletionProvider {
	return &HTTPCompletionProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *HTTPCompletionProvider) CompletionPercentage(ctx context.Context, businessID uuid.UUID) (int, error) {
	url := fmt.Sprintf("%s/internal/businesses/%s/completion", p.baseURL, businessID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("completion lookup returned %d", resp.StatusCode)
	}

	var body struct {
		Percentage int `json:"percentage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Percentage, nil
}

// NewEnvCompletionProvider picks the provider from the environment:
// COMPLETION_API_URL selects the HTTP provider, otherwise a static
// score (COMPLETION_STATIC_PCT, default 100) is used for local runs.
func NewEnvCompletionProvider() CompletionProvider {
	if url := os.Getenv("COMPLETION_API_URL"); url != "" {
		return NewHTTPCompletionProvider(url)
	}
	pct := 100
	if raw := os.Getenv("COMPLETION_STATIC_PCT"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			pct = v
		}
	}
	return &StaticCompletionProvider{Percentage: pct}
}

package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Hung6066/IVF-sub008/models"
)

// Matcher is one fingerprint matcher shard. Each shard owns a disjoint
// partition of enrolled templates and applies its own acceptance threshold:
// it only reports match=true when its local threshold is cleared.
type Matcher interface {
	// Name identifies the shard in logs and metrics
	Name() string
	// Identify runs a 1:N search of the probe template against the shard's
	// partition
	Identify(ctx context.Context, template []byte) (*models.IdentificationResult, error)
}

// identifyRequest is the wire payload for the shard protocol
type identifyRequest struct {
	Template []byte `json:"template"`
}

// HTTPMatcher calls a matcher shard over its POST /identify endpoint
type HTTPMatcher struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPMatcher creates a shard client for the given base URL
func NewHTTPMatcher(name, baseURL string, timeout time.Duration) *HTTPMatcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPMatcher{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Name identifies the shard
func (m *HTTPMatcher) Name() string { return m.name }

// Identify posts the probe template to the shard
func (m *HTTPMatcher) Identify(ctx context.Context, template []byte) (*models.IdentificationResult, error) {
	payload, err := json.Marshal(identifyRequest{Template: template})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/identify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create identify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shard %s unreachable: %w", m.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shard %s returned status %d", m.name, resp.StatusCode)
	}

	var result models.IdentificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("shard %s returned malformed response: %w", m.name, err)
	}
	return &result, nil
}

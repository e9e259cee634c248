package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"retirement-sim-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Kernel sidecar endpoints.
const (
	pathMonteCarlo = "/v1/monte-carlo"
	pathReplay     = "/v1/replay"
	pathReady      = "/v1/ready"
)

// HTTPClient implements Engine against a kernel sidecar speaking JSON over
// HTTP.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a kernel sidecar client.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Engine = (*HTTPClient)(nil)

// mcRequest is the wire request for the MC entry point.
type mcRequest struct {
	Input         *SimulationInput `json:"input"`
	NumberOfPaths int              `json:"numberOfPaths"`
}

// mcResponse is the wire response envelope for the MC entry point.
type mcResponse struct {
	Payload        json.RawMessage         `json:"payload"`
	ExemplarPath   *domain.ExemplarPathRef `json:"exemplarPath,omitempty"`
	SimulationMode string                  `json:"simulationMode"`
	PathsRun       int                     `json:"pathsRun"`
	Error          string                  `json:"error,omitempty"`
}

// replayResponse is the wire response envelope for the replay entry point.
type replayResponse struct {
	ReplayResult
	Error string `json:"error,omitempty"`
}

// RunMonteCarlo invokes the kernel's randomized multi-path entry point.
func (c *HTTPClient) RunMonteCarlo(ctx context.Context, in *SimulationInput, paths int) (*MCPayload, error) {
	body, err := c.post(ctx, pathMonteCarlo, mcRequest{Input: in, NumberOfPaths: paths})
	if err != nil {
		return nil, err
	}

	var resp mcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode monte-carlo response: %v", ErrParse, err)
	}
	if resp.Error != "" {
		return nil, &ComputationError{Message: resp.Error}
	}
	if emptyPayload(resp.Payload) {
		return nil, fmt.Errorf("%w: monte-carlo response has no payload", ErrParse)
	}

	return &MCPayload{
		Raw:            resp.Payload,
		ExemplarPath:   resp.ExemplarPath,
		SimulationMode: resp.SimulationMode,
		PathsRun:       resp.PathsRun,
	}, nil
}

// RunReplay invokes the kernel's deterministic single-path entry point.
func (c *HTTPClient) RunReplay(ctx context.Context, in *SimulationInput) (*ReplayResult, error) {
	body, err := c.post(ctx, pathReplay, in)
	if err != nil {
		return nil, err
	}

	var resp replayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode replay response: %v", ErrParse, err)
	}
	if resp.Error != "" {
		return nil, &ComputationError{Message: resp.Error}
	}

	return &resp.ReplayResult, nil
}

// Ready probes the sidecar readiness endpoint.
func (c *HTTPClient) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathReady, nil)
	if err != nil {
		return fmt.Errorf("create ready request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ready returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// emptyPayload reports whether a raw payload carries no statistics at all.
// An absent JSON field decodes to nil, an explicit "null" to the literal
// bytes; both mean the kernel sent nothing.
func emptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// post sends one JSON request with retries and exponential backoff.
// Retries cover transport failures and 5xx statuses; 4xx responses are
// returned to the caller immediately.
func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("kernel returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: kernel returned status %d: %s",
				ErrParse, resp.StatusCode, string(respBody))
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

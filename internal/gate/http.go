package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	decidePath     = "/kernel/decide"
	defaultTimeout = 10 * time.Second

	// Replies larger than this are not a decide response from any sane
	// deployment; cap the read so a misconfigured URL can't buffer junk.
	maxReplyBytes = 1 << 16
)

// HTTPOption configures the HTTP gate.
type HTTPOption func(*HTTP)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) HTTPOption {
	return func(g *HTTP) {
		g.httpClient = httpClient
	}
}

// WithTimeout bounds each consult independently of the caller's context.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(g *HTTP) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// HTTP consults a remote kernel over its /kernel/decide endpoint.
type HTTP struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Gate = (*HTTP)(nil)

// NewHTTP creates a gate querying the kernel at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	g := &HTTP{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    defaultTimeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Gate.
func (g *HTTP) Name() string { return "http" }

// Check implements Gate. Transport failures, non-2xx statuses, and malformed
// bodies are returned as errors; they are never interpreted as ok or stop.
func (g *HTTP) Check(ctx context.Context, q Query) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(q)
	if err != nil {
		return VerdictContinue, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+decidePath, bytes.NewReader(body))
	if err != nil {
		return VerdictContinue, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return VerdictContinue, fmt.Errorf("kernel unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return VerdictContinue, fmt.Errorf("failed to read kernel reply: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return VerdictContinue, &ProtocolError{
			Detail: fmt.Sprintf("kernel replied status %d: %s", resp.StatusCode, truncate(respBody, 200)),
		}
	}

	var reply struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return VerdictContinue, &ProtocolError{
			Detail: fmt.Sprintf("undecodable reply: %s", truncate(respBody, 200)),
		}
	}
	if reply.Status == "" {
		return VerdictContinue, &ProtocolError{Detail: "reply missing status"}
	}

	return parseStatus(reply.Status)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

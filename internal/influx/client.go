package influx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

// Client posts line protocol batches to an InfluxDB v2 write endpoint.
//
// Unlike the buffered Writer, the client is synchronous: one call is one
// HTTP POST and the result is returned to the caller. The Writer composes
// on top of it and owns retry policy.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
type Client struct {
	writeURL   string
	healthURL  string
	token      string
	httpClient *http.Client
}

// Connect builds a write client for the configured InfluxDB instance and
// verifies connectivity via GET /health.
//
// Parameters:
//   - ctx: Context for cancellation (bounds the health check)
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for use
//   - error: If the instance is unreachable or unhealthy
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")

	q := url.Values{}
	q.Set("org", cfg.Org)
	q.Set("bucket", cfg.Bucket)
	q.Set("precision", "ms")

	c := &Client{
		writeURL:  base + "/api/v2/write?" + q.Encode(),
		healthURL: base + "/health",
		token:     cfg.Token,
		httpClient: &http.Client{
			Timeout: defaultWriteTimeout,
		},
	}

	healthCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := c.HealthCheck(healthCtx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// WriteBatch posts one newline-delimited line protocol body.
//
// Timestamps in the body must be millisecond precision, matching the
// precision parameter baked into the write URL. An empty body is a no-op.
//
// Returns:
//   - error: nil on HTTP 204/200, otherwise ErrWriteFailed wrapped with
//     the transport or status detail
func (c *Client) WriteBatch(ctx context.Context, body []byte) error {
	if len(body) == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		// Include the response body; InfluxDB returns a JSON error detail.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: HTTP %d: %s", ErrWriteFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// HealthCheck verifies the InfluxDB instance is alive via GET /health.
//
// Returns:
//   - error: nil if healthy, ErrUnhealthy or a transport error otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	return nil
}

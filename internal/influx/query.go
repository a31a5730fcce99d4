package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
)

// QueryClient runs flux queries against the configured InfluxDB
// instance. It is read-only and independent of the write path; the
// character display uses it for historical lookups.
type QueryClient struct {
	client influxdb2.Client
	api    api.QueryAPI
	bucket string
}

// NewQueryClient builds a query client from the InfluxDB configuration.
// No connection is made until the first query.
func NewQueryClient(cfg config.InfluxDBConfig) *QueryClient {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &QueryClient{
		client: client,
		api:    client.QueryAPI(cfg.Org),
		bucket: cfg.Bucket,
	}
}

// Bucket returns the bucket name queries should target.
func (c *QueryClient) Bucket() string {
	return c.bucket
}

// Query executes a flux script and returns the streamed result.
// The caller must consume and Close the result.
func (c *QueryClient) Query(ctx context.Context, flux string) (*api.QueryTableResult, error) {
	result, err := c.api.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	return result, nil
}

// Close releases the underlying HTTP resources.
func (c *QueryClient) Close() {
	c.client.Close()
}

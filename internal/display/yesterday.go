package display

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-meter-core/internal/influx"
)

// UsagePoint is one minute-resolution cumulative usage sample for a day.
type UsagePoint struct {
	TS      time.Time
	ValueWh int64
}

// UsageSource fetches a day's cumulative energy usage series.
// FluxSource is the production implementation; tests substitute fakes.
type UsageSource interface {
	FetchDay(ctx context.Context, day time.Time) ([]UsagePoint, error)
}

// usageQuery computes the day's cumulative increase of the pulse meter's
// energy counter at one-minute resolution. increase() tolerates the
// counter resets the normalizer leaves behind on process restart.
const usageQuery = `from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r["_measurement"] == "impulse")
  |> filter(fn: (r) => r["_field"] == "energy")
  |> filter(fn: (r) => r["device"] == %q)
  |> increase()
  |> aggregateWindow(every: 1m, fn: last, createEmpty: false)
  |> yield(name: "usage")`

func buildUsageQuery(bucket, device string, start, stop time.Time) string {
	return fmt.Sprintf(usageQuery,
		bucket,
		start.UTC().Format(time.RFC3339),
		stop.UTC().Format(time.RFC3339),
		device)
}

// FluxSource fetches usage data from InfluxDB through the query client.
type FluxSource struct {
	client *influx.QueryClient
	device string
}

// NewFluxSource creates a usage source for the given pulse-meter device.
func NewFluxSource(client *influx.QueryClient, device string) *FluxSource {
	return &FluxSource{client: client, device: device}
}

// FetchDay implements UsageSource. day is truncated to its local
// midnight; the range spans that full day.
func (s *FluxSource) FetchDay(ctx context.Context, day time.Time) ([]UsagePoint, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	stop := start.AddDate(0, 0, 1)

	result, err := s.client.Query(ctx, buildUsageQuery(s.client.Bucket(), s.device, start, stop))
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var points []UsagePoint
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		points = append(points, UsagePoint{
			TS:      record.Time().In(day.Location()),
			ValueWh: int64(value),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("usage query: %w", err)
	}
	return points, nil
}

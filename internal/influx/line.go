package influx

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EncodeLine renders one measurement as InfluxDB line protocol with
// millisecond timestamp precision. Tags and fields are sorted so output
// is deterministic regardless of map iteration order. The returned slice
// is newline-terminated and can be concatenated directly into a batch
// body.
//
// Parameters:
//   - measurement: InfluxDB measurement name
//   - tags: indexed dimensions (nil is allowed)
//   - fields: values; use int64 for integer fields and float64 for
//     fractional ones so the emitted type annotations are stable
//   - ts: record timestamp, truncated to milliseconds on encode
func EncodeLine(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) []byte {
	p := write.NewPoint(measurement, tags, fields, ts)
	p.SortTags().SortFields()
	return []byte(write.PointToLineProtocol(p, time.Millisecond))
}

// CountLines returns the number of line protocol records in an encoded
// body. Encoded lines are newline-terminated, so this is the number of
// newline bytes.
func CountLines(body []byte) int {
	n := 0
	for _, b := range body {
		if b == '\n' {
			n++
		}
	}
	return n
}

package influx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncodeLine(t *testing.T) {
	ts := time.UnixMilli(1700000000123).UTC()

	line := EncodeLine("telemetry",
		map[string]string{"device": "garage/plug"},
		map[string]interface{}{
			"power":        int64(230),
			"energy_total": 12.5,
		},
		ts)

	assert.Equal(t,
		"telemetry,device=garage/plug energy_total=12.5,power=230i 1700000000123\n",
		string(line))
}

func TestEncodeLine_NoTags(t *testing.T) {
	ts := time.UnixMilli(1000).UTC()

	line := EncodeLine("impulse", nil,
		map[string]interface{}{"count": int64(42)}, ts)

	assert.Equal(t, "impulse count=42i 1000\n", string(line))
}

func TestEncodeLine_MillisecondTruncation(t *testing.T) {
	// Sub-millisecond precision must not leak into the timestamp.
	ts := time.UnixMilli(5000).Add(700 * time.Microsecond)

	line := EncodeLine("telemetry", nil,
		map[string]interface{}{"power": int64(1)}, ts)

	assert.Equal(t, "telemetry power=1i 5000\n", string(line))
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", 0},
		{"single", "a v=1i 1\n", 1},
		{"batch", "a v=1i 1\nb v=2i 2\nc v=3i 3\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountLines([]byte(tt.body)))
		})
	}
}

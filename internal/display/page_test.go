package display

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPage(t *testing.T) {
	// 06:00:00, 1200Wh so far today = 200W average over 6 hours.
	now := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	reading := &MeterReading{
		Power:           230,
		EnergyToday:     1200,
		EnergyYesterday: 4800, // = 200W whole-day average
	}

	page := RenderPage(now, reading, nil)

	lines := strings.Split(page, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "06:00:00    230W", lines[0])
	assert.Equal(t, "T  1200Wh @ 200W", lines[1])
	assert.Equal(t, "", lines[2], "yesterday line blank without data")
	assert.Equal(t, "Yt 4800Wh @ 200W", lines[3])
}

func TestRenderPage_WithYesterdayUsage(t *testing.T) {
	now := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	reading := &MeterReading{Power: 100, EnergyToday: 600, EnergyYesterday: 2400}
	// By 06:00 yesterday, 900Wh had been used = 150W average.
	point := &UsagePoint{
		TS:      time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC),
		ValueWh: 900,
	}

	page := RenderPage(now, reading, point)

	lines := strings.Split(page, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Yn  900Wh @ 150W", lines[2])
}

func TestRenderPage_MidnightDoesNotDivideByZero(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	reading := &MeterReading{Power: 50, EnergyToday: 0, EnergyYesterday: 0}

	page := RenderPage(now, reading, nil)

	assert.NotContains(t, page, "Inf")
	assert.NotContains(t, page, "NaN")
	assert.True(t, strings.HasPrefix(page, "00:00:00     50W\n"), page)
}

func TestParseMeterReading(t *testing.T) {
	reading, err := parseMeterReading([]byte(
		`{"power":230,"energy_today":1200,"energy_yesterday":4800,"energy_lifetime":1234567}`))
	require.NoError(t, err)
	assert.Equal(t, int64(230), reading.Power)
	assert.Equal(t, int64(1234567), reading.EnergyLifetime)

	_, err = parseMeterReading([]byte("Offline"))
	assert.Error(t, err)
}

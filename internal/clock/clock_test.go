package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekRange(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		start string
		end   string
	}{
		{"monday", time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), "2025-01-06", "2025-01-12"},
		{"sunday night", time.Date(2025, 1, 12, 23, 59, 0, 0, time.UTC), "2025-01-06", "2025-01-12"},
		{"across month", time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC), "2025-02-24", "2025-03-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := WeekRange(tt.now)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestTodayUsesClockLocation(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*60*60)
	// 20:30 UTC is already the next day five hours east.
	c := Fake(time.Date(2025, 1, 6, 20, 30, 0, 0, time.UTC).In(almaty))
	assert.Equal(t, "2025-01-07", Today(c))

	c.Advance(24 * time.Hour)
	assert.Equal(t, "2025-01-08", Today(c))
}

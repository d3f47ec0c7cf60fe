package time

import (
	"testing"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/stretchr/testify/assert"
)

func TestManualTimeProvider(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewManualTimeProvider(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), clock.Now())
	assert.Equal(t, core.Hour, clock.Since(start))
	assert.Equal(t, -core.Hour, clock.Until(start))

	clock.Sleep(core.Minute)
	assert.Equal(t, start.Add(time.Hour+time.Minute), clock.Now())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())

	d, err := clock.ParseDuration("90s")
	assert.NoError(t, err)
	assert.Equal(t, 90*core.Second, d)
}

func TestRealTimeProviderIsUTC(t *testing.T) {
	p := NewRealTimeProvider()
	assert.Equal(t, time.UTC, p.Now().Location())
}

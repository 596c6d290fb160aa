package reconciler

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolve_DeviceRelativeMillis(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(t0, true)

	assert.Equal(t, t0.Add(5*time.Second), r.Resolve(float64(5000)))
	assert.Equal(t, t0.Add(5*time.Second), r.Resolve(5000))
	assert.Equal(t, t0.Add(5*time.Second), r.Resolve(int64(5000)))
	assert.Equal(t, t0.Add(5*time.Second), r.Resolve(json.Number("5000")))
	assert.Equal(t, t0.Add(1500*time.Microsecond), r.Resolve(1.5))
	assert.Equal(t, t0, r.Resolve(float64(0)))
}

func TestResolve_FallbackToNow(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	r := New(t0, true)
	r.now = fixedNow(now)

	assert.Equal(t, now, r.Resolve(nil))
	assert.Equal(t, now, r.Resolve("2026-01-01T00:00:00Z"))
	assert.Equal(t, now, r.Resolve("5000"))
	assert.Equal(t, now, r.Resolve(true))
}

func TestResolve_OutOfRangeOffsetFallsBackToNow(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	r := New(t0, true)
	r.now = fixedNow(now)

	assert.Equal(t, now, r.Resolve(json.Number("10000000000000")))
	assert.Equal(t, now, r.Resolve(1e20))
	assert.Equal(t, now, r.Resolve(-1e20))
	assert.Equal(t, now, r.Resolve(math.NaN()))
	assert.Equal(t, now, r.Resolve(math.Inf(1)))

	// 范围内的大偏移（约 31 年）仍正常换算
	assert.Equal(t, t0.Add(1e12*time.Millisecond), r.Resolve(json.Number("1000000000000")))
}

func TestResolve_FallbackToWallClock(t *testing.T) {
	r := New(time.Now().Add(-time.Hour), true)

	got := r.Resolve(nil)
	assert.WithinDuration(t, time.Now(), got, 2*time.Second)
}

func TestResolve_DisabledParsesISO(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	r := New(time.Time{}, false)
	r.now = fixedNow(now)

	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), r.Resolve("2026-01-01T10:00:00Z"))
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 123456000, time.UTC), r.Resolve("2026-01-01T10:00:00.123456"))
	assert.Equal(t, time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), r.Resolve("2026-01-01T10:00:00+02:00"))
	assert.Equal(t, now, r.Resolve(float64(5000)))
	assert.Equal(t, now, r.Resolve("yesterday"))
	assert.False(t, r.Enabled())
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInstant(t *testing.T) {
	t.Run("interprets wall clock in the named zone", func(t *testing.T) {
		got, err := ToInstant("2026-01-15", "09:30", "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC), got)
	})

	t.Run("round trips through FromInstant", func(t *testing.T) {
		instant, err := ToInstant("2026-06-01", "18:45", "Europe/Berlin")
		require.NoError(t, err)

		date, clock, err := FromInstant(instant, "Europe/Berlin")
		require.NoError(t, err)
		assert.Equal(t, "2026-06-01", date)
		assert.Equal(t, "18:45", clock)
	})

	t.Run("normalizes a time inside the DST spring-forward gap", func(t *testing.T) {
		// 02:30 on 2026-03-08 does not exist in New York; the zone database
		// pushes it forward instead of erroring.
		got, err := ToInstant("2026-03-08", "02:30", "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 8, 7, 30, 0, 0, time.UTC), got)
	})

	t.Run("resolves a time inside the DST fall-back fold", func(t *testing.T) {
		// 01:30 on 2026-11-01 happens twice in New York, once at UTC-4 and
		// once at UTC-5. Either instant is acceptable; failing is not.
		got, err := ToInstant("2026-11-01", "01:30", "America/New_York")
		require.NoError(t, err)

		first := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC)
		second := time.Date(2026, 11, 1, 6, 30, 0, 0, time.UTC)
		assert.True(t, got.Equal(first) || got.Equal(second), "got %s", got)

		date, clock, err := FromInstant(got, "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, "2026-11-01", date)
		assert.Equal(t, "01:30", clock)
	})

	t.Run("rejects an unknown zone", func(t *testing.T) {
		_, err := ToInstant("2026-01-15", "09:30", "Mars/Olympus")
		assert.Error(t, err)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		_, err := ToInstant("15-01-2026", "09:30", "UTC")
		assert.Error(t, err)
	})
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsDue(now.Add(-time.Minute), now))
	assert.True(t, IsDue(now, now), "exactly now counts as due")
	assert.False(t, IsDue(now.Add(time.Minute), now))
}

func TestNextRepostAt(t *testing.T) {
	parent := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("first repost lands a day after the parent", func(t *testing.T) {
		assert.Equal(t, parent.Add(24*time.Hour), NextRepostAt(parent, nil))
	})

	t.Run("later reposts chain off the last one", func(t *testing.T) {
		existing := []time.Time{
			parent.Add(24 * time.Hour),
			parent.Add(48 * time.Hour),
		}
		assert.Equal(t, parent.Add(72*time.Hour), NextRepostAt(parent, existing))
	})
}

func TestValidateFuture(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Error(t, ValidateFuture(now.Add(-time.Second), now))
	assert.NoError(t, ValidateFuture(now, now))
	assert.NoError(t, ValidateFuture(now.Add(time.Hour), now))
}

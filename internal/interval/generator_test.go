package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsgate/internal/storemodel"
)

func utc(y, m, d, h, mi int) time.Time {
	return time.Date(y, time.Month(m), d, h, mi, 0, 0, time.UTC)
}

func TestGenerator_SingleDayAfter(t *testing.T) {
	start := utc(2026, 1, 5, 10, 0)
	end := utc(2026, 1, 5, 12, 0)

	gen := New(storemodel.DirectionAfter, start, &end, "", time.Minute)

	interval, ok := gen.Next()
	require.True(t, ok)
	require.True(t, interval.From.Equal(start))
	require.True(t, interval.To.Equal(end))
	require.True(t, interval.HasStartWithGap)

	_, ok = gen.Next()
	require.False(t, ok)
}

func TestGenerator_DayRolloverAfter(t *testing.T) {
	start := utc(2026, 1, 5, 23, 0)
	end := utc(2026, 1, 6, 1, 0)
	gap := 10 * time.Minute

	gen := New(storemodel.DirectionAfter, start, &end, "", gap)

	first, ok := gen.Next()
	require.True(t, ok)
	require.True(t, first.From.Equal(start))
	require.Equal(t, 5, first.To.Day())
	require.True(t, first.HasStartWithGap)

	second, ok := gen.Next()
	require.True(t, ok)
	require.Equal(t, 6, second.From.Day())
	require.True(t, second.To.Equal(end))

	// The second day's window starts exactly on the UTC midnight boundary,
	// so the glossary's "first sub-window of each day" still applies to it:
	// its overlap prefix must reach back across the boundary into day 5,
	// not just carry the flag with a same-instant, no-op gap.
	require.True(t, second.HasStartWithGap)
	require.True(t, second.StartWithGap.Before(second.From))
	require.True(t, second.StartWithGap.Equal(second.From.Add(-gap)))

	_, ok = gen.Next()
	require.False(t, ok)
}

func TestGenerator_DayRolloverBefore_GapCrossesBoundary(t *testing.T) {
	start := utc(2026, 1, 6, 1, 0)
	end := utc(2026, 1, 5, 23, 0)
	gap := 10 * time.Minute

	gen := New(storemodel.DirectionBefore, start, &end, "", gap)

	first, ok := gen.Next()
	require.True(t, ok)
	require.Equal(t, 6, first.To.Day())
	require.True(t, first.HasStartWithGap)

	second, ok := gen.Next()
	require.True(t, ok)
	require.Equal(t, 5, second.From.Day())
	require.True(t, second.From.Equal(end))

	// day 5's window is the second Next() call, not the generator's
	// overall first — it must still carry its own overlap prefix per the
	// glossary's "each day" reading, reaching across the day-5/day-6
	// midnight rather than clamping flush to it.
	require.True(t, second.HasStartWithGap)
	require.True(t, second.StartWithGap.After(second.To))
	require.True(t, second.StartWithGap.Equal(second.To.Add(gap)))

	_, ok = gen.Next()
	require.False(t, ok)
}

func TestGenerator_BeforeReversesWindowOrder(t *testing.T) {
	start := utc(2026, 1, 6, 1, 0)
	end := utc(2026, 1, 5, 23, 0)

	gen := New(storemodel.DirectionBefore, start, &end, "", time.Minute)

	first, ok := gen.Next()
	require.True(t, ok)
	require.Equal(t, 6, first.To.Day())

	second, ok := gen.Next()
	require.True(t, ok)
	require.Equal(t, 5, second.From.Day())
	require.True(t, second.From.Equal(end))

	_, ok = gen.Next()
	require.False(t, ok)
}

func TestGenerator_ResumeIdOnlyOnFirstInterval(t *testing.T) {
	start := utc(2026, 1, 5, 10, 0)
	end := utc(2026, 1, 7, 10, 0)

	gen := New(storemodel.DirectionAfter, start, &end, "resume-1", time.Minute)

	first, _ := gen.Next()
	require.Equal(t, "resume-1", first.ResumeId)

	second, ok := gen.Next()
	require.True(t, ok)
	require.Empty(t, second.ResumeId)
}

package blink

import (
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

func sequence(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func run(m *Machine, ears []float64) []Update {
	updates := make([]Update, len(ears))
	for i, ear := range ears {
		updates[i] = m.Update(ear)
	}
	return updates
}

func TestVeryLongClosureRaisesAlarm(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	ears := sequence(repeat(0.30, 10), repeat(0.15, 50), repeat(0.30, 5))

	updates := run(m, ears)

	require.Equal(t, 1, m.TotalBlinks())

	starts := 0
	for i, u := range updates {
		frame := i + 1
		if u.AlarmStarted {
			starts++
			require.Equal(t, 58, frame, "alarm should start on the 48th closed frame")
		}
		switch {
		case frame < 58:
			require.False(t, u.AlarmActive, "frame %d", frame)
		case frame <= 60:
			require.True(t, u.AlarmActive, "frame %d", frame)
			require.Equal(t, DurationVeryLong, u.Duration)
		default:
			require.False(t, u.AlarmActive, "frame %d", frame)
		}
	}
	require.Equal(t, 1, starts)

	require.True(t, updates[60].BlinkCompleted)
	require.Equal(t, DurationVeryLong, updates[64].Duration)
	require.Equal(t, 0, updates[64].ClosedFrames)
}

func TestShortClosureIsNotABlink(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	updates := run(m, sequence(repeat(0.30, 10), repeat(0.15, 2), repeat(0.30, 10)))

	require.Equal(t, 0, m.TotalBlinks())
	for _, u := range updates {
		require.False(t, u.BlinkCompleted)
		require.False(t, u.AlarmActive)
		require.Equal(t, DurationNormal, u.Duration)
	}
}

func TestLongClosure(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	updates := run(m, sequence(repeat(0.30, 5), repeat(0.10, 20), repeat(0.30, 3)))

	require.Equal(t, 1, m.TotalBlinks())
	require.Equal(t, DurationLong, m.Duration())
	for _, u := range updates {
		require.False(t, u.AlarmActive)
		require.False(t, u.AlarmStarted)
	}
	require.True(t, updates[25].BlinkCompleted)
}

func TestDurationBoundaries(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		closed int
		want   DurationLevel
	}{
		{th.Frames100ms, DurationNormal},
		{th.Frames400ms - 1, DurationNormal},
		{th.Frames400ms, DurationLong},
		{th.Frames1000ms - 1, DurationLong},
		{th.Frames1000ms, DurationVeryLong},
	}

	for _, tt := range tests {
		m := NewMachine(th)
		var last Update
		for i := 0; i < tt.closed; i++ {
			last = m.Update(0.05)
		}
		require.Equal(t, tt.want, last.Duration, "closed run of %d frames", tt.closed)
	}
}

func TestSubThresholdRunKeepsPreviousLevel(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	run(m, sequence(repeat(0.10, 15), repeat(0.30, 1)))
	require.Equal(t, DurationLong, m.Duration())

	u := m.Update(0.10)
	require.Equal(t, DurationLong, u.Duration)
	u = m.Update(0.10)
	require.Equal(t, DurationLong, u.Duration)
	u = m.Update(0.10)
	require.Equal(t, DurationNormal, u.Duration)
}

func TestSkipLeavesCountersUntouched(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	m.Update(0.10)
	m.Update(0.10)
	m.Skip()
	m.Skip()
	u := m.Update(0.10)

	require.Equal(t, 3, u.ClosedFrames)
	require.Equal(t, 2, m.Skipped())

	u = m.Update(0.30)
	require.True(t, u.BlinkCompleted)
}

func TestThresholdIsStrict(t *testing.T) {
	m := NewMachine(DefaultThresholds())
	u := m.Update(0.20)
	require.Equal(t, 0, u.ClosedFrames)
}

// countRuns counts maximal runs below threshold that are at least minLen long
// and are closed by an open frame.
func countRuns(ears []float64, threshold float64, minLen int) int {
	runs, length := 0, 0
	for _, ear := range ears {
		if ear < threshold {
			length++
			continue
		}
		if length >= minLen {
			runs++
		}
		length = 0
	}
	return runs
}

func TestBlinkCountMatchesClosedRuns(t *testing.T) {
	th := DefaultThresholds()

	property := func(seed int64, n uint8) bool {
		r := rand.New(rand.NewSource(seed))
		ears := make([]float64, int(n)+1)
		closed := r.Intn(2) == 0
		for i := range ears {
			if r.Intn(4) == 0 {
				closed = !closed
			}
			if closed {
				ears[i] = r.Float64() * th.EAR * 0.99
			} else {
				ears[i] = th.EAR + r.Float64()*0.2
			}
		}

		m := NewMachine(th)
		prev := 0
		for _, ear := range ears {
			u := m.Update(ear)
			if u.TotalBlinks < prev {
				return false
			}
			prev = u.TotalBlinks
		}
		return m.TotalBlinks() == countRuns(ears, th.EAR, th.Frames100ms)
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 500}))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.Frames400ms = bad.Frames1000ms
	require.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.EAR = 0
	require.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.Frames100ms = 0
	require.Error(t, bad.Validate())
}

func TestDurationLevelString(t *testing.T) {
	require.Equal(t, "Normal", DurationNormal.String())
	require.Equal(t, "Long", DurationLong.String())
	require.Equal(t, "Very Long", DurationVeryLong.String())
	require.Equal(t, "N/A", DurationLevel(42).String())
}

package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrFloat(v float64) *float64 { return &v }

func TestNormalizeDefaults(t *testing.T) {
	got := Normalize(TimerState{})
	assert.Equal(t, ModeCountdown, got.Mode)
	assert.Equal(t, DefaultInitialSeconds, got.InitialSeconds)
	// A zero CurrentSeconds is a legal checkpoint, not a missing value.
	assert.Equal(t, 0, got.CurrentSeconds)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.StartedAt)
}

func TestNormalizeClampsBounds(t *testing.T) {
	tests := []struct {
		name        string
		in          TimerState
		wantInitial int
		wantCurrent int
	}{
		{
			name:        "initial below minimum",
			in:          TimerState{InitialSeconds: 10, CurrentSeconds: 10},
			wantInitial: MinInitialSeconds,
			wantCurrent: 10,
		},
		{
			name:        "initial above maximum",
			in:          TimerState{InitialSeconds: 10 * 60 * 60, CurrentSeconds: 90},
			wantInitial: MaxInitialSeconds,
			wantCurrent: 90,
		},
		{
			name:        "negative initial falls back to default",
			in:          TimerState{InitialSeconds: -5, CurrentSeconds: 120},
			wantInitial: DefaultInitialSeconds,
			wantCurrent: 120,
		},
		{
			name:        "negative current defaults to initial for countdown",
			in:          TimerState{InitialSeconds: 300, CurrentSeconds: -1},
			wantInitial: 300,
			wantCurrent: 300,
		},
		{
			name:        "countdown current capped at initial",
			in:          TimerState{InitialSeconds: 300, CurrentSeconds: 900},
			wantInitial: 300,
			wantCurrent: 300,
		},
		{
			name:        "countup current capped at day",
			in:          TimerState{Mode: ModeCountup, InitialSeconds: 300, CurrentSeconds: 100 * 60 * 60},
			wantInitial: 300,
			wantCurrent: MaxCurrentSeconds,
		},
		{
			name:        "negative current defaults to zero for countup",
			in:          TimerState{Mode: ModeCountup, InitialSeconds: 300, CurrentSeconds: -9},
			wantInitial: 300,
			wantCurrent: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.wantInitial, got.InitialSeconds)
			assert.Equal(t, tt.wantCurrent, got.CurrentSeconds)
			if got.Mode == ModeCountdown {
				assert.LessOrEqual(t, got.CurrentSeconds, got.InitialSeconds)
			}
		})
	}
}

func TestNormalizeStartedAtRequiresActive(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	inactive := Normalize(TimerState{InitialSeconds: 300, CurrentSeconds: 300, StartedAt: ptrTime(started)})
	assert.Nil(t, inactive.StartedAt)

	active := Normalize(TimerState{InitialSeconds: 300, CurrentSeconds: 300, IsActive: true, StartedAt: ptrTime(started)})
	require.NotNil(t, active.StartedAt)
	assert.True(t, active.StartedAt.Equal(started))

	// Active without a baseline stays active; Project falls back to the
	// checkpoint so display remains defined.
	orphan := Normalize(TimerState{InitialSeconds: 300, CurrentSeconds: 200, IsActive: true})
	assert.True(t, orphan.IsActive)
	assert.Nil(t, orphan.StartedAt)
}

func TestNormalizeIdempotent(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inputs := []TimerState{
		{},
		{Mode: "banana", InitialSeconds: -40, CurrentSeconds: -40},
		{Mode: ModeCountup, InitialSeconds: 999999, CurrentSeconds: 999999},
		{Mode: ModeCountdown, InitialSeconds: 90, CurrentSeconds: 7200, IsActive: true, StartedAt: ptrTime(started)},
		{Mode: ModeCountdown, InitialSeconds: 1500, CurrentSeconds: 1500},
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeInputCoercesBadNumbers(t *testing.T) {
	got := NormalizeInput(TimerStateInput{
		Mode:           ModeCountup,
		InitialSeconds: ptrFloat(math.NaN()),
		CurrentSeconds: ptrFloat(math.Inf(1)),
	})
	assert.Equal(t, DefaultInitialSeconds, got.InitialSeconds)
	assert.Equal(t, 0, got.CurrentSeconds)

	rounded := NormalizeInput(TimerStateInput{
		InitialSeconds: ptrFloat(299.6),
		CurrentSeconds: ptrFloat(120.4),
	})
	assert.Equal(t, 300, rounded.InitialSeconds)
	assert.Equal(t, 120, rounded.CurrentSeconds)

	missing := NormalizeInput(TimerStateInput{})
	assert.Equal(t, DefaultInitialSeconds, missing.InitialSeconds)
	assert.Equal(t, DefaultInitialSeconds, missing.CurrentSeconds)
}

func TestProjectInactiveReturnsCheckpoint(t *testing.T) {
	state := Normalize(TimerState{InitialSeconds: 300, CurrentSeconds: 200})
	for _, offset := range []time.Duration{0, time.Minute, 48 * time.Hour} {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(offset)
		assert.Equal(t, 200, Project(state, now))
	}
}

func TestProjectActiveCountdown(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	state := Normalize(TimerState{
		InitialSeconds: 1500,
		CurrentSeconds: 1500,
		IsActive:       true,
		StartedAt:      ptrTime(started),
	})

	assert.Equal(t, 1490, Project(state, started.Add(10*time.Second)))
	assert.Equal(t, 1490, Project(state, started.Add(10*time.Second+900*time.Millisecond)))
	assert.Equal(t, 0, Project(state, started.Add(3*time.Hour)))
	// Clock skew: a start in the future reads as no elapsed time.
	assert.Equal(t, 1500, Project(state, started.Add(-time.Minute)))
}

func TestProjectActiveCountup(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	state := Normalize(TimerState{
		Mode:           ModeCountup,
		InitialSeconds: 1500,
		CurrentSeconds: 0,
		IsActive:       true,
		StartedAt:      ptrTime(started),
	})

	assert.Equal(t, 65, Project(state, started.Add(65*time.Second)))
	assert.Equal(t, MaxCurrentSeconds, Project(state, started.Add(30*24*time.Hour)))
}

func TestSessionMinutes(t *testing.T) {
	assert.Equal(t, 25, SessionMinutes(1500))
	assert.Equal(t, 1, SessionMinutes(60))
	assert.Equal(t, 1, SessionMinutes(29))
	assert.Equal(t, 2, SessionMinutes(90))
}

func TestNormalizeStats(t *testing.T) {
	got := NormalizeStats(Stats{TodayFocusTime: -3, TodaySessions: 2, Streak: -1, TotalSessions: 9})
	assert.Equal(t, Stats{TodayFocusTime: 0, TodaySessions: 2, Streak: 0, TotalSessions: 9}, got)

	fromWire := NormalizeStatsInput(StatsInput{
		TodayFocusTime: ptrFloat(math.NaN()),
		TodaySessions:  ptrFloat(-4),
		Streak:         ptrFloat(3.2),
		TotalSessions:  ptrFloat(11),
	})
	assert.Equal(t, 0, fromWire.TodayFocusTime)
	assert.Equal(t, 0, fromWire.TodaySessions)
	assert.Equal(t, 3, fromWire.Streak)
	assert.Equal(t, 11, fromWire.TotalSessions)
}

package model

import (
	"math"
	"time"
)

const (
	ModeCountdown = "countdown"
	ModeCountup   = "countup"
)

const (
	MinInitialSeconds     = 60
	MaxInitialSeconds     = 2 * 60 * 60
	MaxCurrentSeconds     = 24 * 60 * 60
	DefaultInitialSeconds = 25 * 60
)

// TimerState is the canonical persisted timer shape shared by the server
// store, the wire format and the client core. CurrentSeconds is the value
// checkpointed at StartedAt; the displayed time for a running timer is always
// recomputed through Project, never read from CurrentSeconds directly.
type TimerState struct {
	Mode           string     `json:"mode"`
	InitialSeconds int        `json:"initialSeconds"`
	CurrentSeconds int        `json:"currentSeconds"`
	IsActive       bool       `json:"isActive"`
	StartedAt      *time.Time `json:"startedAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// TimerStateInput is the untrusted wire shape. Seconds arrive as floats so
// fractional or missing values can be coerced instead of failing the decode.
type TimerStateInput struct {
	Mode           string     `json:"mode"`
	InitialSeconds *float64   `json:"initialSeconds"`
	CurrentSeconds *float64   `json:"currentSeconds"`
	IsActive       bool       `json:"isActive"`
	StartedAt      *time.Time `json:"startedAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

// Stats is the per-user focus aggregate. TodayFocusTime is in minutes.
// LastFocusDate is a UTC day in YYYY-MM-DD form, maintained by the server.
type Stats struct {
	TodayFocusTime int     `json:"todayFocusTime"`
	TodaySessions  int     `json:"todaySessions"`
	Streak         int     `json:"streak"`
	TotalSessions  int     `json:"totalSessions"`
	LastFocusDate  *string `json:"lastFocusDate,omitempty"`
}

type StatsInput struct {
	TodayFocusTime *float64 `json:"todayFocusTime"`
	TodaySessions  *float64 `json:"todaySessions"`
	Streak         *float64 `json:"streak"`
	TotalSessions  *float64 `json:"totalSessions"`
	LastFocusDate  *string  `json:"lastFocusDate"`
}

func DefaultTimerState() TimerState {
	return TimerState{
		Mode:           ModeCountdown,
		InitialSeconds: DefaultInitialSeconds,
		CurrentSeconds: DefaultInitialSeconds,
		IsActive:       false,
		StartedAt:      nil,
	}
}

// Normalize coerces any TimerState into a valid one. It is total and
// idempotent: there is no error outcome, and normalizing twice yields the
// same value.
func Normalize(in TimerState) TimerState {
	mode := ModeCountdown
	if in.Mode == ModeCountup {
		mode = ModeCountup
	}

	initial := DefaultInitialSeconds
	if in.InitialSeconds > 0 {
		initial = clampInt(in.InitialSeconds, MinInitialSeconds, MaxInitialSeconds)
	}

	var current int
	if in.CurrentSeconds >= 0 {
		current = clampInt(in.CurrentSeconds, 0, MaxCurrentSeconds)
	} else if mode == ModeCountdown {
		current = initial
	}
	if mode == ModeCountdown && current > initial {
		current = initial
	}

	// An inactive state must not carry a start baseline.
	var startedAt *time.Time
	if in.IsActive && in.StartedAt != nil && !in.StartedAt.IsZero() {
		t := in.StartedAt.UTC()
		startedAt = &t
	}

	return TimerState{
		Mode:           mode,
		InitialSeconds: initial,
		CurrentSeconds: current,
		IsActive:       in.IsActive,
		StartedAt:      startedAt,
		UpdatedAt:      in.UpdatedAt,
	}
}

// NormalizeInput converts an untrusted wire payload into a valid TimerState.
// Missing, non-finite or out-of-range numbers fall back to defaults.
func NormalizeInput(in TimerStateInput) TimerState {
	state := TimerState{
		Mode:           in.Mode,
		InitialSeconds: -1,
		CurrentSeconds: -1,
		IsActive:       in.IsActive,
		StartedAt:      in.StartedAt,
		UpdatedAt:      in.UpdatedAt,
	}
	if v, ok := finiteRound(in.InitialSeconds); ok && v > 0 {
		state.InitialSeconds = v
	}
	if v, ok := finiteRound(in.CurrentSeconds); ok && v >= 0 {
		state.CurrentSeconds = v
	}
	return Normalize(state)
}

// Project returns the seconds to display for state at the given instant. It
// is pure: the same (state, now) pair always yields the same result, which is
// what lets callers re-render every second without touching the server.
func Project(state TimerState, now time.Time) int {
	base := clampInt(state.CurrentSeconds, 0, MaxCurrentSeconds)
	if !state.IsActive || state.StartedAt == nil {
		if state.Mode == ModeCountdown && base > state.InitialSeconds {
			return state.InitialSeconds
		}
		return base
	}

	diff := now.Sub(*state.StartedAt)
	if diff < 0 {
		diff = 0
	}
	elapsed := int(diff / time.Second)

	if state.Mode == ModeCountdown {
		return clampInt(base-elapsed, 0, state.InitialSeconds)
	}
	return clampInt(base+elapsed, 0, MaxCurrentSeconds)
}

// SessionMinutes is the minute credit for a completed countdown session,
// derived from the session's configured duration rather than the live value.
func SessionMinutes(initialSeconds int) int {
	minutes := int(math.Round(float64(initialSeconds) / 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// NormalizeStats coerces negative counters to zero. Stats are never
// decremented, so a negative value can only be a corrupt payload.
func NormalizeStats(in Stats) Stats {
	return Stats{
		TodayFocusTime: nonNegative(in.TodayFocusTime),
		TodaySessions:  nonNegative(in.TodaySessions),
		Streak:         nonNegative(in.Streak),
		TotalSessions:  nonNegative(in.TotalSessions),
		LastFocusDate:  in.LastFocusDate,
	}
}

func NormalizeStatsInput(in StatsInput) Stats {
	stats := Stats{LastFocusDate: in.LastFocusDate}
	if v, ok := finiteRound(in.TodayFocusTime); ok {
		stats.TodayFocusTime = v
	}
	if v, ok := finiteRound(in.TodaySessions); ok {
		stats.TodaySessions = v
	}
	if v, ok := finiteRound(in.Streak); ok {
		stats.Streak = v
	}
	if v, ok := finiteRound(in.TotalSessions); ok {
		stats.TotalSessions = v
	}
	return NormalizeStats(stats)
}

func finiteRound(v *float64) (int, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return int(math.Round(*v)), true
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

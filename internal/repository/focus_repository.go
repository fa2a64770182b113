package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplespace/focus/internal/model"
)

type FocusRepository struct {
	db *sql.DB
}

func NewFocusRepository(db *sql.DB) *FocusRepository {
	return &FocusRepository{db: db}
}

func (r *FocusRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// CreateInitialState seeds the timer-state and stats rows for a new user.
func (r *FocusRepository) CreateInitialState(ctx context.Context, userID string) error {
	now := formatTime(time.Now())
	state := model.DefaultTimerState()

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO focus_timer_states (
			user_id, mode, initial_seconds, current_seconds, is_active, started_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID,
		state.Mode,
		state.InitialSeconds,
		state.CurrentSeconds,
		0,
		nil,
		now,
	)
	if err != nil {
		return fmt.Errorf("create initial timer state: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO focus_stats (
			user_id, today_focus_time, today_sessions, streak, total_sessions, last_focus_date, updated_at
		) VALUES (?, 0, 0, 0, 0, NULL, ?)`,
		userID,
		now,
	)
	if err != nil {
		return fmt.Errorf("create initial stats: %w", err)
	}
	return nil
}

func (r *FocusRepository) GetTimerStateTx(ctx context.Context, tx *sql.Tx, userID string) (*model.TimerState, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT mode, initial_seconds, current_seconds, is_active, started_at, updated_at
		 FROM focus_timer_states WHERE user_id = ?`,
		userID,
	)
	return scanTimerState(row)
}

func (r *FocusRepository) UpsertTimerStateTx(ctx context.Context, tx *sql.Tx, userID string, state *model.TimerState) error {
	var startedAt interface{}
	if state.StartedAt != nil {
		startedAt = formatTime(*state.StartedAt)
	}
	updatedAt := formatTime(time.Now())
	if state.UpdatedAt != nil {
		updatedAt = formatTime(*state.UpdatedAt)
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO focus_timer_states (
			user_id, mode, initial_seconds, current_seconds, is_active, started_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			mode = excluded.mode,
			initial_seconds = excluded.initial_seconds,
			current_seconds = excluded.current_seconds,
			is_active = excluded.is_active,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at`,
		userID,
		state.Mode,
		state.InitialSeconds,
		state.CurrentSeconds,
		boolToInt(state.IsActive),
		startedAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert timer state: %w", err)
	}
	return nil
}

func (r *FocusRepository) GetStats(ctx context.Context, userID string) (*model.Stats, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT today_focus_time, today_sessions, streak, total_sessions, last_focus_date
		 FROM focus_stats WHERE user_id = ?`,
		userID,
	)
	return scanStats(row)
}

func (r *FocusRepository) GetStatsTx(ctx context.Context, tx *sql.Tx, userID string) (*model.Stats, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT today_focus_time, today_sessions, streak, total_sessions, last_focus_date
		 FROM focus_stats WHERE user_id = ?`,
		userID,
	)
	return scanStats(row)
}

func (r *FocusRepository) UpsertStatsTx(ctx context.Context, tx *sql.Tx, userID string, stats *model.Stats) error {
	var lastFocusDate interface{}
	if stats.LastFocusDate != nil {
		lastFocusDate = *stats.LastFocusDate
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO focus_stats (
			user_id, today_focus_time, today_sessions, streak, total_sessions, last_focus_date, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			today_focus_time = excluded.today_focus_time,
			today_sessions = excluded.today_sessions,
			streak = excluded.streak,
			total_sessions = excluded.total_sessions,
			last_focus_date = excluded.last_focus_date,
			updated_at = excluded.updated_at`,
		userID,
		stats.TodayFocusTime,
		stats.TodaySessions,
		stats.Streak,
		stats.TotalSessions,
		lastFocusDate,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTimerState(s scanner) (*model.TimerState, error) {
	state := model.TimerState{}
	var isActive int
	var startedAt sql.NullString
	var updatedAt string
	err := s.Scan(
		&state.Mode,
		&state.InitialSeconds,
		&state.CurrentSeconds,
		&isActive,
		&startedAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer state: %w", err)
	}

	state.IsActive = isActive == 1
	if startedAt.Valid {
		parsed, parseErr := parseTime(startedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse timer started_at: %w", parseErr)
		}
		state.StartedAt = &parsed
	}

	parsedUpdatedAt, parseErr := parseTime(updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parse timer updated_at: %w", parseErr)
	}
	state.UpdatedAt = &parsedUpdatedAt
	return &state, nil
}

func scanStats(s scanner) (*model.Stats, error) {
	stats := model.Stats{}
	var lastFocusDate sql.NullString
	err := s.Scan(
		&stats.TodayFocusTime,
		&stats.TodaySessions,
		&stats.Streak,
		&stats.TotalSessions,
		&lastFocusDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan stats: %w", err)
	}

	if lastFocusDate.Valid {
		value := lastFocusDate.String
		stats.LastFocusDate = &value
	}
	return &stats, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

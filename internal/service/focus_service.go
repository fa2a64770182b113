package service

import (
	"context"
	"database/sql"
	"time"

	apperrors "couplespace/focus/internal/errors"
	"couplespace/focus/internal/model"
	"couplespace/focus/internal/repository"
)

// MaxSessionMinutes caps a single complete-session credit at one day.
const MaxSessionMinutes = 24 * 60

type FocusService struct {
	repo *repository.FocusRepository
}

func NewFocusService(repo *repository.FocusRepository) *FocusService {
	return &FocusService{repo: repo}
}

// GetTimerState returns the stored state for the user, or nil if no record
// exists yet (the client falls back to defaults). A running countdown whose
// projection has already reached zero is finalized in place, so a session
// that expired while every client was closed converges on the next read.
func (s *FocusService) GetTimerState(ctx context.Context, userID string) (*model.TimerState, *apperrors.APIError) {
	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	state, err := s.repo.GetTimerStateTx(ctx, tx, userID)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get timer state")
	}

	normalized := model.Normalize(*state)
	if apiErr := s.finalizeExpiredTx(ctx, tx, userID, &normalized, now); apiErr != nil {
		return nil, apiErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	return &normalized, nil
}

// SaveTimerState replaces the stored state with the normalized payload and
// returns the stored view, which is the source of truth after a write.
func (s *FocusService) SaveTimerState(ctx context.Context, userID string, input model.TimerStateInput) (*model.TimerState, *apperrors.APIError) {
	now := time.Now().UTC()
	normalized := model.NormalizeInput(input)
	normalized.UpdatedAt = &now

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	if err := s.repo.UpsertTimerStateTx(ctx, tx, userID, &normalized); err != nil {
		return nil, apperrors.Internal("failed to save timer state")
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	return &normalized, nil
}

// GetStats returns the aggregate with day rollover applied as a view: today's
// counters read as zero once the day changes, and a streak whose last focus
// day is older than yesterday reads as broken. The stored row is only
// rewritten by CompleteSession.
func (s *FocusService) GetStats(ctx context.Context, userID string) (*model.Stats, *apperrors.APIError) {
	stats, err := s.repo.GetStats(ctx, userID)
	if err == repository.ErrNotFound {
		empty := model.NormalizeStats(model.Stats{})
		return &empty, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get stats")
	}

	view := rolloverView(model.NormalizeStats(*stats), time.Now().UTC())
	return &view, nil
}

// CompleteSession atomically credits one finished focus session.
func (s *FocusService) CompleteSession(ctx context.Context, userID string, focusMinutes int) (*model.Stats, *apperrors.APIError) {
	if focusMinutes <= 0 {
		return nil, apperrors.BadRequest("invalid_minutes", "focusMinutes must be a positive integer")
	}
	if focusMinutes > MaxSessionMinutes {
		focusMinutes = MaxSessionMinutes
	}

	now := time.Now().UTC()
	today := now.Format(time.DateOnly)
	yesterday := now.AddDate(0, 0, -1).Format(time.DateOnly)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	stats := model.Stats{}
	if stored, getErr := s.repo.GetStatsTx(ctx, tx, userID); getErr == nil {
		stats = model.NormalizeStats(*stored)
	} else if getErr != repository.ErrNotFound {
		return nil, apperrors.Internal("failed to get stats")
	}

	lastFocusDate := ""
	if stats.LastFocusDate != nil {
		lastFocusDate = *stats.LastFocusDate
	}

	switch lastFocusDate {
	case today:
		if stats.Streak < 1 {
			stats.Streak = 1
		}
	case yesterday:
		stats.Streak++
	default:
		stats.Streak = 1
	}

	if lastFocusDate != today {
		stats.TodayFocusTime = 0
		stats.TodaySessions = 0
	}

	stats.TodayFocusTime += focusMinutes
	stats.TodaySessions++
	stats.TotalSessions++
	stats.LastFocusDate = &today

	if err := s.repo.UpsertStatsTx(ctx, tx, userID, &stats); err != nil {
		return nil, apperrors.Internal("failed to save stats")
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	return &stats, nil
}

func (s *FocusService) finalizeExpiredTx(ctx context.Context, tx *sql.Tx, userID string, state *model.TimerState, now time.Time) *apperrors.APIError {
	if !state.IsActive || state.Mode != model.ModeCountdown || state.StartedAt == nil {
		return nil
	}
	if model.Project(*state, now) > 0 {
		return nil
	}

	state.CurrentSeconds = 0
	state.IsActive = false
	state.StartedAt = nil
	state.UpdatedAt = &now

	if err := s.repo.UpsertTimerStateTx(ctx, tx, userID, state); err != nil {
		return apperrors.Internal("failed to persist expired state")
	}
	return nil
}

func rolloverView(stats model.Stats, now time.Time) model.Stats {
	lastFocusDate := ""
	if stats.LastFocusDate != nil {
		lastFocusDate = *stats.LastFocusDate
	}

	today := now.Format(time.DateOnly)
	if lastFocusDate == today {
		return stats
	}

	stats.TodayFocusTime = 0
	stats.TodaySessions = 0
	if lastFocusDate != now.AddDate(0, 0, -1).Format(time.DateOnly) {
		stats.Streak = 0
	}
	return stats
}

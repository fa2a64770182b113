package service

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"couplespace/focus/internal/db"
	"couplespace/focus/internal/model"
	"couplespace/focus/internal/repository"
)

func newTestService(t *testing.T) (*FocusService, *repository.FocusRepository) {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	require.NoError(t, db.RunMigrations(database, migrationsDir))

	now := time.Now().UTC()
	require.NoError(t, repository.NewUserRepository(database).Create(context.Background(), &model.User{
		ID:           "user-1",
		Email:        "user-1@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	repo := repository.NewFocusRepository(database)
	require.NoError(t, repo.CreateInitialState(context.Background(), "user-1"))
	return NewFocusService(repo), repo
}

func seedStats(t *testing.T, repo *repository.FocusRepository, stats model.Stats) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertStatsTx(ctx, tx, "user-1", &stats))
	require.NoError(t, tx.Commit())
}

func TestCompleteSessionFirstEver(t *testing.T) {
	svc, _ := newTestService(t)

	stats, apiErr := svc.CompleteSession(context.Background(), "user-1", 25)
	require.Nil(t, apiErr)
	require.Equal(t, 25, stats.TodayFocusTime)
	require.Equal(t, 1, stats.TodaySessions)
	require.Equal(t, 1, stats.Streak)
	require.Equal(t, 1, stats.TotalSessions)
	require.NotNil(t, stats.LastFocusDate)
	require.Equal(t, time.Now().UTC().Format(time.DateOnly), *stats.LastFocusDate)
}

func TestCompleteSessionContinuesStreakFromYesterday(t *testing.T) {
	svc, repo := newTestService(t)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	seedStats(t, repo, model.Stats{
		TodayFocusTime: 30,
		TodaySessions:  2,
		Streak:         3,
		TotalSessions:  10,
		LastFocusDate:  &yesterday,
	})

	stats, apiErr := svc.CompleteSession(context.Background(), "user-1", 25)
	require.Nil(t, apiErr)
	require.Equal(t, 4, stats.Streak, "a session the day after the last one extends the streak")
	require.Equal(t, 25, stats.TodayFocusTime, "yesterday's minutes do not carry into today")
	require.Equal(t, 1, stats.TodaySessions)
	require.Equal(t, 11, stats.TotalSessions)
}

func TestCompleteSessionResetsBrokenStreak(t *testing.T) {
	svc, repo := newTestService(t)

	lastWeek := time.Now().UTC().AddDate(0, 0, -7).Format(time.DateOnly)
	seedStats(t, repo, model.Stats{
		Streak:        5,
		TotalSessions: 40,
		LastFocusDate: &lastWeek,
	})

	stats, apiErr := svc.CompleteSession(context.Background(), "user-1", 10)
	require.Nil(t, apiErr)
	require.Equal(t, 1, stats.Streak)
	require.Equal(t, 41, stats.TotalSessions)
}

func TestCompleteSessionValidatesMinutes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, apiErr := svc.CompleteSession(ctx, "user-1", 0)
	require.NotNil(t, apiErr)
	require.Equal(t, "invalid_minutes", apiErr.Code)

	_, apiErr = svc.CompleteSession(ctx, "user-1", -5)
	require.NotNil(t, apiErr)

	// Oversized credits are capped at one day.
	stats, apiErr := svc.CompleteSession(ctx, "user-1", 5000)
	require.Nil(t, apiErr)
	require.Equal(t, MaxSessionMinutes, stats.TodayFocusTime)
}

func TestGetStatsRolloverIsViewOnly(t *testing.T) {
	svc, repo := newTestService(t)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	seedStats(t, repo, model.Stats{
		TodayFocusTime: 50,
		TodaySessions:  3,
		Streak:         2,
		TotalSessions:  8,
		LastFocusDate:  &yesterday,
	})

	stats, apiErr := svc.GetStats(context.Background(), "user-1")
	require.Nil(t, apiErr)
	require.Equal(t, 0, stats.TodayFocusTime, "a new day reads with zeroed today counters")
	require.Equal(t, 0, stats.TodaySessions)
	require.Equal(t, 2, stats.Streak, "yesterday's streak is still alive")
	require.Equal(t, 8, stats.TotalSessions)

	// The stored row is untouched until the next completion.
	stored, err := repo.GetStats(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 50, stored.TodayFocusTime)
	require.Equal(t, 3, stored.TodaySessions)
}

func TestRolloverView(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	today := "2026-03-10"
	yesterday := "2026-03-09"
	older := "2026-03-01"

	sameDay := rolloverView(model.Stats{TodayFocusTime: 25, TodaySessions: 1, Streak: 4, LastFocusDate: &today}, now)
	require.Equal(t, 25, sameDay.TodayFocusTime)
	require.Equal(t, 4, sameDay.Streak)

	nextDay := rolloverView(model.Stats{TodayFocusTime: 25, TodaySessions: 1, Streak: 4, LastFocusDate: &yesterday}, now)
	require.Equal(t, 0, nextDay.TodayFocusTime)
	require.Equal(t, 0, nextDay.TodaySessions)
	require.Equal(t, 4, nextDay.Streak)

	lapsed := rolloverView(model.Stats{Streak: 4, LastFocusDate: &older}, now)
	require.Equal(t, 0, lapsed.Streak)

	never := rolloverView(model.Stats{}, now)
	require.Equal(t, 0, never.Streak)
}

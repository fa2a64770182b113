package client

import (
	"context"
	"time"

	"couplespace/focus/internal/model"
)

// Run drives the completion detector. While the timer is active it evaluates
// the live projection once per second; when a running countdown crosses zero
// it finalizes the session exactly once. While the timer is idle the loop
// parks on a wake signal instead of ticking, so an idle client has no
// periodic wakeups. Run blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if !c.Active() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
			}
			continue
		}

		ticker := c.clock.NewTicker(time.Second)
		active := true
		for active {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return ctx.Err()
			case <-ticker.Chan():
				if !c.Active() {
					active = false
					break
				}
				c.checkCompletion(ctx)
			}
		}
		ticker.Stop()
	}
}

// checkCompletion fires the finalizer when a running countdown's projection
// has reached zero. The finalizing flag is the idempotency guard: the
// condition is level-triggered and re-evaluated every tick, so without the
// flag a slow finalizer would be entered once per tick.
func (c *Controller) checkCompletion(ctx context.Context) {
	c.mu.Lock()
	snapshot := c.state
	userID := c.userID
	if userID == "" ||
		snapshot.Mode != model.ModeCountdown ||
		!snapshot.IsActive ||
		c.finalizing ||
		model.Project(snapshot, c.clock.Now()) > 0 {
		c.mu.Unlock()
		return
	}
	c.finalizing = true
	c.mu.Unlock()

	go c.finalize(ctx, userID, snapshot)
}

func (c *Controller) finalize(ctx context.Context, userID string, snapshot model.TimerState) {
	defer func() {
		c.mu.Lock()
		c.finalizing = false
		c.mu.Unlock()
	}()

	// Credit the session's configured duration, not the live value, which is
	// zero or below by now.
	sessionMinutes := model.SessionMinutes(snapshot.InitialSeconds)

	stopped := snapshot
	stopped.CurrentSeconds = 0
	stopped.IsActive = false
	stopped.StartedAt = nil
	if _, err := c.persist(ctx, stopped, true); err != nil {
		c.logger.Warn().Err(err).Msg("persist stopped state after completion")
	}

	stats, err := c.backend.CompleteSession(ctx, sessionMinutes)
	if err != nil {
		// Surfaced, not retried: the server reconciles on the next sync.
		c.logger.Warn().Err(err).Int("minutes", sessionMinutes).Msg("complete session failed")
	} else {
		normalized := model.NormalizeStats(stats)
		c.mu.Lock()
		c.stats = normalized
		c.mu.Unlock()
		c.statsCache.Put(userID, normalized)
	}

	c.mu.Lock()
	onComplete := c.onComplete
	c.mu.Unlock()
	if onComplete != nil {
		onComplete(sessionMinutes)
	}
}

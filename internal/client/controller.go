package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"couplespace/focus/internal/model"
)

// ErrSignedOut is returned by persistence operations when no user is signed
// in. Local state still updates; only the cloud round trip is skipped.
var ErrSignedOut = errors.New("no signed-in user")

// Controller owns the authoritative in-memory TimerState and mediates every
// mutation through an optimistic local update followed by a server round
// trip. Responses that arrive after a newer local operation are discarded:
// each write is tagged with a version counter incremented at dispatch, and a
// response is only adopted if the counter has not moved since. That makes
// rapid start/pause/reset sequences last-writer-wins at the intent level
// without request cancellation.
type Controller struct {
	backend Backend
	clock   clockwork.Clock
	logger  zerolog.Logger

	stateCache *Cache[model.TimerState]
	statsCache *Cache[model.Stats]

	mu         sync.Mutex
	userID     string
	state      model.TimerState
	stats      model.Stats
	version    uint64
	finalizing bool

	wake       chan struct{}
	onComplete func(sessionMinutes int)
}

func NewController(backend Backend, clock clockwork.Clock, logger zerolog.Logger) *Controller {
	return &Controller{
		backend:    backend,
		clock:      clock,
		logger:     logger,
		stateCache: NewCache[model.TimerState](clock, CacheTTL),
		statsCache: NewCache[model.Stats](clock, CacheTTL),
		state:      model.DefaultTimerState(),
		wake:       make(chan struct{}, 1),
	}
}

// OnComplete registers the celebratory callback fired after a countdown
// session finalizes. Presentation only; errors in the finalizer do not
// suppress it.
func (c *Controller) OnComplete(fn func(sessionMinutes int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// SignIn binds the controller to a user. State resets to defaults until Load
// hydrates it from cache or server.
func (c *Controller) SignIn(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.state = model.DefaultTimerState()
	c.stats = model.Stats{}
	c.version++
}

// SignOut discards the current user's state and clears both caches so the
// next session cannot observe it.
func (c *Controller) SignOut() {
	c.mu.Lock()
	c.userID = ""
	c.state = model.DefaultTimerState()
	c.stats = model.Stats{}
	c.version++
	c.mu.Unlock()

	c.stateCache.Clear()
	c.statsCache.Clear()
}

// State returns the authoritative in-memory timer state.
func (c *Controller) State() model.TimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the last adopted aggregate counters.
func (c *Controller) Stats() model.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsActive
}

// Display projects the state onto the current instant: the seconds a UI
// should show right now.
func (c *Controller) Display() int {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return model.Project(state, c.clock.Now())
}

// Load hydrates the timer state through the cache. A fetch failure keeps the
// current in-memory state and reports a retryable error.
func (c *Controller) Load(ctx context.Context, force bool) (model.TimerState, error) {
	c.mu.Lock()
	userID := c.userID
	issued := c.version
	c.mu.Unlock()

	if userID == "" {
		return model.DefaultTimerState(), ErrSignedOut
	}

	fetched, err := c.stateCache.Fetch(ctx, userID, force, func(ctx context.Context) (model.TimerState, error) {
		remote, fetchErr := c.backend.FetchTimerState(ctx)
		if fetchErr != nil {
			return model.TimerState{}, fetchErr
		}
		if remote == nil {
			return model.DefaultTimerState(), nil
		}
		return *remote, nil
	})
	if err != nil {
		c.mu.Lock()
		current := c.state
		c.mu.Unlock()
		return current, fmt.Errorf("load timer state: %w", err)
	}

	normalized := model.Normalize(fetched)

	c.mu.Lock()
	if c.version != issued {
		// A local operation landed while we were fetching; it wins.
		current := c.state
		c.mu.Unlock()
		return current, nil
	}
	c.state = normalized
	c.mu.Unlock()

	if normalized.IsActive {
		c.signalWake()
	}
	return normalized, nil
}

// LoadStats hydrates the aggregate counters through the stats cache.
func (c *Controller) LoadStats(ctx context.Context, force bool) (model.Stats, error) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		return model.Stats{}, ErrSignedOut
	}

	fetched, err := c.statsCache.Fetch(ctx, userID, force, func(ctx context.Context) (model.Stats, error) {
		return c.backend.FetchStats(ctx)
	})
	if err != nil {
		c.mu.Lock()
		current := c.stats
		c.mu.Unlock()
		return current, fmt.Errorf("load stats: %w", err)
	}

	normalized := model.NormalizeStats(fetched)
	c.mu.Lock()
	c.stats = normalized
	c.mu.Unlock()
	return normalized, nil
}

// Start begins a run. Starting an already-active timer is a no-op; a drained
// countdown rewinds to its configured duration first.
func (c *Controller) Start(ctx context.Context) (model.TimerState, error) {
	snapshot := c.State()
	if snapshot.IsActive {
		return snapshot, nil
	}

	next := snapshot
	if next.Mode == model.ModeCountdown {
		if next.CurrentSeconds <= 0 {
			next.CurrentSeconds = next.InitialSeconds
		}
		if next.CurrentSeconds > next.InitialSeconds {
			next.CurrentSeconds = next.InitialSeconds
		}
	}
	now := c.clock.Now().UTC()
	next.IsActive = true
	next.StartedAt = &now
	return c.persist(ctx, next, false)
}

// Pause freezes the live elapsed time into the checkpoint and stops the run.
func (c *Controller) Pause(ctx context.Context) (model.TimerState, error) {
	snapshot := c.State()
	if !snapshot.IsActive {
		return snapshot, nil
	}

	next := snapshot
	next.CurrentSeconds = model.Project(snapshot, c.clock.Now())
	next.IsActive = false
	next.StartedAt = nil
	return c.persist(ctx, next, false)
}

// Reset returns the timer to its mode's resting value and stops it.
func (c *Controller) Reset(ctx context.Context) (model.TimerState, error) {
	snapshot := c.State()
	next := snapshot
	if next.Mode == model.ModeCountdown {
		next.CurrentSeconds = next.InitialSeconds
	} else {
		next.CurrentSeconds = 0
	}
	next.IsActive = false
	next.StartedAt = nil
	return c.persist(ctx, next, false)
}

// SetDuration changes the configured duration. Rejected (no-op) while the
// timer is running.
func (c *Controller) SetDuration(ctx context.Context, minutes int) (model.TimerState, error) {
	snapshot := c.State()
	if snapshot.IsActive {
		return snapshot, nil
	}

	seconds := minutes * 60
	if seconds < model.MinInitialSeconds {
		seconds = model.MinInitialSeconds
	}
	if seconds > model.MaxInitialSeconds {
		seconds = model.MaxInitialSeconds
	}

	next := snapshot
	next.InitialSeconds = seconds
	if next.Mode == model.ModeCountdown {
		next.CurrentSeconds = seconds
	} else if next.CurrentSeconds > seconds {
		next.CurrentSeconds = seconds
	}
	next.IsActive = false
	next.StartedAt = nil
	return c.persist(ctx, next, false)
}

// SwitchMode flips between countdown and countup, always forcing a stop and
// resetting the checkpoint for the new mode.
func (c *Controller) SwitchMode(ctx context.Context, mode string) (model.TimerState, error) {
	snapshot := c.State()

	next := snapshot
	next.Mode = mode
	if mode == model.ModeCountup {
		next.CurrentSeconds = 0
	} else {
		next.CurrentSeconds = next.InitialSeconds
	}
	next.IsActive = false
	next.StartedAt = nil
	return c.persist(ctx, next, false)
}

// persist applies the optimistic update, pushes it to the server and adopts
// the response unless a newer operation superseded this one in the meantime.
// With silent set, failures are logged but not returned; the finalizer uses
// this so a flaky write cannot block the stats credit.
func (c *Controller) persist(ctx context.Context, next model.TimerState, silent bool) (model.TimerState, error) {
	normalized := model.Normalize(next)

	c.mu.Lock()
	c.state = normalized
	c.version++
	issued := c.version
	userID := c.userID
	c.mu.Unlock()

	if normalized.IsActive {
		c.signalWake()
	}

	if userID == "" {
		if silent {
			return normalized, nil
		}
		return normalized, ErrSignedOut
	}

	c.stateCache.Put(userID, normalized)

	saved, err := c.backend.SaveTimerState(ctx, normalized)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != issued {
		c.logger.Debug().Uint64("issued", issued).Uint64("current", c.version).
			Msg("discarding superseded timer sync response")
		return c.state, nil
	}
	if err != nil {
		// The optimistic state stays; the next sync reconciles.
		if silent {
			c.logger.Warn().Err(err).Msg("silent timer sync failed")
			return normalized, nil
		}
		return normalized, fmt.Errorf("sync timer state: %w", err)
	}

	adopted := model.Normalize(saved)
	c.state = adopted
	c.stateCache.Put(userID, adopted)
	return adopted, nil
}

func (c *Controller) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

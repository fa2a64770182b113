package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"couplespace/focus/internal/model"
)

const requestTimeout = 30 * time.Second

// Backend is the server collaborator the timer core talks to. The concrete
// transport is the authenticated HTTP JSON API; tests substitute fakes.
type Backend interface {
	FetchTimerState(ctx context.Context) (*model.TimerState, error)
	SaveTimerState(ctx context.Context, state model.TimerState) (model.TimerState, error)
	FetchStats(ctx context.Context) (model.Stats, error)
	CompleteSession(ctx context.Context, focusMinutes int) (model.Stats, error)
}

// APIError carries the server's error envelope for a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// API is the HTTP implementation of Backend. The token func is consulted on
// every request so a refreshed session token is picked up without rewiring.
type API struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
}

func NewAPI(baseURL string, token func() string) *API {
	return &API{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		token:      token,
	}
}

type timerStateEnvelope struct {
	TimerState *model.TimerStateInput `json:"timerState"`
}

type statsEnvelope struct {
	Stats *model.StatsInput `json:"stats"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchTimerState returns nil when the server has no record for the user,
// which callers treat as "use defaults".
func (a *API) FetchTimerState(ctx context.Context) (*model.TimerState, error) {
	var envelope timerStateEnvelope
	if err := a.do(ctx, http.MethodGet, "/api/focus/timer-state", nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.TimerState == nil {
		return nil, nil
	}
	state := model.NormalizeInput(*envelope.TimerState)
	return &state, nil
}

func (a *API) SaveTimerState(ctx context.Context, state model.TimerState) (model.TimerState, error) {
	var envelope timerStateEnvelope
	if err := a.do(ctx, http.MethodPatch, "/api/focus/timer-state", state, &envelope); err != nil {
		return model.TimerState{}, err
	}
	if envelope.TimerState == nil {
		// A compliant server echoes the stored state; fall back to the payload.
		return model.Normalize(state), nil
	}
	return model.NormalizeInput(*envelope.TimerState), nil
}

func (a *API) FetchStats(ctx context.Context) (model.Stats, error) {
	var envelope statsEnvelope
	if err := a.do(ctx, http.MethodGet, "/api/focus/stats", nil, &envelope); err != nil {
		return model.Stats{}, err
	}
	if envelope.Stats == nil {
		return model.NormalizeStats(model.Stats{}), nil
	}
	return model.NormalizeStatsInput(*envelope.Stats), nil
}

func (a *API) CompleteSession(ctx context.Context, focusMinutes int) (model.Stats, error) {
	body := map[string]int{"focusMinutes": focusMinutes}
	var envelope statsEnvelope
	if err := a.do(ctx, http.MethodPatch, "/api/focus/stats/complete-session", body, &envelope); err != nil {
		return model.Stats{}, err
	}
	if envelope.Stats == nil {
		return model.Stats{}, fmt.Errorf("complete session: empty stats payload")
	}
	return model.NormalizeStatsInput(*envelope.Stats), nil
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	// Reads are retried once on transport failure; writes never are, the
	// caller's version guard decides what to do with a failed write.
	attempts := 1
	if method == http.MethodGet {
		attempts = 2
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(180 * time.Millisecond):
			}
		}
		if lastErr = a.doOnce(ctx, method, path, body, out); lastErr == nil {
			return nil
		}
		if _, ok := lastErr.(*APIError); ok {
			// The server answered; retrying won't change its mind.
			return lastErr
		}
	}
	return lastErr
}

func (a *API) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope errorEnvelope
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

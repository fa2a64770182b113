package repository

import "time"

// Timestamps are stored as RFC3339Nano text; older rows may carry the
// plain RFC3339 form.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

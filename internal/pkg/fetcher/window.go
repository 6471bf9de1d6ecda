package fetcher

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidWindow = errors.New("invalid time window")

// Window is the closed time range [Start, End] a fetch covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// LastDays is the window ending at now and starting n whole days earlier.
func LastDays(n int, now time.Time) (Window, error) {
	if n < 1 {
		return Window{}, fmt.Errorf("%w: days back must be at least 1, got %d", ErrInvalidWindow, n)
	}
	now = now.UTC()
	return Window{Start: now.AddDate(0, 0, -n), End: now}, nil
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
			w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
	}
	return nil
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return w.Start.UTC().Format(time.RFC3339) + "/" + w.End.UTC().Format(time.RFC3339)
}

package openaq

import (
	"fmt"
	"net/http"
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// FetchError is returned once a request failed permanently or ran out of
// attempts. Status is the last HTTP status seen, 0 if none was received.
type FetchError struct {
	Station  string
	Path     string
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	station := ""
	if e.Station != "" {
		station = fmt.Sprintf(" for station %q", e.Station)
	}
	return fmt.Sprintf("fetch %s%s failed after %d attempt(s) (last status %d): %v",
		e.Path, station, e.Attempts, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// Package metrics records operational counters for fetch and quality runs.
// A Recorder with no backend is a no-op, so callers never need nil checks.
package metrics

import (
	"strconv"
	"time"
)

type Labels map[string]string

// Backend is implemented by concrete metric systems.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

const (
	StepTotal       = "airq_step_total"
	StepDuration    = "airq_step_duration_seconds"
	RequestsTotal   = "airq_requests_total"
	RetriesTotal    = "airq_retries_total"
	RecordsTotal    = "airq_records_total"
	RequestDuration = "airq_request_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

// Recorder is the handle passed to the fetcher, client and checker.
type Recorder struct {
	backend Backend
	job     string
}

func New(job string, backend Backend) *Recorder {
	if backend == nil {
		backend = nopBackend{}
	}
	return &Recorder{backend: backend, job: job}
}

// Nop returns a Recorder that discards everything.
func Nop() *Recorder {
	return New("", nil)
}

func (r *Recorder) Flush() error {
	return r.backend.Flush()
}

// Step records latency and outcome of one pipeline step (fetch, persist, check, archive).
func (r *Recorder) Step(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": r.job, "step": step, "status": status}
	r.backend.IncCounter(StepTotal, 1, lbls)
	r.backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Request records one HTTP attempt. status is 0 when no response was received.
func (r *Recorder) Request(status int, d time.Duration) {
	lbls := Labels{"job": r.job, "status": strconv.Itoa(status)}
	r.backend.IncCounter(RequestsTotal, 1, lbls)
	r.backend.ObserveHistogram(RequestDuration, d.Seconds(), lbls)
}

func (r *Recorder) Retry() {
	r.backend.IncCounter(RetriesTotal, 1, Labels{"job": r.job})
}

// Records counts rows by kind, e.g. "fetched", "skipped", "archived", "checked".
func (r *Recorder) Records(kind string, delta int) {
	if delta <= 0 {
		return
	}
	r.backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": r.job, "kind": kind})
}

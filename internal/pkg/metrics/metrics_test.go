package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type fakeBackend struct {
	mu         sync.Mutex
	counters   []counterCall
	histograms []counterCall
	flushes    int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, counterCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.flushes++
	return nil
}

func TestRecorder_Step(t *testing.T) {
	fb := &fakeBackend{}
	r := New("fetch", fb)

	r.Step("persist", nil, 2*time.Second)
	r.Step("persist", errors.New("boom"), time.Second)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)
	assert.Equal(t, StepTotal, fb.counters[0].name)
	assert.Equal(t, Labels{"job": "fetch", "step": "persist", "status": "success"}, fb.counters[0].labels)
	assert.Equal(t, "failure", fb.counters[1].labels["status"])
	assert.Equal(t, 2.0, fb.histograms[0].delta)
}

func TestRecorder_RequestAndRecords(t *testing.T) {
	fb := &fakeBackend{}
	r := New("fetch", fb)

	r.Request(503, 10*time.Millisecond)
	r.Retry()
	r.Records("fetched", 0)
	r.Records("fetched", 12)

	require.Len(t, fb.counters, 3)
	assert.Equal(t, "503", fb.counters[0].labels["status"])
	assert.Equal(t, RetriesTotal, fb.counters[1].name)
	assert.Equal(t, 12.0, fb.counters[2].delta)
	assert.Equal(t, "fetched", fb.counters[2].labels["kind"])

	require.NoError(t, r.Flush())
	assert.Equal(t, 1, fb.flushes)
}

func TestNop(t *testing.T) {
	r := Nop()
	r.Step("x", nil, time.Second)
	r.Request(200, time.Millisecond)
	assert.NoError(t, r.Flush())
}

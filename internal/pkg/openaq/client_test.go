package openaq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/airquality-integration/pkg/retry"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Config)) *client {
	t.Helper()
	cfg := Config{
		BaseURL:   srv.URL + "/v3",
		APIKey:    "test_key",
		Timeout:   time.Second,
		Retry:     retry.Policy{Attempts: 3, Base: time.Millisecond, Multiplier: 2},
		PageLimit: 2,
		MaxPages:  10,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, WithLogger(zaptest.NewLogger(t)), WithSleep(noSleep), WithTransport(http.DefaultTransport))
	require.NoError(t, err)
	return c
}

func record(ts string, value string) string {
	return fmt.Sprintf(`{"value":%s,"parameter":{"id":2,"name":"pm25","units":"µg/m³"},"period":{"label":"raw","datetimeTo":{"utc":%q,"local":"2026-01-02T13:00:00+01:00"}}}`, value, ts)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{BaseURL: "https://api.openaq.org/v3"})
	assert.Error(t, err, "missing api key")

	_, err = New(Config{BaseURL: "not a url", APIKey: "k"})
	assert.Error(t, err)
}

func TestMeasurements_SendsCredentialAndWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/sensors/14152505/measurements", r.URL.Path)
		assert.Equal(t, "test_key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "2026-01-01T00:00:00Z", r.URL.Query().Get("datetime_from"))
		assert.Equal(t, "2026-01-08T00:00:00Z", r.URL.Query().Get("datetime_to"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		fmt.Fprintf(w, `{"meta":{"page":1,"limit":2,"found":1},"results":[%s]}`, record("2026-01-02T12:00:00Z", "15.5"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	var pages []Page
	for page, err := range c.Measurements(context.Background(), 14152505, from, to) {
		require.NoError(t, err)
		pages = append(pages, page)
	}

	require.Len(t, pages, 1)
	require.Len(t, pages[0].Results, 1)
	rec := pages[0].Results[0]
	assert.True(t, rec.Value.Valid)
	assert.Equal(t, 15.5, rec.Value.Float64)
	assert.Equal(t, "µg/m³", rec.Parameter.Units)
	assert.Equal(t, "2026-01-02T12:00:00Z", rec.Period.DatetimeTo.UTC)
}

func TestMeasurements_Pagination(t *testing.T) {
	tests := map[string]struct {
		found     string
		perPage   func(page int) int
		maxPages  int
		wantPages int
	}{
		"short page ends": {
			found:     `">1000"`,
			perPage:   func(page int) int { return map[int]int{1: 2, 2: 2, 3: 1}[page] },
			maxPages:  10,
			wantPages: 3,
		},
		"empty page ends": {
			found:     `">1000"`,
			perPage:   func(page int) int { return map[int]int{1: 2, 2: 0}[page] },
			maxPages:  10,
			wantPages: 2,
		},
		"found reached ends": {
			found:     `4`,
			perPage:   func(int) int { return 2 },
			maxPages:  10,
			wantPages: 2,
		},
		"page ceiling ends": {
			found:     `">1000"`,
			perPage:   func(int) int { return 2 },
			maxPages:  3,
			wantPages: 3,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				page, _ := strconv.Atoi(r.URL.Query().Get("page"))
				results := ""
				for i := 0; i < tt.perPage(page); i++ {
					if i > 0 {
						results += ","
					}
					results += record("2026-01-02T12:00:00Z", strconv.Itoa(page*10+i))
				}
				fmt.Fprintf(w, `{"meta":{"page":%d,"limit":2,"found":%s},"results":[%s]}`, page, tt.found, results)
			}))
			defer srv.Close()

			c := newTestClient(t, srv, func(cfg *Config) { cfg.MaxPages = tt.maxPages })

			count := 0
			for page, err := range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
				require.NoError(t, err)
				count++
				assert.Equal(t, count, page.Number)
			}
			assert.Equal(t, tt.wantPages, count)
			assert.Equal(t, int32(tt.wantPages), atomic.LoadInt32(&hits))
		})
	}
}

func TestMeasurements_StopsWhenConsumerBreaks(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprintf(w, `{"meta":{"found":">1000"},"results":[%s,%s]}`, record("2026-01-02T12:00:00Z", "1"), record("2026-01-02T13:00:00Z", "2"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	for range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
		break
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGet_RetriesTransientStatusesExactly(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			c := newTestClient(t, srv, func(cfg *Config) { cfg.Retry.Attempts = 4 })

			var gotErr error
			for _, err := range c.Measurements(context.Background(), 7, time.Now().Add(-time.Hour), time.Now()) {
				gotErr = err
			}

			var fe *FetchError
			require.ErrorAs(t, gotErr, &fe)
			assert.Equal(t, 4, fe.Attempts)
			assert.Equal(t, status, fe.Status)
			assert.Equal(t, "/sensors/7/measurements", fe.Path)
			assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
		})
	}
}

func TestGet_PermanentStatusesFailImmediately(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"detail":"nope"}`))
			}))
			defer srv.Close()

			c := newTestClient(t, srv, nil)

			var gotErr error
			for _, err := range c.Measurements(context.Background(), 7, time.Now().Add(-time.Hour), time.Now()) {
				gotErr = err
			}

			var fe *FetchError
			require.ErrorAs(t, gotErr, &fe)
			assert.Equal(t, 1, fe.Attempts)
			assert.Equal(t, status, fe.Status)

			var se *StatusError
			require.ErrorAs(t, gotErr, &se)
			assert.Contains(t, se.Body, "nope")
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		})
	}
}

func TestGet_RecoversAfterTransientFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"meta":{"found":1},"results":[%s]}`, record("2026-01-02T12:00:00Z", "3"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	for page, err := range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
		require.NoError(t, err)
		assert.Len(t, page.Results, 1)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestGet_TimeoutIsTransient(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.Timeout = 20 * time.Millisecond
		cfg.Retry.Attempts = 2
	})

	var gotErr error
	for _, err := range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
		gotErr = err
	}

	var fe *FetchError
	require.ErrorAs(t, gotErr, &fe)
	assert.Equal(t, 2, fe.Attempts)
	assert.Equal(t, 0, fe.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestGet_MalformedBodyIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"results": [`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	var gotErr error
	for _, err := range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
		gotErr = err
	}
	var fe *FetchError
	require.ErrorAs(t, gotErr, &fe)
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMeasurements_LenientRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"found":4},"results":[
			{"value":null,"period":{"datetimeTo":{"utc":"2026-01-02T12:00:00Z"}}},
			{"value":"12.5","period":{"datetimeTo":{"utc":"2026-01-02T13:00:00Z"}}},
			{"value":"n/a"},
			{"value":1,"period":"garbage"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.PageLimit = 10 })
	var results []MeasurementRecord
	for page, err := range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
		require.NoError(t, err)
		results = append(results, page.Results...)
	}

	require.Len(t, results, 4)
	assert.False(t, results[0].Value.Valid)
	assert.Equal(t, 12.5, results[1].Value.Float64)
	assert.False(t, results[2].Value.Valid)
	assert.Nil(t, results[2].Period)
	assert.True(t, results[3].Malformed)
}

func TestMeasurements_TolerantMeta(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprintf(w, `{"meta":{"name":7,"page":"1","limit":"100","found":"2"},"results":[%s]}`, record("2026-01-02T12:00:00Z", "4"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	var pages []Page
	for page, err := range c.Measurements(context.Background(), 1, time.Now().Add(-time.Hour), time.Now()) {
		require.NoError(t, err)
		pages = append(pages, page)
	}

	require.Len(t, pages, 1)
	require.Len(t, pages[0].Results, 1)
	assert.Equal(t, 4.0, pages[0].Results[0].Value.Float64)
	assert.False(t, pages[0].Found.Known)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMeta_Lenient(t *testing.T) {
	var m Meta
	require.NoError(t, json.Unmarshal([]byte(`{"name":"openaq-api","page":"3","limit":100,"found":12}`), &m))
	assert.Equal(t, Meta{Name: "openaq-api", Page: 3, Limit: 100, Found: Found{Count: 12, Known: true}}, m)

	require.NoError(t, json.Unmarshal([]byte(`{"page":true,"limit":[1],"found":{}}`), &m))
	assert.Equal(t, Meta{}, m)

	require.NoError(t, json.Unmarshal([]byte(`"not an object"`), &m))
	assert.Equal(t, Meta{}, m)
}

func TestFetchError_Message(t *testing.T) {
	err := &FetchError{Station: "kossutha", Path: "/sensors/1/measurements", Status: 503, Attempts: 3, Err: errors.New("boom")}
	assert.Equal(t, `fetch /sensors/1/measurements for station "kossutha" failed after 3 attempt(s) (last status 503): boom`, err.Error())
}

func TestDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/locations":
			assert.Equal(t, "Katowice-Kossutha", r.URL.Query().Get("name"))
			_, _ = w.Write([]byte(`{"results":[{"id":10580,"name":"Katowice, ul. Kossutha","country":{"code":"PL","name":"Poland"}}]}`))
		case "/v3/locations/10580/sensors":
			_, _ = w.Write([]byte(`{"results":[{"id":14152505,"name":"pm25 µg/m³","parameter":{"id":2,"name":"pm25","units":"µg/m³","displayName":"PM2.5"},"latest":{"value":11.2}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	locs, err := c.Locations(context.Background(), "Katowice-Kossutha")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, int64(10580), locs[0].ID)

	sensors, err := c.LocationSensors(context.Background(), 10580)
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.Equal(t, "PM2.5", sensors[0].Parameter.DisplayName)
	assert.Equal(t, 11.2, sensors[0].Latest.Value.Float64)
}

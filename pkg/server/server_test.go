package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/itohio/adcscope/pkg/acquire"
	"github.com/itohio/adcscope/pkg/adc"
	"github.com/itohio/adcscope/pkg/config"
	"github.com/itohio/adcscope/pkg/metrics"
	"github.com/itohio/adcscope/pkg/store"
)

type fakeAcquirer struct {
	mu       sync.Mutex
	selected []string
	err      error
}

func (f *fakeAcquirer) Select(port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if port == "" {
		return acquire.ErrEmptyPort
	}
	if f.err != nil {
		return f.err
	}
	f.selected = append(f.selected, port)
	return nil
}

func (f *fakeAcquirer) Port() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.selected) == 0 {
		return ""
	}
	return f.selected[len(f.selected)-1]
}

func (f *fakeAcquirer) Running() bool {
	return f.Port() != ""
}

type fixture struct {
	srv      *Server
	settings *acquire.SettingsStore
	acq      *fakeAcquirer
	store    *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(t.TempDir(), time.Now(), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		settings: acquire.NewSettingsStore(acquire.DefaultSettings()),
		acq:      &fakeAcquirer{},
		store:    st,
	}
	f.srv = New(Options{
		Settings:   f.settings,
		Acquirer:   f.acq,
		Store:      st,
		Ports:      func() ([]string, error) { return []string{"/dev/ttyUSB0", "mock"}, nil },
		SampleRate: 10,
		Logger:     zaptest.NewLogger(t),
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>adcscope</title>")
	assert.Contains(t, body, "sample rate 10 Hz")
	assert.Contains(t, body, `id="update_interval" type="number" step="any" min="0" value="0.05"`)
}

func TestListPorts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/list_ports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["/dev/ttyUSB0","mock"]`, rec.Body.String())
}

func TestListPorts_Empty(t *testing.T) {
	srv := New(Options{Ports: func() ([]string, error) { return nil, nil }})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list_ports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListPorts_Error(t *testing.T) {
	srv := New(Options{Ports: func() ([]string, error) { return nil, errors.New("enumeration failed") }})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list_ports", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"enumeration failed"}`, rec.Body.String())
}

func TestUpdateFilters(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected acquire.Settings
		interval float64
	}{
		{
			name: "numbers and booleans",
			body: `{"lp_cutoff": 2.5, "hp_cutoff": 0.2, "lp_active": true, "hp_active": false, "update_interval": 0.1}`,
			expected: acquire.Settings{
				LowPassCutoff: 2.5, HighPassCutoff: 0.2, LowPassActive: true,
				UpdateInterval: 100 * time.Millisecond,
			},
			interval: 0.1,
		},
		{
			name: "strings",
			body: `{"lp_cutoff": "3", "hp_cutoff": " 0.5 ", "lp_active": "TRUE", "hp_active": "true", "update_interval": "0.25"}`,
			expected: acquire.Settings{
				LowPassCutoff: 3, HighPassCutoff: 0.5, LowPassActive: true, HighPassActive: true,
				UpdateInterval: 250 * time.Millisecond,
			},
			interval: 0.25,
		},
		{
			name: "missing fields take defaults",
			body: `{"lp_active": "true"}`,
			expected: acquire.Settings{
				LowPassCutoff: 1.0, HighPassCutoff: 0.1, LowPassActive: true,
				UpdateInterval: 50 * time.Millisecond,
			},
			interval: 0.05,
		},
		{
			name:     "null is missing",
			body:     `{"lp_cutoff": null, "hp_active": null}`,
			expected: acquire.DefaultSettings(),
			interval: 0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.settings.Update(acquire.Settings{LowPassCutoff: 9, HighPassCutoff: 9, HighPassActive: true, UpdateInterval: time.Second})

			rec := f.do(http.MethodPost, "/update_filters", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp updateFiltersResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.InDelta(t, tt.interval, resp.UpdateInterval, 1e-12)

			got := f.settings.Snapshot()
			assert.InDelta(t, tt.expected.LowPassCutoff, got.LowPassCutoff, 1e-12)
			assert.InDelta(t, tt.expected.HighPassCutoff, got.HighPassCutoff, 1e-12)
			assert.Equal(t, tt.expected.LowPassActive, got.LowPassActive)
			assert.Equal(t, tt.expected.HighPassActive, got.HighPassActive)
			assert.Equal(t, tt.expected.UpdateInterval, got.UpdateInterval)
		})
	}
}

func TestUpdateFilters_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `lp_cutoff=1`},
		{"not an object", `[1, 2]`},
		{"bad number", `{"lp_cutoff": "abc"}`},
		{"nan", `{"lp_cutoff": "NaN"}`},
		{"bad boolean", `{"lp_active": "yes"}`},
		{"boolean as number", `{"lp_active": 1}`},
		{"negative cutoff", `{"hp_cutoff": -0.1}`},
		{"zero cutoff", `{"lp_cutoff": 0}`},
		{"zero interval", `{"update_interval": 0}`},
		{"negative interval", `{"update_interval": "-1"}`},
		{"interval rounds to zero", `{"update_interval": 1e-12}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.settings.Snapshot()

			rec := f.do(http.MethodPost, "/update_filters", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp statusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, before, f.settings.Snapshot())
		})
	}
}

func TestSelectPort(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/select_port", `{"port": "/dev/ttyUSB0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Connected to port /dev/ttyUSB0"}`, rec.Body.String())
	assert.Equal(t, []string{"/dev/ttyUSB0"}, f.acq.selected)
}

func TestSelectPort_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/select_port", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/select_port", `{"port": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.acq.err = acquire.ErrManagerClosed
	rec = f.do(http.MethodPost, "/select_port", `{"port": "mock"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Empty(t, f.acq.selected)
}

func TestSelectPort_MissingDeviceStillSucceeds(t *testing.T) {
	logger := zaptest.NewLogger(t)
	settings := acquire.NewSettingsStore(acquire.DefaultSettings())
	cfg := config.Default()
	factory := func(port string) adc.Device { return adc.New(port, cfg.Serial, logger) }
	mgr := acquire.NewManager(factory, settings, cfg.Filter, acquire.EmitterFunc(func(acquire.Frame) {}), nil, logger)
	defer mgr.Close()

	srv := New(Options{Settings: settings, Acquirer: mgr, Logger: logger})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/select_port", strings.NewReader(`{"port": "/dev/does-not-exist-adcscope"}`))
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool { return !mgr.Running() }, 2*time.Second, 10*time.Millisecond)

	// The control surface keeps working.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSaveData(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/save_data", `{"data": [1, 2, 3]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Message)

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(data))
}

func TestSaveData_KeepsNumbersVerbatim(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/save_data", `{"data": [512.50, 1e3, -0, "x", {"a": 1.0}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "512.50\n1e3\n-0\nx\n{\"a\":1.0}\n", string(data))
}

func TestSaveData_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty array", `{"data": []}`},
		{"missing data", `{}`},
		{"null data", `{"data": null}`},
		{"object data", `{"data": {"raw": [1]}}`},
		{"scalar data", `{"data": 5}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(http.MethodPost, "/save_data", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp statusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)

			data, err := os.ReadFile(f.store.Path())
			require.NoError(t, err)
			assert.Empty(t, data)
		})
	}
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/select_port", `{"port": "mock"}`).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/update_filters", `{"lp_cutoff": 2, "lp_active": true}`).Code)

	rec := f.do(http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"lp_cutoff": 2, "hp_cutoff": 0.1, "lp_active": true, "hp_active": false,
		"update_interval": 0.05, "sample_rate": 10, "port": "mock", "running": true
	}`, rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SamplesRead.Add(3)

	srv := New(Options{Gatherer: reg})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "adcscope_acquire_samples_read_total 3")
}

func TestStreamRoute(t *testing.T) {
	called := false
	srv := New(Options{Stream: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.True(t, called)
}

func TestRouting(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"not found"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/save_data", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// Without a stream handler the route does not exist.
	rec = f.do(http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartShutdown(t *testing.T) {
	srv := New(Options{Addr: "127.0.0.1:0", Logger: zaptest.NewLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStart_ListenError(t *testing.T) {
	srv := New(Options{Addr: "127.0.0.1:-1", Logger: zaptest.NewLogger(t)})

	err := srv.Start(context.Background())
	assert.Error(t, err)
}

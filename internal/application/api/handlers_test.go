package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/repositories"
)

type fakeStatus struct{ running atomic.Bool }

func (f *fakeStatus) Status() domain.MonitoringStatus {
	return domain.MonitoringStatus{IsRunning: f.running.Load(), Interval: time.Minute, Domains: 2}
}

type fixture struct {
	router  *Router
	engine  *stats.Engine
	repo    *repositories.InMemoryProfileRepository
	bus     *events.EventBus
	status  *fakeStatus
	stopped atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine: stats.NewEngine(),
		repo:   repositories.NewInMemoryProfileRepository(),
		bus:    events.NewEventBus(nil),
		status: &fakeStatus{},
	}
	f.status.running.Store(true)
	f.router = NewRouter(RouterConfig{
		Store:    f.repo,
		Live:     f.engine,
		Status:   f.status,
		Stop:     func() { f.stopped.Add(1) },
		EventBus: f.bus,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("dnsq_rounds_total 0\n"))
		}),
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetProfiles(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profiles":[],"count":0}`, rec.Body.String())

	update, err := f.engine.RecordSample("qq.com", 80)
	require.NoError(t, err)
	require.NoError(t, f.repo.Upsert(context.Background(), update.Profile))

	rec = f.do(http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Profiles []domain.DomainProfile `json:"profiles"`
		Count    int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "qq.com", body.Profiles[0].Domain)
	assert.Equal(t, 80.0, body.Profiles[0].RunningMean)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RecordSample("baidu.com", 100)
	require.NoError(t, err)
	_, err = f.engine.RecordSample("baidu.com", 200)
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/profiles/baidu.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.DomainProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, uint64(2), p.SampleCount)
	assert.Equal(t, 150.0, p.RunningMean)
	assert.Equal(t, 50.0, p.StdDev)

	rec = f.do(http.MethodGet, "/profiles/unknown.example", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "profile not found")
}

func TestControlMonitoring(t *testing.T) {
	f := newFixture(t)
	ch := f.bus.Subscribe()

	rec := f.do(http.MethodPost, "/monitoring/control", `{"action":"status"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_running":true`)

	rec = f.do(http.MethodPost, "/monitoring/control", `{"action":"stop"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), f.stopped.Load())
	ev := <-ch
	assert.Equal(t, events.TypeMonitoring, ev.Type)

	f.status.running.Store(false)
	rec = f.do(http.MethodPost, "/monitoring/control", `{"action":"stop"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(1), f.stopped.Load())

	rec = f.do(http.MethodPost, "/monitoring/control", `{"action":"start"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/monitoring/control", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlMonitoringRejectsCrossOrigin(t *testing.T) {
	f := newFixture(t)

	for _, header := range []struct{ key, value string }{
		{"Origin", "http://evil.example"},
		{"Origin", "null"},
		{"Sec-Fetch-Site", "cross-site"},
	} {
		req := httptest.NewRequest(http.MethodPost, "/monitoring/control", strings.NewReader(`{"action":"stop"}`))
		req.Header.Set(header.key, header.value)
		rec := httptest.NewRecorder()
		f.router.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s: %s", header.key, header.value)
	}
	assert.Equal(t, int32(0), f.stopped.Load())

	req := httptest.NewRequest(http.MethodPost, "/monitoring/control", strings.NewReader(`{"action":"stop"}`))
	req.Header.Set("Origin", "http://"+req.Host)
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), f.stopped.Load())
}

func TestMonitoringSocketRejectsCrossOrigin(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/monitoring/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthzMetricsAndFallback(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","is_running":true}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dnsq_rounds_total")

	rec = f.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodOptions, "/profiles", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMonitoringEventsStreamsSSE(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/monitoring/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readSSEData(t, reader)
	assert.Contains(t, first, `"type":"initial_status"`)

	require.Eventually(t, func() bool { return f.bus.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	f.bus.ObserveRound(domain.RoundReport{Round: domain.Round{Number: 9}})

	second := readSSEData(t, reader)
	assert.Contains(t, second, `"type":"round_completed"`)
	assert.Contains(t, second, `"number":9`)
}

func readSSEData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}
}

func TestMonitoringSocketStreamsEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/monitoring/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "initial_status", ev.Type)

	require.Eventually(t, func() bool { return f.bus.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	f.bus.Broadcast(events.Event{Type: events.TypeSeriesReset, Data: "msn.com"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypeSeriesReset, ev.Type)
	assert.Equal(t, "msn.com", ev.Data)
}

package actors

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/repositories"
)

type fakeProber struct {
	mu      sync.Mutex
	latency map[string][]float64
	fail    map[string]error
	delay   time.Duration
}

func (f *fakeProber) Measure(_ context.Context, name string) (float64, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[name]; err != nil {
		return 0, err
	}
	seq := f.latency[name]
	if len(seq) == 0 {
		return 0, errors.New("no more samples")
	}
	f.latency[name] = seq[1:]
	return seq[0], nil
}

type failingRepository struct {
	*repositories.InMemoryProfileRepository
}

func (failingRepository) Upsert(context.Context, domain.DomainProfile) error {
	return errors.New("disk full")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newEngine(t *testing.T) *actor.Engine {
	t.Helper()
	engine, err := actor.NewEngine(actor.NewEngineConfig())
	require.NoError(t, err)
	return engine
}

func testDeps(prober *fakeProber, repo *repositories.InMemoryProfileRepository) ProberDeps {
	return ProberDeps{
		Prober:       prober,
		Stats:        stats.NewEngine(),
		Repository:   repo,
		EventBus:     events.NewEventBus(nil),
		ProbeTimeout: time.Second,
		StoreTimeout: time.Second,
	}
}

func TestProbeAllSuccessAndResolverFailure(t *testing.T) {
	engine := newEngine(t)
	prober := &fakeProber{
		latency: map[string][]float64{"a.example": {80}},
		fail:    map[string]error{"b.example": errors.New("i/o timeout")},
	}
	repo := repositories.NewInMemoryProfileRepository()
	deps := testDeps(prober, repo)
	pool := NewProberPool(engine, []string{"a.example", "b.example"}, deps)
	defer pool.Stop()

	outcomes := pool.ProbeAll(context.Background(), domain.Round{Number: 1})
	require.Len(t, outcomes, 2)

	a := outcomes[0]
	assert.Equal(t, "a.example", a.Domain)
	assert.Equal(t, domain.OutcomeSuccess, a.Status)
	assert.True(t, a.Created)
	require.NotNil(t, a.Profile)
	assert.Equal(t, uint64(1), a.Profile.SampleCount)
	assert.Equal(t, 80.0, a.Profile.RunningMean)
	assert.Equal(t, 6400.0, a.Profile.SumOfSquares)
	assert.Equal(t, 0.0, a.Profile.StdDev)

	b := outcomes[1]
	assert.Equal(t, "b.example", b.Domain)
	assert.Equal(t, domain.OutcomeResolverFailure, b.Status)
	assert.Nil(t, b.Profile)
	assert.Contains(t, b.Err, "i/o timeout")

	_, ok := deps.Stats.Profile("b.example")
	assert.False(t, ok)
	_, err := repo.Get(context.Background(), "b.example")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	stored, err := repo.Get(context.Background(), "a.example")
	require.NoError(t, err)
	assert.Equal(t, *a.Profile, stored)
}

func TestProbeAllAccumulatesAcrossRounds(t *testing.T) {
	engine := newEngine(t)
	prober := &fakeProber{latency: map[string][]float64{"qq.com": {100, 200}}}
	repo := repositories.NewInMemoryProfileRepository()
	pool := NewProberPool(engine, []string{"qq.com"}, testDeps(prober, repo))
	defer pool.Stop()

	pool.ProbeAll(context.Background(), domain.Round{Number: 1})
	outcomes := pool.ProbeAll(context.Background(), domain.Round{Number: 2})

	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Profile)
	p := *outcomes[0].Profile
	assert.Equal(t, uint64(2), p.SampleCount)
	assert.Equal(t, 150.0, p.RunningMean)
	assert.Equal(t, 50000.0, p.SumOfSquares)
	assert.Equal(t, 50.0, p.StdDev)
	assert.False(t, outcomes[0].Created)
}

func TestProbeAllStoreFailureKeepsEngineCommit(t *testing.T) {
	engine := newEngine(t)
	prober := &fakeProber{latency: map[string][]float64{"msn.com": {42}}}
	deps := testDeps(prober, nil)
	deps.Repository = failingRepository{repositories.NewInMemoryProfileRepository()}
	pool := NewProberPool(engine, []string{"msn.com"}, deps)
	defer pool.Stop()

	outcomes := pool.ProbeAll(context.Background(), domain.Round{Number: 1})
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeStoreFailure, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Err, "disk full")

	p, ok := deps.Stats.Profile("msn.com")
	require.True(t, ok)
	assert.Equal(t, 42.0, p.RunningMean)
}

func TestProbeAllReportsNoReplyAfterStop(t *testing.T) {
	engine := newEngine(t)
	prober := &fakeProber{latency: map[string][]float64{"live.com": {1}}}
	pool := NewProberPool(engine, []string{"live.com"}, testDeps(prober, repositories.NewInMemoryProfileRepository()))
	pool.Stop()

	outcomes := pool.ProbeAll(context.Background(), domain.Round{Number: 1})
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeNoReply, outcomes[0].Status)
}

func TestProbeAllRunsDomainsConcurrently(t *testing.T) {
	engine := newEngine(t)
	names := []string{"a.example", "b.example", "c.example", "d.example"}
	prober := &fakeProber{latency: map[string][]float64{}, delay: 100 * time.Millisecond}
	for _, n := range names {
		prober.latency[n] = []float64{5}
	}
	pool := NewProberPool(engine, names, testDeps(prober, repositories.NewInMemoryProfileRepository()))
	defer pool.Stop()

	start := time.Now()
	outcomes := pool.ProbeAll(context.Background(), domain.Round{Number: 1})
	elapsed := time.Since(start)

	for i, o := range outcomes {
		assert.Equal(t, names[i], o.Domain)
		assert.Equal(t, domain.OutcomeSuccess, o.Status)
	}
	assert.Less(t, elapsed, 350*time.Millisecond)
}

func TestProbePublishesToEventBus(t *testing.T) {
	engine := newEngine(t)
	prober := &fakeProber{
		latency: map[string][]float64{},
		fail:    map[string]error{"yahoo.com": errors.New("refused")},
	}
	deps := testDeps(prober, repositories.NewInMemoryProfileRepository())
	ch := deps.EventBus.Subscribe()
	pool := NewProberPool(engine, []string{"yahoo.com"}, deps)
	defer pool.Stop()

	pool.ProbeAll(context.Background(), domain.Round{Number: 1})

	select {
	case ev := <-ch:
		assert.Equal(t, events.TypeProbeFailed, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestConsoleLoggerLogsProbeEvents(t *testing.T) {
	engine := newEngine(t)
	buf := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loggerPID := engine.Spawn(NewConsoleLogger(log), "console-logger")
	engine.Subscribe(loggerPID)
	defer engine.Poison(loggerPID)

	prober := &fakeProber{
		latency: map[string][]float64{"baidu.com": {12.5}},
		fail:    map[string]error{"google.com": context.DeadlineExceeded},
	}
	pool := NewProberPool(engine, []string{"baidu.com", "google.com"}, testDeps(prober, repositories.NewInMemoryProfileRepository()))
	defer pool.Stop()

	pool.ProbeAll(context.Background(), domain.Round{Number: 7})

	assert.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "sample recorded") &&
			strings.Contains(out, "domain=baidu.com") &&
			strings.Contains(out, "probe failed") &&
			strings.Contains(out, "reason=timeout")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopWaitsForQueuedProbesToCommit(t *testing.T) {
	engine := newEngine(t)
	prober := &fakeProber{latency: map[string][]float64{"bing.com": {30}}, delay: 150 * time.Millisecond}
	repo := repositories.NewInMemoryProfileRepository()
	pool := NewProberPool(engine, []string{"bing.com"}, testDeps(prober, repo))
	assert.Equal(t, []string{"bing.com"}, pool.Domains())

	// A fire-and-forget probe stands in for a round that already gave up on the reply.
	engine.Send(pool.pids["bing.com"], ProbeDomain{Round: domain.Round{Number: 1}})
	require.NoError(t, pool.Stop())

	p, err := repo.Get(context.Background(), "bing.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.SampleCount)
	assert.Equal(t, 30.0, p.RunningMean)
}

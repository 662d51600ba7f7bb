// Package stats keeps a streaming latency profile per domain.
//
// Each domain holds only its sample count, running mean and sum of squared
// latencies; no raw samples are retained. The variance is derived as
// sumOfSquares/n - mean², which can turn negative under floating point drift
// on long series. When that happens the series is reset and restarts from the
// current sample.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// ErrInvalidLatency is returned for negative, NaN or infinite samples.
var ErrInvalidLatency = errors.New("invalid latency sample")

// DefaultVarianceTolerance is the relative slack under which a negative
// variance is treated as rounding noise and clamped to zero.
const DefaultVarianceTolerance = 1e-9

// Update is the result of recording one sample.
type Update struct {
	Profile domain.DomainProfile
	Created bool
	Reset   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithVarianceTolerance sets the relative tolerance applied before a negative
// variance triggers a series reset. Zero means any negative variance resets.
func WithVarianceTolerance(tolerance float64) Option {
	return func(e *Engine) {
		if tolerance >= 0 && !math.IsNaN(tolerance) && !math.IsInf(tolerance, 0) {
			e.tolerance = tolerance
		}
	}
}

// Engine owns the per-domain aggregates. All mutation goes through RecordSample.
type Engine struct {
	mu        sync.RWMutex
	profiles  map[string]*domain.DomainProfile
	now       func() time.Time
	tolerance float64
}

// NewEngine returns an empty engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		profiles:  make(map[string]*domain.DomainProfile),
		now:       Now,
		tolerance: DefaultVarianceTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the current time in UTC truncated to microseconds, the
// precision every store can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// RecordSample folds one latency (milliseconds) into the domain's profile and
// returns the committed snapshot.
func (e *Engine) RecordSample(name string, latency float64) (Update, error) {
	if math.IsNaN(latency) || math.IsInf(latency, 0) || latency < 0 {
		return Update{}, fmt.Errorf("%w: %v for %s", ErrInvalidLatency, latency, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	p, ok := e.profiles[name]
	if !ok {
		p = &domain.DomainProfile{Domain: name}
		restart(p, latency, now)
		e.profiles[name] = p
		return Update{Profile: *p, Created: true}, nil
	}

	count := p.SampleCount + 1
	n := float64(count)
	newMean := (p.RunningMean*(n-1) + latency) / n
	newSumSq := p.SumOfSquares + latency*latency
	variance := newSumSq/n - newMean*newMean

	if variance < 0 {
		if -variance > e.tolerance*(newSumSq/n) {
			restart(p, latency, now)
			return Update{Profile: *p, Reset: true}, nil
		}
		variance = 0
	}

	p.SampleCount = count
	p.RunningMean = newMean
	p.SumOfSquares = newSumSq
	p.StdDev = math.Sqrt(variance)
	if now.Before(p.FirstSeenAt) {
		now = p.FirstSeenAt
	}
	p.LastUpdatedAt = now
	return Update{Profile: *p}, nil
}

func restart(p *domain.DomainProfile, latency float64, now time.Time) {
	p.SampleCount = 1
	p.RunningMean = latency
	p.SumOfSquares = latency * latency
	p.StdDev = 0
	p.FirstSeenAt = now
	p.LastUpdatedAt = now
}

// Profile returns a snapshot of the domain's profile.
func (e *Engine) Profile(name string) (domain.DomainProfile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.profiles[name]
	if !ok {
		return domain.DomainProfile{}, false
	}
	return *p, true
}

// Profiles returns snapshots of every profile sorted by domain.
func (e *Engine) Profiles() []domain.DomainProfile {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.DomainProfile, 0, len(e.profiles))
	for _, p := range e.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Restore seeds the engine with previously persisted profiles. Profiles that
// break the model invariants are skipped and returned so the caller can log them.
//
// The stored StdDev is not trusted; it is derived again from count, mean and
// sum of squares. Aggregates whose variance has drifted negative are still
// accepted, with StdDev 0, and the next sample resets their series through
// the same rule RecordSample applies to live drift.
func (e *Engine) Restore(profiles []domain.DomainProfile) (skipped []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range profiles {
		if !p.Valid() {
			skipped = append(skipped, p.Domain)
			continue
		}
		restored := p
		restored.StdDev = math.Sqrt(math.Max(p.Variance(), 0))
		e.profiles[p.Domain] = &restored
	}
	return skipped
}

// Package probers implements the latency probes behind ports.LatencyProber.
// Every prober reports latency in milliseconds.
package probers

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

// ErrProbeFailed wraps every measurement failure. Callers only need errors.Is
// against it; the wrapped cause is kept for logging.
var ErrProbeFailed = errors.New("probe failed")

const (
	maxLabelLen = 8
	alphabet    = "abcdefghijklmnopqrstuvwxyz"
)

// labeler prepends a random label to a name so every query misses resolver caches.
type labeler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLabeler(seed1, seed2 uint64) *labeler {
	return &labeler{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

func newRandomLabeler() *labeler {
	return newLabeler(rand.Uint64(), rand.Uint64())
}

// prefix returns "<1-8 random letters>.<name>".
func (l *labeler) prefix(name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.rnd.IntN(maxLabelLen) + 1
	b := make([]byte, n, n+1+len(name))
	for i := range b {
		b[i] = alphabet[l.rnd.IntN(len(alphabet))]
	}
	b = append(b, '.')
	b = append(b, name...)
	return string(b)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

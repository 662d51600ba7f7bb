package probers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// SystemProber times a lookup through the operating system resolver.
type SystemProber struct {
	resolver  *net.Resolver
	timeout   time.Duration
	cacheBust bool
	labeler   *labeler
}

func NewSystemProber(timeout time.Duration, cacheBust bool) *SystemProber {
	return &SystemProber{
		resolver:  net.DefaultResolver,
		timeout:   timeout,
		cacheBust: cacheBust,
		labeler:   newRandomLabeler(),
	}
}

// Measure resolves name and returns the wall-clock lookup time in ms. With
// cache busting the random name normally does not exist, so NXDOMAIN counts
// as an answer.
func (s *SystemProber) Measure(ctx context.Context, name string) (float64, error) {
	qname := name
	if s.cacheBust {
		qname = s.labeler.prefix(name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	_, err := s.resolver.LookupHost(ctx, qname)
	elapsed := time.Since(start)

	if err != nil {
		var dnsErr *net.DNSError
		if s.cacheBust && errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return millis(elapsed), nil
		}
		return 0, fmt.Errorf("%w: DNS resolution failed for %s: %w", ErrProbeFailed, qname, err)
	}
	return millis(elapsed), nil
}

package probers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewICMPProberFamily(t *testing.T) {
	assert.Equal(t, "ip", NewICMPProber(time.Second, false, "any").network)
	assert.Equal(t, "ip4", NewICMPProber(time.Second, false, "4").network)
	assert.Equal(t, "ip6", NewICMPProber(time.Second, false, "6").network)
}

func TestICMPProberUnresolvableName(t *testing.T) {
	p := NewICMPProber(200*time.Millisecond, false, "4")

	_, err := p.Measure(context.Background(), "no-such-host.invalid")
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestICMPProberLoopback(t *testing.T) {
	p := NewICMPProber(time.Second, false, "4")

	latency, err := p.Measure(context.Background(), "127.0.0.1")
	if err != nil {
		t.Skipf("unprivileged ping not permitted here: %v", err)
	}
	assert.GreaterOrEqual(t, latency, 0.0)
	assert.Less(t, latency, 1000.0)
}

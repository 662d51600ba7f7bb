package probers

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPProber measures a single echo round trip to the domain's address.
// Unprivileged mode uses UDP ping sockets, which Linux only allows when
// net.ipv4.ping_group_range covers the process group.
type ICMPProber struct {
	timeout    time.Duration
	privileged bool
	network    string
}

// NewICMPProber builds an ICMP prober. family is any, 4 or 6.
func NewICMPProber(timeout time.Duration, privileged bool, family string) *ICMPProber {
	network := "ip"
	switch family {
	case "4":
		network = "ip4"
	case "6":
		network = "ip6"
	}
	return &ICMPProber{timeout: timeout, privileged: privileged, network: network}
}

// Measure sends one echo request and returns the RTT in ms.
func (p *ICMPProber) Measure(ctx context.Context, name string) (float64, error) {
	pinger := probing.New(name)
	pinger.SetNetwork(p.network)
	pinger.SetPrivileged(p.privileged)
	pinger.Count = 1
	pinger.Timeout = p.timeout

	if err := pinger.Resolve(); err != nil {
		return 0, fmt.Errorf("%w: resolve %s: %w", ErrProbeFailed, name, err)
	}
	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("%w: ping %s: %w", ErrProbeFailed, name, err)
	}

	st := pinger.Statistics()
	if st.PacketsRecv == 0 {
		return 0, fmt.Errorf("%w: ping %s: no reply within %s", ErrProbeFailed, name, p.timeout)
	}
	return millis(st.AvgRtt), nil
}

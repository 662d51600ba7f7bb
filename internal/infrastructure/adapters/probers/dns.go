package probers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DNSConfig configures the wire-level DNS prober.
type DNSConfig struct {
	Server           string // host:port; empty means first nameserver of ResolvConf
	ResolvConf       string
	Net              string // udp or tcp
	Family           string // any, 4 or 6
	QueryType        string
	DNSSEC           bool
	CheckingDisabled bool
	CacheBust        bool
	Timeout          time.Duration
}

// DefaultDNSConfig sends SOA queries with the DO and CD
// bits set, cache busting on.
func DefaultDNSConfig() DNSConfig {
	return DNSConfig{
		ResolvConf:       "/etc/resolv.conf",
		Net:              "udp",
		Family:           "any",
		QueryType:        "SOA",
		DNSSEC:           true,
		CheckingDisabled: true,
		CacheBust:        true,
		Timeout:          2 * time.Second,
	}
}

// Validate checks the option values.
func (c DNSConfig) Validate() error {
	switch c.Net {
	case "udp", "tcp":
	default:
		return fmt.Errorf("dns net must be udp or tcp, got %q", c.Net)
	}
	switch c.Family {
	case "any", "4", "6":
	default:
		return fmt.Errorf("ip family must be any, 4 or 6, got %q", c.Family)
	}
	if _, ok := dns.StringToType[strings.ToUpper(c.QueryType)]; !ok {
		return fmt.Errorf("unknown query type %q", c.QueryType)
	}
	if c.Timeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.Server == "" && c.ResolvConf == "" {
		return errors.New("either a dns server or a resolv.conf path is required")
	}
	return nil
}

// DNSProber times a single query against one nameserver.
type DNSProber struct {
	client  *dns.Client
	server  string
	qtype   uint16
	cfg     DNSConfig
	labeler *labeler
}

// NewDNSProber builds a prober, reading the nameserver from resolv.conf when
// no server is configured.
func NewDNSProber(cfg DNSConfig) (*DNSProber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	server := cfg.Server
	if server == "" {
		conf, err := dns.ClientConfigFromFile(cfg.ResolvConf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", cfg.ResolvConf, err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameserver in %s", cfg.ResolvConf)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	network := cfg.Net
	if cfg.Family != "any" {
		network += cfg.Family
	}

	return &DNSProber{
		client: &dns.Client{
			Net:     network,
			Timeout: cfg.Timeout,
		},
		server:  server,
		qtype:   dns.StringToType[strings.ToUpper(cfg.QueryType)],
		cfg:     cfg,
		labeler: newRandomLabeler(),
	}, nil
}

// Server returns the nameserver address queries are sent to.
func (p *DNSProber) Server() string {
	return p.server
}

// Measure sends one query for name and returns the round-trip time in ms.
// Any response is a measurement except REFUSED, which means the server is not
// answering for us at all.
func (p *DNSProber) Measure(ctx context.Context, name string) (float64, error) {
	qname := dns.Fqdn(name)
	if p.cfg.CacheBust {
		qname = p.labeler.prefix(qname)
	}

	m := new(dns.Msg)
	m.SetQuestion(qname, p.qtype)
	m.RecursionDesired = true
	m.CheckingDisabled = p.cfg.CheckingDisabled
	if p.cfg.DNSSEC {
		m.SetEdns0(4096, true)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	r, rtt, err := p.client.ExchangeContext(ctx, m, p.server)
	if err != nil {
		return 0, fmt.Errorf("%w: %s via %s: %w", ErrProbeFailed, qname, p.server, err)
	}
	if r == nil {
		return 0, fmt.Errorf("%w: %s via %s: empty response", ErrProbeFailed, qname, p.server)
	}
	if r.Rcode == dns.RcodeRefused {
		return 0, fmt.Errorf("%w: %s via %s: %s", ErrProbeFailed, qname, p.server, dns.RcodeToString[r.Rcode])
	}
	return millis(rtt), nil
}

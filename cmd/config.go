package main

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/idna"

	"github.com/luispfcanales/daemon-dnsq/internal/application/scheduler"
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/adapters/probers"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/logger"
	"github.com/luispfcanales/daemon-dnsq/internal/infrastructure/repositories/postgres"
)

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Kind          string
	CSVPath       string
	Postgres      postgres.ConnConfig
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Timeout       time.Duration
}

// ProberConfig selects the latency source.
type ProberConfig struct {
	Kind           string
	DNS            probers.DNSConfig
	ICMPPrivileged bool
}

// AppConfig aggregates the configuration of every component.
type AppConfig struct {
	Scheduler         scheduler.Config
	Store             StoreConfig
	Prober            ProberConfig
	VarianceTolerance float64
	Resume            bool
	HTTPAddr          string
	Report            bool
	StdinExit         bool
	Log               logger.Options
	Email             domain.EmailConfig
	NotifyRecipients  []string
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Scheduler: scheduler.Config{
			Domains: append([]string(nil), domain.DefaultDomains...),
		},
		Store: StoreConfig{
			Kind:      "memory",
			CSVPath:   "profiles.csv",
			Postgres:  postgres.ConnConfig{Host: "localhost", Port: 5432, Database: "dnsq"},
			RedisAddr: "localhost:6379",
			Timeout:   5 * time.Second,
		},
		Prober: ProberConfig{
			Kind: "dns",
			DNS:  probers.DefaultDNSConfig(),
		},
		VarianceTolerance: stats.DefaultVarianceTolerance,
		Report:            true,
		Log: logger.Options{
			Service: AppName,
			Level:   "info",
			Format:  "text",
		},
		Email: domain.EmailConfig{Port: 587},
	}
}

// buildConfigFromCLI overlays the flags that were set on the defaults.
func buildConfigFromCLI(c *cli.Context) (*AppConfig, error) {
	cfg := DefaultConfig()

	seconds := c.Float64("interval")
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return nil, fmt.Errorf("interval must be a positive number of seconds, got %v", seconds)
	}
	cfg.Scheduler.Interval = time.Duration(seconds * float64(time.Second))
	cfg.Scheduler.RunImmediately = c.Bool("immediate")
	if c.IsSet("domain") {
		cfg.Scheduler.Domains = c.StringSlice("domain")
	}
	domains, err := normalizeDomains(cfg.Scheduler.Domains)
	if err != nil {
		return nil, err
	}
	cfg.Scheduler.Domains = domains

	cfg.Store.Kind = c.String("store")
	cfg.Store.CSVPath = c.String("csv-path")
	cfg.Store.Timeout = c.Duration("store-timeout")
	cfg.Store.Postgres = postgres.ConnConfig{
		URL:      c.String("db-url"),
		Host:     c.String("db-host"),
		Port:     c.Int("db-port"),
		User:     c.String("db-user"),
		Password: c.String("db-password"),
		Database: c.String("db-name"),
		SSLMode:  c.String("db-sslmode"),
	}
	cfg.Store.RedisAddr = c.String("redis-addr")
	cfg.Store.RedisPassword = c.String("redis-password")
	cfg.Store.RedisDB = c.Int("redis-db")

	cfg.Prober.Kind = c.String("prober")
	cfg.Prober.ICMPPrivileged = c.Bool("icmp-privileged")
	cfg.Prober.DNS.Server = c.String("dns-server")
	cfg.Prober.DNS.ResolvConf = c.String("resolv-conf")
	cfg.Prober.DNS.Net = c.String("dns-net")
	cfg.Prober.DNS.Family = c.String("ip-family")
	cfg.Prober.DNS.QueryType = strings.ToUpper(c.String("query-type"))
	cfg.Prober.DNS.DNSSEC = c.Bool("dnssec")
	cfg.Prober.DNS.CheckingDisabled = c.Bool("checking-disabled")
	cfg.Prober.DNS.CacheBust = c.Bool("cache-bust")
	cfg.Prober.DNS.Timeout = c.Duration("probe-timeout")

	cfg.VarianceTolerance = c.Float64("variance-tolerance")
	cfg.Resume = c.Bool("resume")
	cfg.HTTPAddr = c.String("http-addr")
	cfg.Report = c.Bool("report")
	cfg.StdinExit = c.Bool("stdin-exit")

	cfg.Log.Level = c.String("log-level")
	cfg.Log.Format = c.String("log-format")
	cfg.Log.File = c.String("log-file")

	cfg.Email = domain.EmailConfig{
		Host:     c.String("smtp-host"),
		Port:     c.Int("smtp-port"),
		Username: c.String("smtp-user"),
		Password: c.String("smtp-password"),
		From:     c.String("smtp-from"),
	}
	cfg.NotifyRecipients = c.StringSlice("notify")

	return cfg, nil
}

// Validate checks every component configuration before anything is started.
func (c *AppConfig) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}

	switch c.Store.Kind {
	case "memory":
	case "csv":
		if c.Store.CSVPath == "" {
			return errors.New("csv store needs --csv-path")
		}
	case "postgres":
		if _, err := c.Store.Postgres.DSN(); err != nil {
			return err
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("redis store needs --redis-addr")
		}
	default:
		return fmt.Errorf("unknown store %q, use memory, csv, postgres or redis", c.Store.Kind)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store timeout must be positive")
	}

	switch c.Prober.Kind {
	case "dns", "system", "icmp":
	default:
		return fmt.Errorf("unknown prober %q, use dns, system or icmp", c.Prober.Kind)
	}
	if err := c.Prober.DNS.Validate(); err != nil {
		return err
	}

	if c.VarianceTolerance < 0 || math.IsNaN(c.VarianceTolerance) || math.IsInf(c.VarianceTolerance, 0) {
		return fmt.Errorf("variance tolerance must be a finite non-negative number, got %v", c.VarianceTolerance)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if len(c.NotifyRecipients) > 0 && !c.Email.Enabled() {
		return errors.New("--notify needs --smtp-host and --smtp-from")
	}
	return nil
}

// normalizeDomains converts each name to its ASCII form, validates it and
// drops duplicates while keeping the first occurrence's position.
func normalizeDomains(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSuffix(strings.TrimSpace(raw), ".")
		if name == "" {
			return nil, errors.New("empty domain name")
		}
		ascii, err := idna.Lookup.ToASCII(name)
		if err != nil {
			return nil, fmt.Errorf("invalid domain %q: %w", raw, err)
		}
		ascii = strings.ToLower(ascii)
		if _, ok := dns.IsDomainName(ascii); !ok {
			return nil, fmt.Errorf("invalid domain %q", raw)
		}
		if seen[ascii] {
			continue
		}
		seen[ascii] = true
		out = append(out, ascii)
	}
	return out, nil
}

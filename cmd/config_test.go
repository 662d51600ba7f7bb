package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// parseFlags runs the real flag set and returns the built configuration.
func parseFlags(t *testing.T, args ...string) (*AppConfig, error) {
	t.Helper()
	var cfg *AppConfig
	var buildErr error
	app := &cli.App{
		Name:  AppName,
		Flags: createCliFlags(DefaultConfig()),
		Action: func(c *cli.Context) error {
			cfg, buildErr = buildConfigFromCLI(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{AppName}, args...)))
	return cfg, buildErr
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg, err := parseFlags(t, "--interval", "2.5")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2500*time.Millisecond, cfg.Scheduler.Interval)
	assert.Equal(t, domain.DefaultDomains, cfg.Scheduler.Domains)
	assert.False(t, cfg.Scheduler.RunImmediately)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, "dns", cfg.Prober.Kind)
	assert.Equal(t, "SOA", cfg.Prober.DNS.QueryType)
	assert.True(t, cfg.Prober.DNS.DNSSEC)
	assert.True(t, cfg.Prober.DNS.CacheBust)
	assert.True(t, cfg.Report)
	assert.Equal(t, 1e-9, cfg.VarianceTolerance)
}

func TestBuildConfigFromFlagsAndEnv(t *testing.T) {
	t.Setenv("DNSQ_STORE", "redis")
	t.Setenv("DNSQ_REDIS_ADDR", "cache:6380")

	cfg, err := parseFlags(t,
		"--interval", "10",
		"--domain", "Example.COM.",
		"--domain", "bücher.example",
		"--domain", "example.com",
		"--query-type", "aaaa",
		"--cache-bust=false",
		"--immediate",
		"--variance-tolerance", "0",
	)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"example.com", "xn--bcher-kva.example"}, cfg.Scheduler.Domains)
	assert.Equal(t, "redis", cfg.Store.Kind)
	assert.Equal(t, "cache:6380", cfg.Store.RedisAddr)
	assert.Equal(t, "AAAA", cfg.Prober.DNS.QueryType)
	assert.False(t, cfg.Prober.DNS.CacheBust)
	assert.True(t, cfg.Scheduler.RunImmediately)
	assert.Equal(t, 0.0, cfg.VarianceTolerance)
}

func TestBuildConfigRejectsBadInterval(t *testing.T) {
	_, err := parseFlags(t, "--interval", "0")
	assert.Error(t, err)
	_, err = parseFlags(t, "--interval", "-3")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		cfg := DefaultConfig()
		cfg.Scheduler.Interval = time.Second
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*AppConfig){
		"no domains":         func(c *AppConfig) { c.Scheduler.Domains = nil },
		"zero interval":      func(c *AppConfig) { c.Scheduler.Interval = 0 },
		"unknown store":      func(c *AppConfig) { c.Store.Kind = "sqlite" },
		"csv without path":   func(c *AppConfig) { c.Store.Kind = "csv"; c.Store.CSVPath = "" },
		"postgres no host":   func(c *AppConfig) { c.Store.Kind = "postgres"; c.Store.Postgres.Host = "" },
		"unknown prober":     func(c *AppConfig) { c.Prober.Kind = "http" },
		"bad dns net":        func(c *AppConfig) { c.Prober.DNS.Net = "quic" },
		"negative tolerance": func(c *AppConfig) { c.VarianceTolerance = -1 },
		"bad log level":      func(c *AppConfig) { c.Log.Level = "chatty" },
		"notify without smtp": func(c *AppConfig) {
			c.NotifyRecipients = []string{"ops@example.com"}
		},
		"zero store timeout": func(c *AppConfig) { c.Store.Timeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNormalizeDomains(t *testing.T) {
	got, err := normalizeDomains([]string{" google.com ", "GOOGLE.com.", "münchen.de"})
	require.NoError(t, err)
	assert.Equal(t, []string{"google.com", "xn--mnchen-3ya.de"}, got)

	for _, bad := range []string{"", "a..b", "exa mple.com", strings.Repeat("a", 64) + ".com"} {
		_, err := normalizeDomains([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestWatchStdin(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchStdin(ctx, strings.NewReader("status\n  EXIT \nignored\n"), cancel, log)
	assert.Error(t, ctx.Err())

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	watchStdin(ctx2, strings.NewReader("quit\n"), cancel2, log)
	assert.NoError(t, ctx2.Err())
}

func TestVersionCommand(t *testing.T) {
	app := createCliApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{AppName, "version"}))
	assert.True(t, strings.HasPrefix(out.String(), AppName+" "+AppVersion))
}

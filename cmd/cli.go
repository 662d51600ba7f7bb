package main

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"
)

const (
	AppName = "dnsq"
	AppDesc = "periodically measure DNS query latency and keep a running profile per domain"
)

// AppVersion is overridden at build time with -ldflags "-X main.AppVersion=...".
var AppVersion = "0.1.0-dev"

func env(name string) []string {
	return []string{"DNSQ_" + name}
}

func createCliApp() *cli.App {
	app := &cli.App{
		Name:     AppName,
		Version:  AppVersion,
		Usage:    AppDesc,
		Flags:    createCliFlags(DefaultConfig()),
		Action:   runApp,
		Commands: createCommands(),
	}
	return app
}

func createCliFlags(def *AppConfig) []cli.Flag {
	return []cli.Flag{
		// Scheduling
		&cli.Float64Flag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "seconds between the start of two rounds (required)",
			EnvVars: env("INTERVAL"),
		},
		&cli.StringSliceFlag{
			Name:    "domain",
			Aliases: []string{"d"},
			Usage:   "domain to monitor, repeatable (default: a built-in top-10 list)",
			EnvVars: env("DOMAINS"),
		},
		&cli.BoolFlag{
			Name:    "immediate",
			Usage:   "run the first round at start instead of after one interval",
			EnvVars: env("IMMEDIATE"),
		},
		&cli.Float64Flag{
			Name:    "variance-tolerance",
			Value:   def.VarianceTolerance,
			Usage:   "relative slack before a negative variance resets a series (0 = strict)",
			EnvVars: env("VARIANCE_TOLERANCE"),
		},

		// Store
		&cli.StringFlag{
			Name:    "store",
			Value:   def.Store.Kind,
			Usage:   "record store: memory, csv, postgres or redis",
			EnvVars: env("STORE"),
		},
		&cli.DurationFlag{
			Name:    "store-timeout",
			Value:   def.Store.Timeout,
			Usage:   "timeout of a single store write",
			EnvVars: env("STORE_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "resume",
			Usage:   "seed the profiles from the store at startup",
			EnvVars: env("RESUME"),
		},
		&cli.StringFlag{
			Name:    "csv-path",
			Value:   def.Store.CSVPath,
			Usage:   "csv store file",
			EnvVars: env("CSV_PATH"),
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "postgres connection url, overrides the discrete --db-* options",
			EnvVars: env("DB_URL"),
		},
		&cli.StringFlag{
			Name:    "db-host",
			Value:   def.Store.Postgres.Host,
			EnvVars: env("DB_HOST"),
		},
		&cli.IntFlag{
			Name:    "db-port",
			Value:   def.Store.Postgres.Port,
			EnvVars: env("DB_PORT"),
		},
		&cli.StringFlag{
			Name:    "db-user",
			EnvVars: env("DB_USER"),
		},
		&cli.StringFlag{
			Name:    "db-password",
			EnvVars: env("DB_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "db-name",
			Value:   def.Store.Postgres.Database,
			EnvVars: env("DB_NAME"),
		},
		&cli.StringFlag{
			Name:    "db-sslmode",
			Value:   "disable",
			EnvVars: env("DB_SSLMODE"),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Value:   def.Store.RedisAddr,
			EnvVars: env("REDIS_ADDR"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			EnvVars: env("REDIS_PASSWORD"),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			EnvVars: env("REDIS_DB"),
		},

		// Prober
		&cli.StringFlag{
			Name:    "prober",
			Value:   def.Prober.Kind,
			Usage:   "latency source: dns, system or icmp",
			EnvVars: env("PROBER"),
		},
		&cli.StringFlag{
			Name:    "dns-server",
			Usage:   "nameserver host[:port] (default: first nameserver of --resolv-conf)",
			EnvVars: env("DNS_SERVER"),
		},
		&cli.StringFlag{
			Name:    "resolv-conf",
			Value:   def.Prober.DNS.ResolvConf,
			EnvVars: env("RESOLV_CONF"),
		},
		&cli.StringFlag{
			Name:    "dns-net",
			Value:   def.Prober.DNS.Net,
			Usage:   "udp or tcp",
			EnvVars: env("DNS_NET"),
		},
		&cli.StringFlag{
			Name:    "ip-family",
			Value:   def.Prober.DNS.Family,
			Usage:   "any, 4 or 6",
			EnvVars: env("IP_FAMILY"),
		},
		&cli.StringFlag{
			Name:    "query-type",
			Value:   def.Prober.DNS.QueryType,
			EnvVars: env("QUERY_TYPE"),
		},
		&cli.BoolFlag{
			Name:    "dnssec",
			Value:   def.Prober.DNS.DNSSEC,
			Usage:   "set the EDNS0 DO bit",
			EnvVars: env("DNSSEC"),
		},
		&cli.BoolFlag{
			Name:    "checking-disabled",
			Value:   def.Prober.DNS.CheckingDisabled,
			Usage:   "set the CD bit",
			EnvVars: env("CHECKING_DISABLED"),
		},
		&cli.BoolFlag{
			Name:    "cache-bust",
			Value:   def.Prober.DNS.CacheBust,
			Usage:   "prepend a random label so resolvers cannot answer from cache",
			EnvVars: env("CACHE_BUST"),
		},
		&cli.DurationFlag{
			Name:    "probe-timeout",
			Value:   def.Prober.DNS.Timeout,
			EnvVars: env("PROBE_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "icmp-privileged",
			Usage:   "use raw ICMP sockets instead of unprivileged datagram pings",
			EnvVars: env("ICMP_PRIVILEGED"),
		},

		// Surfaces
		&cli.StringFlag{
			Name:    "http-addr",
			Usage:   "listen address of the HTTP API, empty disables it",
			EnvVars: env("HTTP_ADDR"),
		},
		&cli.BoolFlag{
			Name:    "report",
			Value:   def.Report,
			Usage:   "print the profile table after every round",
			EnvVars: env("REPORT"),
		},
		&cli.BoolFlag{
			Name:    "stdin-exit",
			Usage:   "stop when \"exit\" is typed on stdin",
			EnvVars: env("STDIN_EXIT"),
		},

		// Logging
		&cli.StringFlag{
			Name:    "log-level",
			Value:   def.Log.Level,
			EnvVars: env("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   def.Log.Format,
			Usage:   "text or json",
			EnvVars: env("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "also append logs to this file",
			EnvVars: env("LOG_FILE"),
		},

		// Notifications
		&cli.StringFlag{
			Name:    "smtp-host",
			EnvVars: env("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   def.Email.Port,
			EnvVars: env("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-user",
			EnvVars: env("SMTP_USER"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			EnvVars: env("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			EnvVars: env("SMTP_FROM"),
		},
		&cli.StringSliceFlag{
			Name:    "notify",
			Usage:   "mail start and stop notifications to this address, repeatable",
			EnvVars: env("NOTIFY"),
		},
	}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "version",
			Usage: "print version information",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s %s (%s %s/%s)\n",
					AppName, AppVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
				return nil
			},
		},
	}
}

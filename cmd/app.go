package cmd

import (
	"time"

	"github.com/urfave/cli/v2"
)

// NewApp wires the commands and flags. Settings left unset on the command line
// come from the environment, see config.Load.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "airquality",
		Usage: "fetch OpenAQ sensor readings into parquet files and audit them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "zap log level, overrides LOG_LEVEL",
			},
			&cli.StringFlag{
				Name:  "registry",
				Usage: "station registry YAML, overrides STATION_REGISTRY",
			},
			&cli.StringFlag{
				Name:  "pushgateway-url",
				Usage: "push run metrics to this Prometheus Pushgateway",
			},
			&cli.StringFlag{
				Name:  "database-url",
				Usage: "mirror fetched batches into this Postgres database",
			},
			&cli.StringFlag{
				Name:  "migrations-folder",
				Usage: "folder holding the archive schema migrations",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "fetch one station's readings for a time window",
				Action: FetchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "station",
						Aliases:  []string{"s"},
						Usage:    "station key from the registry",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "window length in days ending now, overrides DAYS_BACK",
					},
					&cli.StringFlag{
						Name:  "start",
						Usage: "window start, YYYY-MM-DD or RFC 3339",
					},
					&cli.StringFlag{
						Name:  "end",
						Usage: "window end, RFC 3339 or YYYY-MM-DD which includes that whole day (default now)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "parquet output path (default data/<station>.parquet)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "per request timeout, overrides HTTP_TIMEOUT",
					},
					&cli.IntFlag{
						Name:  "retries",
						Usage: "attempts per request, overrides RETRY_ATTEMPTS",
					},
				},
			},
			{
				Name:   "quality",
				Usage:  "audit a fetched parquet file",
				Action: QualityCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "parquet file to check",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "station",
						Usage: "compare against the parameters configured for this station (default the station recorded in the file)",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "also write the JSON report to this path",
					},
				},
			},
			{
				Name:   "discover",
				Usage:  "list the sensors of an OpenAQ location and print a registry snippet",
				Action: DiscoverCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "location name to search for, excludes --location-id",
					},
					&cli.Int64Flag{
						Name:  "location-id",
						Usage: "location id, excludes --name",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "per request timeout, overrides HTTP_TIMEOUT",
					},
				},
			},
			{
				Name:   "stations",
				Usage:  "list the stations in the registry",
				Action: StationsCommand,
			},
			{
				Name:   "prune",
				Usage:  "delete archived rows whose window ended before now minus --older-than",
				Action: PruneCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Value: 30 * 24 * time.Hour,
					},
				},
			},
		},
	}
}

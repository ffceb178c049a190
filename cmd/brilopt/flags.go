package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/you-not-fish/brilopt/internal/passes"
)

const (
	globalVerify        = "verify"
	globalDumpBefore    = "dump-before"
	globalDumpAfter     = "dump-after"
	globalDumpFunc      = "dump-func"
	globalWorkers       = "workers"
	globalMaxIterations = "max-iterations"
	globalLogLevel      = "log-level"
	globalMetrics       = "metrics"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  globalVerify,
			Usage: "Verify block invariants before and after each pass",
		},
		&cli.StringFlag{
			Name:  globalDumpBefore,
			Usage: "Dump blocks to stderr before the named pass (name or \"*\")",
		},
		&cli.StringFlag{
			Name:  globalDumpAfter,
			Usage: "Dump blocks to stderr after the named pass (name or \"*\")",
		},
		&cli.StringFlag{
			Name:  globalDumpFunc,
			Usage: "Only dump the named function",
		},
		&cli.IntFlag{
			Name:  globalWorkers,
			Usage: "Number of functions optimized concurrently. Zero keeps the configured value",
		},
		&cli.IntFlag{
			Name:  globalMaxIterations,
			Usage: "Fixpoint iteration cap per block and per program. Zero keeps the configured value",
		},
		&cli.StringFlag{
			Name:  globalLogLevel,
			Value: "warn",
			Usage: "Minimum log level written to stderr: debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  globalMetrics,
			Usage: "Write metrics in Prometheus text format to stderr on exit",
		},
	}
}

const (
	tdceDeadDefs   = "dead-defs"
	tdceKilledDefs = "killed-defs"
	tdceAllOpts    = "all-opts"
)

func tdceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  tdceDeadDefs,
			Usage: "Remove definitions that are never read",
		},
		&cli.BoolFlag{
			Name:  tdceKilledDefs,
			Usage: "Remove definitions overwritten in the same block before any read",
		},
		&cli.BoolFlag{
			Name:  tdceAllOpts,
			Usage: "Enable every tdce strategy",
		},
	}
}

const (
	optConfig = "config"
	optPasses = "passes"
)

func optFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    optConfig,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML pipeline config",
		},
		&cli.StringSliceFlag{
			Name:  optPasses,
			Usage: "Comma-separated pass list overriding the config; known passes: " + strings.Join(passes.Names, ", "),
		},
	}
}

// Package main implements the brilopt command: local optimizations over
// Bril programs read as JSON from stdin and written as JSON to stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/VictoriaMetrics/metrics"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you-not-fish/brilopt/internal/bril"
	"github.com/you-not-fish/brilopt/internal/cfg"
	"github.com/you-not-fish/brilopt/internal/config"
	"github.com/you-not-fish/brilopt/internal/driver"
	"github.com/you-not-fish/brilopt/internal/passes"
)

// Version information
const Version = "0.1.0-dev"

var errColor = color.New(color.FgRed, color.Bold)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line args and returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := newApp(stdin, stdout, stderr)
	if err := app.Run(args); err != nil {
		errColor.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:      "brilopt",
		Usage:     "Local optimizer for Bril programs",
		Version:   fmt.Sprintf("%s (%s)", Version, runtime.Version()),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		After: func(c *cli.Context) error {
			if c.Bool(globalMetrics) {
				metrics.WritePrometheus(c.App.ErrWriter, false)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "cfg",
				Usage:  "Emit the program with the basic blocks of every function",
				Action: runCFG,
			},
			passCommand("lvn", "Local value numbering"),
			passCommand("cfold", "Constant folding over value numbers"),
			passCommand("idfold", "Algebraic identity folding over value numbers"),
			{
				Name:  "tdce",
				Usage: "Trivial dead code elimination; without flags the program passes through unchanged",
				Flags: tdceFlags(),
				Action: func(c *cli.Context) error {
					conf := config.Default()
					conf.Passes = []string{"tdce"}
					conf.Fixpoint = false
					all := c.Bool(tdceAllOpts)
					conf.DeadDefs = all || c.Bool(tdceDeadDefs)
					conf.KilledDefs = all || c.Bool(tdceKilledDefs)
					return runPipeline(c, conf)
				},
			},
			{
				Name:  "opt",
				Usage: "Run a pass pipeline to a fixpoint",
				Flags: optFlags(),
				Action: func(c *cli.Context) error {
					conf := config.Default()
					if path := c.String(optConfig); path != "" {
						var err error
						if conf, err = config.Load(path); err != nil {
							return err
						}
					}
					if names := c.StringSlice(optPasses); len(names) > 0 {
						conf.Passes = names
					}
					return runPipeline(c, conf)
				},
			},
		},
	}
	return app
}

// passCommand returns a subcommand running the named pass once over every
// function.
func passCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			conf := config.Default()
			conf.Passes = []string{name}
			conf.Fixpoint = false
			return runPipeline(c, conf)
		},
	}
}

func runCFG(c *cli.Context) error {
	prog, err := readProgram(c)
	if err != nil {
		return err
	}
	cp, err := cfg.BuildProgram(prog)
	if err != nil {
		return err
	}
	return writeJSON(c, cfg.MarshalProgram(cp))
}

// runPipeline applies the global flag overrides to conf and runs it over the
// program on stdin.
func runPipeline(c *cli.Context, conf *config.Config) error {
	if n := c.Int(globalWorkers); n != 0 {
		conf.Workers = n
	}
	if n := c.Int(globalMaxIterations); n != 0 {
		conf.MaxIterations = n
	}
	opts, err := driver.NewOptions(conf)
	if err != nil {
		return err
	}
	opts.Debug = passes.Config{
		DumpBefore: c.String(globalDumpBefore),
		DumpAfter:  c.String(globalDumpAfter),
		Verify:     c.Bool(globalVerify),
		DumpFunc:   c.String(globalDumpFunc),
		Out:        c.App.ErrWriter,
	}

	logger, err := newLogger(c.String(globalLogLevel), c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	opts.Logger = logger

	prog, err := readProgram(c)
	if err != nil {
		return err
	}
	out, st, err := driver.Run(context.Background(), prog, opts)
	if err != nil {
		return err
	}
	logger.Info("optimized program",
		zap.Strings("passes", conf.Passes),
		zap.Int("iterations", st.Iterations),
		zap.Bool("changed", st.Changed),
		zap.Int("instrs_before", prog.NumInstrs()),
		zap.Int("instrs_after", out.NumInstrs()))
	return writeJSON(c, bril.Marshal(out))
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", globalLogLevel, err)
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

func readProgram(c *cli.Context) (*bril.Program, error) {
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read program: %w", err)
	}
	return bril.Parse(data)
}

func writeJSON(c *cli.Context, data []byte) error {
	data = append(data, '\n')
	_, err := c.App.Writer.Write(data)
	return err
}

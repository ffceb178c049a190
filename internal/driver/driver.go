// Package driver runs a pass pipeline over a whole program.
package driver

import (
	"context"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you-not-fish/brilopt/internal/bril"
	"github.com/you-not-fish/brilopt/internal/cfg"
	"github.com/you-not-fish/brilopt/internal/config"
	"github.com/you-not-fish/brilopt/internal/passes"
)

var (
	iterationsHistogram = metrics.NewHistogram(`brilopt_fixpoint_iterations`)
	runDuration         = metrics.NewSummary(`brilopt_run_duration_seconds`)
	functionsTotal      = metrics.NewCounter(`brilopt_functions_total`)
)

// Options control a pipeline run.
type Options struct {
	Passes []passes.Pass

	// Workers bounds the functions optimized concurrently; <= 0 means one.
	Workers int

	// Fixpoint re-runs the pipeline until nothing changes, at most
	// MaxIterations times.
	Fixpoint      bool
	MaxIterations int

	// Debug holds the dump and verify hooks of passes.Run.
	Debug passes.Config

	// Logger receives per-iteration debug events; nil disables logging.
	Logger *zap.Logger
}

// NewOptions builds run options from c.
func NewOptions(c *config.Config) (Options, error) {
	if err := c.Validate(); err != nil {
		return Options{}, err
	}
	ps, err := passes.Pipeline(c.Passes, c.PassOptions())
	if err != nil {
		return Options{}, err
	}
	return Options{
		Passes:        ps,
		Workers:       c.Workers,
		Fixpoint:      c.Fixpoint,
		MaxIterations: c.MaxIterations,
	}, nil
}

// Stats describes a finished run.
type Stats struct {
	Iterations int  // pipeline rounds run
	Changed    bool // whether the output differs from the input
}

// Run applies the pipeline to every function of prog and returns the
// optimized program. prog itself is not modified.
//
// Each round builds the CFG of every function, threading one block counter
// through the program, runs the passes on each function independently and
// flattens the result. The context is checked between rounds and before
// each function.
func Run(ctx context.Context, prog *bril.Program, opts Options) (*bril.Program, Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = passes.DefaultMaxIterations
	}

	startTime := time.Now()
	defer runDuration.UpdateDuration(startTime)

	var st Stats
	cur := prog
	for {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		st.Iterations++

		next, changed, err := round(ctx, cur, opts, workers)
		if err != nil {
			return nil, st, err
		}
		cur = next
		st.Changed = st.Changed || changed
		logger.Debug("pipeline round finished",
			zap.Int("iteration", st.Iterations),
			zap.Bool("changed", changed),
			zap.Int("instrs", cur.NumInstrs()))

		if !changed || !opts.Fixpoint {
			break
		}
		if st.Iterations >= maxIter {
			return nil, st, bril.Errorf(bril.ErrNonTermination, "program still changing after %d rounds", maxIter)
		}
	}
	iterationsHistogram.Update(float64(st.Iterations))
	logger.Debug("pipeline finished",
		zap.Int("iterations", st.Iterations),
		zap.Bool("changed", st.Changed),
		zap.Duration("duration", time.Since(startTime)))
	return cur, st, nil
}

// round runs the pipeline once over every function of p.
func round(ctx context.Context, p *bril.Program, opts Options, workers int) (*bril.Program, bool, error) {
	cp, err := cfg.BuildProgram(p)
	if err != nil {
		return nil, false, err
	}

	changed := atomic.NewBool(false)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range cp.Funcs {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ch, err := passes.Run(f, opts.Passes, opts.Debug)
			if err != nil {
				return bril.InFunc(err, f.Name(), "")
			}
			functionsTotal.Inc()
			if ch {
				changed.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return cp.Flatten(), changed.Load(), nil
}

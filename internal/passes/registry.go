package passes

import (
	"fmt"
	"strings"
)

// Options parameterize the passes built by New.
type Options struct {
	MaxIterations int  // per-block fixpoint cap of the folding passes
	DeadDefs      bool // tdce: remove unread definitions
	KilledDefs    bool // tdce: remove overwritten definitions
}

var registry = map[string]func(Options) Pass{
	"lvn":    func(Options) Pass { return NewLVN() },
	"cfold":  func(o Options) Pass { return NewConstFold(o.MaxIterations) },
	"idfold": func(o Options) Pass { return NewIdentityFold(o.MaxIterations) },
	"tdce":   func(o Options) Pass { return NewTDCE(o.DeadDefs, o.KilledDefs) },
}

// Names lists the registered passes in the default pipeline order.
var Names = []string{"lvn", "cfold", "idfold", "tdce"}

// New returns the pass registered under name.
func New(name string, opts Options) (Pass, error) {
	mk, ok := registry[name]
	if !ok {
		return Pass{}, fmt.Errorf("unknown pass %q; known passes: %s", name, strings.Join(Names, ", "))
	}
	return mk(opts), nil
}

// Pipeline returns the named passes in order.
func Pipeline(names []string, opts Options) ([]Pass, error) {
	ps := make([]Pass, 0, len(names))
	for _, name := range names {
		p, err := New(name, opts)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

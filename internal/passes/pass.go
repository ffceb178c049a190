package passes

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/you-not-fish/brilopt/internal/cfg"
)

// Pass describes a single optimization pass over one function.
// Fn reports whether it changed the function.
type Pass struct {
	Name string
	Fn   func(f *cfg.Func) (bool, error)
}

// Config controls pass execution behavior.
type Config struct {
	DumpBefore string    // dump blocks before this pass ("*" for all)
	DumpAfter  string    // dump blocks after this pass ("*" for all)
	Verify     bool      // verify blocks before/after each pass
	DumpFunc   string    // restrict dumps to this function name
	Out        io.Writer // dump destination; os.Stderr if nil
}

// dumpMu serializes dump output of functions run concurrently.
var dumpMu sync.Mutex

// Run executes the given passes on f in order and reports whether any of
// them changed it. Dumps of one call are written to c.Out in one piece
// when it returns.
func Run(f *cfg.Func, passes []Pass, c Config) (bool, error) {
	out := c.Out
	if out == nil {
		out = os.Stderr
	}
	var dump bytes.Buffer
	defer func() {
		if dump.Len() == 0 {
			return
		}
		dumpMu.Lock()
		defer dumpMu.Unlock()
		dump.WriteTo(out) //nolint:errcheck
	}()

	changed := false
	for _, p := range passes {
		if shouldDump(c.DumpBefore, p.Name) && matchFunc(c.DumpFunc, f.Name()) {
			fmt.Fprintf(&dump, "--- before %s (%s) ---\n", p.Name, f.Name())
			cfg.Fprint(&dump, f)
			dump.WriteByte('\n')
		}

		if c.Verify {
			if err := cfg.Verify(f); err != nil {
				return changed, fmt.Errorf("verify before %s: %w", p.Name, err)
			}
		}

		ch, err := p.Fn(f)
		if err != nil {
			return changed, fmt.Errorf("%s: %w", p.Name, err)
		}
		passRuns(p.Name).Inc()
		changed = changed || ch

		if c.Verify {
			if err := cfg.Verify(f); err != nil {
				return changed, fmt.Errorf("verify after %s: %w", p.Name, err)
			}
		}

		if shouldDump(c.DumpAfter, p.Name) && matchFunc(c.DumpFunc, f.Name()) {
			fmt.Fprintf(&dump, "--- after %s (%s) ---\n", p.Name, f.Name())
			cfg.Fprint(&dump, f)
			dump.WriteByte('\n')
		}
	}
	return changed, nil
}

func shouldDump(pattern, name string) bool {
	return pattern == "*" || pattern == name
}

func matchFunc(filter, name string) bool {
	return filter == "" || filter == name
}

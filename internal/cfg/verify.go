package cfg

import (
	"fmt"
	"slices"
	"strings"

	"github.com/you-not-fish/brilopt/internal/bril"
)

// Verify checks the structural integrity of a function's blocks.
// It returns an error describing all violations found, or nil if valid.
func Verify(f *Func) error {
	var errs []string

	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if len(f.Blocks) == 0 {
		add("func %s: no blocks", f.Name())
		return combineErrors(errs)
	}

	names := make(map[string]int, len(f.Blocks))
	for i, b := range f.Blocks {
		// 1. Block names are unique
		if j, dup := names[b.Name]; dup {
			add("func %s, %s: name also used by block #%d", f.Name(), b, j)
		}
		names[b.Name] = i
	}

	for i, b := range f.Blocks {
		for j, in := range b.Instrs {
			// 2. Only the first instruction may be a label, and it names the block
			if l, ok := in.(*bril.Label); ok {
				if j != 0 {
					add("func %s, %s: label %s at index %d", f.Name(), b, l.Name, j)
				} else if l.Name != b.Name {
					add("func %s, %s: opened by label %s", f.Name(), b, l.Name)
				}
			}

			// 3. Only the last instruction may be a control
			if bril.IsTerminator(in) && j != len(b.Instrs)-1 {
				add("func %s, %s: %s at index %d is not last", f.Name(), b, in, j)
			}
		}

		// 4. Successors exist
		for _, s := range b.Succs {
			if _, ok := names[s]; !ok {
				add("func %s, %s: successor %s not in function", f.Name(), b, s)
			}
		}

		// 5. Successors agree with the terminator
		if b.Terminated() {
			last := b.Instrs[len(b.Instrs)-1]
			if want := bril.Targets(last); !slices.Equal(b.Succs, want) {
				add("func %s, %s: succs %v, terminator %s wants %v", f.Name(), b, b.Succs, last, want)
			}
			continue
		}
		switch {
		case len(b.Succs) > 1:
			add("func %s, %s: unterminated block has %d succs, want at most 1", f.Name(), b, len(b.Succs))
		case len(b.Succs) == 1 && (i+1 >= len(f.Blocks) || f.Blocks[i+1].Name != b.Succs[0]):
			add("func %s, %s: fallthrough to %s is not the next block", f.Name(), b, b.Succs[0])
		}
	}

	return combineErrors(errs)
}

// combineErrors creates an error from a list of error strings, or returns nil.
func combineErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("CFG verification failed:\n  %s", strings.Join(errs, "\n  "))
}

package passes

import (
	"github.com/you-not-fish/brilopt/internal/bril"
	"github.com/you-not-fish/brilopt/internal/cfg"
)

// NewTDCE returns the trivial dead code elimination pass. deadDefs enables
// removal of definitions no instruction reads; killedDefs enables removal
// of definitions overwritten in their block before being read. With
// neither enabled the pass changes nothing.
func NewTDCE(deadDefs, killedDefs bool) Pass {
	return Pass{Name: "tdce", Fn: func(f *cfg.Func) (bool, error) {
		total := 0
		for {
			n := 0
			if deadDefs {
				n += DeadDefs(f)
			}
			if killedDefs {
				n += KilledDefs(f)
			}
			if n == 0 {
				break
			}
			total += n
		}
		Rewrites("tdce").Add(total)
		return total > 0, nil
	}}
}

// DeadDefs repeatedly removes pure definitions whose destination is never
// read anywhere in f, and returns the number removed.
func DeadDefs(f *cfg.Func) int {
	removed := 0
	for {
		used := make(map[string]bool)
		for _, b := range f.Blocks {
			for _, in := range b.Instrs {
				if bril.OpOf(in) == bril.OpConst {
					continue
				}
				for _, a := range in.Operands() {
					used[a] = true
				}
			}
		}

		n := 0
		for _, b := range f.Blocks {
			n += filter(b, func(i int, in bril.Instr) bool {
				d, ok := bril.Dest(in)
				return !ok || used[d] || bril.IsImpure(bril.OpOf(in))
			})
		}
		if n == 0 {
			return removed
		}
		removed += n
	}
}

// KilledDefs repeatedly removes pure definitions that are overwritten
// later in the same block without being read in between, and returns the
// number removed.
func KilledDefs(f *cfg.Func) int {
	removed := 0
	for _, b := range f.Blocks {
		for {
			dead := make(map[int]bool)
			last := make(map[string]int) // unread pure definition of each name
			for i, in := range b.Instrs {
				for _, a := range in.Operands() {
					delete(last, a)
				}
				d, ok := bril.Dest(in)
				if !ok {
					continue
				}
				if j, ok := last[d]; ok {
					dead[j] = true
				}
				if bril.IsImpure(bril.OpOf(in)) {
					delete(last, d)
				} else {
					last[d] = i
				}
			}
			if len(dead) == 0 {
				break
			}
			removed += filter(b, func(i int, _ bril.Instr) bool { return !dead[i] })
		}
	}
	return removed
}

// filter keeps the instructions of b for which keep returns true and
// returns the number dropped.
func filter(b *cfg.Block, keep func(i int, in bril.Instr) bool) int {
	out := make([]bril.Instr, 0, len(b.Instrs))
	for i, in := range b.Instrs {
		if keep(i, in) {
			out = append(out, in)
		}
	}
	n := len(b.Instrs) - len(out)
	if n > 0 {
		b.Instrs = out
	}
	return n
}

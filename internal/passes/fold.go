package passes

import (
	"github.com/you-not-fish/brilopt/internal/bril"
	"github.com/you-not-fish/brilopt/internal/cfg"
	"github.com/you-not-fish/brilopt/internal/lvn"
)

// DefaultMaxIterations bounds every fixpoint loop when no cap is given.
const DefaultMaxIterations = 100

// A Rule rewrites one numbered instruction. args holds the value numbers
// of in's operands in t. It returns the replacement and true, or false to
// keep in.
type Rule func(in bril.Instr, args []int, t *lvn.Table) (bril.Instr, bool)

// FoldBlock numbers a block, applies rule to every instruction and repeats
// on the result until rule rewrites nothing. It returns the final numbered
// block and the number of rewrites made.
//
// maxIter bounds the rewriting rounds; one more round renumbers the result
// and must find nothing left to rewrite, or FoldBlock fails with
// bril.ErrNonTermination. maxIter <= 0 means DefaultMaxIterations.
func FoldBlock(instrs []bril.Instr, scope *lvn.Scope, rule Rule, maxIter int) ([]bril.Instr, int, error) {
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	rewrites := 0
	for round := 0; ; round++ {
		res, err := lvn.Process(instrs, scope)
		if err != nil {
			return nil, rewrites, err
		}
		lvnAliases.Add(res.Aliases)
		if rule == nil {
			return res.Instrs, rewrites, nil
		}

		var out []bril.Instr
		for i, in := range res.Instrs {
			r, ok := rule(in, res.Args[i], res.Table)
			if !ok {
				continue
			}
			if out == nil {
				out = append([]bril.Instr(nil), res.Instrs...)
			}
			out[i] = r
			rewrites++
		}
		if out == nil {
			return res.Instrs, rewrites, nil
		}
		if round == maxIter {
			return nil, rewrites, bril.Errorf(bril.ErrNonTermination, "block still changing after %d rounds", maxIter)
		}
		instrs = out
	}
}

// foldFunc runs FoldBlock over every block of f and reports the number of
// instructions that differ afterwards.
func foldFunc(f *cfg.Func, rule Rule, maxIter int) (int, error) {
	scope := lvn.NewScope(f.Function())
	diff := 0
	for _, b := range f.Blocks {
		out, _, err := FoldBlock(b.Instrs, scope, rule, maxIter)
		if err != nil {
			return diff, bril.InFunc(err, f.Name(), b.Name)
		}
		if n := countChanged(b.Instrs, out); n > 0 {
			diff += n
			b.Instrs = out
			resetSuccs(b)
		}
	}
	return diff, nil
}

// resetSuccs recomputes the edges of a block whose terminator may have
// been rewritten. A fallthrough edge is left alone.
func resetSuccs(b *cfg.Block) {
	if b.Terminated() {
		b.Succs = bril.Targets(b.Instrs[len(b.Instrs)-1])
	}
}

// countChanged returns how many positions of a and b differ, counting
// surplus instructions of the longer list.
func countChanged(a, b []bril.Instr) int {
	n := 0
	for i := 0; i < len(a) && i < len(b); i++ {
		if !bril.Equal(a[i], b[i]) {
			n++
		}
	}
	if len(a) > len(b) {
		return n + len(a) - len(b)
	}
	return n + len(b) - len(a)
}

// NewLVN returns the pass writing numbered blocks back.
func NewLVN() Pass {
	return Pass{Name: "lvn", Fn: func(f *cfg.Func) (bool, error) {
		n, err := foldFunc(f, nil, 1)
		if err != nil {
			return false, err
		}
		Rewrites("lvn").Add(n)
		return n > 0, nil
	}}
}

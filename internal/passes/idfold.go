package passes

import (
	"github.com/you-not-fish/brilopt/internal/bril"
	"github.com/you-not-fish/brilopt/internal/cfg"
	"github.com/you-not-fish/brilopt/internal/lvn"
)

// NewIdentityFold returns the algebraic identity folding pass.
func NewIdentityFold(maxIter int) Pass {
	return Pass{Name: "idfold", Fn: func(f *cfg.Func) (bool, error) {
		n, err := foldFunc(f, IdentityFold, maxIter)
		if err != nil {
			return false, err
		}
		Rewrites("idfold").Add(n)
		return n > 0, nil
	}}
}

// IdentityFold replaces operations that return one of their operands with
// a copy of it: x+0, 0+x, x*1, 1*x, x/1, x-0, and x&x, x|x.
func IdentityFold(in bril.Instr, args []int, t *lvn.Table) (bril.Instr, bool) {
	v, ok := in.(*bril.Value)
	if !ok || len(args) != 2 {
		return nil, false
	}
	isInt := func(vn int, want int64) bool {
		lit, ok := t.Literal(vn)
		return ok && !lit.IsBool() && lit.Int() == want
	}
	copyArg := func(i int) (bril.Instr, bool) {
		return bril.NewID(v.Dest, v.Type, v.Args[i]), true
	}

	switch v.Op {
	case bril.OpAdd:
		if isInt(args[1], 0) {
			return copyArg(0)
		}
		if isInt(args[0], 0) {
			return copyArg(1)
		}
	case bril.OpMul:
		if isInt(args[1], 1) {
			return copyArg(0)
		}
		if isInt(args[0], 1) {
			return copyArg(1)
		}
	case bril.OpSub:
		if isInt(args[1], 0) {
			return copyArg(0)
		}
	case bril.OpDiv:
		if isInt(args[1], 1) {
			return copyArg(0)
		}
	case bril.OpAnd, bril.OpOr:
		if args[0] == args[1] {
			return copyArg(0)
		}
	}
	return nil, false
}

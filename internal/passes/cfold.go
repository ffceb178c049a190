package passes

import (
	"github.com/you-not-fish/brilopt/internal/bril"
	"github.com/you-not-fish/brilopt/internal/cfg"
	"github.com/you-not-fish/brilopt/internal/lvn"
)

// NewConstFold returns the constant folding pass.
func NewConstFold(maxIter int) Pass {
	return Pass{Name: "cfold", Fn: func(f *cfg.Func) (bool, error) {
		n, err := foldFunc(f, ConstFold, maxIter)
		if err != nil {
			return false, err
		}
		Rewrites("cfold").Add(n)
		return n > 0, nil
	}}
}

// ConstFold evaluates instructions whose result is known from the values
// of their operands:
//
//   - comparisons of a value with itself
//   - arithmetic and logic over literals
//   - and/or with a literal operand that decides the result
//   - br on a literal condition, which becomes jmp
//
// Division by a literal zero is left alone.
func ConstFold(in bril.Instr, args []int, t *lvn.Table) (bril.Instr, bool) {
	switch in := in.(type) {
	case *bril.Branch:
		cond, ok := t.Literal(args[0])
		if !ok || !cond.IsBool() {
			return nil, false
		}
		if cond.Bool() {
			return &bril.Jump{Target: in.True}, true
		}
		return &bril.Jump{Target: in.False}, true

	case *bril.Value:
		lit, ok := foldValue(in.Op, args, t)
		if !ok || !fits(in.Type, lit) {
			return nil, false
		}
		return &bril.Const{Dest: in.Dest, Type: in.Type, Value: lit}, true
	}
	return nil, false
}

func foldValue(op string, args []int, t *lvn.Table) (bril.Literal, bool) {
	if bril.IsCompare(op) && len(args) == 2 && args[0] == args[1] {
		switch op {
		case bril.OpEq, bril.OpLe, bril.OpGe:
			return bril.BoolLit(true), true
		default:
			return bril.BoolLit(false), true
		}
	}

	lits := make([]bril.Literal, len(args))
	known := make([]bool, len(args))
	all := true
	for i, a := range args {
		lits[i], known[i] = t.Literal(a)
		all = all && known[i]
	}

	if (op == bril.OpAnd || op == bril.OpOr) && len(args) == 2 {
		// false && _ and true || _ are decided by one operand.
		short := op == bril.OpOr
		for i := range args {
			if known[i] && lits[i].IsBool() && lits[i].Bool() == short {
				return bril.BoolLit(short), true
			}
		}
	}

	if !all {
		return bril.Literal{}, false
	}
	return eval(op, lits)
}

func eval(op string, lits []bril.Literal) (bril.Literal, bool) {
	switch len(lits) {
	case 1:
		if op == bril.OpNot && lits[0].IsBool() {
			return bril.BoolLit(!lits[0].Bool()), true
		}
		return bril.Literal{}, false
	case 2:
	default:
		return bril.Literal{}, false
	}

	x, y := lits[0], lits[1]
	if x.IsBool() && y.IsBool() {
		switch op {
		case bril.OpAnd:
			return bril.BoolLit(x.Bool() && y.Bool()), true
		case bril.OpOr:
			return bril.BoolLit(x.Bool() || y.Bool()), true
		case bril.OpEq:
			return bril.BoolLit(x == y), true
		}
		return bril.Literal{}, false
	}
	if x.IsBool() || y.IsBool() {
		return bril.Literal{}, false
	}

	a, b := x.Int(), y.Int()
	switch op {
	case bril.OpAdd:
		return bril.IntLit(a + b), true
	case bril.OpSub:
		return bril.IntLit(a - b), true
	case bril.OpMul:
		return bril.IntLit(a * b), true
	case bril.OpDiv:
		if b == 0 {
			return bril.Literal{}, false
		}
		return bril.IntLit(a / b), true
	case bril.OpEq:
		return bril.BoolLit(a == b), true
	case bril.OpLt:
		return bril.BoolLit(a < b), true
	case bril.OpGt:
		return bril.BoolLit(a > b), true
	case bril.OpLe:
		return bril.BoolLit(a <= b), true
	case bril.OpGe:
		return bril.BoolLit(a >= b), true
	}
	return bril.Literal{}, false
}

// fits reports whether lit can be written as a const of type typ.
func fits(typ bril.Type, lit bril.Literal) bool {
	if lit.IsBool() {
		return typ == "bool"
	}
	return typ == "int"
}

package lvn

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/you-not-fish/brilopt/internal/bril"
)

func iconst(dest string, v int64) bril.Instr {
	return &bril.Const{Dest: dest, Type: "int", Value: bril.IntLit(v)}
}

func bconst(dest string, v bool) bril.Instr {
	return &bril.Const{Dest: dest, Type: "bool", Value: bril.BoolLit(v)}
}

func op(dest, opName string, args ...string) bril.Instr {
	typ := bril.Type("int")
	if bril.IsCompare(opName) || opName == bril.OpAnd || opName == bril.OpOr || opName == bril.OpNot {
		typ = "bool"
	}
	return &bril.Value{Dest: dest, Type: typ, Op: opName, Args: args}
}

func prn(args ...string) bril.Instr {
	return &bril.Effect{Op: bril.OpPrint, Args: args}
}

// text renders instructions one per line without indentation.
func text(instrs []bril.Instr) string {
	lines := make([]string, len(instrs))
	for i, in := range instrs {
		lines[i] = in.String()
	}
	return strings.Join(lines, "\n")
}

func lines(ss ...string) string { return strings.Join(ss, "\n") }

func process(t *testing.T, instrs []bril.Instr) *Result {
	t.Helper()
	res, err := Process(instrs, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Args) != len(res.Instrs) || len(res.Dest) != len(res.Instrs) {
		t.Fatalf("Result has %d instrs, %d args, %d dests", len(res.Instrs), len(res.Args), len(res.Dest))
	}
	return res
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name   string
		instrs []bril.Instr
		want   string
	}{
		{
			name:   "constants are kept",
			instrs: []bril.Instr{iconst("a", 4), iconst("b", 2), op("c", bril.OpAdd, "a", "b")},
			want: lines(
				"a: int = const 4;",
				"b: int = const 2;",
				"c: int = add a b;",
			),
		},
		{
			name: "redundant commutative expression",
			instrs: []bril.Instr{
				iconst("a", 3), iconst("b", 3),
				op("c", bril.OpAdd, "a", "b"),
				op("d", bril.OpAdd, "b", "a"),
			},
			want: lines(
				"a: int = const 3;",
				"b: int = id a;",
				"c: int = add a a;",
				"d: int = id c;",
			),
		},
		{
			name: "copy chains collapse",
			instrs: []bril.Instr{
				op("b", bril.OpID, "a"),
				op("c", bril.OpID, "b"),
				op("d", bril.OpAdd, "c", "x"),
				prn("c"),
			},
			want: lines(
				"b: int = id a;",
				"c: int = id a;",
				"d: int = add a x;",
				"print a;",
			),
		},
		{
			name: "non-commutative operand order matters",
			instrs: []bril.Instr{
				op("c", bril.OpSub, "a", "b"),
				op("d", bril.OpSub, "b", "a"),
				op("e", bril.OpSub, "a", "b"),
			},
			want: lines(
				"c: int = sub a b;",
				"d: int = sub b a;",
				"e: int = id c;",
			),
		},
		{
			name: "shadowed local definition is renamed",
			instrs: []bril.Instr{
				iconst("a", 1),
				op("b", bril.OpAdd, "a", "a"),
				iconst("a", 2),
				op("c", bril.OpAdd, "a", "b"),
				prn("a"),
			},
			want: lines(
				"lvn.0: int = const 1;",
				"b: int = add lvn.0 lvn.0;",
				"a: int = const 2;",
				"c: int = add a b;",
				"print a;",
			),
		},
		{
			name: "overwritten live-in is read through its copy",
			instrs: []bril.Instr{
				op("y", bril.OpID, "x"),
				iconst("x", 5),
				prn("y"),
			},
			want: lines(
				"y: int = id x;",
				"x: int = const 5;",
				"print y;",
			),
		},
		{
			name: "live-in read before its redefinition keeps its name",
			instrs: []bril.Instr{
				&bril.Label{Name: "L"},
				op("x", bril.OpAdd, "x", "one"),
				prn("x"),
				op("y", bril.OpAdd, "x_prev", "one"),
				op("z", bril.OpID, "x_prev"),
				op("x_prev", bril.OpID, "x"),
				prn("z"),
				&bril.Jump{Target: "L"},
			},
			want: lines(
				".L:",
				"x: int = add x one;",
				"print x;",
				"y: int = add x_prev one;",
				"z: int = id x_prev;",
				"x_prev: int = id x;",
				"print z;",
				"jmp .L;",
			),
		},
		{
			name: "redefinition to the live-in value",
			instrs: []bril.Instr{
				op("b", bril.OpID, "a"),
				op("a", bril.OpID, "b"),
				op("c", bril.OpEq, "a", "b"),
				&bril.Branch{Cond: "c", True: "l", False: "r"},
			},
			want: lines(
				"b: int = id a;",
				"a: int = id a;",
				"c: bool = eq b b;",
				"br c .l .r;",
			),
		},
		{
			name: "live-ins swapped through a temporary",
			instrs: []bril.Instr{
				op("c", bril.OpID, "b"),
				op("b", bril.OpID, "a"),
				op("y", bril.OpAdd, "b", "b"),
				op("a", bril.OpID, "c"),
				prn("y"),
				&bril.Return{Arg: "b"},
			},
			want: lines(
				"c: int = id b;",
				"b: int = id a;",
				"y: int = add a a;",
				"a: int = id c;",
				"print y;",
				"ret b;",
			),
		},
		{
			name: "copy of a live-in overwritten by itself",
			instrs: []bril.Instr{
				op("c", bril.OpID, "a"),
				op("a", bril.OpID, "a"),
				op("y", bril.OpID, "c"),
				&bril.Return{Arg: "y"},
			},
			want: lines(
				"c: int = id a;",
				"a: int = id a;",
				"y: int = id c;",
				"ret c;",
			),
		},
		{
			name: "redefinition without later import use keeps the name",
			instrs: []bril.Instr{
				op("x", bril.OpAdd, "x", "one"),
				prn("x"),
			},
			want: lines(
				"x: int = add x one;",
				"print x;",
			),
		},
		{
			name: "impure values are never merged",
			instrs: []bril.Instr{
				&bril.Value{Dest: "a", Type: "int", Op: bril.OpCall, Funcs: []string{"f"}},
				&bril.Value{Dest: "b", Type: "int", Op: bril.OpCall, Funcs: []string{"f"}},
				op("c", bril.OpAdd, "a", "b"),
			},
			want: lines(
				"a: int = call @f;",
				"b: int = call @f;",
				"c: int = add a b;",
			),
		},
		{
			name: "branch condition is canonicalized",
			instrs: []bril.Instr{
				bconst("t", true),
				bconst("u", true),
				&bril.Branch{Cond: "u", True: "a", False: "b"},
			},
			want: lines(
				"t: bool = const true;",
				"u: bool = id t;",
				"br t .a .b;",
			),
		},
		{
			name: "terminator avoids an overwritten import",
			instrs: []bril.Instr{
				op("c", bril.OpID, "g"),
				bconst("g", false),
				&bril.Branch{Cond: "c", True: "a", False: "b"},
			},
			want: lines(
				"c: int = id g;",
				"g: bool = const false;",
				"br c .a .b;",
			),
		},
		{
			name: "return reads the canonical copy",
			instrs: []bril.Instr{
				iconst("a", 1),
				op("b", bril.OpID, "a"),
				&bril.Return{Arg: "b"},
			},
			want: lines(
				"a: int = const 1;",
				"b: int = id a;",
				"ret a;",
			),
		},
		{
			name: "same literal of different types",
			instrs: []bril.Instr{
				iconst("a", 0),
				&bril.Const{Dest: "b", Type: "char", Value: bril.IntLit(0)},
			},
			want: lines(
				"a: int = const 0;",
				"b: char = const 0;",
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := process(t, tt.instrs)
			if got := text(res.Instrs); got != tt.want {
				t.Errorf("Process =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestProcessIdempotent(t *testing.T) {
	blocks := [][]bril.Instr{
		{iconst("a", 3), iconst("b", 3), op("c", bril.OpAdd, "a", "b"), op("d", bril.OpAdd, "b", "a"), prn("d")},
		{iconst("a", 1), op("b", bril.OpAdd, "a", "a"), iconst("a", 2), op("c", bril.OpAdd, "a", "b"), prn("a", "c")},
		{op("y", bril.OpID, "x"), iconst("x", 5), prn("y"), &bril.Return{Arg: "x"}},
		{op("x", bril.OpAdd, "x", "one"), op("x", bril.OpMul, "x", "x"), prn("x")},
		{op("b", bril.OpID, "a"), op("a", bril.OpID, "b"), op("c", bril.OpEq, "a", "b"), &bril.Branch{Cond: "c", True: "l", False: "r"}},
		{op("c", bril.OpID, "b"), op("b", bril.OpID, "a"), op("y", bril.OpAdd, "b", "b"), op("a", bril.OpID, "c"), prn("y"), &bril.Return{Arg: "b"}},
		{op("c", bril.OpID, "a"), op("a", bril.OpID, "a"), op("y", bril.OpID, "c"), &bril.Return{Arg: "y"}},
		{op("g", bril.OpID, "g"), prn("g"), iconst("g", 2), op("h", bril.OpAdd, "g", "g"), prn("h")},
	}

	for i, instrs := range blocks {
		first := process(t, instrs)
		second := process(t, first.Instrs)
		if !bril.EqualInstrs(first.Instrs, second.Instrs) {
			t.Errorf("block %d: second run changed the block:\n%s\nthen\n%s", i, text(first.Instrs), text(second.Instrs))
		}
	}
}

func TestCommutativeValueNumbers(t *testing.T) {
	for _, opName := range []string{bril.OpAdd, bril.OpMul, bril.OpAnd, bril.OpOr} {
		res := process(t, []bril.Instr{
			op("c", opName, "a", "b"),
			op("d", opName, "b", "a"),
		})
		if res.Dest[0] != res.Dest[1] {
			t.Errorf("%s: value numbers %d and %d differ", opName, res.Dest[0], res.Dest[1])
		}
	}
}

func TestResultValueNumbers(t *testing.T) {
	res := process(t, []bril.Instr{
		iconst("a", 4),
		op("b", bril.OpID, "a"),
		op("c", bril.OpAdd, "b", "x"),
		prn("c", "a"),
	})

	// #0 const 4, #1 global x, #2 add.
	wantDest := []int{0, 0, 2, -1}
	wantArgs := [][]int{nil, {0}, {0, 1}, {2, 0}}
	if diff := cmp.Diff(wantDest, res.Dest); diff != "" {
		t.Errorf("Dest mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantArgs, res.Args); diff != "" {
		t.Errorf("Args mismatch (-want +got):\n%s", diff)
	}

	if lit, ok := res.Table.Literal(0); !ok || lit != bril.IntLit(4) {
		t.Errorf("Literal(0) = %v, %v; want 4, true", lit, ok)
	}
	if _, ok := res.Table.Literal(2); ok {
		t.Error("Literal(2) reported a constant for add")
	}
	if e := res.Table.Entry(1); e.Key.Kind != KeyGlobal || e.Canon != "x" {
		t.Errorf("Entry(1) = %+v, want global x", e)
	}
	if e := res.Table.Entry(2); e.Canon != "c" {
		t.Errorf("Entry(2).Canon = %q, want c", e.Canon)
	}
	if n := res.Table.Len(); n != 3 {
		t.Errorf("Table.Len() = %d, want 3", n)
	}
}

func TestAliasAvoidsFunctionNames(t *testing.T) {
	fn := &bril.Function{
		Name: "f",
		Instrs: []bril.Instr{
			iconst("a", 1),
			iconst("a", 2),
			prn("a"),
			&bril.Label{Name: "next"},
			iconst("lvn.0", 7),
			prn("lvn.0"),
		},
	}
	scope := NewScope(fn)

	res, err := Process(fn.Instrs[:3], scope)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := res.Instrs[0].String(); got != "lvn.1: int = const 1;" {
		t.Errorf("alias = %s, want lvn.1", got)
	}
	if res.Aliases != 1 {
		t.Errorf("Aliases = %d, want 1", res.Aliases)
	}

	// Issued aliases are reserved for the rest of the function.
	res, err = Process([]bril.Instr{iconst("b", 1), iconst("b", 2), prn("b")}, scope)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := res.Instrs[0].String(); got != "lvn.2: int = const 1;" {
		t.Errorf("second alias = %s, want lvn.2", got)
	}
}

func TestUnresolvedOperand(t *testing.T) {
	fn := &bril.Function{
		Name: "f",
		Args: []bril.Arg{{Name: "p", Type: "int"}},
		Instrs: []bril.Instr{
			op("a", bril.OpAdd, "p", "later"),
			&bril.Label{Name: "L"},
			iconst("later", 1),
			prn("ghost"),
		},
	}
	scope := NewScope(fn)

	// Parameters and names defined in other blocks resolve.
	if _, err := Process(fn.Instrs[:1], scope); err != nil {
		t.Fatalf("Process: %v", err)
	}

	_, err := Process(fn.Instrs[1:], scope)
	if !errors.Is(err, bril.ErrUnresolvedOperand) {
		t.Fatalf("Process error = %v, want %v", err, bril.ErrUnresolvedOperand)
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error %q does not name the operand", err)
	}
}

func TestMalformedID(t *testing.T) {
	_, err := Process([]bril.Instr{&bril.Value{Dest: "a", Type: "int", Op: bril.OpID, Args: []string{"x", "y"}}}, nil)
	if !errors.Is(err, bril.ErrMalformedInstruction) {
		t.Fatalf("Process error = %v, want %v", err, bril.ErrMalformedInstruction)
	}
}

func TestProcessDoesNotModifyInput(t *testing.T) {
	instrs := []bril.Instr{iconst("a", 1), iconst("b", 1), op("c", bril.OpAdd, "b", "a"), iconst("a", 3), prn("c", "a")}
	before := text(instrs)
	process(t, instrs)
	if after := text(instrs); after != before {
		t.Errorf("input changed:\n%s\nwas\n%s", after, before)
	}
}

func TestKey(t *testing.T) {
	if !OpKey(bril.OpAdd, []int{2, 1}, nil).Equal(OpKey(bril.OpAdd, []int{1, 2}, nil)) {
		t.Error("commutative keys with swapped operands differ")
	}
	if OpKey(bril.OpSub, []int{2, 1}, nil).Equal(OpKey(bril.OpSub, []int{1, 2}, nil)) {
		t.Error("sub keys with swapped operands are equal")
	}
	if ConstKey("int", bril.IntLit(1)).Equal(ConstKey("bool", bril.BoolLit(true))) {
		t.Error("int 1 and bool true keys are equal")
	}
	o := Key{Kind: KeyOpaque, Op: bril.OpCall, Name: "a"}
	if o.Equal(o) {
		t.Error("opaque key equals itself")
	}
	if a, b := OpKey(bril.OpMul, []int{3, 0}, nil), OpKey(bril.OpMul, []int{0, 3}, nil); a.hash() != b.hash() {
		t.Error("equal keys hash differently")
	}
	if got := OpKey(bril.OpAdd, []int{1, 0}, nil).String(); got != "op add #0 #1" {
		t.Errorf("String() = %q", got)
	}
}

// randomBlock returns a straight-line block over the live-in ints a, b, c
// and the live-in bool p. Destinations include the live-in names, so blocks
// redefine, copy and swap them.
func randomBlock(rng *rand.Rand, size int) []bril.Instr {
	ints := []string{"a", "b", "c"}
	bools := []string{"p"}
	pick := func(names []string) string { return names[rng.Intn(len(names))] }
	defInt := func(name string) {
		for _, n := range ints {
			if n == name {
				return
			}
		}
		ints = append(ints, name)
	}
	defBool := func(name string) {
		for _, n := range bools {
			if n == name {
				return
			}
		}
		bools = append(bools, name)
	}
	intDests := []string{"a", "b", "c", "x", "y"}
	boolDests := []string{"p", "q"}
	arith := []string{bril.OpAdd, bril.OpMul, bril.OpSub, bril.OpDiv}
	compare := []string{bril.OpEq, bril.OpLt, bril.OpGt, bril.OpLe, bril.OpGe}

	var instrs []bril.Instr
	for i := 0; i < size; i++ {
		switch rng.Intn(8) {
		case 0:
			d := pick(intDests)
			instrs = append(instrs, iconst(d, int64(rng.Intn(5)-2)))
			defInt(d)
		case 1, 2:
			d := pick(intDests)
			instrs = append(instrs, op(d, pick(arith), pick(ints), pick(ints)))
			defInt(d)
		case 3:
			d := pick(intDests)
			instrs = append(instrs, op(d, bril.OpID, pick(ints)))
			defInt(d)
		case 4:
			d := pick(boolDests)
			instrs = append(instrs, op(d, pick(compare), pick(ints), pick(ints)))
			defBool(d)
		case 5:
			d := pick(boolDests)
			switch rng.Intn(3) {
			case 0:
				instrs = append(instrs, op(d, bril.OpNot, pick(bools)))
			case 1:
				instrs = append(instrs, &bril.Value{Dest: d, Type: "bool", Op: bril.OpID, Args: []string{pick(bools)}})
			default:
				instrs = append(instrs, op(d, []string{bril.OpAnd, bril.OpOr}[rng.Intn(2)], pick(bools), pick(bools)))
			}
			defBool(d)
		case 6:
			instrs = append(instrs, prn(pick(ints)))
		case 7:
			instrs = append(instrs, prn(pick(bools)))
		}
	}
	return append(instrs, &bril.Return{Arg: pick(ints)})
}

func TestProcessIdempotentRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5000; i++ {
		instrs := randomBlock(rng, 4+rng.Intn(12))
		first := process(t, instrs)
		second := process(t, first.Instrs)
		if !bril.EqualInstrs(first.Instrs, second.Instrs) {
			t.Fatalf("second run changed the block\ninput:\n%s\nfirst:\n%s\nsecond:\n%s",
				text(instrs), text(first.Instrs), text(second.Instrs))
		}
		if second.Aliases != 0 {
			t.Fatalf("second run issued %d aliases\n%s", second.Aliases, text(first.Instrs))
		}
	}
}

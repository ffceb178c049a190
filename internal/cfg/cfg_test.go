package cfg

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valyala/fastjson"

	"github.com/you-not-fish/brilopt/internal/bril"
)

func konst(dest string, v int64) bril.Instr {
	return &bril.Const{Dest: dest, Type: "int", Value: bril.IntLit(v)}
}

func label(name string) bril.Instr { return &bril.Label{Name: name} }

// shape summarizes blocks as name -> succs for comparison.
type shape struct {
	Name  string
	Len   int
	Succs []string
}

func shapes(blocks []*Block) []shape {
	out := make([]shape, len(blocks))
	for i, b := range blocks {
		out[i] = shape{Name: b.Name, Len: len(b.Instrs), Succs: b.Succs}
	}
	return out
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		instrs []bril.Instr
		start  int
		want   []shape
		next   int
	}{
		{
			name:  "empty",
			start: 0,
			want:  []shape{{Name: "#b0"}},
			next:  0,
		},
		{
			name:   "straight line",
			instrs: []bril.Instr{konst("a", 1), konst("b", 2)},
			want:   []shape{{Name: "#b0", Len: 2}},
			next:   1,
		},
		{
			name:   "self loop",
			instrs: []bril.Instr{label("L"), &bril.Jump{Target: "L"}},
			want:   []shape{{Name: "L", Len: 2, Succs: []string{"L"}}},
			next:   0,
		},
		{
			name: "fallthrough into label",
			instrs: []bril.Instr{
				konst("a", 1),
				label("next"),
				&bril.Return{},
			},
			want: []shape{
				{Name: "#b0", Len: 1, Succs: []string{"next"}},
				{Name: "next", Len: 2},
			},
			next: 1,
		},
		{
			name:  "branch and unnamed block after terminator",
			start: 5,
			instrs: []bril.Instr{
				&bril.Const{Dest: "c", Type: "bool", Value: bril.BoolLit(true)},
				&bril.Branch{Cond: "c", True: "then", False: "else"},
				label("then"),
				&bril.Jump{Target: "end"},
				konst("dead", 0),
				label("else"),
				label("end"),
				&bril.Return{},
			},
			want: []shape{
				{Name: "#b5", Len: 2, Succs: []string{"then", "else"}},
				{Name: "then", Len: 2, Succs: []string{"end"}},
				{Name: "#b6", Len: 1, Succs: []string{"else"}},
				{Name: "else", Len: 1, Succs: []string{"end"}},
				{Name: "end", Len: 2},
			},
			next: 7,
		},
		{
			name: "branch to the same label twice",
			instrs: []bril.Instr{
				&bril.Branch{Cond: "c", True: "L", False: "L"},
				label("L"),
			},
			want: []shape{
				{Name: "#b0", Len: 1, Succs: []string{"L", "L"}},
				{Name: "L", Len: 1},
			},
			next: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, next, err := Build(tt.instrs, tt.start)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if diff := cmp.Diff(tt.want, shapes(blocks)); diff != "" {
				t.Errorf("blocks mismatch (-want +got):\n%s", diff)
			}
			if next != tt.next {
				t.Errorf("next counter = %d, want %d", next, tt.next)
			}

			// Flatten is the inverse of Build.
			f := &Func{Fn: &bril.Function{Name: "f"}, Blocks: blocks}
			if got := Flatten(f); !bril.EqualInstrs(got, tt.instrs) {
				t.Errorf("Flatten(Build(instrs)) =\n%s\nwant\n%s", bril.SprintInstrs(got), bril.SprintInstrs(tt.instrs))
			}
			if err := Verify(f); err != nil {
				t.Errorf("Verify: %v", err)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		instrs []bril.Instr
		want   error
	}{
		{
			name:   "unknown jump target",
			instrs: []bril.Instr{&bril.Jump{Target: "nowhere"}},
			want:   bril.ErrUnknownTarget,
		},
		{
			name: "unknown branch target",
			instrs: []bril.Instr{
				&bril.Branch{Cond: "c", True: "a", False: "b"},
				label("a"),
			},
			want: bril.ErrUnknownTarget,
		},
		{
			name:   "duplicate label",
			instrs: []bril.Instr{label("a"), label("a")},
			want:   bril.ErrMalformedInstruction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildFunc(&bril.Function{Name: "f", Instrs: tt.instrs}, 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("BuildFunc error = %v, want %v", err, tt.want)
			}
			if !strings.HasPrefix(err.Error(), "func f, ") {
				t.Errorf("error %q lacks function context", err)
			}
		})
	}
}

func TestBuildProgramThreadsCounter(t *testing.T) {
	p := &bril.Program{Functions: []*bril.Function{
		{Name: "a", Instrs: []bril.Instr{konst("x", 1), &bril.Return{}, konst("y", 2)}},
		{Name: "b"},
		{Name: "c", Instrs: []bril.Instr{konst("z", 3)}},
	}}

	cp, err := BuildProgram(p)
	if err != nil {
		t.Fatalf("BuildProgram: %v", err)
	}

	var names []string
	for _, f := range cp.Funcs {
		for _, b := range f.Blocks {
			names = append(names, f.Name()+":"+b.Name)
		}
	}
	want := []string{"a:#b0", "a:#b1", "b:#b0", "c:#b2"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("block names mismatch (-want +got):\n%s", diff)
	}
	if cp.Next != 3 {
		t.Errorf("Next = %d, want 3", cp.Next)
	}

	flat := cp.Flatten()
	for i, fn := range p.Functions {
		if !bril.EqualInstrs(flat.Functions[i].Instrs, fn.Instrs) {
			t.Errorf("function %s changed by Build/Flatten", fn.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	f, _, err := BuildFunc(&bril.Function{Name: "f", Instrs: []bril.Instr{
		konst("a", 1), label("L"), &bril.Return{},
	}}, 0)
	if err != nil {
		t.Fatalf("BuildFunc: %v", err)
	}
	if b := f.Lookup("L"); b == nil || b.Name != "L" {
		t.Errorf("Lookup(L) = %v", b)
	}
	if b := f.Lookup("missing"); b != nil {
		t.Errorf("Lookup(missing) = %v, want nil", b)
	}
	if n := f.NumBlocks(); n != 2 {
		t.Errorf("NumBlocks() = %d, want 2", n)
	}
	if body := f.Lookup("L").Body(); len(body) != 1 || !bril.IsTerminator(body[0]) {
		t.Errorf("Body() = %v, want [ret]", body)
	}
}

func TestVerifyDetectsViolations(t *testing.T) {
	f := &Func{
		Fn: &bril.Function{Name: "f"},
		Blocks: []*Block{
			{Name: "a", Instrs: []bril.Instr{&bril.Return{}, konst("x", 1)}},
			{Name: "b", Instrs: []bril.Instr{konst("x", 1), label("b")}, Succs: []string{"zzz"}},
			{Name: "b", Instrs: []bril.Instr{&bril.Jump{Target: "a"}}, Succs: []string{"b"}},
		},
	}

	err := Verify(f)
	if err == nil {
		t.Fatal("Verify succeeded on a broken function")
	}
	for _, want := range []string{
		"name also used",
		"is not last",
		"label b at index 1",
		"successor zzz not in function",
		"terminator jmp .a; wants [a]",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Verify error lacks %q:\n%v", want, err)
		}
	}
}

func TestMarshalProgram(t *testing.T) {
	cp, err := BuildProgram(&bril.Program{Functions: []*bril.Function{{
		Name:   "main",
		Instrs: []bril.Instr{konst("a", 1), label("L"), &bril.Jump{Target: "L"}},
	}}})
	if err != nil {
		t.Fatalf("BuildProgram: %v", err)
	}

	v, err := fastjson.ParseBytes(MarshalProgram(cp))
	if err != nil {
		t.Fatalf("MarshalProgram produced invalid JSON: %v", err)
	}
	fn := v.GetArray("functions")[0]
	if got := len(fn.GetArray("instrs")); got != 3 {
		t.Errorf("len(instrs) = %d, want 3", got)
	}
	blocks := fn.GetArray("cfg")
	if len(blocks) != 2 {
		t.Fatalf("len(cfg) = %d, want 2", len(blocks))
	}
	if got := string(blocks[0].GetStringBytes("name")); got != "#b0" {
		t.Errorf("cfg[0].name = %q, want #b0", got)
	}
	if got := blocks[0].Get("succs").String(); got != `["L"]` {
		t.Errorf("cfg[0].succs = %s, want [\"L\"]", got)
	}
	if got := blocks[1].Get("succs").String(); got != `["L"]` {
		t.Errorf("cfg[1].succs = %s, want [\"L\"]", got)
	}
}

package bril

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the textual form of a function to w.
//
// Format:
//
//	@name(a: int, b: int): int {
//	  c: int = add a b;
//	.exit:
//	  ret c;
//	}
func Fprint(w io.Writer, f *Function) {
	fmt.Fprintf(w, "@%s", f.Name)
	if len(f.Args) > 0 {
		params := make([]string, len(f.Args))
		for i, a := range f.Args {
			params[i] = fmt.Sprintf("%s: %s", a.Name, a.Type)
		}
		fmt.Fprintf(w, "(%s)", strings.Join(params, ", "))
	}
	if f.Type != "" {
		fmt.Fprintf(w, ": %s", f.Type)
	}
	fmt.Fprintf(w, " {\n")
	FprintInstrs(w, f.Instrs)
	fmt.Fprintf(w, "}\n")
}

// FprintInstrs writes one instruction per line; labels are not indented.
func FprintInstrs(w io.Writer, instrs []Instr) {
	for _, in := range instrs {
		if _, ok := in.(*Label); ok {
			fmt.Fprintf(w, "%s\n", in)
			continue
		}
		fmt.Fprintf(w, "  %s\n", in)
	}
}

// Sprint returns the textual form of a function as a string.
func Sprint(f *Function) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

// SprintInstrs returns the textual form of an instruction list.
func SprintInstrs(instrs []Instr) string {
	var sb strings.Builder
	FprintInstrs(&sb, instrs)
	return sb.String()
}

package cfg

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the block structure of a function to w.
//
// Format:
//
//	@name(a: int): int:
//	  #b0: (entry) -> loop
//	    x: int = const 1;
//	  loop: -> loop done
//	    .loop:
//	    br c .loop .done;
func Fprint(w io.Writer, f *Func) {
	fmt.Fprintf(w, "@%s", f.Name())
	if len(f.Fn.Args) > 0 {
		params := make([]string, len(f.Fn.Args))
		for i, a := range f.Fn.Args {
			params[i] = fmt.Sprintf("%s: %s", a.Name, a.Type)
		}
		fmt.Fprintf(w, "(%s)", strings.Join(params, ", "))
	}
	if f.Fn.Type != "" {
		fmt.Fprintf(w, ": %s", f.Fn.Type)
	}
	fmt.Fprintf(w, ":\n")

	for i, b := range f.Blocks {
		entry := ""
		if i == 0 {
			entry = " (entry)"
		}
		succs := ""
		if len(b.Succs) > 0 {
			succs = " -> " + strings.Join(b.Succs, " ")
		}
		fmt.Fprintf(w, "  %s:%s%s\n", b, entry, succs)
		for _, in := range b.Instrs {
			fmt.Fprintf(w, "    %s\n", in)
		}
	}
}

// Sprint returns the block structure of a function as a string.
func Sprint(f *Func) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

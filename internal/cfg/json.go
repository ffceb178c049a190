package cfg

import (
	"github.com/valyala/fastjson"

	"github.com/you-not-fish/brilopt/internal/bril"
)

// MarshalProgram encodes p in the CFG-augmented wire form: every function
// carries its flat "instrs" plus a "cfg" array of {name, instrs, succs}.
func MarshalProgram(p *Program) []byte {
	var a fastjson.Arena
	root := a.NewObject()
	fns := a.NewArray()
	for i, f := range p.Funcs {
		o := bril.EncodeFunction(&a, f.Function())
		o.Set("cfg", encodeBlocks(&a, f.Blocks))
		fns.SetArrayItem(i, o)
	}
	root.Set("functions", fns)
	return root.MarshalTo(nil)
}

func encodeBlocks(a *fastjson.Arena, blocks []*Block) *fastjson.Value {
	arr := a.NewArray()
	for i, b := range blocks {
		o := a.NewObject()
		o.Set("name", a.NewString(b.Name))
		o.Set("instrs", bril.EncodeInstrs(a, b.Instrs))
		succs := a.NewArray()
		for j, s := range b.Succs {
			succs.SetArrayItem(j, a.NewString(s))
		}
		o.Set("succs", succs)
		arr.SetArrayItem(i, o)
	}
	return arr
}

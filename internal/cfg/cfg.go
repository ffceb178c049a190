// Package cfg partitions a function's flat instruction list into basic
// blocks and flattens blocks back into a list.
package cfg

import (
	"fmt"
	"slices"

	"github.com/you-not-fish/brilopt/internal/bril"
)

// Block is a basic block. It starts with at most one label and ends with at
// most one control instruction.
type Block struct {
	// Name is the opening label, or a synthesized "#b<N>" name.
	Name string

	// Instrs is the ordered instruction list, opening label included.
	Instrs []bril.Instr

	// Succs names the successor blocks within the same function.
	Succs []string
}

// String returns the block name.
func (b *Block) String() string { return b.Name }

// Terminated reports whether the block ends in a control instruction.
func (b *Block) Terminated() bool {
	return len(b.Instrs) > 0 && bril.IsTerminator(b.Instrs[len(b.Instrs)-1])
}

// Body returns the instructions after the opening label, if any.
func (b *Block) Body() []bril.Instr {
	if len(b.Instrs) > 0 {
		if _, ok := b.Instrs[0].(*bril.Label); ok {
			return b.Instrs[1:]
		}
	}
	return b.Instrs
}

func (b *Block) addSucc(name string) {
	if !slices.Contains(b.Succs, name) {
		b.Succs = append(b.Succs, name)
	}
}

// Func is a function split into basic blocks.
type Func struct {
	// Fn carries the function identity: name, parameters and return type.
	// Its Instrs field is not kept in sync with Blocks.
	Fn *bril.Function

	// Blocks is the ordered block list. Blocks[0] is the entry block.
	Blocks []*Block
}

// Name returns the function name.
func (f *Func) Name() string { return f.Fn.Name }

// Lookup returns the block with the given name, or nil.
func (f *Func) Lookup(name string) *Block {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// NumBlocks returns the number of blocks in the function.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// Build partitions instrs into basic blocks. Synthesized block names are
// drawn from counter, which is returned advanced past every name used.
//
// A new block starts at the first instruction, after every control
// instruction and at every label. A label-opened block that follows a block
// without a terminator receives a fallthrough edge from it. An empty list
// yields a single empty block named "#b0".
func Build(instrs []bril.Instr, counter int) ([]*Block, int, error) {
	if len(instrs) == 0 {
		return []*Block{{Name: "#b0"}}, counter, nil
	}

	var blocks []*Block
	newBlock := true
	for _, in := range instrs {
		label, isLabel := in.(*bril.Label)
		if newBlock || isLabel {
			var name string
			if isLabel {
				name = label.Name
			} else {
				name = fmt.Sprintf("#b%d", counter)
				counter++
			}
			// Fall through from the previous block.
			if isLabel && len(blocks) > 0 {
				if prev := blocks[len(blocks)-1]; !prev.Terminated() {
					prev.addSucc(name)
				}
			}
			blocks = append(blocks, &Block{Name: name})
			newBlock = false
		}

		cur := blocks[len(blocks)-1]
		cur.Instrs = append(cur.Instrs, in)
		if bril.IsTerminator(in) {
			cur.Succs = bril.Targets(in)
			newBlock = true
		}
	}

	if err := checkEdges(blocks); err != nil {
		return nil, counter, err
	}
	return blocks, counter, nil
}

// checkEdges rejects duplicate block names and edges to missing blocks.
func checkEdges(blocks []*Block) error {
	names := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if names[b.Name] {
			return &bril.Error{Kind: bril.ErrMalformedInstruction, Block: b.Name, Msg: "duplicate label " + b.Name}
		}
		names[b.Name] = true
	}
	for _, b := range blocks {
		for _, s := range b.Succs {
			if !names[s] {
				return &bril.Error{Kind: bril.ErrUnknownTarget, Block: b.Name, Msg: "no block named " + s}
			}
		}
	}
	return nil
}

// BuildFunc builds the CFG of fn, drawing synthesized names from counter.
func BuildFunc(fn *bril.Function, counter int) (*Func, int, error) {
	blocks, next, err := Build(fn.Instrs, counter)
	if err != nil {
		return nil, counter, bril.InFunc(err, fn.Name, "")
	}
	return &Func{Fn: fn, Blocks: blocks}, next, nil
}

// Flatten concatenates the instructions of every block in block order.
func Flatten(f *Func) []bril.Instr {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	instrs := make([]bril.Instr, 0, n)
	for _, b := range f.Blocks {
		instrs = append(instrs, b.Instrs...)
	}
	return instrs
}

// Function returns a copy of f's function whose Instrs is Flatten(f).
func (f *Func) Function() *bril.Function {
	fn := *f.Fn
	fn.Instrs = Flatten(f)
	return &fn
}

// Program is a program whose functions are split into blocks.
type Program struct {
	Funcs []*Func

	// Next is the first synthesized block number not used by Funcs.
	Next int
}

// BuildProgram builds the CFG of every function of p in order. One block
// counter is threaded through all functions, so synthesized names never
// collide across functions.
func BuildProgram(p *bril.Program) (*Program, error) {
	cp := &Program{Funcs: make([]*Func, 0, len(p.Functions))}
	for _, fn := range p.Functions {
		f, next, err := BuildFunc(fn, cp.Next)
		if err != nil {
			return nil, err
		}
		cp.Funcs = append(cp.Funcs, f)
		cp.Next = next
	}
	return cp, nil
}

// Flatten converts p back into a flat program.
func (p *Program) Flatten() *bril.Program {
	out := &bril.Program{Functions: make([]*bril.Function, len(p.Funcs))}
	for i, f := range p.Funcs {
		out.Functions[i] = f.Function()
	}
	return out
}

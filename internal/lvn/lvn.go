// Package lvn implements local value numbering over one basic block.
//
// Numbering runs in two phases. The first phase walks the block once and
// records every instruction against definition versions and value numbers.
// The second phase assigns final names: the last local version of a name
// keeps the name, earlier versions are renamed to fresh "lvn.<n>" aliases,
// and every operand is written as a name that still holds its value at that
// point. A live-in value read after its name has been redefined for the
// last time is read through the earliest copy of it made in the block.
//
// Every name of a numbered block is defined at most once and no operand
// reads an overwritten live-in, so numbering a numbered block again changes
// nothing.
package lvn

import (
	"strconv"

	"github.com/you-not-fish/brilopt/internal/bril"
)

// Result is a numbered block.
type Result struct {
	// Instrs is the rewritten block.
	Instrs []bril.Instr

	// Table holds every value of the block.
	Table *Table

	// Args[i] holds the value numbers read by Instrs[i], operand by operand.
	Args [][]int

	// Dest[i] is the value number Instrs[i] assigns, or -1.
	Dest []int

	// Aliases counts the aliases issued for shadowed definitions.
	Aliases int
}

// version is one definition of a name: a local assignment or the value the
// name holds on block entry.
type version struct {
	name     string
	typ      bril.Type
	def      int // index of the defining pending instruction; -1 when imported
	imported bool
}

// pending is an instruction whose names are not yet final.
type pending struct {
	in     bril.Instr
	dest   int // defined version, or -1
	destVN int
	argVNs []int // value numbers read, one per operand
}

type numberer struct {
	scope *Scope
	table *Table

	vers  []version
	vn    []int // version -> value number
	canon []int // value number -> canonical version

	cur   map[string]int   // name -> current version
	local map[string][]int // name -> local versions, in order

	pend    []pending
	counter map[string]int
}

// Process numbers the values of one basic block.
//
// Operands that are unbound when first read are live-in. If scope is not
// nil, a live-in operand must be a parameter or be defined somewhere in the
// function; otherwise Process fails with bril.ErrUnresolvedOperand. The
// scope also supplies the names aliases must avoid, and records the aliases
// issued. A nil scope accepts every live-in operand.
func Process(instrs []bril.Instr, scope *Scope) (*Result, error) {
	n := &numberer{
		scope:   scope,
		table:   newTable(),
		cur:     make(map[string]int),
		local:   make(map[string][]int),
		counter: make(map[string]int),
	}
	for _, in := range instrs {
		if err := n.step(in); err != nil {
			return nil, err
		}
	}
	return n.finish(), nil
}

func (n *numberer) step(in bril.Instr) error {
	switch in := in.(type) {
	case *bril.Label, *bril.Jump:
		n.pend = append(n.pend, pending{in: in, dest: -1, destVN: -1})

	case *bril.Branch, *bril.Return, *bril.Effect:
		vns, err := n.operands(in.Operands())
		if err != nil {
			return err
		}
		n.pend = append(n.pend, pending{in: in, dest: -1, destVN: -1, argVNs: vns})

	case *bril.Const:
		key := ConstKey(in.Type, in.Value)
		if vn, ok := n.table.Lookup(key); ok {
			n.copyOf(in.Dest, in.Type, vn)
			return nil
		}
		n.fresh(in, in.Dest, in.Type, key, nil)

	case *bril.Value:
		if in.Op == bril.OpID {
			if len(in.Args) != 1 {
				return bril.Errorf(bril.ErrMalformedInstruction, "%s: id takes 1 argument; got %d", in.Dest, len(in.Args))
			}
			v, err := n.resolve(in.Args[0])
			if err != nil {
				return err
			}
			// Copies are transparent: the destination joins the operand's value.
			n.copyOf(in.Dest, in.Type, n.vn[v])
			return nil
		}

		vns, err := n.operands(in.Args)
		if err != nil {
			return err
		}
		if bril.IsImpure(in.Op) {
			key := Key{Kind: KeyOpaque, Op: in.Op, Args: vns, Funcs: in.Funcs, Name: in.Dest}
			n.fresh(in, in.Dest, in.Type, key, vns)
			return nil
		}
		key := OpKey(in.Op, vns, in.Funcs)
		if vn, ok := n.table.Lookup(key); ok {
			n.copyOf(in.Dest, in.Type, vn)
			return nil
		}
		n.fresh(in, in.Dest, in.Type, key, vns)

	default:
		return bril.Errorf(bril.ErrMalformedInstruction, "unexpected instruction %T", in)
	}
	return nil
}

// resolve returns the version currently bound to name, importing it on
// first read.
func (n *numberer) resolve(name string) (int, error) {
	if v, ok := n.cur[name]; ok {
		return v, nil
	}
	if !n.scope.Resolves(name) {
		return -1, bril.Errorf(bril.ErrUnresolvedOperand, "%s is neither a parameter nor defined in the function", name)
	}
	v := n.newVersion(version{name: name, def: -1, imported: true})
	vn := n.table.add(Key{Kind: KeyGlobal, Name: name}, name)
	n.canon = append(n.canon, v)
	n.vn[v] = vn
	n.cur[name] = v
	return v, nil
}

// operands returns the value numbers bound to names.
func (n *numberer) operands(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	vns := make([]int, len(names))
	for i, name := range names {
		v, err := n.resolve(name)
		if err != nil {
			return nil, err
		}
		vns[i] = n.vn[v]
	}
	return vns, nil
}

// fresh enters a new value whose canonical home is dest.
func (n *numberer) fresh(in bril.Instr, dest string, typ bril.Type, key Key, vns []int) {
	d := n.define(dest, typ)
	vn := n.table.add(key, dest)
	n.canon = append(n.canon, d)
	n.vn[d] = vn
	n.pend = append(n.pend, pending{in: in, dest: d, destVN: vn, argVNs: vns})
}

// copyOf binds dest to the existing value vn as a copy.
func (n *numberer) copyOf(dest string, typ bril.Type, vn int) {
	d := n.define(dest, typ)
	n.vn[d] = vn
	n.pend = append(n.pend, pending{
		in:     bril.NewID(dest, typ, ""),
		dest:   d,
		destVN: vn,
		argVNs: []int{vn},
	})
}

// define creates a local version of name defined by the next pending
// instruction. The caller sets its value number.
func (n *numberer) define(name string, typ bril.Type) int {
	d := n.newVersion(version{name: name, typ: typ, def: len(n.pend)})
	n.local[name] = append(n.local[name], d)
	n.cur[name] = d
	return d
}

func (n *numberer) newVersion(v version) int {
	n.vers = append(n.vers, v)
	n.vn = append(n.vn, -1)
	return len(n.vers) - 1
}

// finish assigns final names and emits the block.
func (n *numberer) finish() *Result {
	used := make(map[string]bool, len(n.vers))
	for _, v := range n.vers {
		used[v.name] = true
	}

	res := &Result{Table: n.table}
	names := make([]string, len(n.vers))
	copies := make(map[int]int) // value number -> earliest local version holding it
	for v, ver := range n.vers {
		if ver.imported {
			names[v] = ver.name
			continue
		}
		if _, ok := copies[n.vn[v]]; !ok {
			copies[n.vn[v]] = v
		}
		locals := n.local[ver.name]
		if locals[len(locals)-1] != v {
			names[v] = n.alias(ver.name, used)
			res.Aliases++
			continue
		}
		names[v] = ver.name
	}

	for vn, cv := range n.canon {
		n.table.entries[vn].Canon = names[cv]
	}

	// holder names the variable carrying value vn when instruction i reads
	// it. A live-in stays readable until the final definition of its name.
	holder := func(vn, i int) string {
		cv := n.canon[vn]
		ver := n.vers[cv]
		if !ver.imported {
			return names[cv]
		}
		locals := n.local[ver.name]
		if len(locals) == 0 || n.vers[locals[len(locals)-1]].def >= i {
			return names[cv]
		}
		if c, ok := copies[vn]; ok && n.vers[c].def < i {
			return names[c]
		}
		return names[cv]
	}

	for i, p := range n.pend {
		in := p.in
		if len(p.argVNs) > 0 {
			ops := make([]string, len(p.argVNs))
			for j, vn := range p.argVNs {
				ops[j] = holder(vn, i)
			}
			in = in.WithOperands(ops)
		}
		if p.dest >= 0 {
			in = bril.WithDest(in, names[p.dest])
		}
		res.Instrs = append(res.Instrs, in)
		res.Dest = append(res.Dest, p.destVN)
		res.Args = append(res.Args, p.argVNs)
	}
	return res
}

// alias returns a fresh "lvn.<n>" name, counting per shadowed name and
// skipping names already in use in the block or the function.
func (n *numberer) alias(name string, used map[string]bool) string {
	for {
		a := "lvn." + strconv.Itoa(n.counter[name])
		n.counter[name]++
		if used[a] || n.scope.taken(a) {
			continue
		}
		used[a] = true
		n.scope.reserve(a)
		return a
	}
}

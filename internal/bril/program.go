package bril

// Program is an ordered list of functions.
type Program struct {
	Functions []*Function
}

// Arg is a function parameter.
type Arg struct {
	Name string
	Type Type
}

// Function is a function with a flat instruction list.
type Function struct {
	// Name is the function name.
	Name string

	// Args are the parameters in declaration order.
	Args []Arg

	// Type is the return type; empty for functions returning nothing.
	Type Type

	// Instrs is the flat instruction list.
	Instrs []Instr
}

// Func returns the function with the given name, or nil.
func (p *Program) Func(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// NumInstrs returns the total number of instructions in the program.
func (p *Program) NumInstrs() int {
	n := 0
	for _, f := range p.Functions {
		n += len(f.Instrs)
	}
	return n
}

// Names returns every variable name a function mentions: parameters,
// destinations and operands.
func (f *Function) Names() map[string]bool {
	names := make(map[string]bool, len(f.Args)+len(f.Instrs))
	for _, a := range f.Args {
		names[a.Name] = true
	}
	for _, in := range f.Instrs {
		if d, ok := Dest(in); ok {
			names[d] = true
		}
		for _, arg := range in.Operands() {
			names[arg] = true
		}
	}
	return names
}

// Defined returns the names a function binds: parameters and destinations.
func (f *Function) Defined() map[string]bool {
	defs := make(map[string]bool, len(f.Args)+len(f.Instrs))
	for _, a := range f.Args {
		defs[a.Name] = true
	}
	for _, in := range f.Instrs {
		if d, ok := Dest(in); ok {
			defs[d] = true
		}
	}
	return defs
}

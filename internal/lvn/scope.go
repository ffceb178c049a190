package lvn

import "github.com/you-not-fish/brilopt/internal/bril"

// Scope is the function-wide naming context of the blocks being numbered.
// It decides which operands resolve and which names aliases must avoid.
//
// A Scope is not safe for concurrent use; blocks of one function are
// processed in order.
type Scope struct {
	defined map[string]bool // parameters and destinations
	used    map[string]bool // every name mentioned, plus issued aliases
}

// NewScope returns the scope of fn.
func NewScope(fn *bril.Function) *Scope {
	return &Scope{defined: fn.Defined(), used: fn.Names()}
}

// Resolves reports whether name is a parameter or defined somewhere in the
// function.
func (s *Scope) Resolves(name string) bool {
	return s == nil || s.defined[name]
}

func (s *Scope) taken(name string) bool {
	return s != nil && s.used[name]
}

func (s *Scope) reserve(name string) {
	if s != nil {
		s.used[name] = true
		s.defined[name] = true
	}
}

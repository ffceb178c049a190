package bril

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind classifies an instruction.
type Kind int

const (
	KindInvalid Kind = iota
	KindLabel        // jump target
	KindConst        // dest = const literal
	KindValue        // dest = op args...
	KindEffect       // op args... with no destination
	KindControl      // br, jmp or ret
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindLabel:   "label",
	KindConst:   "const",
	KindValue:   "value",
	KindEffect:  "effect",
	KindControl: "control",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Type is a Bril type name such as "int" or "bool".
// Pointer types are spelled "ptr<T>".
type Type string

// Instr is a single IR instruction. The set of implementations is closed:
// *Label, *Const, *Value, *Effect, *Branch, *Jump and *Return.
type Instr interface {
	// Operands returns the variable names read by the instruction.
	// The returned slice must not be modified.
	Operands() []string

	// WithOperands returns a copy of the instruction reading args instead.
	// len(args) must equal len(Operands()).
	WithOperands(args []string) Instr

	String() string

	kind() Kind
}

// Label marks a jump target.
type Label struct {
	Name string
}

// Const assigns a literal to Dest.
type Const struct {
	Dest  string
	Type  Type
	Value Literal
}

// Value computes Op over Args and assigns the result to Dest.
type Value struct {
	Dest  string
	Type  Type
	Op    string
	Args  []string
	Funcs []string // callee for call
}

// Effect performs Op over Args for its side effect only.
type Effect struct {
	Op    string
	Args  []string
	Funcs []string
}

// Branch jumps to True if Cond holds and to False otherwise.
type Branch struct {
	Cond  string
	True  string
	False string
}

// Jump transfers control to Target.
type Jump struct {
	Target string
}

// Return leaves the function. Arg is empty for a void return.
type Return struct {
	Arg string
}

func (*Label) kind() Kind { return KindLabel }
func (*Const) kind() Kind { return KindConst }
func (*Value) kind() Kind { return KindValue }
func (*Effect) kind() Kind { return KindEffect }
func (*Branch) kind() Kind { return KindControl }
func (*Jump) kind() Kind { return KindControl }
func (*Return) kind() Kind { return KindControl }

func (*Label) Operands() []string { return nil }
func (*Const) Operands() []string { return nil }
func (in *Value) Operands() []string { return in.Args }
func (in *Effect) Operands() []string { return in.Args }
func (in *Branch) Operands() []string { return []string{in.Cond} }
func (*Jump) Operands() []string { return nil }
func (in *Return) Operands() []string {
	if in.Arg == "" {
		return nil
	}
	return []string{in.Arg}
}

func (in *Label) WithOperands([]string) Instr { c := *in; return &c }
func (in *Const) WithOperands([]string) Instr { c := *in; return &c }
func (in *Jump) WithOperands([]string) Instr { c := *in; return &c }

func (in *Value) WithOperands(args []string) Instr {
	c := *in
	c.Args = slices.Clone(args)
	c.Funcs = slices.Clone(in.Funcs)
	return &c
}

func (in *Effect) WithOperands(args []string) Instr {
	c := *in
	c.Args = slices.Clone(args)
	c.Funcs = slices.Clone(in.Funcs)
	return &c
}

func (in *Branch) WithOperands(args []string) Instr {
	c := *in
	c.Cond = args[0]
	return &c
}

func (in *Return) WithOperands(args []string) Instr {
	c := *in
	if len(args) > 0 {
		c.Arg = args[0]
	}
	return &c
}

// KindOf classifies in.
func KindOf(in Instr) Kind {
	if in == nil {
		return KindInvalid
	}
	return in.kind()
}

// IsTerminator reports whether in ends a basic block.
func IsTerminator(in Instr) bool {
	return KindOf(in) == KindControl
}

// OpOf returns the operation name of in, or "" for a label.
func OpOf(in Instr) string {
	switch in := in.(type) {
	case *Const:
		return OpConst
	case *Value:
		return in.Op
	case *Effect:
		return in.Op
	case *Branch:
		return OpBr
	case *Jump:
		return OpJmp
	case *Return:
		return OpRet
	}
	return ""
}

// Dest returns the variable written by in, if any.
func Dest(in Instr) (string, bool) {
	switch in := in.(type) {
	case *Const:
		return in.Dest, true
	case *Value:
		return in.Dest, true
	}
	return "", false
}

// WithDest returns a copy of in writing dest instead.
// Instructions without a destination are returned unchanged.
func WithDest(in Instr, dest string) Instr {
	switch in := in.(type) {
	case *Const:
		c := *in
		c.Dest = dest
		return &c
	case *Value:
		c := in.WithOperands(in.Args).(*Value)
		c.Dest = dest
		return c
	}
	return in
}

// Targets returns the labels in may transfer control to.
func Targets(in Instr) []string {
	switch in := in.(type) {
	case *Branch:
		return []string{in.True, in.False}
	case *Jump:
		return []string{in.Target}
	}
	return nil
}

// NewID returns "dest: typ = id src".
func NewID(dest string, typ Type, src string) *Value {
	return &Value{Dest: dest, Type: typ, Op: OpID, Args: []string{src}}
}

// Equal reports whether a and b are the same instruction.
func Equal(a, b Instr) bool {
	switch a := a.(type) {
	case *Label:
		b, ok := b.(*Label)
		return ok && *a == *b
	case *Const:
		b, ok := b.(*Const)
		return ok && *a == *b
	case *Value:
		b, ok := b.(*Value)
		return ok && a.Dest == b.Dest && a.Type == b.Type && a.Op == b.Op &&
			slices.Equal(a.Args, b.Args) && slices.Equal(a.Funcs, b.Funcs)
	case *Effect:
		b, ok := b.(*Effect)
		return ok && a.Op == b.Op && slices.Equal(a.Args, b.Args) && slices.Equal(a.Funcs, b.Funcs)
	case *Branch:
		b, ok := b.(*Branch)
		return ok && *a == *b
	case *Jump:
		b, ok := b.(*Jump)
		return ok && *a == *b
	case *Return:
		b, ok := b.(*Return)
		return ok && *a == *b
	}
	return a == nil && b == nil
}

// EqualInstrs reports whether two instruction lists are identical.
func EqualInstrs(a, b []Instr) bool {
	return slices.EqualFunc(a, b, Equal)
}

// String forms follow the textual Bril syntax.

func (in *Label) String() string { return "." + in.Name + ":" }

func (in *Const) String() string {
	return fmt.Sprintf("%s: %s = const %s;", in.Dest, in.Type, in.Value)
}

func (in *Value) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s = %s", in.Dest, in.Type, in.Op)
	writeOperands(&sb, in.Funcs, in.Args)
	sb.WriteByte(';')
	return sb.String()
}

func (in *Effect) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op)
	writeOperands(&sb, in.Funcs, in.Args)
	sb.WriteByte(';')
	return sb.String()
}

func (in *Branch) String() string {
	return fmt.Sprintf("br %s .%s .%s;", in.Cond, in.True, in.False)
}

func (in *Jump) String() string { return "jmp ." + in.Target + ";" }

func (in *Return) String() string {
	if in.Arg == "" {
		return "ret;"
	}
	return "ret " + in.Arg + ";"
}

func writeOperands(sb *strings.Builder, funcs, args []string) {
	for _, f := range funcs {
		sb.WriteString(" @")
		sb.WriteString(f)
	}
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
}

// Literal is a constant value: either a bool or a 64-bit integer.
// Literals are comparable with ==.
type Literal struct {
	isBool bool
	b      bool
	i      int64
}

// IntLit returns an integer literal.
func IntLit(v int64) Literal { return Literal{i: v} }

// BoolLit returns a boolean literal.
func BoolLit(v bool) Literal { return Literal{isBool: true, b: v} }

// IsBool reports whether l holds a bool.
func (l Literal) IsBool() bool { return l.isBool }

// Int returns the integer value; it is 0 for bool literals.
func (l Literal) Int() int64 { return l.i }

// Bool returns the boolean value; it is false for int literals.
func (l Literal) Bool() bool { return l.b }

func (l Literal) String() string {
	if l.isBool {
		return strconv.FormatBool(l.b)
	}
	return strconv.FormatInt(l.i, 10)
}

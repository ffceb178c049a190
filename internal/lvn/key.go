package lvn

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/you-not-fish/brilopt/internal/bril"
)

// KeyKind classifies a value key.
type KeyKind uint8

const (
	KeyConst  KeyKind = iota + 1 // literal of a type
	KeyOp                        // pure operation over value numbers
	KeyGlobal                    // value live into the block
	KeyOpaque                    // impure result, equal only to itself
)

var keyKindNames = [...]string{
	KeyConst:  "const",
	KeyOp:     "op",
	KeyGlobal: "global",
	KeyOpaque: "opaque",
}

func (k KeyKind) String() string {
	if int(k) < len(keyKindNames) && keyKindNames[k] != "" {
		return keyKindNames[k]
	}
	return "invalid"
}

// Key identifies a value within one block.
type Key struct {
	Kind KeyKind

	// KeyConst
	Type bril.Type
	Lit  bril.Literal

	// KeyOp and KeyOpaque
	Op    string
	Args  []int // operand value numbers, sorted for commutative ops
	Funcs []string

	// KeyGlobal: the imported variable. KeyOpaque: the defining variable.
	Name string
}

// ConstKey returns the key of a literal.
func ConstKey(typ bril.Type, lit bril.Literal) Key {
	return Key{Kind: KeyConst, Type: typ, Lit: lit}
}

// OpKey returns the key of op applied to the given value numbers.
// Operands of commutative ops are sorted.
func OpKey(op string, args []int, funcs []string) Key {
	args = slices.Clone(args)
	if bril.IsCommutative(op) {
		slices.Sort(args)
	}
	return Key{Kind: KeyOp, Op: op, Args: args, Funcs: funcs}
}

// Equal reports whether k and o denote the same value.
// Opaque keys are never equal to anything.
func (k Key) Equal(o Key) bool {
	if k.Kind == KeyOpaque || k.Kind != o.Kind {
		return false
	}
	switch k.Kind {
	case KeyConst:
		return k.Type == o.Type && k.Lit == o.Lit
	case KeyOp:
		return k.Op == o.Op && slices.Equal(k.Args, o.Args) && slices.Equal(k.Funcs, o.Funcs)
	case KeyGlobal:
		return k.Name == o.Name
	}
	return false
}

// IsLiteral reports whether k is a literal constant.
func (k Key) IsLiteral() bool { return k.Kind == KeyConst }

func (k Key) String() string {
	switch k.Kind {
	case KeyConst:
		return "const " + string(k.Type) + " " + k.Lit.String()
	case KeyGlobal:
		return "global " + k.Name
	}
	b := []byte(k.Kind.String())
	b = append(b, ' ')
	b = append(b, k.Op...)
	for _, f := range k.Funcs {
		b = append(b, " @"...)
		b = append(b, f...)
	}
	for _, a := range k.Args {
		b = append(b, " #"...)
		b = strconv.AppendInt(b, int64(a), 10)
	}
	return string(b)
}

// hash returns the index hash of k. Keys that are Equal hash alike.
func (k Key) hash() uint64 {
	b := make([]byte, 0, 64)
	b = append(b, byte(k.Kind))
	switch k.Kind {
	case KeyConst:
		b = append(b, k.Type...)
		b = append(b, 0)
		b = append(b, k.Lit.String()...)
	case KeyGlobal:
		b = append(b, k.Name...)
	default:
		b = append(b, k.Op...)
		for _, f := range k.Funcs {
			b = append(b, 0)
			b = append(b, f...)
		}
		for _, a := range k.Args {
			b = append(b, 0)
			b = strconv.AppendInt(b, int64(a), 10)
		}
	}
	return xxhash.Sum64(b)
}

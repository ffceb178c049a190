// Package bril implements the instruction model of the Bril-style
// three-address IR consumed by the optimizer.
package bril

// Operation names used by the passes.
const (
	OpConst = "const"
	OpID    = "id"

	// Integer arithmetic
	OpAdd = "add"
	OpSub = "sub"
	OpMul = "mul"
	OpDiv = "div"

	// Comparison
	OpEq = "eq"
	OpLt = "lt"
	OpGt = "gt"
	OpLe = "le"
	OpGe = "ge"

	// Boolean
	OpNot = "not"
	OpAnd = "and"
	OpOr  = "or"

	// Control
	OpBr  = "br"
	OpJmp = "jmp"
	OpRet = "ret"

	// Effects and impure values
	OpPrint = "print"
	OpNop   = "nop"
	OpCall  = "call"
	OpAlloc = "alloc"
	OpLoad  = "load"
	OpStore = "store"
	OpFree  = "free"
)

// opInfo holds metadata about an operation.
type opInfo struct {
	Commutative bool // operand order does not matter
	Compare     bool // int x int -> bool comparison
	Impure      bool // has side effects or reads memory; never merged or removed
	Control     bool // terminates a basic block
}

// opInfoTable maps known operations to their opInfo.
// Operations missing from the table are treated as pure and
// non-commutative.
var opInfoTable = map[string]opInfo{
	OpAdd: {Commutative: true},
	OpMul: {Commutative: true},
	OpAnd: {Commutative: true},
	OpOr:  {Commutative: true},

	OpEq: {Compare: true},
	OpLt: {Compare: true},
	OpGt: {Compare: true},
	OpLe: {Compare: true},
	OpGe: {Compare: true},

	OpCall:  {Impure: true},
	OpAlloc: {Impure: true},
	OpLoad:  {Impure: true},

	OpBr:  {Control: true},
	OpJmp: {Control: true},
	OpRet: {Control: true},
}

// IsCommutative reports whether operand order of op is irrelevant.
func IsCommutative(op string) bool { return opInfoTable[op].Commutative }

// IsCompare reports whether op is an integer comparison.
func IsCompare(op string) bool { return opInfoTable[op].Compare }

// IsImpure reports whether op must never be merged or deleted.
func IsImpure(op string) bool { return opInfoTable[op].Impure }

// IsControl reports whether op terminates a basic block.
func IsControl(op string) bool { return opInfoTable[op].Control }

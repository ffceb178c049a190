package bril

import (
	"errors"
	"fmt"
)

// Error kinds. Every error reported by the optimizer wraps one of these,
// so callers can test with errors.Is.
var (
	// ErrMalformedInstruction is an instruction matching none of the
	// recognized shapes.
	ErrMalformedInstruction = errors.New("malformed instruction")

	// ErrUnresolvedOperand is an operand naming a variable that is neither
	// defined in the function nor a parameter.
	ErrUnresolvedOperand = errors.New("unresolved operand")

	// ErrUnknownTarget is a branch or jump to a label with no block.
	ErrUnknownTarget = errors.New("unknown branch target")

	// ErrNonTermination is a fixpoint loop exceeding its iteration cap.
	ErrNonTermination = errors.New("fixpoint did not converge")
)

// Error describes an invalid program or a pass failure.
type Error struct {
	Kind  error  // one of the Err* kinds above
	Func  string // enclosing function, if known
	Block string // enclosing block, if known
	Msg   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	where := ""
	switch {
	case e.Func != "" && e.Block != "":
		where = fmt.Sprintf("func %s, %s: ", e.Func, e.Block)
	case e.Func != "":
		where = fmt.Sprintf("func %s: ", e.Func)
	}
	return fmt.Sprintf("%s%s: %s", where, e.Kind, e.Msg)
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error { return e.Kind }

// Errorf returns an *Error of the given kind.
func Errorf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InFunc attaches function and block context to err when it is an *Error
// without one. Other errors are returned unchanged.
func InFunc(err error, fn, block string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Func == "" {
		e.Func = fn
	}
	if e.Block == "" {
		e.Block = block
	}
	return err
}

package machine

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad is reported for malformed declarations. It is never fatal: the
	// offending value decodes as zero and loading continues.
	ErrLoad = errors.New("load error")

	// ErrUndefinedLabel is returned when a control transfer names a label that
	// is not in the label table.
	ErrUndefinedLabel = errors.New("undefined label")

	// ErrDivideByZero is returned by DIV/IDIV with a zero divisor.
	ErrDivideByZero = errors.New("divide by zero")

	// ErrDivideOverflow is returned by DIV/IDIV when the quotient does not fit
	// the destination register.
	ErrDivideOverflow = errors.New("divide overflow")

	// ErrMemoryAccessViolation is returned when an access runs past the end of
	// the memory arena.
	ErrMemoryAccessViolation = errors.New("memory access violation")

	// ErrInvalidOperand is returned when an operand cannot be used the way an
	// instruction requires (e.g. writing into an immediate).
	ErrInvalidOperand = errors.New("invalid operand")

	// ErrInputRequired is returned by blocking input services when the key
	// queue is empty. It is not a failure: execution suspends until a key
	// is submitted and the service is retried.
	ErrInputRequired = errors.New("input required")
)

// RuntimeError locates a fatal execution error in the source program.
type RuntimeError struct {
	// Line is the 1-based source line of the failing instruction
	Line int
	// Text is the raw source text of the failing instruction
	Text string
	// Err is the underlying error
	Err error
}

func (err *RuntimeError) Error() string {
	return fmt.Sprintf("line %d '%s': %v", err.Line, err.Text, err.Err)
}

func (err *RuntimeError) Unwrap() error {
	return err.Err
}

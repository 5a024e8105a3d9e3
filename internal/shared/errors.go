package shared

import (
	"errors"
	"strconv"
	"strings"
)

// NoSlot is the Error.Slot value for failures not tied to a slot.
const NoSlot = -1

// Error is the error returned by every metadata store operation.
type Error struct {
	Op   string // operation that failed: "test", "init", "load", "save", "wipe"
	Kind Kind
	Slot int // slot index, or NoSlot
	// Need is the stored payload length for BufferTooSmall failures.
	Need int
	Err  error // underlying cause, may be nil
}

// New returns an Error of the given kind with an optional cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Slot: NoSlot, Err: cause}
}

// Newf returns an Error of the given kind whose cause is a formatted message.
func Newf(kind Kind, text string) *Error {
	return New(kind, errors.New(text))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("luksmeta: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Slot != NoSlot {
		b.WriteString("slot ")
		b.WriteString(strconv.Itoa(e.Slot))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap stamps op and slot onto err. An *Error is copied so shared values are
// never mutated; any other error becomes an IO failure wrapping it.
func Wrap(op string, slot int, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		c := *e
		c.Op = op
		if c.Slot == NoSlot {
			c.Slot = slot
		}
		return &c
	}
	return &Error{Op: op, Kind: IO, Slot: slot, Err: err}
}

// KindOf returns the Kind of a non-nil error. Errors that did not come from
// this package are reported as IO.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return IO
}

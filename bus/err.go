package bus

import (
	"errors"

	"github.com/ezrec/msp430/translate"
)

var f = translate.From

var (
	ErrRegionsFull = errors.New(f("too many handler regions"))
)

// ErrRange is a handler or image outside of the address space.
type ErrRange struct {
	Name  string
	Start uint32
	End   uint32
}

func (err *ErrRange) Error() string {
	return f("%v: range 0x%05x-0x%05x outside of memory", err.Name, err.Start, err.End)
}

// ErrWarning is a warning escalated by POLICY_FAIL.
type ErrWarning struct {
	Kind    Warning
	Address uint32
	Detail  string
}

func (err *ErrWarning) Error() string {
	if len(err.Detail) == 0 {
		return f("%v at 0x%05x", err.Kind, err.Address)
	}
	return f("%v at 0x%05x: %v", err.Kind, err.Address, err.Detail)
}

// Is matches any ErrWarning of the same kind.
func (err *ErrWarning) Is(target error) bool {
	other, ok := target.(*ErrWarning)
	return ok && other.Kind == err.Kind
}

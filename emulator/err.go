package emulator

import (
	"errors"

	"github.com/ezrec/msp430/translate"
)

var f = translate.From

var (
	ErrComponent = errors.New(f("unknown component"))
	ErrPolicy    = errors.New(f("unknown warning policy"))
	ErrWarning   = errors.New(f("unknown warning kind"))
	ErrConfig    = errors.New(f("configuration value invalid"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	PC     uint32
	LineNo int
	Cycles int64
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo > 0 {
		return f("line %d (0x%04x, cycle %d) %v", err.LineNo, err.PC, err.Cycles, err.Err)
	}
	return f("0x%04x (cycle %d) %v", err.PC, err.Cycles, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

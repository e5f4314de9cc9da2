package cpu

import (
	"errors"

	"github.com/ezrec/msp430/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrVector = errors.New(f("interrupt vector out of range"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrDirectiveSyntax    = errors.New(f("directive syntax"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrOperandInvalid     = errors.New(f("operand invalid"))
	ErrTargetInvalid      = errors.New(f("target invalid"))
	ErrJumpRange          = errors.New(f("jump out of range"))
	ErrAlign              = errors.New(f("instruction at odd address"))
)

// ErrExecute is an attempt to execute outside of executable memory.
type ErrExecute struct {
	PC uint32
}

func (err *ErrExecute) Error() string {
	return f("execute at 0x%04x", err.PC)
}

// ErrBreakpoint is a stop requested by a breakpoint.
type ErrBreakpoint struct {
	PC uint32
}

func (err *ErrBreakpoint) Error() string {
	return f("breakpoint at 0x%04x", err.PC)
}

// Is matches any breakpoint stop.
func (err *ErrBreakpoint) Is(target error) (ok bool) {
	_, ok = target.(*ErrBreakpoint)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}

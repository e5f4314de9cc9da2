package bus

import (
	"log"
)

// Warning is a kind of recoverable emulation condition.
type Warning int

const (
	WARN_MISALIGNED    = Warning(0) // misaligned access
	WARN_OUT_OF_BOUNDS = Warning(1) // address out of bounds
	WARN_READ_ONLY     = Warning(2) // write to read-only register
	WARN_OPCODE        = Warning(3) // unimplemented opcode
	WARN_PERIPHERAL    = Warning(4) // peripheral fault
	WARN_COUNT         = 5
)

// Policy is how a warning is handled.
type Policy int

const (
	POLICY_SILENT = Policy(0) // silent
	POLICY_LOG    = Policy(1) // log
	POLICY_FAIL   = Policy(2) // fail
)

// Logger applies the warning policy. Under POLICY_FAIL the first warning
// is latched, and returned by Err().
type Logger struct {
	Policy   Policy             // Default policy.
	Override map[Warning]Policy // Per-warning policy overrides.
	Count    [WARN_COUNT]int    // Number of warnings seen, per kind.

	err error
}

// PolicyOf returns the effective policy for a warning kind.
func (lg *Logger) PolicyOf(kind Warning) (policy Policy) {
	policy = lg.Policy
	if override, ok := lg.Override[kind]; ok {
		policy = override
	}

	// Unimplemented opcodes are never fatal.
	if kind == WARN_OPCODE && policy == POLICY_FAIL {
		policy = POLICY_LOG
	}

	return
}

// Warn reports a warning.
func (lg *Logger) Warn(kind Warning, address uint32, detail string) {
	if kind >= 0 && kind < WARN_COUNT {
		lg.Count[kind]++
	}

	switch lg.PolicyOf(kind) {
	case POLICY_SILENT:
		// pass
	case POLICY_LOG:
		log.Printf("warning: %v", &ErrWarning{Kind: kind, Address: address, Detail: detail})
	case POLICY_FAIL:
		if lg.err == nil {
			lg.err = &ErrWarning{Kind: kind, Address: address, Detail: detail}
		}
	}
}

// Err returns the latched warning, if any, and clears it.
func (lg *Logger) Err() (err error) {
	err = lg.err
	lg.err = nil
	return
}

package emulator

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/msp430/bus"
)

// Config is the configuration of an emulator.
type Config struct {
	Verbose   bool                       // Emulator verbose logging.
	Verbosity []string                   // Components with verbose logging.
	Policy    bus.Policy                 // Default warning policy.
	Override  map[bus.Warning]bus.Policy // Per-warning policy overrides.
	Trace     int                        // Program counter trace depth, or 0 for the default.
	MaxCycles int64                      // Cycle limit of a run, or 0 for none.
	Firmware  string                     // Firmware file, assembly or raw binary.
	Base      uint32                     // Load address of a raw binary.
	Console   int                        // USART of the console, or -1 for none.
}

// DefaultConfig returns the configuration of a bare chip.
func DefaultConfig() Config {
	return Config{
		Policy:  bus.POLICY_LOG,
		Base:    FLASH_START,
		Console: 0,
	}
}

// configPredeclared are the names visible to configuration scripts.
func configPredeclared() (pred starlark.StringDict) {
	pred = starlark.StringDict{}

	for _, policy := range []bus.Policy{bus.POLICY_SILENT, bus.POLICY_LOG, bus.POLICY_FAIL} {
		pred[policyNames[policy]] = starlark.MakeInt(int(policy))
	}

	for kind, name := range warningNames {
		pred[name] = starlark.MakeInt(int(kind))
	}

	for name, value := range map[string]uint32{
		"RAM_START":   RAM_START,
		"RAM_END":     RAM_END,
		"INFO_START":  INFO_START,
		"FLASH_START": FLASH_START,
	} {
		pred[name] = starlark.MakeUint(uint(value))
	}

	return
}

var policyNames = map[bus.Policy]string{
	bus.POLICY_SILENT: "SILENT",
	bus.POLICY_LOG:    "LOG",
	bus.POLICY_FAIL:   "FAIL",
}

var warningNames = map[bus.Warning]string{
	bus.WARN_MISALIGNED:    "MISALIGNED",
	bus.WARN_OUT_OF_BOUNDS: "OUT_OF_BOUNDS",
	bus.WARN_READ_ONLY:     "READ_ONLY",
	bus.WARN_OPCODE:        "OPCODE",
	bus.WARN_PERIPHERAL:    "PERIPHERAL",
}

// LoadConfig evaluates a starlark configuration script over the default
// configuration. 'src' is as for starlark.ExecFileOptions: if nil, the
// script is read from 'filename'.
//
// The script sets any of the globals:
//
//	verbose = True
//	verbosity = ["cpu", "timer_a"]
//	policy = FAIL
//	warnings = {OPCODE: LOG}
//	trace = 32
//	max_cycles = 10000000
//	firmware = "blink.s"
//	base = FLASH_START
//	console = 1
//
// A relative firmware path is relative to the directory of 'filename'.
func LoadConfig(filename string, src any) (config Config, err error) {
	config = DefaultConfig()

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			log.Printf("%v: %v", filename, msg)
		},
	}

	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, filename, src, configPredeclared())
	if err != nil {
		return
	}

	for name, value := range globals {
		if _, ok := value.(starlark.Callable); ok || strings.HasPrefix(name, "_") {
			continue
		}

		err = config.set(name, value)
		if err != nil {
			return
		}
	}

	if len(config.Firmware) != 0 && !filepath.IsAbs(config.Firmware) {
		config.Firmware = filepath.Join(filepath.Dir(filename), config.Firmware)
	}

	return
}

// set sets a configuration value from a script global.
func (config *Config) set(name string, value starlark.Value) (err error) {
	var n int64

	switch name {
	case "verbose":
		config.Verbose = bool(value.Truth())
	case "verbosity":
		list, ok := value.(*starlark.List)
		if !ok {
			return configError(name, value)
		}
		config.Verbosity = nil
		for i := range list.Len() {
			str, ok := starlark.AsString(list.Index(i))
			if !ok {
				return configError(name, list.Index(i))
			}
			config.Verbosity = append(config.Verbosity, str)
		}
	case "policy":
		config.Policy, err = policyOf(name, value)
	case "warnings":
		dict, ok := value.(*starlark.Dict)
		if !ok {
			return configError(name, value)
		}
		config.Override = make(map[bus.Warning]bus.Policy, dict.Len())
		for _, item := range dict.Items() {
			n, err = configInt(name, item[0])
			if err != nil {
				return
			}
			kind := bus.Warning(n)
			if _, ok := warningNames[kind]; !ok {
				return fmt.Errorf("%w: %v", ErrWarning, item[0])
			}
			config.Override[kind], err = policyOf(name, item[1])
			if err != nil {
				return
			}
		}
	case "trace":
		n, err = configInt(name, value)
		config.Trace = int(n)
	case "max_cycles":
		config.MaxCycles, err = configInt(name, value)
	case "firmware":
		str, ok := starlark.AsString(value)
		if !ok {
			return configError(name, value)
		}
		config.Firmware = str
	case "base":
		n, err = configInt(name, value)
		if err == nil && (n < 0 || n >= MEMORY_SIZE) {
			err = configError(name, value)
		}
		config.Base = uint32(n)
	case "console":
		n, err = configInt(name, value)
		if err == nil && (n < -1 || n >= USART_COUNT) {
			err = configError(name, value)
		}
		config.Console = int(n)
	default:
		err = fmt.Errorf("%w: %v", ErrConfig, name)
	}

	return
}

// configError reports an invalid configuration value.
func configError(name string, value starlark.Value) error {
	return fmt.Errorf("%w: %v = %v", ErrConfig, name, value)
}

// configInt returns the integer value of a script global.
func configInt(name string, value starlark.Value) (n int64, err error) {
	i, ok := value.(starlark.Int)
	if !ok {
		err = configError(name, value)
		return
	}

	n, ok = i.Int64()
	if !ok {
		err = configError(name, value)
	}

	return
}

// policyOf returns the warning policy of a script value.
func policyOf(name string, value starlark.Value) (policy bus.Policy, err error) {
	n, err := configInt(name, value)
	if err != nil {
		return
	}

	policy = bus.Policy(n)
	if _, ok := policyNames[policy]; !ok {
		err = fmt.Errorf("%w: %v", ErrPolicy, value)
	}

	return
}

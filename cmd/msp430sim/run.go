package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/emulator"
	"github.com/ezrec/msp430/internal/statsview"
	"github.com/ezrec/msp430/translate"
)

var f = translate.From

var ErrNoFirmware = errors.New(f("no firmware to run"))

// RUN_SLICE is the virtual time run between checks for interruption.
const RUN_SLICE = 10.0 // msec

type runCmd struct {
	Firmware  string   `arg:"" optional:"" type:"existingfile" help:"Firmware: assembly (.s, .asm) or a raw image."`
	Config    string   `short:"c" type:"existingfile" help:"Starlark chip configuration."`
	Base      string   `help:"Load address of a raw image." placeholder:"ADDR"`
	Cycles    int64    `help:"Stop after this many cycles."`
	Strict    bool     `help:"Stop on any emulation warning."`
	Verbosity []string `short:"V" sep:"," help:"Components to log verbosely (cpu, bus, clock, timer_a, usart0, ...)."`
	Input     string   `short:"i" default:"-" help:"Console input, '-' for the terminal."`
	Output    string   `short:"o" default:"-" help:"Console output, '-' for the terminal."`
	Realtime  bool     `help:"Pace the emulation to wall clock time."`
	Dump      bool     `help:"Print the core state at exit."`
	Stats     bool     `help:"Serve runtime statistics over HTTP."`
}

// config returns the emulator configuration, with the flags applied over
// the configuration file.
func (r *runCmd) config(g *globals) (config emulator.Config, err error) {
	config = emulator.DefaultConfig()
	if len(r.Config) != 0 {
		config, err = emulator.LoadConfig(r.Config, nil)
		if err != nil {
			return
		}
	}

	if g.Verbose {
		config.Verbose = true
	}
	if len(r.Firmware) != 0 {
		config.Firmware = r.Firmware
	}
	if len(r.Base) != 0 {
		var base uint64
		base, err = strconv.ParseUint(r.Base, 0, 16)
		if err != nil {
			return
		}
		config.Base = uint32(base)
	}
	if r.Cycles != 0 {
		config.MaxCycles = r.Cycles
	}
	if r.Strict {
		config.Policy = bus.POLICY_FAIL
	}
	config.Verbosity = append(config.Verbosity, r.Verbosity...)

	if len(config.Firmware) == 0 {
		err = ErrNoFirmware
	}

	return
}

func (r *runCmd) Run(g *globals) (err error) {
	config, err := r.config(g)
	if err != nil {
		return
	}

	if r.Stats {
		if !statsview.Available() {
			translate.Logf("msp430sim", "built without the statsview tag")
		}
		stop := statsview.Launch(os.Stderr)
		defer stop()
	}

	emu, err := emulator.NewEmulator(config)
	if err != nil {
		return
	}

	err = emu.LoadFile(config.Firmware)
	if err != nil {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if config.Console >= 0 {
		var con *console
		con, err = openConsole(&emu.Tape[config.Console], r.Input, r.Output, stop)
		if err != nil {
			return
		}
		defer con.Close()
	}

	emu.Reset()

	err = r.run(ctx, emu)

	if err != nil || r.Dump {
		fmt.Fprint(os.Stderr, emu.Dump())
	}

	if config.Verbose {
		translate.Logf("msp430sim", "%d cycles, %.3f msec", emu.Cycles(), emu.Millis())
	}

	return
}

// run runs the emulator in slices until the cycle limit, an error, or
// an interruption.
func (r *runCmd) run(ctx context.Context, emu *emulator.Emulator) (err error) {
	limit := emu.Config.MaxCycles
	start := time.Now()
	started := emu.Millis()

	for ctx.Err() == nil {
		cycles := emu.Clock.CyclesIn(RUN_SLICE)
		if limit > 0 {
			if emu.Cycles() >= limit {
				break
			}
			cycles = min(cycles, limit-emu.Cycles())
		}

		err = emu.Run(cycles)
		if err != nil {
			return
		}

		if r.Realtime {
			ahead := time.Duration((emu.Millis()-started)*float64(time.Millisecond)) - time.Since(start)
			if ahead > 0 {
				time.Sleep(ahead)
			}
		}
	}

	return
}

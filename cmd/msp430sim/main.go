// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// msp430sim runs firmware on an emulated MSP430F1611.
package main

import (
	"github.com/alecthomas/kong"
)

// globals are the flags shared by all commands.
type globals struct {
	Verbose bool `short:"v" help:"Verbose logging."`
}

func main() {
	var cli struct {
		Globals globals `embed:""`

		Run     runCmd     `cmd:"" default:"withargs" help:"Run firmware on an emulated MSP430F1611."`
		Asm     asmCmd     `cmd:"" help:"Assemble a source file into a raw flash image."`
		Defines definesCmd `cmd:"" help:"List the chip register names and values."`
	}

	ctx := kong.Parse(&cli,
		kong.Name("msp430sim"),
		kong.Description("MSP430F1611 emulator."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

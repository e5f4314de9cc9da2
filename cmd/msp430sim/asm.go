package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ezrec/msp430/emulator"
	"github.com/ezrec/msp430/translate"
)

var ErrImageRange = errors.New(f("program outside of the image"))

type asmCmd struct {
	Source string `arg:"" type:"existingfile" help:"Assembly source."`
	Output string `short:"o" help:"Raw image output (default: source with .bin suffix)."`
	Base   string `help:"Start address of the image." default:"0x4000" placeholder:"ADDR"`
	List   bool   `short:"l" help:"Print the program listing."`
}

func (a *asmCmd) Run(g *globals) (err error) {
	base, err := strconv.ParseUint(a.Base, 0, 16)
	if err != nil {
		return
	}

	emu, err := emulator.NewEmulator(emulator.DefaultConfig())
	if err != nil {
		return
	}

	inf, err := os.Open(a.Source)
	if err != nil {
		return
	}
	defer inf.Close()

	prog, err := emu.Assembler().Parse(inf)
	if err != nil {
		err = fmt.Errorf("%v: %w", a.Source, err)
		return
	}

	image := make([]byte, emulator.MEMORY_SIZE-int(base))
	for n := range image {
		image[n] = 0xff
	}

	for address, data := range prog.Segments() {
		if address < uint32(base) {
			err = fmt.Errorf("0x%04x: %w", address, ErrImageRange)
			return
		}
		copy(image[address-uint32(base):], data)
	}

	if a.List {
		for _, op := range prog.Opcodes {
			if len(op.Data) == 0 {
				continue
			}
			fmt.Printf("%04x: % -24x %4d  %s\n", op.Address, op.Data, op.LineNo, strings.Join(op.Words, " "))
		}
	}

	output := a.Output
	if len(output) == 0 {
		output = strings.TrimSuffix(a.Source, ".s")
		output = strings.TrimSuffix(output, ".asm") + ".bin"
	}

	err = os.WriteFile(output, image, 0o644)
	if err != nil {
		return
	}

	if g.Verbose {
		translate.Fprintf(os.Stderr, "%v: %d bytes at 0x%04x\n", output, len(image), base)
	}

	return
}

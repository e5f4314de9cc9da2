package main

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/ezrec/msp430/emulator"
	"github.com/ezrec/msp430/internal"
	"github.com/ezrec/msp430/translate"
)

type definesCmd struct {
	Prefix string `arg:"" optional:"" help:"Only list names with this prefix."`
}

func (d *definesCmd) Run(g *globals) (err error) {
	emu, err := emulator.NewEmulator(emulator.DefaultConfig())
	if err != nil {
		return
	}

	defines := maps.Collect(internal.Filter2(emu.Defines(), func(name string, _ string) bool {
		return strings.HasPrefix(name, d.Prefix)
	}))

	for _, name := range slices.Sorted(maps.Keys(defines)) {
		_, err = translate.Fprintf(os.Stdout, "%-16s %s\n", name, defines[name])
		if err != nil {
			return
		}
	}

	return
}

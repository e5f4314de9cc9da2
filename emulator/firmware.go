package emulator

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Assemble assembles a program with the chip defines, and loads it.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	prog, err := emu.Assembler().Parse(input)
	if err != nil {
		return
	}

	err = emu.LoadProgram(prog)

	return
}

// LoadFile loads a firmware file. Assembly sources (.s, .asm) are
// assembled, anything else is a raw image loaded at the configured base.
func (emu *Emulator) LoadFile(name string) (err error) {
	inf, err := os.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".s", ".asm":
		err = emu.Assemble(inf)
	default:
		var image []byte
		image, err = io.ReadAll(inf)
		if err != nil {
			return
		}
		err = emu.Load(image, emu.Config.Base)
	}

	return
}

package cpu

import (
	"iter"
	"slices"

	"github.com/ezrec/msp430/bus"
)

// LinkKind is how a label reference is resolved.
type LinkKind int

const (
	LINK_ABSOLUTE = LinkKind(0) // Word holds the label address.
	LINK_RELATIVE = LinkKind(1) // Word holds the label offset from the word.
	LINK_JUMP     = LinkKind(2) // Jump offset field of an instruction word.
)

// Link is a label reference waiting for the label address.
type Link struct {
	Offset int    // Byte offset of the word within the opcode data.
	Label  string // Referenced label.
	Kind   LinkKind
}

// Opcode is the assembled output of a single line.
type Opcode struct {
	LineNo  int      // Source line number.
	Address uint32   // Load address.
	Words   []string // Source words.
	Data    []byte   // Assembled little-endian data.
	Links   []Link   // Unresolved label references.
}

// Contains returns true if the opcode data covers an address.
func (op *Opcode) Contains(address uint32) bool {
	return address >= op.Address && address < op.Address+uint32(len(op.Data))
}

// Program is an assembled program image.
type Program struct {
	Opcodes []Opcode
	Labels  map[string]uint32
}

// Debug is the opcode covering an address.
type Debug struct {
	*Opcode
	Offset int
}

// Debug returns the opcode covering an address, if any.
func (prog *Program) Debug(address uint32) (dbg Debug) {
	for n := range prog.Opcodes {
		op := &prog.Opcodes[n]
		if op.Contains(address) {
			dbg = Debug{
				Opcode: op,
				Offset: int(address - op.Address),
			}
			break
		}
	}

	return
}

// Segments iterates over the contiguous runs of program data, in address
// order.
func (prog *Program) Segments() iter.Seq2[uint32, []byte] {
	return func(yield func(address uint32, data []byte) bool) {
		ops := slices.Clone(prog.Opcodes)
		slices.SortStableFunc(ops, func(a, b Opcode) int {
			return int(a.Address) - int(b.Address)
		})

		var start uint32
		var data []byte
		for _, op := range ops {
			if len(op.Data) == 0 {
				continue
			}
			if data != nil && op.Address != start+uint32(len(data)) {
				if !yield(start, data) {
					return
				}
				data = nil
			}
			if data == nil {
				start = op.Address
			}
			data = append(data, op.Data...)
		}

		if data != nil {
			yield(start, data)
		}
	}
}

// Load copies the program into memory.
func (prog *Program) Load(b *bus.Bus) (err error) {
	for address, data := range prog.Segments() {
		err = b.Load(address, data)
		if err != nil {
			return
		}
	}

	return
}

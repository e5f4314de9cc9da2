// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package bus is the flat address space of the microcontroller, with
// per-address dispatch of reads and writes to peripheral handlers.
package bus

import (
	"fmt"
	"log"
)

// Width is the size of a bus access.
type Width int

//go:generate go tool stringer -linecomment -type=Width,Warning,Policy
const (
	BYTE   = Width(0) // byte
	WORD   = Width(1) // word
	WORD20 = Width(2) // word20
)

// Mask returns the value mask of the access width.
func (w Width) Mask() uint32 {
	switch w {
	case BYTE:
		return 0xff
	case WORD:
		return 0xffff
	default:
		return 0xfffff
	}
}

// Size returns the number of bytes moved by the access width.
func (w Width) Size() uint32 {
	switch w {
	case BYTE:
		return 1
	case WORD:
		return 2
	default:
		return 4
	}
}

// ReadFunc handles a peripheral register read. Reads may have side effects.
type ReadFunc func(address uint32, width Width) (value uint32)

// WriteFunc handles a peripheral register write.
type WriteFunc func(address uint32, value uint32, width Width)

// WatchFunc observes an access to a watched address.
type WatchFunc func(address uint32, value uint32, write bool)

// Region is a handler registered over a range of addresses.
type Region struct {
	Name  string    // Name of the owning peripheral.
	Start uint32    // First address of the region.
	End   uint32    // One past the last address of the region.
	Read  ReadFunc  // Read handler, or nil for plain memory.
	Write WriteFunc // Write handler, or nil for plain memory.
}

// Contains returns true if the address is within the region.
func (r *Region) Contains(address uint32) bool {
	return address >= r.Start && address < r.End
}

// Bus is the memory array and its dispatch tables.
type Bus struct {
	Verbose bool    // Set to enable verbose logging.
	Logger  *Logger // Warning policy.
	Memory  []byte  // Raw memory cells.

	regions  []*Region // Handler arena. Index 0 is plain memory.
	dispatch []uint16  // Per-address index into regions.
	watches  map[uint32][]WatchFunc
}

// NewBus creates a bus with a memory of 'size' bytes.
func NewBus(size int) (bus *Bus) {
	bus = &Bus{
		Logger:   &Logger{Policy: POLICY_LOG},
		Memory:   make([]byte, size),
		regions:  []*Region{nil},
		dispatch: make([]uint16, size),
		watches:  map[uint32][]WatchFunc{},
	}

	return
}

// Size returns the size of the address space.
func (bus *Bus) Size() uint32 {
	return uint32(len(bus.Memory))
}

// RegisterHandler installs a handler over the addresses [start, end).
// A later registration replaces earlier ones for the addresses it covers.
func (bus *Bus) RegisterHandler(name string, start, end uint32, read ReadFunc, write WriteFunc) (handle int, err error) {
	if start >= end || end > bus.Size() {
		err = &ErrRange{Name: name, Start: start, End: end}
		return
	}

	if len(bus.regions) >= 0xffff {
		err = ErrRegionsFull
		return
	}

	region := &Region{Name: name, Start: start, End: end, Read: read, Write: write}
	handle = len(bus.regions)
	bus.regions = append(bus.regions, region)
	for addr := start; addr < end; addr++ {
		bus.dispatch[addr] = uint16(handle)
	}

	if bus.Verbose {
		log.Printf("bus: %v: 0x%05x-0x%05x", name, start, end-1)
	}

	return
}

// SetReadOnly installs a handler over [start, end) that reads plain
// memory and reports every write.
func (bus *Bus) SetReadOnly(name string, start, end uint32) (handle int, err error) {
	return bus.RegisterHandler(name, start, end, nil, func(address uint32, value uint32, width Width) {
		bus.Warn(WARN_READ_ONLY, address, fmt.Sprintf("%v: 0x%x", name, value))
	})
}

// Region returns the handler registered at an address, or nil.
func (bus *Bus) Region(address uint32) *Region {
	if address >= bus.Size() {
		return nil
	}
	return bus.regions[bus.dispatch[address]]
}

// Watch adds a memory observer at an address.
func (bus *Bus) Watch(address uint32, fn WatchFunc) {
	bus.watches[address] = append(bus.watches[address], fn)
}

// Unwatch removes all observers at an address.
func (bus *Bus) Unwatch(address uint32) {
	delete(bus.watches, address)
}

// Warn reports a warning through the bus logger.
func (bus *Bus) Warn(kind Warning, address uint32, detail string) {
	bus.Logger.Warn(kind, address, detail)
}

// fixup checks bounds and alignment, and returns a usable address.
func (bus *Bus) fixup(address uint32, width Width, write bool) uint32 {
	if address >= bus.Size() {
		detail := "read"
		if write {
			detail = "write"
		}
		bus.Warn(WARN_OUT_OF_BOUNDS, address, detail)
		address %= bus.Size()
	}

	if width != BYTE && (address&1) != 0 {
		detail := "read"
		if write {
			detail = "write"
		}
		bus.Warn(WARN_MISALIGNED, address, detail)
	}

	return address
}

// raw reads plain memory little-endian.
func (bus *Bus) raw(address uint32, width Width) (value uint32) {
	size := bus.Size()
	for n := range width.Size() {
		value |= uint32(bus.Memory[(address+n)%size]) << (8 * n)
	}
	return value & width.Mask()
}

// Read reads a value from the bus, dispatching to handlers.
func (bus *Bus) Read(address uint32, width Width) (value uint32) {
	address = bus.fixup(address, width, false)

	region := bus.regions[bus.dispatch[address]]
	switch {
	case region == nil || region.Read == nil:
		value = bus.raw(address, width)
	case width == WORD20:
		value = region.Read(address, WORD) & 0xffff
		hi := bus.Read((address+2)%bus.Size(), WORD)
		value |= (hi & 0xf) << 16
	default:
		value = region.Read(address, width) & width.Mask()
	}

	if fns, ok := bus.watches[address]; ok {
		for _, fn := range fns {
			fn(address, value, false)
		}
	}

	return
}

// Write writes a value to the bus, dispatching to handlers.
func (bus *Bus) Write(address uint32, value uint32, width Width) {
	address = bus.fixup(address, width, true)
	value &= width.Mask()

	if fns, ok := bus.watches[address]; ok {
		for _, fn := range fns {
			fn(address, value, true)
		}
	}

	region := bus.regions[bus.dispatch[address]]
	switch {
	case region == nil || region.Write == nil:
		size := bus.Size()
		for n := range width.Size() {
			at := (address + n) % size
			next := bus.regions[bus.dispatch[at]]
			if next != region && next != nil && next.Write != nil {
				// Straddles into a handler.
				next.Write(at, (value>>(8*n))&0xff, BYTE)
				continue
			}
			bus.Memory[at] = byte(value >> (8 * n))
		}
	case width == WORD20:
		region.Write(address, value&0xffff, WORD)
		bus.Write((address+2)%bus.Size(), value>>16, WORD)
	default:
		region.Write(address, value, width)
	}
}

// Load copies an image into plain memory, bypassing handlers.
func (bus *Bus) Load(address uint32, data []byte) (err error) {
	if uint64(address)+uint64(len(data)) > uint64(bus.Size()) {
		err = &ErrRange{Name: "load", Start: address, End: address + uint32(len(data))}
		return
	}

	copy(bus.Memory[address:], data)

	return
}

package io

import (
	"iter"
	"maps"

	"github.com/ezrec/msp430/cpu"
)

const (
	SFR_IE1  = uint32(0x0000)
	SFR_IE2  = uint32(0x0001)
	SFR_IFG1 = uint32(0x0002)
	SFR_IFG2 = uint32(0x0003)
	SFR_ME1  = uint32(0x0004)
	SFR_ME2  = uint32(0x0005)

	SFR_WDTIFG = uint8(0x01) // IFG1 watchdog flag, kept over a reset.
)

// SFRModule is a peripheral with interrupt bits in the special function
// registers.
type SFRModule interface {
	cpu.InterruptSource
	// Name returns the name of the module.
	Name() string
	// EnableChanged is called when a module enable bit of the module changes.
	EnableChanged(reg int, bit int, on bool)
}

// sfrBit is the module and vector of an interrupt flag bit.
type sfrBit struct {
	module SFRModule
	vector int
}

// SFR is the special function registers: the interrupt enable, interrupt
// flag and module enable bits of the SFR modules.
type SFR struct {
	unit

	ie  [2]uint8
	ifg [2]uint8
	me  [2]uint8

	bits [16]sfrBit
}

var _ Peripheral = (*SFR)(nil)

// NewSFR creates the special function registers.
func NewSFR(c *cpu.Cpu) (sfr *SFR, err error) {
	sfr = &SFR{unit: unit{name: "sfr", cpu: c}}

	read, write := byteRegisters(sfr.read, sfr.write)
	err = sfr.attach(sfr, SFR_IE1, SFR_ME2+1, read, write)
	if err != nil {
		return
	}

	return
}

// Defines returns the register names and addresses.
func (sfr *SFR) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"IE1":  hex(SFR_IE1),
		"IE2":  hex(SFR_IE2),
		"IFG1": hex(SFR_IFG1),
		"IFG2": hex(SFR_IFG2),
		"ME1":  hex(SFR_ME1),
		"ME2":  hex(SFR_ME2),
	})
}

// Reset clears the registers, except for the watchdog flag.
func (sfr *SFR) Reset() {
	sfr.ie = [2]uint8{}
	sfr.ifg = [2]uint8{sfr.ifg[0] & SFR_WDTIFG, 0}
	sfr.me = [2]uint8{}
}

// RegisterBit assigns an interrupt flag bit of IFG1 (reg 0) or IFG2
// (reg 1) to a module and vector.
func (sfr *SFR) RegisterBit(reg int, bit int, module SFRModule, vector int) {
	sfr.bits[reg*8+bit] = sfrBit{module: module, vector: vector}
}

func (sfr *SFR) read(address uint32) (value uint8) {
	reg := int(address & 1)
	switch address &^ 1 {
	case SFR_IE1:
		value = sfr.ie[reg]
	case SFR_IFG1:
		value = sfr.ifg[reg]
	case SFR_ME1:
		value = sfr.me[reg]
	}
	return
}

func (sfr *SFR) write(address uint32, value uint8) {
	reg := int(address & 1)
	switch address &^ 1 {
	case SFR_IE1:
		change := sfr.ie[reg] ^ value
		sfr.ie[reg] = value
		sfr.update(reg, change)
	case SFR_IFG1:
		change := sfr.ifg[reg] ^ value
		sfr.ifg[reg] = value
		sfr.update(reg, change)
	case SFR_ME1:
		change := sfr.me[reg] ^ value
		sfr.me[reg] = value
		for bit := range 8 {
			if (change & (1 << bit)) == 0 {
				continue
			}
			if module := sfr.bits[reg*8+bit].module; module != nil {
				module.EnableChanged(reg, bit, (value&(1<<bit)) != 0)
			}
		}
	}
}

// update flags the interrupts of the changed bits.
func (sfr *SFR) update(reg int, change uint8) {
	active := sfr.ie[reg] & sfr.ifg[reg]
	for bit := range 8 {
		if (change & (1 << bit)) == 0 {
			continue
		}
		entry := sfr.bits[reg*8+bit]
		if entry.module == nil {
			continue
		}
		sfr.logf("%v vector %d: %v", entry.module.Name(), entry.vector, (active&(1<<bit)) != 0)
		sfr.cpu.FlagInterrupt(entry.vector, entry.module, (active&(1<<bit)) != 0)
	}
}

// SetIFG sets interrupt flag bits.
func (sfr *SFR) SetIFG(reg int, bits uint8) {
	old := sfr.ifg[reg]
	sfr.ifg[reg] |= bits
	sfr.update(reg, old^sfr.ifg[reg])
}

// ClearIFG clears interrupt flag bits.
func (sfr *SFR) ClearIFG(reg int, bits uint8) {
	old := sfr.ifg[reg]
	sfr.ifg[reg] &^= bits
	sfr.update(reg, old^sfr.ifg[reg])
}

// ClearIE clears interrupt enable bits.
func (sfr *SFR) ClearIE(reg int, bits uint8) {
	old := sfr.ie[reg]
	sfr.ie[reg] &^= bits
	sfr.update(reg, old^sfr.ie[reg])
}

// IFG returns the interrupt flags.
func (sfr *SFR) IFG(reg int) uint8 {
	return sfr.ifg[reg]
}

// IE returns true if all of the interrupt enable bits are set.
func (sfr *SFR) IE(reg int, bits uint8) bool {
	return (sfr.ie[reg] & bits) == bits
}

// ME returns true if all of the module enable bits are set.
func (sfr *SFR) ME(reg int, bits uint8) bool {
	return (sfr.me[reg] & bits) == bits
}

package io

import (
	"iter"
	"maps"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/cpu"
)

const (
	MPY_MPY    = uint32(0x0130)
	MPY_MPYS   = uint32(0x0132)
	MPY_MAC    = uint32(0x0134)
	MPY_MACS   = uint32(0x0136)
	MPY_OP2    = uint32(0x0138)
	MPY_RESLO  = uint32(0x013a)
	MPY_RESHI  = uint32(0x013c)
	MPY_SUMEXT = uint32(0x013e)
)

// Multiplier is the 16x16 hardware multiplier. Writing OP1 through one
// of MPY, MPYS, MAC or MACS selects the operation, and writing OP2
// computes it.
type Multiplier struct {
	unit

	mode   uint32 // Address OP1 was written through.
	op1    uint16
	op2    uint16
	res    uint32
	sumext uint16
}

var _ Peripheral = (*Multiplier)(nil)

// NewMultiplier creates the hardware multiplier.
func NewMultiplier(c *cpu.Cpu) (mpy *Multiplier, err error) {
	mpy = &Multiplier{unit: unit{name: "mpy", cpu: c}}

	err = mpy.attach(mpy, MPY_MPY, MPY_SUMEXT+2, mpy.read, mpy.write)
	if err != nil {
		return
	}

	return
}

// Defines returns the register names and addresses.
func (mpy *Multiplier) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"MPY":    hex(MPY_MPY),
		"MPYS":   hex(MPY_MPYS),
		"MAC":    hex(MPY_MAC),
		"MACS":   hex(MPY_MACS),
		"OP2":    hex(MPY_OP2),
		"RESLO":  hex(MPY_RESLO),
		"RESHI":  hex(MPY_RESHI),
		"SUMEXT": hex(MPY_SUMEXT),
	})
}

// Reset clears the multiplier.
func (mpy *Multiplier) Reset() {
	mpy.mode = MPY_MPY
	mpy.op1 = 0
	mpy.op2 = 0
	mpy.res = 0
	mpy.sumext = 0
}

// Result returns the 32-bit result and the sum extension.
func (mpy *Multiplier) Result() (res uint32, sumext uint16) {
	return mpy.res, mpy.sumext
}

// multiply computes the selected operation.
func (mpy *Multiplier) multiply() {
	switch mpy.mode {
	case MPY_MPY:
		mpy.res = uint32(mpy.op1) * uint32(mpy.op2)
		mpy.sumext = 0
	case MPY_MPYS:
		product := int32(int16(mpy.op1)) * int32(int16(mpy.op2))
		mpy.res = uint32(product)
		mpy.sumext = 0
		if product < 0 {
			mpy.sumext = 0xffff
		}
	case MPY_MAC:
		sum := uint64(mpy.res) + uint64(mpy.op1)*uint64(mpy.op2)
		mpy.res = uint32(sum)
		mpy.sumext = uint16(sum >> 32)
	case MPY_MACS:
		product := int32(int16(mpy.op1)) * int32(int16(mpy.op2))
		mpy.res += uint32(product)
		mpy.sumext = 0
		if int32(mpy.res) < 0 {
			mpy.sumext = 0xffff
		}
	}

	mpy.logf("0x%04x * 0x%04x = 0x%08x (0x%04x)", mpy.op1, mpy.op2, mpy.res, mpy.sumext)
}

func (mpy *Multiplier) read(address uint32, width bus.Width) (value uint32) {
	switch address &^ 1 {
	case MPY_MPY, MPY_MPYS, MPY_MAC, MPY_MACS:
		value = uint32(mpy.op1)
	case MPY_OP2:
		value = uint32(mpy.op2)
	case MPY_RESLO:
		value = mpy.res & 0xffff
	case MPY_RESHI:
		value = mpy.res >> 16
	case MPY_SUMEXT:
		value = uint32(mpy.sumext)
	}

	if width == bus.BYTE && (address&1) != 0 {
		value >>= 8
	}

	return
}

// write stores an operand or result register. Byte operands are zero
// extended.
func (mpy *Multiplier) write(address uint32, value uint32, width bus.Width) {
	value &= width.Mask()

	switch reg := address &^ 1; reg {
	case MPY_MPY, MPY_MPYS, MPY_MAC, MPY_MACS:
		mpy.mode = reg
		mpy.op1 = uint16(value)
	case MPY_OP2:
		mpy.op2 = uint16(value)
		mpy.multiply()
	case MPY_RESLO:
		mpy.res = (mpy.res & 0xffff0000) | value
	case MPY_RESHI:
		mpy.res = (mpy.res & 0xffff) | value<<16
	case MPY_SUMEXT:
		mpy.cpu.Bus.Warn(bus.WARN_READ_ONLY, address, mpy.name)
	}
}

package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/msp430/bus"
)

func TestMultiplier(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	mpy, err := NewMultiplier(c)
	require.NoError(t, err)
	idle(c)

	table := [](struct {
		mode   uint32
		res    uint32 // Result before the operation.
		op1    uint32
		op2    uint32
		result uint32
		sumext uint32
	}){
		{MPY_MPY, 0, 0x1234, 0x5678, 0x06260060, 0},
		{MPY_MPY, 0, 0xffff, 0xffff, 0xfffe0001, 0},
		{MPY_MPYS, 0, 0xffff, 0xffff, 0x00000001, 0},
		{MPY_MPYS, 0, 0xffff, 0x0002, 0xfffffffe, 0xffff},
		{MPY_MPYS, 0, 0x8000, 0x8000, 0x40000000, 0},
		{MPY_MAC, 0x00010000, 0x0002, 0x0003, 0x00010006, 0},
		{MPY_MAC, 0xffffffff, 0x0001, 0x0001, 0x00000000, 1},
		{MPY_MACS, 0x00000000, 0xfffe, 0x0003, 0xfffffffa, 0xffff},
		{MPY_MACS, 0x00000010, 0xfffe, 0x0003, 0x0000000a, 0},
	}

	for n, entry := range table {
		c.Bus.Write(MPY_RESLO, entry.res&0xffff, bus.WORD)
		c.Bus.Write(MPY_RESHI, entry.res>>16, bus.WORD)
		c.Bus.Write(entry.mode, entry.op1, bus.WORD)
		c.Bus.Write(MPY_OP2, entry.op2, bus.WORD)

		assert.Equal(entry.result&0xffff, c.Bus.Read(MPY_RESLO, bus.WORD), "%d", n)
		assert.Equal(entry.result>>16, c.Bus.Read(MPY_RESHI, bus.WORD), "%d", n)
		assert.Equal(entry.sumext, c.Bus.Read(MPY_SUMEXT, bus.WORD), "%d", n)
		assert.Equal(entry.op1, c.Bus.Read(entry.mode, bus.WORD), "%d", n)

		res, sumext := mpy.Result()
		assert.Equal(entry.result, res, "%d", n)
		assert.Equal(uint16(entry.sumext), sumext, "%d", n)
	}

	require.NoError(t, c.Bus.Logger.Err())
}

func TestMultiplierByte(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	mpy, err := NewMultiplier(c)
	require.NoError(t, err)
	idle(c)

	// Byte operands are not sign extended.
	c.Bus.Write(MPY_MPYS, 0x80, bus.BYTE)
	c.Bus.Write(MPY_OP2, 0xff, bus.BYTE)
	res, sumext := mpy.Result()
	assert.Equal(uint32(0x80*0xff), res)
	assert.Equal(uint16(0), sumext)

	assert.Equal(uint32(0x7f), c.Bus.Read(MPY_RESLO+1, bus.BYTE))

	c.Bus.Write(MPY_SUMEXT, 0, bus.WORD)
	err = c.Bus.Logger.Err()
	assert.ErrorIs(err, &bus.ErrWarning{Kind: bus.WARN_READ_ONLY})
}

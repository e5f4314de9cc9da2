package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/cpu"
)

var testFlashConfig = FlashConfig{
	Main: FlashRange{Name: "flash", Start: 0x4000, End: 0x10000, Segment: 512},
	Info: FlashRange{Name: "info", Start: 0x1000, End: 0x1100, Segment: 128},
}

// newTestFlash creates an idle CPU, executing from flash, with the SFR
// and the flash controller.
func newTestFlash(t *testing.T) (c *cpu.Cpu, sfr *SFR, fl *Flash) {
	c = newTestCpu(t)

	sfr, err := NewSFR(c)
	require.NoError(t, err)

	fl, err = NewFlash(c, sfr, testFlashConfig)
	require.NoError(t, err)

	idle(c)

	return
}

// unlock clears LOCK, and sets the FCTL1 mode bits.
func unlock(c *cpu.Cpu, mode uint16) {
	c.Bus.Write(FLASH_FCTL3, uint32(FLASH_FWKEY), bus.WORD)
	c.Bus.Write(FLASH_FCTL1, uint32(FLASH_FWKEY|mode), bus.WORD)
}

func TestFlashReset(t *testing.T) {
	assert := assert.New(t)

	c, _, fl := newTestFlash(t)

	assert.Equal(uint32(0x9600), c.Bus.Read(FLASH_FCTL1, bus.WORD))
	assert.Equal(uint32(0x9642), c.Bus.Read(FLASH_FCTL2, bus.WORD))
	assert.Equal(uint32(0x9618), c.Bus.Read(FLASH_FCTL3, bus.WORD))
	assert.Equal(uint32(0x18), c.Bus.Read(FLASH_FCTL3, bus.BYTE))
	assert.Equal(uint32(0x96), c.Bus.Read(FLASH_FCTL3+1, bus.BYTE))
	assert.False(fl.Busy())

	// Code executes from flash.
	assert.Equal(uint32(0x3fff), c.Bus.Read(0x4000, bus.WORD))

	require.NoError(t, c.Bus.Logger.Err())
}

func TestFlashKeyViolation(t *testing.T) {
	assert := assert.New(t)

	c, _, fl := newTestFlash(t)

	c.Bus.Write(FLASH_FCTL1, 0x1234, bus.WORD)
	assert.Equal(FCTL3_KEYV, fl.FCTL3()&FCTL3_KEYV)
	assert.True(c.Pending(cpu.RESET_VECTOR))
	assert.Equal(uint32(0x9600), c.Bus.Read(FLASH_FCTL1, bus.WORD))

	// The next step resets the chip, keeping KEYV.
	require.NoError(t, c.Step(1000))
	assert.False(c.Pending(cpu.RESET_VECTOR))
	assert.Equal(FCTL3_KEYV|FCTL3_LOCK|FCTL3_WAIT, fl.FCTL3())
	assert.Equal(uint32(0x4000), c.Reg[cpu.REG_PC])

	// KEYV is cleared by software.
	c.Bus.Write(FLASH_FCTL3, uint32(FLASH_FWKEY|FCTL3_LOCK), bus.WORD)
	assert.Equal(FCTL3_LOCK|FCTL3_WAIT, fl.FCTL3())
	assert.False(c.Pending(cpu.RESET_VECTOR))

	// A byte write carries the read back key, not the write key.
	c.Bus.Write(FLASH_FCTL2, 0x42, bus.BYTE)
	assert.Equal(FCTL3_KEYV, fl.FCTL3()&FCTL3_KEYV)
	assert.True(c.Pending(cpu.RESET_VECTOR))

	require.NoError(t, c.Bus.Logger.Err())
}

func TestFlashWordProgram(t *testing.T) {
	assert := assert.New(t)

	c, _, fl := newTestFlash(t)

	require.NoError(t, c.Bus.Load(0x5000, []byte{0xff, 0xff}))

	unlock(c, FCTL1_WRT)
	assert.Equal(uint32(0x9640), c.Bus.Read(FLASH_FCTL1, bus.WORD))
	assert.Equal(FCTL3_WAIT, fl.FCTL3())

	start := c.Cycles()
	c.Bus.Write(0x5000, 0x1234, bus.WORD)
	assert.True(fl.Busy())
	assert.Equal(FCTL3_BUSY|FCTL3_WAIT, fl.FCTL3())
	assert.True(c.Held())

	// 35 timing generator clocks, MCLK divided by 3.
	require.NoError(t, c.Run(start+104))
	assert.True(fl.Busy())
	assert.Equal(uint32(0x4000), c.Reg[cpu.REG_PC])

	require.NoError(t, c.Run(start+105))
	assert.False(fl.Busy())
	assert.False(c.Held())
	assert.Equal(uint32(0x1234), c.Bus.Read(0x5000, bus.WORD))

	// Programming only clears bits.
	c.Bus.Write(0x5000, 0xff00, bus.WORD)
	require.NoError(t, c.Run(start+210))
	assert.Equal(uint32(0x1200), c.Bus.Read(0x5000, bus.WORD))

	// A slower timing generator: MCLK divided by 6.
	c.Bus.Write(FLASH_FCTL2, uint32(FLASH_FWKEY|0x45), bus.WORD)
	start = c.Cycles()
	c.Bus.Write(0x5002, 0x00, bus.BYTE)
	require.NoError(t, c.Run(start+209))
	assert.True(fl.Busy())
	require.NoError(t, c.Run(start+210))
	assert.False(fl.Busy())
	assert.Equal(uint8(0x00), c.Bus.Memory[0x5002])

	assert.Zero(fl.FCTL3() & FCTL3_ACCVIFG)
	require.NoError(t, c.Bus.Logger.Err())
}

func TestFlashSegmentErase(t *testing.T) {
	assert := assert.New(t)

	c, _, fl := newTestFlash(t)

	require.NoError(t, c.Bus.Load(0x4ffe, make([]byte, 0x204)))

	unlock(c, FCTL1_ERASE)
	start := c.Cycles()
	c.Bus.Write(0x5010, 0, bus.WORD)
	assert.True(fl.Busy())

	require.NoError(t, c.Run(start+3*FLASH_SEGMENT_ERASE))
	assert.False(fl.Busy())
	assert.Equal(uint32(0x9600), c.Bus.Read(FLASH_FCTL1, bus.WORD))

	assert.Equal(uint8(0x00), c.Bus.Memory[0x4fff])
	for address := 0x5000; address < 0x5200; address++ {
		assert.Equal(uint8(0xff), c.Bus.Memory[address], "0x%04x", address)
	}
	assert.Equal(uint8(0x00), c.Bus.Memory[0x5200])

	// Information memory has smaller segments.
	require.NoError(t, c.Bus.Load(0x1000, make([]byte, 0x100)))
	unlock(c, FCTL1_ERASE)
	c.Bus.Write(0x1085, 0, bus.BYTE)
	require.NoError(t, c.Run(c.Cycles()+3*FLASH_SEGMENT_ERASE))
	assert.Equal(uint8(0x00), c.Bus.Memory[0x107f])
	assert.Equal(uint8(0xff), c.Bus.Memory[0x1080])
	assert.Equal(uint8(0xff), c.Bus.Memory[0x10ff])

	require.NoError(t, c.Bus.Logger.Err())
}

func TestFlashAccessViolation(t *testing.T) {
	assert := assert.New(t)

	c, sfr, fl := newTestFlash(t)

	// Writing without WRT, or ERASE, set.
	unlock(c, 0)
	c.Bus.Write(0x5000, 0, bus.WORD)
	assert.Equal(FCTL3_ACCVIFG, fl.FCTL3()&FCTL3_ACCVIFG)
	assert.False(c.Pending(cpu.NMI_VECTOR))

	// With ACCVIE, a violation raises the NMI.
	c.Bus.Write(SFR_IE1, uint32(FLASH_ACCVIE), bus.BYTE)
	unlock(c, FCTL1_WRT)
	c.Bus.Write(0x5000, 0, bus.WORD)
	assert.True(fl.Busy())
	assert.Equal(uint32(0x3fff), c.Bus.Read(0x5000, bus.WORD))
	assert.True(c.Pending(cpu.NMI_VECTOR))

	// Accepting the NMI clears ACCVIE.
	fl.InterruptAccepted(cpu.NMI_VECTOR)
	assert.False(c.Pending(cpu.NMI_VECTOR))
	assert.False(sfr.IE(0, FLASH_ACCVIE))

	// FCTL2 can not change while busy.
	c.Bus.Write(FLASH_FCTL2, uint32(FLASH_FWKEY|0x40), bus.WORD)
	assert.Equal(uint32(0x9642), c.Bus.Read(FLASH_FCTL2, bus.WORD))

	// An emergency exit stops the operation, and locks the flash.
	c.Bus.Write(FLASH_FCTL3, uint32(FLASH_FWKEY|FCTL3_EMEX), bus.WORD)
	assert.False(fl.Busy())
	assert.False(c.Held())
	assert.Equal(FCTL3_LOCK|FCTL3_WAIT, fl.FCTL3())

	require.NoError(t, c.Bus.Logger.Err())
}

func TestFlashLocked(t *testing.T) {
	assert := assert.New(t)

	c, _, fl := newTestFlash(t)

	require.NoError(t, c.Bus.Load(0x5000, []byte{0x34, 0x12}))
	c.Bus.Write(0x5000, 0, bus.WORD)
	assert.False(fl.Busy())
	assert.Equal(uint32(0x1234), c.Bus.Read(0x5000, bus.WORD))
	assert.Zero(fl.FCTL3() & FCTL3_ACCVIFG)
	assert.ErrorIs(c.Bus.Logger.Err(), &bus.ErrWarning{Kind: bus.WARN_READ_ONLY})
}

package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/msp430/bus"
)

// testModule records the SFR callbacks.
type testModule struct {
	serviced []int
	enables  []bool
}

func (tm *testModule) Name() string { return "test" }

func (tm *testModule) InterruptServiced(vector int) {
	tm.serviced = append(tm.serviced, vector)
}

func (tm *testModule) EnableChanged(reg int, bit int, on bool) {
	tm.enables = append(tm.enables, on)
}

func TestSFRInterrupt(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	sfr, err := NewSFR(c)
	require.NoError(t, err)
	idle(c)

	module := &testModule{}
	sfr.RegisterBit(1, 3, module, 7)

	sfr.SetIFG(1, 0x08)
	assert.Equal(uint8(0x08), sfr.IFG(1))
	assert.False(c.Pending(7))

	c.Bus.Write(SFR_IE2, 0x08, bus.BYTE)
	assert.True(c.Pending(7))
	assert.True(sfr.IE(1, 0x08))

	sfr.ClearIFG(1, 0x08)
	assert.False(c.Pending(7))

	c.Bus.Write(SFR_IFG2, 0x08, bus.BYTE)
	assert.True(c.Pending(7))
	assert.Equal(uint32(0x08), c.Bus.Read(SFR_IFG2, bus.BYTE))

	c.Bus.Write(SFR_IE2, 0x00, bus.BYTE)
	assert.False(c.Pending(7))

	require.NoError(t, c.Bus.Logger.Err())
}

func TestSFRModuleEnable(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	sfr, err := NewSFR(c)
	require.NoError(t, err)
	idle(c)

	module := &testModule{}
	sfr.RegisterBit(0, 6, module, 9)

	c.Bus.Write(SFR_ME1, 0x40, bus.BYTE)
	c.Bus.Write(SFR_ME1, 0x41, bus.BYTE)
	c.Bus.Write(SFR_ME1, 0x01, bus.BYTE)
	assert.Equal([]bool{true, false}, module.enables)
	assert.True(sfr.ME(0, 0x01))
	assert.False(sfr.ME(0, 0x40))
}

func TestSFRReset(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	sfr, err := NewSFR(c)
	require.NoError(t, err)
	idle(c)

	c.Bus.Write(SFR_IE1, 0xffff, bus.WORD)
	c.Bus.Write(SFR_IFG1, 0xffff, bus.WORD)
	c.Bus.Write(SFR_ME1, 0xffff, bus.WORD)

	sfr.Reset()

	assert.Equal(uint32(0), c.Bus.Read(SFR_IE1, bus.WORD))
	assert.Equal(uint32(SFR_WDTIFG), c.Bus.Read(SFR_IFG1, bus.WORD))
	assert.Equal(uint32(0), c.Bus.Read(SFR_ME1, bus.WORD))

	defines := map[string]string{}
	for key, value := range sfr.Defines() {
		defines[key] = value
	}
	assert.Equal("0x0002", defines["IFG1"])
}

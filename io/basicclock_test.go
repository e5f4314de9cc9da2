package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/clock"
)

func TestBasicClockReset(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	_, err := NewBasicClock(c)
	require.NoError(t, err)
	idle(c)

	assert.Equal(uint32(DCOCTL_RESET), c.Bus.Read(BCM_DCOCTL, bus.BYTE))
	assert.Equal(uint32(BCSCTL1_RESET), c.Bus.Read(BCM_BCSCTL1, bus.BYTE))
	assert.Equal(uint32(BCSCTL2_RESET), c.Bus.Read(BCM_BCSCTL2, bus.BYTE))
	assert.Equal(clock.DEFAULT_DCO_HZ, c.Clock.Hz(clock.MCLK))
	assert.Equal(clock.DEFAULT_ACLK, c.Clock.Hz(clock.ACLK))
}

func TestBasicClockFrequency(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	bcm, err := NewBasicClock(c)
	require.NoError(t, err)
	idle(c)

	table := [](struct {
		dcoctl  uint8
		bcsctl1 uint8
		bcsctl2 uint8
		dco     int
		aclk    int
		mclk    int
		smclk   int
	}){
		{0x60, 0x84, 0x00, 2500000, 32768, 2500000, 2500000},
		{0xe0, 0x87, 0x00, 4834432, 32768, 4834432, 4834432},
		{0xff, 0x87, 0x00, 4915200, 32768, 4915200, 4915200},
		{0x00, 0x80, 0x00, 1000, 32768, 1000, 1000},
		{0x60, 0xb4, 0x00, 2500000, 4096, 2500000, 2500000},
		{0x60, 0x84, 0x30, 2500000, 32768, 312500, 2500000},
		{0x60, 0x84, 0x06, 2500000, 32768, 2500000, 312500},
		{0x60, 0x84, 0xc0, 2500000, 32768, 32768, 2500000},
		{0x60, 0x84, 0x08, 2500000, 32768, 2500000, 32768},
		{0x60, 0x84, 0x80, 2500000, 32768, 2500000, 2500000},
	}

	for n, entry := range table {
		c.Bus.Write(BCM_DCOCTL, uint32(entry.dcoctl), bus.BYTE)
		c.Bus.Write(BCM_BCSCTL1, uint32(entry.bcsctl1), bus.BYTE)
		c.Bus.Write(BCM_BCSCTL2, uint32(entry.bcsctl2), bus.BYTE)

		assert.Equal(entry.dco, bcm.DCO(), "%d", n)
		assert.Equal(entry.dco, c.Clock.DCO(), "%d", n)
		assert.Equal(entry.aclk, c.Clock.Hz(clock.ACLK), "%d", n)
		assert.Equal(entry.mclk, c.Clock.Hz(clock.MCLK), "%d", n)
		assert.Equal(entry.smclk, c.Clock.Hz(clock.SMCLK), "%d", n)
	}

	require.NoError(t, c.Bus.Logger.Err())
}

func TestBasicClockRewrite(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	bcm, err := NewBasicClock(c)
	require.NoError(t, err)
	idle(c)

	assert.Equal(clock.DEFAULT_DCO_HZ, bcm.DCO())

	var changes int
	c.Clock.Observe(func(clk *clock.Clock, cycles int64) {
		changes++
	})

	require.NoError(t, c.Run(100))
	c.Bus.Write(BCM_DCOCTL, uint32(DCOCTL_RESET), bus.BYTE)
	c.Bus.Write(BCM_BCSCTL1, uint32(BCSCTL1_RESET), bus.BYTE)
	c.Bus.Write(BCM_BCSCTL2, uint32(BCSCTL2_RESET), bus.BYTE)

	assert.Zero(changes)
	assert.Equal(clock.DEFAULT_DCO_HZ, c.Clock.Hz(clock.MCLK))
	assert.Equal(clock.DEFAULT_DCO_HZ, c.Clock.Hz(clock.SMCLK))
}

func TestBasicClockTime(t *testing.T) {
	assert := assert.New(t)

	c := newTestCpu(t)
	_, err := NewBasicClock(c)
	require.NoError(t, err)
	idle(c)

	require.NoError(t, c.Run(1000))
	before := c.VirtualTime()

	// Halving MCLK doubles the virtual time of each cycle.
	c.Bus.Write(BCM_BCSCTL2, 0x10, bus.BYTE)
	mclk := c.Clock.Hz(clock.MCLK)
	require.NoError(t, c.Run(2000))

	expect := before + int64(float64(1000)*float64(clock.MAX_DCO_HZ)/float64(mclk))
	assert.InDelta(expect, c.VirtualTime(), 2)
}

package io

import (
	"iter"
	"maps"

	"github.com/ezrec/msp430/clock"
	"github.com/ezrec/msp430/cpu"
)

const (
	BCM_DCOCTL  = uint32(0x0056)
	BCM_BCSCTL1 = uint32(0x0057)
	BCM_BCSCTL2 = uint32(0x0058)

	DCOCTL_RESET  = uint8(0x60)
	BCSCTL1_RESET = uint8(0x84)
	BCSCTL2_RESET = uint8(0x00)

	ACLK_CRYSTAL_HZ = clock.DEFAULT_ACLK // LFXT1 watch crystal.

	DCO_STEPS = 64 * 32 // RSEL, DCO and MOD settings.
)

// BasicClock is the basic clock module. Firmware writes to its registers
// set the frequencies of the clock domains.
type BasicClock struct {
	unit

	dcoctl  uint8
	bcsctl1 uint8
	bcsctl2 uint8
}

var _ Peripheral = (*BasicClock)(nil)

// NewBasicClock creates the basic clock module.
func NewBasicClock(c *cpu.Cpu) (bcm *BasicClock, err error) {
	bcm = &BasicClock{unit: unit{name: "bcm", cpu: c}}

	read, write := byteRegisters(bcm.read, bcm.write)
	err = bcm.attach(bcm, BCM_DCOCTL, BCM_BCSCTL2+1, read, write)
	if err != nil {
		return
	}

	return
}

// Defines returns the register names and addresses.
func (bcm *BasicClock) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"DCOCTL":  hex(BCM_DCOCTL),
		"BCSCTL1": hex(BCM_BCSCTL1),
		"BCSCTL2": hex(BCM_BCSCTL2),
	})
}

// Reset restores the power up registers and frequencies.
func (bcm *BasicClock) Reset() {
	bcm.dcoctl = DCOCTL_RESET
	bcm.bcsctl1 = BCSCTL1_RESET
	bcm.bcsctl2 = BCSCTL2_RESET

	bcm.update()
}

// dcoStep returns the position of a RSEL, DCO and MOD setting in the
// range of the oscillator.
func dcoStep(dcoctl uint8, bcsctl1 uint8) int {
	index := int(bcsctl1&0x07)<<3 | int(dcoctl>>5)
	mod := int(dcoctl & 0x1f)
	return index*32 + mod
}

// DCO returns the oscillator frequency selected by RSEL, DCO and MOD.
// The frequency rises linearly from MIN_DCO_HZ to DEFAULT_DCO_HZ at the
// power up setting, then to MAX_DCO_HZ at the last setting.
func (bcm *BasicClock) DCO() int {
	step := dcoStep(bcm.dcoctl, bcm.bcsctl1)
	reset := dcoStep(DCOCTL_RESET, BCSCTL1_RESET)

	if step <= reset {
		return clock.MIN_DCO_HZ + (clock.DEFAULT_DCO_HZ-clock.MIN_DCO_HZ)*step/reset
	}

	return clock.DEFAULT_DCO_HZ + (clock.MAX_DCO_HZ-clock.DEFAULT_DCO_HZ)*(step-reset)/(DCO_STEPS-1-reset)
}

// update sets the clock domains from the registers.
func (bcm *BasicClock) update() {
	dco := bcm.DCO()

	aclk := ACLK_CRYSTAL_HZ >> ((bcm.bcsctl1 >> 4) & 3)

	mclkSrc := dco
	if (bcm.bcsctl2 >> 6) == 3 {
		mclkSrc = ACLK_CRYSTAL_HZ
	}
	mclk := mclkSrc >> ((bcm.bcsctl2 >> 4) & 3)

	smclkSrc := dco
	if (bcm.bcsctl2 & 0x08) != 0 {
		smclkSrc = ACLK_CRYSTAL_HZ
	}
	smclk := smclkSrc >> ((bcm.bcsctl2 >> 1) & 3)

	bcm.logf("dco %d aclk %d mclk %d smclk %d", dco, aclk, mclk, smclk)

	bcm.cpu.Clock.Set(bcm.cpu.Cycles(), dco, aclk, mclk, smclk)
}

func (bcm *BasicClock) read(address uint32) (value uint8) {
	switch address {
	case BCM_DCOCTL:
		value = bcm.dcoctl
	case BCM_BCSCTL1:
		value = bcm.bcsctl1
	case BCM_BCSCTL2:
		value = bcm.bcsctl2
	}
	return
}

func (bcm *BasicClock) write(address uint32, value uint8) {
	switch address {
	case BCM_DCOCTL:
		bcm.dcoctl = value
	case BCM_BCSCTL1:
		bcm.bcsctl1 = value
	case BCM_BCSCTL2:
		bcm.bcsctl2 = value
	}
	bcm.update()
}

package io

import (
	"fmt"
	"iter"
	"maps"
	"math"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/clock"
	"github.com/ezrec/msp430/cpu"
	"github.com/ezrec/msp430/event"
)

const (
	FLASH_FCTL1 = uint32(0x0128)
	FLASH_FCTL2 = uint32(0x012a)
	FLASH_FCTL3 = uint32(0x012c)

	FLASH_FWKEY = uint16(0xa500) // Write key.
	FLASH_FRKEY = uint16(0x9600) // Read back key.

	// FCTL1 bits.
	FCTL1_ERASE  = uint16(0x02)
	FCTL1_MERAS  = uint16(0x04)
	FCTL1_WRT    = uint16(0x40)
	FCTL1_BLKWRT = uint16(0x80)

	// FCTL2 bits.
	FCTL2_FSSEL = uint16(0xc0)
	FCTL2_FN    = uint16(0x3f)

	// FCTL3 bits.
	FCTL3_BUSY    = uint16(0x01)
	FCTL3_KEYV    = uint16(0x02)
	FCTL3_ACCVIFG = uint16(0x04)
	FCTL3_WAIT    = uint16(0x08)
	FCTL3_LOCK    = uint16(0x10)
	FCTL3_EMEX    = uint16(0x20)

	FCTL2_RESET = uint16(0x42) // MCLK, divide by 3.

	FLASH_ACCVIE = uint8(0x20) // IE1 access violation interrupt enable.

	// Flash timing generator clocks per operation.
	FLASH_WRITE_TIME       = 35
	FLASH_BLOCK_FIRST_TIME = 30
	FLASH_BLOCK_TIME       = 21
	FLASH_BLOCK_END_TIME   = 6
	FLASH_SEGMENT_ERASE    = 4819
	FLASH_MASS_ERASE       = 5297
	FLASH_BLOCK_SIZE       = 64 // Writes per block.

	fctl1Erase = FCTL1_ERASE | FCTL1_MERAS
	fctl2Fssel = 6
)

// FlashRange is a flash array: its address range and segment size.
type FlashRange struct {
	Name    string
	Start   uint32
	End     uint32
	Segment uint32
}

// Contains returns true if an address is in the array.
func (fr FlashRange) Contains(address uint32) bool {
	return address >= fr.Start && address < fr.End
}

// FlashConfig is the layout of the flash arrays.
type FlashConfig struct {
	Main FlashRange
	Info FlashRange
}

type flashErase int

const (
	eraseNone    = flashErase(0)
	eraseSegment = flashErase(1)
	eraseMain    = flashErase(2)
	eraseAll     = flashErase(3)
)

type flashWrite int

const (
	writeNone        = flashWrite(0)
	writeSingle      = flashWrite(1)
	writeBlock       = flashWrite(2)
	writeBlockFinish = flashWrite(3)
)

// Flash is the flash memory controller. The flash arrays read as memory,
// and are programmed and erased through the FCTL registers, with the
// timing of the flash timing generator. Bad keys reset the chip, and
// access violations set ACCVIFG and, if enabled, the NMI.
type Flash struct {
	unit

	sfr    *SFR
	config FlashConfig

	fctl1  uint16
	fctl2  uint16
	status uint16 // KEYV and ACCVIFG bits of FCTL3.

	locked bool
	busy   bool
	wait   bool
	erase  flashErase
	write  flashWrite
	blocks int

	done *event.Event
}

var _ Peripheral = (*Flash)(nil)
var _ cpu.InterruptAccepter = (*Flash)(nil)

// NewFlash creates the flash controller over the flash arrays.
func NewFlash(c *cpu.Cpu, sfr *SFR, config FlashConfig) (fl *Flash, err error) {
	fl = &Flash{
		unit:   unit{name: "flash", cpu: c},
		sfr:    sfr,
		config: config,
		fctl2:  FCTL2_RESET,
		locked: true,
		wait:   true,
	}
	fl.done = event.NewEvent("flash", fl.onDone)

	read, write := wordRegisters(fl.read, fl.writeReg)
	err = fl.attach(fl, FLASH_FCTL1, FLASH_FCTL3+2, read, write)
	if err != nil {
		return
	}

	for _, fr := range []FlashRange{config.Info, config.Main} {
		_, err = c.Bus.RegisterHandler(fr.Name, fr.Start, fr.End, fl.readArray, fl.writeArray)
		if err != nil {
			return
		}
	}

	return
}

// Defines returns the register names and bits.
func (fl *Flash) Defines() iter.Seq2[string, string] {
	bit := func(value uint16) string {
		return fmt.Sprintf("0x%04x", value)
	}
	return maps.All(map[string]string{
		"FCTL1":   hex(FLASH_FCTL1),
		"FCTL2":   hex(FLASH_FCTL2),
		"FCTL3":   hex(FLASH_FCTL3),
		"FWKEY":   bit(FLASH_FWKEY),
		"FRKEY":   bit(FLASH_FRKEY),
		"ERASE":   bit(FCTL1_ERASE),
		"MERAS":   bit(FCTL1_MERAS),
		"WRT":     bit(FCTL1_WRT),
		"BLKWRT":  bit(FCTL1_BLKWRT),
		"FSSEL0":  bit(0x40),
		"FSSEL1":  bit(0x80),
		"FN0":     bit(0x01),
		"FN1":     bit(0x02),
		"FN2":     bit(0x04),
		"FN3":     bit(0x08),
		"FN4":     bit(0x10),
		"FN5":     bit(0x20),
		"BUSY":    bit(FCTL3_BUSY),
		"KEYV":    bit(FCTL3_KEYV),
		"ACCVIFG": bit(FCTL3_ACCVIFG),
		"WAIT":    bit(FCTL3_WAIT),
		"LOCK":    bit(FCTL3_LOCK),
		"EMEX":    bit(FCTL3_EMEX),
		"ACCVIE":  fmt.Sprintf("0x%02x", FLASH_ACCVIE),
	})
}

// Reset stops any operation and locks the flash. KEYV and ACCVIFG are
// kept over a reset.
func (fl *Flash) Reset() {
	fl.fctl1 = 0
	fl.fctl2 = FCTL2_RESET
	fl.status &= FCTL3_KEYV | FCTL3_ACCVIFG
	fl.locked = true
	fl.busy = false
	fl.wait = true
	fl.erase = eraseNone
	fl.write = writeNone
	fl.blocks = 0
	fl.cpu.Cancel(fl.done)
}

// Busy returns true while an erase or write is in progress.
func (fl *Flash) Busy() bool {
	return fl.busy
}

// FCTL3 returns the status register, without the key.
func (fl *Flash) FCTL3() uint16 {
	value := fl.status
	if fl.busy {
		value |= FCTL3_BUSY
	}
	if fl.wait {
		value |= FCTL3_WAIT
	}
	if fl.locked {
		value |= FCTL3_LOCK
	}
	return value
}

// contains returns the flash array of an address, if any.
func (fl *Flash) contains(address uint32) (fr FlashRange, ok bool) {
	for _, fr = range []FlashRange{fl.config.Main, fl.config.Info} {
		if fr.Contains(address) {
			ok = true
			return
		}
	}
	return
}

// domain returns the clock domain of the flash timing generator.
func (fl *Flash) domain() clock.Domain {
	switch (fl.fctl2 & FCTL2_FSSEL) >> fctl2Fssel {
	case 0:
		return clock.ACLK
	case 1:
		return clock.MCLK
	}
	return clock.SMCLK
}

// process starts an operation of 'ticks' flash timing generator clocks.
// Execution from flash stalls until it completes.
func (fl *Flash) process(ticks int64) {
	fl.busy = true

	cycles := fl.cpu.Cycles()
	div := int64(fl.fctl2&FCTL2_FN) + 1
	span := int64(math.Ceil(float64(ticks*div) * fl.cpu.Clock.CyclesPer(fl.domain())))
	end := cycles + max(span, 1)

	fl.cpu.ScheduleCycle(fl.done, end)

	if _, ok := fl.contains(fl.cpu.Reg[cpu.REG_PC]); ok {
		fl.cpu.Hold(end)
	}

	fl.logf("busy until %d", end)
}

// onDone completes the current operation.
func (fl *Flash) onDone(now int64) {
	if fl.erase != eraseNone {
		fl.erase = eraseNone
		fl.fctl1 &^= fctl1Erase
		fl.busy = false
	}

	switch fl.write {
	case writeSingle:
		fl.busy = false
	case writeBlock:
		fl.blocks++
		if fl.blocks == FLASH_BLOCK_SIZE {
			fl.write = writeBlockFinish
		}
		fl.wait = true
	case writeBlockFinish:
		fl.write = writeNone
		fl.fctl1 &^= FCTL1_WRT | FCTL1_BLKWRT
		fl.busy = false
		fl.wait = true
	}

	fl.logf("done")
}

// violation sets ACCVIFG, and flags the NMI if ACCVIE is set.
func (fl *Flash) violation(address uint32, reason string) {
	fl.logf("access violation at 0x%04x: %v", address, reason)

	fl.status |= FCTL3_ACCVIFG
	if fl.sfr.IE(0, FLASH_ACCVIE) {
		fl.cpu.FlagInterrupt(cpu.NMI_VECTOR, fl, true)
	}
}

// InterruptAccepted clears ACCVIE on entry to the NMI handler.
func (fl *Flash) InterruptAccepted(vector int) {
	fl.sfr.ClearIE(0, FLASH_ACCVIE)
	fl.cpu.FlagInterrupt(vector, fl, false)
}

// InterruptServiced does nothing.
func (fl *Flash) InterruptServiced(vector int) {
}

func (fl *Flash) readArray(address uint32, width bus.Width) (value uint32) {
	if fl.busy && !(fl.write == writeBlock && fl.wait) {
		fl.violation(address, "read while busy")
		return 0x3fff & width.Mask()
	}

	mem := fl.cpu.Bus.Memory
	for n := range width.Size() {
		value |= uint32(mem[address+n]) << (8 * n)
	}
	return
}

func (fl *Flash) writeArray(address uint32, value uint32, width bus.Width) {
	if fl.locked {
		fl.cpu.Bus.Warn(bus.WARN_READ_ONLY, address, fmt.Sprintf("%v: 0x%x", fl.name, value))
		return
	}

	if (fl.busy || !fl.wait) && !((fl.fctl1&FCTL1_BLKWRT) != 0 && fl.wait) {
		fl.violation(address, "write while busy")
		return
	}

	mem := fl.cpu.Bus.Memory

	switch fl.erase {
	case eraseSegment:
		fr, _ := fl.contains(address)
		start := fr.Start + (address-fr.Start)/fr.Segment*fr.Segment
		fl.fill(start, start+fr.Segment)
		fl.process(FLASH_SEGMENT_ERASE)
		return
	case eraseMain:
		if fl.config.Main.Contains(address) {
			fl.fill(fl.config.Main.Start, fl.config.Main.End)
			fl.process(FLASH_MASS_ERASE)
		}
		return
	case eraseAll:
		fl.fill(fl.config.Main.Start, fl.config.Main.End)
		fl.fill(fl.config.Info.Start, fl.config.Info.End)
		fl.process(FLASH_MASS_ERASE)
		return
	}

	var ticks int64
	switch fl.write {
	case writeSingle:
		ticks = FLASH_WRITE_TIME
	case writeBlock:
		fl.wait = false
		ticks = FLASH_BLOCK_TIME
		if fl.blocks == 0 {
			ticks = FLASH_BLOCK_FIRST_TIME
		}
	default:
		fl.violation(address, "write without WRT")
		return
	}

	// Programming only clears bits.
	for n := range width.Size() {
		mem[address+n] &= byte(value >> (8 * n))
	}

	fl.process(ticks)
}

// fill erases [start, end).
func (fl *Flash) fill(start, end uint32) {
	fl.logf("erase 0x%04x-0x%04x", start, end-1)
	mem := fl.cpu.Bus.Memory
	for n := start; n < end; n++ {
		mem[n] = 0xff
	}
}

func (fl *Flash) read(address uint32) (value uint16) {
	switch address {
	case FLASH_FCTL1:
		value = fl.fctl1
	case FLASH_FCTL2:
		value = fl.fctl2
	case FLASH_FCTL3:
		value = fl.FCTL3()
	}
	return FLASH_FRKEY | value
}

func (fl *Flash) writeReg(address uint32, value uint16) {
	if (value & 0xff00) != FLASH_FWKEY {
		fl.logf("%v: 0x%04x", ErrFlashKey, value)
		fl.status |= FCTL3_KEYV
		fl.cpu.FlagInterrupt(cpu.RESET_VECTOR, fl, true)
		return
	}

	value &= 0x00ff

	switch address {
	case FLASH_FCTL1:
		if fl.busy && !((fl.fctl1&FCTL1_BLKWRT) != 0 && fl.wait) {
			fl.violation(address, "FCTL1 write while busy")
			return
		}

		old := fl.fctl1
		fl.fctl1 = value & (fctl1Erase | FCTL1_WRT | FCTL1_BLKWRT)
		fl.erase = flashErase((value & fctl1Erase) >> 1)

		switch {
		case (old&FCTL1_BLKWRT) != 0 && (value&FCTL1_BLKWRT) == 0 && (fl.write == writeBlock || fl.write == writeBlockFinish):
			fl.write = writeBlockFinish
			fl.fctl1 |= FCTL1_WRT
			fl.process(FLASH_BLOCK_END_TIME)
		case (value & FCTL1_WRT) == 0:
			fl.write = writeNone
		case (value & FCTL1_BLKWRT) != 0:
			if fl.write != writeBlock {
				fl.write = writeBlock
				fl.blocks = 0
			}
		default:
			fl.write = writeSingle
		}
	case FLASH_FCTL2:
		if fl.busy {
			fl.violation(address, "FCTL2 write while busy")
			return
		}
		fl.fctl2 = value
	case FLASH_FCTL3:
		if (value & FCTL3_EMEX) != 0 {
			fl.logf("emergency exit")
			fl.cpu.Cancel(fl.done)
			fl.cpu.Release()
			fl.fctl1 = 0
			fl.busy = false
			fl.wait = true
			fl.erase = eraseNone
			fl.write = writeNone
			value |= FCTL3_LOCK
		}
		fl.locked = (value & FCTL3_LOCK) != 0
		fl.status = value & (FCTL3_KEYV | FCTL3_ACCVIFG)
	}

	fl.logf("fctl 0x%04x 0x%04x 0x%04x", fl.fctl1, fl.fctl2, fl.FCTL3())
}

package io

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/msp430/clock"
	"github.com/ezrec/msp430/cpu"
	"github.com/ezrec/msp430/event"
)

const (
	WDT_CTL    = uint32(0x0120)
	WDT_VECTOR = 10

	WDT_PW     = uint16(0x5a00) // Write password.
	WDT_PW_RD  = uint16(0x6900) // Read back password.
	WDT_HOLD   = uint8(0x80)
	WDT_NMIES  = uint8(0x40)
	WDT_NMI    = uint8(0x20)
	WDT_TMSEL  = uint8(0x10) // Interval timer mode.
	WDT_CNTCL  = uint8(0x08) // Counter clear, self clearing.
	WDT_SSEL   = uint8(0x04) // ACLK, otherwise SMCLK.
	WDT_IS     = uint8(0x03)
	wdtIfgBit  = 0 // WDTIFG bit of IFG1
	wdtIfgMask = uint8(1 << wdtIfgBit)
)

// wdtInterval is the number of clock ticks per expiry, by WDTIS.
var wdtInterval = [4]int64{32768, 8192, 512, 64}

// Watchdog is the watchdog timer. In watchdog mode an expiry resets the
// chip. In interval timer mode an expiry sets WDTIFG.
type Watchdog struct {
	unit

	sfr *SFR

	ctl    uint8
	tick   ticker
	expire *event.Event
}

var _ Peripheral = (*Watchdog)(nil)
var _ SFRModule = (*Watchdog)(nil)
var _ cpu.InterruptAccepter = (*Watchdog)(nil)

// NewWatchdog creates the watchdog timer, using the WDTIFG bit of the
// special function registers.
func NewWatchdog(c *cpu.Cpu, sfr *SFR) (wdt *Watchdog, err error) {
	wdt = &Watchdog{
		unit: unit{name: "wdt", cpu: c},
		sfr:  sfr,
	}
	wdt.expire = event.NewEvent("wdt", wdt.onExpire)

	read, write := wordRegisters(wdt.read, wdt.write)
	err = wdt.attach(wdt, WDT_CTL, WDT_CTL+2, read, write)
	if err != nil {
		return
	}

	sfr.RegisterBit(0, wdtIfgBit, wdt, WDT_VECTOR)

	c.Clock.Observe(func(clk *clock.Clock, cycles int64) {
		wdt.reschedule(cycles)
	})

	return
}

// Defines returns the register names, bits and vector.
func (wdt *Watchdog) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"WDTCTL":     hex(WDT_CTL),
		"WDTPW":      fmt.Sprintf("0x%04x", WDT_PW),
		"WDTHOLD":    fmt.Sprintf("0x%04x", WDT_HOLD),
		"WDTTMSEL":   fmt.Sprintf("0x%04x", WDT_TMSEL),
		"WDTCNTCL":   fmt.Sprintf("0x%04x", WDT_CNTCL),
		"WDTSSEL":    fmt.Sprintf("0x%04x", WDT_SSEL),
		"WDTIS0":     "0x0001",
		"WDTIS1":     "0x0002",
		"WDTIFG":     fmt.Sprintf("0x%02x", wdtIfgMask),
		"WDTIE":      fmt.Sprintf("0x%02x", wdtIfgMask),
		"WDT_VECTOR": fmt.Sprintf("%d", WDT_VECTOR),
	})
}

// Reset starts the watchdog in watchdog mode, from SMCLK, with the
// longest interval.
func (wdt *Watchdog) Reset() {
	wdt.ctl = 0
	wdt.tick = ticker{}
	wdt.tick.restart(wdt.cpu.Cycles(), 0)
	wdt.reschedule(wdt.cpu.Cycles())
}

// Held returns true if the counter is stopped.
func (wdt *Watchdog) Held() bool {
	return (wdt.ctl & WDT_HOLD) != 0
}

// Counter returns the counter value.
func (wdt *Watchdog) Counter() int64 {
	return wdt.tick.at(wdt.cpu.Cycles()) % wdtInterval[wdt.ctl&WDT_IS]
}

// period returns the MCLK cycles per counter tick, or 0 when held.
func (wdt *Watchdog) period() float64 {
	if wdt.Held() {
		return 0
	}
	if (wdt.ctl & WDT_SSEL) != 0 {
		return wdt.cpu.Clock.CyclesPer(clock.ACLK)
	}
	return wdt.cpu.Clock.CyclesPer(clock.SMCLK)
}

// reschedule rebases the counter on the current clock, and schedules the
// next expiry.
func (wdt *Watchdog) reschedule(cycles int64) {
	wdt.tick.rebase(cycles, wdt.period())
	wdt.cpu.Cancel(wdt.expire)

	if !wdt.tick.running() {
		return
	}

	interval := wdtInterval[wdt.ctl&WDT_IS]
	target := (wdt.tick.at(cycles)/interval + 1) * interval
	wdt.cpu.ScheduleCycle(wdt.expire, wdt.tick.cycleOf(target))
}

// onExpire handles the counter reaching its interval.
func (wdt *Watchdog) onExpire(now int64) {
	if (wdt.ctl & WDT_TMSEL) == 0 {
		wdt.logf("expired, reset")
		wdt.sfr.SetIFG(0, wdtIfgMask)
		wdt.cpu.FlagInterrupt(cpu.RESET_VECTOR, wdt, true)
		return
	}

	wdt.logf("interval")
	wdt.sfr.SetIFG(0, wdtIfgMask)
	wdt.reschedule(now)
}

// InterruptAccepted clears WDTIFG on entry to the interval handler.
func (wdt *Watchdog) InterruptAccepted(vector int) {
	if vector == WDT_VECTOR {
		wdt.sfr.ClearIFG(0, wdtIfgMask)
	}
}

// InterruptServiced does nothing.
func (wdt *Watchdog) InterruptServiced(vector int) {
}

// EnableChanged does nothing, the watchdog has no module enable bit.
func (wdt *Watchdog) EnableChanged(reg int, bit int, on bool) {
}

func (wdt *Watchdog) read(address uint32) uint16 {
	return WDT_PW_RD | uint16(wdt.ctl)
}

func (wdt *Watchdog) write(address uint32, value uint16) {
	cycles := wdt.cpu.Cycles()

	if (value & 0xff00) != WDT_PW {
		wdt.logf("%v: 0x%04x", ErrWatchdogKey, value)
		wdt.sfr.SetIFG(0, wdtIfgMask)
		wdt.cpu.FlagInterrupt(cpu.RESET_VECTOR, wdt, true)
		return
	}

	ctl := uint8(value)
	if (ctl & WDT_CNTCL) != 0 {
		wdt.tick.restart(cycles, 0)
	}
	wdt.ctl = ctl &^ WDT_CNTCL

	wdt.logf("ctl 0x%02x", wdt.ctl)

	wdt.reschedule(cycles)
}

package io

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/clock"
	"github.com/ezrec/msp430/cpu"
	"github.com/ezrec/msp430/event"
)

// TimerMode is the counting mode of a timer.
type TimerMode int

//go:generate go tool stringer -linecomment -type=TimerMode
const (
	TIMER_STOP       = TimerMode(0) // stop
	TIMER_UP         = TimerMode(1) // up
	TIMER_CONTINUOUS = TimerMode(2) // continuous
	TIMER_UPDOWN     = TimerMode(3) // up/down
)

const (
	TIMER_MAX_CCR = 7 // Capture/compare registers of the largest timer.

	// Register offsets from the timer base.
	TIMER_CTL  = uint32(0x00)
	TIMER_CCTL = uint32(0x02)
	TIMER_R    = uint32(0x10)
	TIMER_CCR  = uint32(0x12)
	TIMER_SIZE = uint32(0x20)

	// CTL bits.
	TIMER_CNTL   = uint16(0x1800) // Timer_B counter length.
	TIMER_SSEL   = uint16(0x0300)
	TIMER_ID     = uint16(0x00c0)
	TIMER_MC     = uint16(0x0030)
	TIMER_CLR    = uint16(0x0004)
	TIMER_IE     = uint16(0x0002)
	TIMER_IFG    = uint16(0x0001)
	timerSsel    = 8
	timerIdBit   = 6
	timerMcBit   = 4
	timerCntlBit = 11

	// CCTL bits.
	CCTL_CM     = uint16(0xc000)
	CCTL_CCIS   = uint16(0x3000)
	CCTL_SCS    = uint16(0x0800)
	CCTL_SCCI   = uint16(0x0400)
	CCTL_CAP    = uint16(0x0100)
	CCTL_OUTMOD = uint16(0x00e0)
	CCTL_CCIE   = uint16(0x0010)
	CCTL_CCI    = uint16(0x0008)
	CCTL_OUT    = uint16(0x0004)
	CCTL_COV    = uint16(0x0002)
	CCTL_CCIFG  = uint16(0x0001)
	cctlCmBit   = 14
	cctlCcisBit = 12

	// Capture inputs selected by CCIS.
	CCI_A   = 0
	CCI_B   = 1
	CCI_GND = 2
	CCI_VCC = 3
)

// Event tags of a timer.
const (
	tagOverflow = TIMER_MAX_CCR
	tagACLK     = TIMER_MAX_CCR + 1
	tagCount    = TIMER_MAX_CCR + 2
)

// TimerConfig is the layout of a timer instance.
type TimerConfig struct {
	Name        string // Peripheral name.
	Prefix      string // Register name prefix, "TA" or "TB".
	Base        uint32 // Address of CTL.
	IV          uint32 // Address of the interrupt vector register.
	Vector0     int    // CCR0 interrupt vector.
	Vector1     int    // CCR1..n and overflow interrupt vector.
	Count       int    // Number of capture/compare registers.
	OverflowIV  uint16 // IV value of the overflow flag.
	ACLKCapture int    // CCR with ACLK on its B input, or -1.
	Lengths     bool   // Counter length selectable by CNTL.
}

var (
	TIMER_A3 = TimerConfig{
		Name:        "timer_a",
		Prefix:      "TA",
		Base:        0x0160,
		IV:          0x012e,
		Vector0:     6,
		Vector1:     5,
		Count:       3,
		OverflowIV:  0x0a,
		ACLKCapture: 2,
	}

	TIMER_B7 = TimerConfig{
		Name:        "timer_b",
		Prefix:      "TB",
		Base:        0x0180,
		IV:          0x011e,
		Vector0:     13,
		Vector1:     12,
		Count:       7,
		OverflowIV:  0x0e,
		ACLKCapture: 6,
		Lengths:     true,
	}
)

// ccr is a capture/compare register.
type ccr struct {
	ctl   uint16
	value uint16
}

// Timer is a Timer_A or Timer_B. The counter is derived from a ticker of
// the timer clock, and every compare, the overflow and the ACLK capture
// input have an event projected to their next occurrence.
type Timer struct {
	unit

	config TimerConfig

	ctl uint16
	ccr [TIMER_MAX_CCR]ccr

	// Counter phase. While span is zero the counter is stopped at count.
	tick   ticker
	span   int64 // Ticks per counting period.
	top    int64 // Turn around count of up/down mode.
	updown bool
	count  int64
	down   bool

	aclk ticker // ACLK half periods.

	events  [tagCount]*event.Event
	targets [tagCount]int64 // Tick counts the events are projected to.
}

var _ Peripheral = (*Timer)(nil)
var _ cpu.InterruptAccepter = (*Timer)(nil)

// NewTimer creates a timer.
func NewTimer(c *cpu.Cpu, config TimerConfig) (tm *Timer, err error) {
	tm = &Timer{
		unit:   unit{name: config.Name, cpu: c},
		config: config,
	}

	for tag := range tagCount {
		var name string
		switch {
		case tag == tagOverflow:
			name = fmt.Sprintf("%v.overflow", config.Name)
		case tag == tagACLK:
			name = fmt.Sprintf("%v.aclk", config.Name)
		default:
			name = fmt.Sprintf("%v.ccr%d", config.Name, tag)
		}
		tm.events[tag] = event.NewEvent(name, func(now int64) {
			tm.onFired(tag, now)
		})
	}

	read, write := wordRegisters(tm.read, tm.write)
	err = tm.attach(tm, config.Base, config.Base+TIMER_SIZE, read, write)
	if err != nil {
		return
	}

	_, err = c.Bus.RegisterHandler(config.Name+".iv", config.IV, config.IV+2, tm.readIV, tm.writeIV)
	if err != nil {
		return
	}

	c.Clock.Observe(func(clk *clock.Clock, cycles int64) {
		tm.rebase(cycles)
		tm.reschedule(cycles)
	})

	return
}

// Defines returns the register names, bits and vectors.
func (tm *Timer) Defines() iter.Seq2[string, string] {
	cfg := &tm.config
	p := cfg.Prefix
	letter := p[1:]

	defs := map[string]string{
		p + "CTL": hex(cfg.Base + TIMER_CTL),
		p + "R":   hex(cfg.Base + TIMER_R),
		p + "IV":  hex(cfg.IV),

		fmt.Sprintf("TIMER%v0_VECTOR", letter): fmt.Sprintf("%d", cfg.Vector0),
		fmt.Sprintf("TIMER%v1_VECTOR", letter): fmt.Sprintf("%d", cfg.Vector1),

		p + "SSEL_0": "0x0000",
		p + "SSEL_1": "0x0100",
		p + "SSEL_2": "0x0200",
		p + "SSEL_3": "0x0300",
		p + "CLR":    fmt.Sprintf("0x%04x", TIMER_CLR),
		p + "IE":     fmt.Sprintf("0x%04x", TIMER_IE),
		p + "IFG":    fmt.Sprintf("0x%04x", TIMER_IFG),

		"MC_0":   "0x0000",
		"MC_1":   "0x0010",
		"MC_2":   "0x0020",
		"MC_3":   "0x0030",
		"ID_0":   "0x0000",
		"ID_1":   "0x0040",
		"ID_2":   "0x0080",
		"ID_3":   "0x00c0",
		"CM_0":   "0x0000",
		"CM_1":   "0x4000",
		"CM_2":   "0x8000",
		"CM_3":   "0xc000",
		"CCIS_0": "0x0000",
		"CCIS_1": "0x1000",
		"CCIS_2": "0x2000",
		"CCIS_3": "0x3000",
		"SCS":    fmt.Sprintf("0x%04x", CCTL_SCS),
		"SCCI":   fmt.Sprintf("0x%04x", CCTL_SCCI),
		"CAP":    fmt.Sprintf("0x%04x", CCTL_CAP),
		"CCIE":   fmt.Sprintf("0x%04x", CCTL_CCIE),
		"CCI":    fmt.Sprintf("0x%04x", CCTL_CCI),
		"OUT":    fmt.Sprintf("0x%04x", CCTL_OUT),
		"COV":    fmt.Sprintf("0x%04x", CCTL_COV),
		"CCIFG":  fmt.Sprintf("0x%04x", CCTL_CCIFG),
	}

	if cfg.Lengths {
		defs["CNTL_0"] = "0x0000"
		defs["CNTL_1"] = "0x0800"
		defs["CNTL_2"] = "0x1000"
		defs["CNTL_3"] = "0x1800"
	}

	for n := range cfg.Count {
		defs[fmt.Sprintf("%vCCTL%d", p, n)] = hex(cfg.Base + TIMER_CCTL + uint32(2*n))
		defs[fmt.Sprintf("%vCCR%d", p, n)] = hex(cfg.Base + TIMER_CCR + uint32(2*n))
	}

	return maps.All(defs)
}

// Reset stops the timer and clears all registers.
func (tm *Timer) Reset() {
	for _, ev := range tm.events {
		tm.cpu.Cancel(ev)
	}

	cycles := tm.cpu.Cycles()

	tm.ctl = 0
	tm.ccr = [TIMER_MAX_CCR]ccr{}

	tm.tick = ticker{}
	tm.tick.restart(cycles, 0)
	tm.span = 0
	tm.top = 0
	tm.updown = false
	tm.count = 0
	tm.down = false

	tm.aclk = ticker{}
	tm.aclk.restart(cycles, 0)
	tm.aclk.rebase(cycles, tm.aclkPeriod())
}

// Mode returns the counting mode.
func (tm *Timer) Mode() TimerMode {
	return TimerMode((tm.ctl & TIMER_MC) >> timerMcBit)
}

// Counter returns the counter value.
func (tm *Timer) Counter() uint16 {
	count, _ := tm.counterAt(tm.cpu.Cycles())
	return uint16(count)
}

// CCTL returns a capture/compare control register.
func (tm *Timer) CCTL(n int) uint16 {
	return tm.ccr[n].ctl
}

// CCR returns a capture/compare register.
func (tm *Timer) CCR(n int) uint16 {
	return tm.ccr[n].value
}

// length returns the continuous mode counter length.
func (tm *Timer) length() int64 {
	if !tm.config.Lengths {
		return 0x10000
	}
	return [4]int64{1 << 16, 1 << 12, 1 << 10, 1 << 8}[(tm.ctl&TIMER_CNTL)>>timerCntlBit]
}

// period returns the ticks per counting period of the mode, or 0 when
// the counter does not count.
func (tm *Timer) period() int64 {
	ccr0 := int64(tm.ccr[0].value)
	switch tm.Mode() {
	case TIMER_UP:
		if ccr0 == 0 {
			return 0
		}
		return ccr0 + 1
	case TIMER_CONTINUOUS:
		return tm.length()
	case TIMER_UPDOWN:
		return 2 * ccr0
	}
	return 0
}

// perTick returns the MCLK cycles per timer tick, or 0 when stopped or
// clocked from an unmodeled source.
func (tm *Timer) perTick() float64 {
	if tm.Mode() == TIMER_STOP {
		return 0
	}

	var per float64
	switch (tm.ctl & TIMER_SSEL) >> timerSsel {
	case 1:
		per = tm.cpu.Clock.CyclesPer(clock.ACLK)
	case 2:
		per = tm.cpu.Clock.CyclesPer(clock.SMCLK)
	default:
		return 0
	}

	return per * float64(int(1)<<((tm.ctl&TIMER_ID)>>timerIdBit))
}

// aclkPeriod returns the MCLK cycles per half period of ACLK.
func (tm *Timer) aclkPeriod() float64 {
	return tm.cpu.Clock.CyclesPer(clock.ACLK) / 2
}

// counterAt returns the counter, and if it is counting down.
func (tm *Timer) counterAt(cycles int64) (count int64, down bool) {
	if tm.span == 0 {
		return tm.count, tm.down
	}

	p := tm.tick.at(cycles) % tm.span
	if tm.updown && p > tm.top {
		return tm.span - p, true
	}

	return p, false
}

// setCounter sets the counter, as a phase of the current mode.
func (tm *Timer) setCounter(count int64, down bool) {
	ccr0 := int64(tm.ccr[0].value)
	mode := tm.Mode()

	tm.count = count
	tm.down = down
	tm.updown = mode == TIMER_UPDOWN
	tm.top = ccr0
	tm.span = 0
	if tm.tick.running() {
		tm.span = tm.period()
	}

	if tm.span == 0 {
		return
	}

	var p int64
	switch mode {
	case TIMER_CONTINUOUS:
		p = count % tm.span
	case TIMER_UP:
		if count <= ccr0 {
			p = count
		}
	case TIMER_UPDOWN:
		switch {
		case count > ccr0:
			p = 0
		case down && count > 0:
			p = tm.span - count
		default:
			p = count
		}
	}

	tm.tick.ticks = p
}

// rebase carries the counter over to the current configuration.
func (tm *Timer) rebase(cycles int64) {
	count, down := tm.counterAt(cycles)
	tm.tick.rebase(cycles, tm.perTick())
	tm.aclk.rebase(cycles, tm.aclkPeriod())
	tm.setCounter(count, down)
}

// delta returns the ticks from phase 'p' until phase 'target' next comes
// around, from 1 to a whole period.
func (tm *Timer) delta(p, target int64) int64 {
	return ((target-p-1)%tm.span+tm.span)%tm.span + 1
}

// schedule projects the event of a compare register or the overflow to
// its next occurrence.
func (tm *Timer) schedule(tag int, cycles int64) {
	ev := tm.events[tag]
	tm.cpu.Cancel(ev)

	if tm.span == 0 {
		return
	}

	now := tm.tick.at(cycles)
	p := now % tm.span

	var delta int64
	if tag == tagOverflow {
		delta = tm.delta(p, 0)
	} else {
		cc := &tm.ccr[tag]
		if (cc.ctl & CCTL_CAP) != 0 {
			return
		}
		c := int64(cc.value)
		if tm.updown {
			if c > tm.top {
				return
			}
			delta = tm.delta(p, c)
			if c > 0 && c < tm.top {
				delta = min(delta, tm.delta(p, tm.span-c))
			}
		} else {
			if c >= tm.span {
				return
			}
			delta = tm.delta(p, c)
		}
	}

	tm.targets[tag] = now + delta
	tm.cpu.ScheduleCycle(ev, tm.tick.cycleOf(now+delta))
}

// scheduleACLK projects the next ACLK edge, when a capture register
// listens to it.
func (tm *Timer) scheduleACLK(cycles int64) {
	ev := tm.events[tagACLK]
	tm.cpu.Cancel(ev)

	n := tm.config.ACLKCapture
	if n < 0 || n >= tm.config.Count || !tm.aclk.running() {
		return
	}

	ctl := tm.ccr[n].ctl
	if (ctl&CCTL_CAP) == 0 || ccis(ctl) != CCI_B {
		return
	}

	next := tm.aclk.at(cycles) + 1
	tm.targets[tagACLK] = next
	tm.cpu.ScheduleCycle(ev, tm.aclk.cycleOf(next))
}

// reschedule projects all events.
func (tm *Timer) reschedule(cycles int64) {
	for n := range tm.config.Count {
		tm.schedule(n, cycles)
	}
	tm.schedule(tagOverflow, cycles)
	tm.scheduleACLK(cycles)
}

// onFired handles the events of the timer.
func (tm *Timer) onFired(tag int, now int64) {
	if tag == tagACLK {
		edge := tm.aclk.at(now)
		tm.Capture(tm.config.ACLKCapture, CCI_B, (edge%2) == 0)
		tm.scheduleACLK(now)
		return
	}

	if tm.span == 0 {
		return
	}

	if tm.tick.at(now) < tm.targets[tag] {
		tm.schedule(tag, now)
		return
	}

	if tag == tagOverflow {
		tm.logf("overflow")
		tm.ctl |= TIMER_IFG
	} else {
		tm.logf("ccr%d match 0x%04x", tag, tm.ccr[tag].value)
		tm.ccr[tag].ctl |= CCTL_CCIFG
	}

	tm.trigger()
	tm.schedule(tag, now)
}

// ccis returns the capture input selection of a control register.
func ccis(ctl uint16) int {
	return int((ctl & CCTL_CCIS) >> cctlCcisBit)
}

// Capture delivers the level of a capture input of a capture/compare
// register. Edges selected by CM latch the counter.
func (tm *Timer) Capture(n int, input int, high bool) {
	if n < 0 || n >= tm.config.Count {
		tm.warn(bus.WARN_PERIPHERAL, tm.config.Base, fmt.Errorf("%w: %d", ErrTimerIndex, n))
		return
	}

	cc := &tm.ccr[n]
	if ccis(cc.ctl) != input {
		return
	}

	was := (cc.ctl & CCTL_CCI) != 0
	if high {
		cc.ctl |= CCTL_CCI
	} else {
		cc.ctl &^= CCTL_CCI
	}

	if (cc.ctl&CCTL_CAP) == 0 || was == high {
		return
	}

	tm.capture(n, high)
}

// capture latches the counter on an edge selected by CM.
func (tm *Timer) capture(n int, high bool) {
	cc := &tm.ccr[n]

	cm := (cc.ctl & CCTL_CM) >> cctlCmBit
	if !((high && (cm&1) != 0) || (!high && (cm&2) != 0)) {
		return
	}

	count, _ := tm.counterAt(tm.cpu.Cycles())
	cc.value = uint16(count)

	if (cc.ctl & CCTL_CCIFG) != 0 {
		cc.ctl |= CCTL_COV
	}
	cc.ctl |= CCTL_CCIFG
	if (cc.ctl & CCTL_CCI) != 0 {
		cc.ctl |= CCTL_SCCI
	} else {
		cc.ctl &^= CCTL_SCCI
	}

	tm.logf("ccr%d capture 0x%04x", n, cc.value)

	tm.trigger()
}

// trigger flags the timer vectors from the interrupt flags and enables.
func (tm *Timer) trigger() {
	both := CCTL_CCIE | CCTL_CCIFG
	v0 := (tm.ccr[0].ctl & both) == both

	v1 := (tm.ctl & (TIMER_IE | TIMER_IFG)) == (TIMER_IE | TIMER_IFG)
	for n := 1; n < tm.config.Count; n++ {
		if (tm.ccr[n].ctl & both) == both {
			v1 = true
		}
	}

	tm.cpu.FlagInterrupt(tm.config.Vector0, tm, v0)
	tm.cpu.FlagInterrupt(tm.config.Vector1, tm, v1)
}

// InterruptAccepted clears the CCR0 flag on entry to its handler.
func (tm *Timer) InterruptAccepted(vector int) {
	if vector == tm.config.Vector0 {
		tm.ccr[0].ctl &^= CCTL_CCIFG
		tm.trigger()
	}
}

// InterruptServiced re-flags the vectors while enabled flags remain.
func (tm *Timer) InterruptServiced(vector int) {
	tm.trigger()
}

// iv returns the interrupt vector value of the highest priority enabled
// flag, and clears that flag.
func (tm *Timer) iv() (value uint16) {
	both := CCTL_CCIE | CCTL_CCIFG
	for n := 1; n < tm.config.Count; n++ {
		if (tm.ccr[n].ctl & both) == both {
			tm.ccr[n].ctl &^= CCTL_CCIFG
			value = uint16(2 * n)
			break
		}
	}

	if value == 0 && (tm.ctl&(TIMER_IE|TIMER_IFG)) == (TIMER_IE|TIMER_IFG) {
		tm.ctl &^= TIMER_IFG
		value = tm.config.OverflowIV
	}

	if value != 0 {
		tm.trigger()
	}

	return
}

func (tm *Timer) readIV(address uint32, width bus.Width) uint32 {
	if (address & 1) != 0 {
		return 0
	}
	return uint32(tm.iv())
}

func (tm *Timer) writeIV(address uint32, value uint32, width bus.Width) {
	tm.iv()
}

// index returns the capture/compare register index of a CCTL or CCR
// offset, or -1 with a warning.
func (tm *Timer) index(address uint32, offset uint32) int {
	n := int(offset / 2)
	if n >= tm.config.Count {
		tm.warn(bus.WARN_PERIPHERAL, address, fmt.Errorf("%w: %d", ErrTimerIndex, n))
		return -1
	}
	return n
}

func (tm *Timer) read(address uint32) (value uint16) {
	offset := address - tm.config.Base
	switch {
	case offset == TIMER_CTL:
		value = tm.ctl
	case offset < TIMER_R:
		if n := tm.index(address, offset-TIMER_CCTL); n >= 0 {
			value = tm.ccr[n].ctl
		}
	case offset == TIMER_R:
		value = tm.Counter()
	default:
		if n := tm.index(address, offset-TIMER_CCR); n >= 0 {
			value = tm.ccr[n].value
		}
	}
	return
}

func (tm *Timer) write(address uint32, value uint16) {
	cycles := tm.cpu.Cycles()
	offset := address - tm.config.Base

	switch {
	case offset == TIMER_CTL:
		tm.ctl = value &^ TIMER_CLR
		tm.rebase(cycles)
		if (value & TIMER_CLR) != 0 {
			tm.tick.restart(cycles, 0)
			tm.setCounter(0, false)
		}
		if tm.Mode() != TIMER_STOP && !tm.tick.running() && tm.period() != 0 {
			tm.warn(bus.WARN_PERIPHERAL, address, fmt.Errorf("%w: %d", ErrTimerClock, (value&TIMER_SSEL)>>timerSsel))
		}
		tm.logf("ctl 0x%04x %v", tm.ctl, tm.Mode())
		tm.reschedule(cycles)
		tm.trigger()
	case offset < TIMER_R:
		n := tm.index(address, offset-TIMER_CCTL)
		if n < 0 {
			return
		}
		tm.writeCCTL(n, value)
		tm.schedule(n, cycles)
		tm.scheduleACLK(cycles)
		tm.trigger()
	case offset == TIMER_R:
		tm.rebase(cycles)
		tm.setCounter(int64(value), false)
		tm.reschedule(cycles)
	default:
		n := tm.index(address, offset-TIMER_CCR)
		if n < 0 {
			return
		}
		tm.ccr[n].value = value
		if n == 0 {
			tm.rebase(cycles)
			tm.reschedule(cycles)
		} else {
			tm.schedule(n, cycles)
		}
	}
}

// writeCCTL stores a capture/compare control register. Switching the
// input between GND and VCC is a software capture edge.
func (tm *Timer) writeCCTL(n int, value uint16) {
	cc := &tm.ccr[n]
	old := cc.ctl

	cc.ctl = (value &^ (CCTL_CCI | CCTL_SCCI)) | (old & (CCTL_CCI | CCTL_SCCI))

	input := ccis(cc.ctl)
	if input != CCI_GND && input != CCI_VCC {
		return
	}

	high := input == CCI_VCC
	was := (old & CCTL_CCI) != 0
	if high {
		cc.ctl |= CCTL_CCI
	} else {
		cc.ctl &^= CCTL_CCI
	}

	prev := ccis(old)
	if (cc.ctl&CCTL_CAP) != 0 && (prev == CCI_GND || prev == CCI_VCC) && was != high {
		tm.capture(n, high)
	}
}

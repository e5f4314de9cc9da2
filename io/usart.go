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

const (
	// Register offsets from the USART base.
	USART_CTL   = uint32(0)
	USART_TCTL  = uint32(1)
	USART_RCTL  = uint32(2)
	USART_MCTL  = uint32(3)
	USART_BR0   = uint32(4)
	USART_BR1   = uint32(5)
	USART_RXBUF = uint32(6)
	USART_TXBUF = uint32(7)

	// UCTL bits.
	UCTL_PENA  = uint8(0x80)
	UCTL_PEV   = uint8(0x40)
	UCTL_SPB   = uint8(0x20)
	UCTL_CHAR  = uint8(0x10)
	UCTL_SYNC  = uint8(0x04)
	UCTL_SWRST = uint8(0x01)

	// UTCTL bits.
	UTCTL_SSEL  = uint8(0x30)
	UTCTL_TXEPT = uint8(0x01)
	utctlSsel   = 4

	// URCTL bits.
	URCTL_FE   = uint8(0x80)
	URCTL_PE   = uint8(0x40)
	URCTL_OE   = uint8(0x20)
	URCTL_BRK  = uint8(0x10)
	URCTL_RXER = uint8(0x01)

	USART_IDLE_POLL = 1000 // Receive poll interval while disabled, in cycles.
)

// UsartConfig is the layout of a USART instance.
type UsartConfig struct {
	Name     string // Peripheral name.
	Index    int    // USART number.
	Base     uint32 // Address of UCTL.
	RxVector int
	TxVector int
	SFR      int // IE, IFG and ME register, 0 or 1.
	RxBit    int // URXIFG, URXIE and URXE bit.
	TxBit    int // UTXIFG, UTXIE and UTXE bit.
}

var (
	USART0 = UsartConfig{
		Name:     "usart0",
		Index:    0,
		Base:     0x0070,
		RxVector: 9,
		TxVector: 8,
		SFR:      0,
		RxBit:    6,
		TxBit:    7,
	}

	USART1 = UsartConfig{
		Name:     "usart1",
		Index:    1,
		Base:     0x0078,
		RxVector: 3,
		TxVector: 2,
		SFR:      1,
		RxBit:    4,
		TxBit:    5,
	}
)

// Usart is a USART in UART mode. Transmitted bytes go to the tape output
// when their frame completes, and the tape input is polled once per
// frame time.
type Usart struct {
	unit

	Tape *Tape // Byte stream endpoint.

	config UsartConfig
	sfr    *SFR

	ctl, tctl, rctl, mctl uint8
	br0, br1              uint8
	rxbuf, txbuf          uint8

	txFull   bool // UTXBUF waits for the shift register.
	shifting bool
	shift    uint8
	txDone   *event.Event
}

var _ Peripheral = (*Usart)(nil)
var _ SFRModule = (*Usart)(nil)
var _ cpu.InterruptAccepter = (*Usart)(nil)
var _ cpu.Tickable = (*Usart)(nil)

// NewUsart creates a USART, using its bits of the special function
// registers.
func NewUsart(c *cpu.Cpu, sfr *SFR, config UsartConfig, tape *Tape) (usart *Usart, err error) {
	usart = &Usart{
		unit:   unit{name: config.Name, cpu: c},
		Tape:   tape,
		config: config,
		sfr:    sfr,
	}
	usart.txDone = event.NewEvent(config.Name+".tx", usart.onTxDone)

	read, write := byteRegisters(usart.read, usart.write)
	err = usart.attach(usart, config.Base, config.Base+USART_TXBUF+1, read, write)
	if err != nil {
		return
	}

	sfr.RegisterBit(config.SFR, config.RxBit, usart, config.RxVector)
	sfr.RegisterBit(config.SFR, config.TxBit, usart, config.TxVector)

	c.RegisterTickable(usart)

	return
}

// Defines returns the register names, bits and vectors.
func (usart *Usart) Defines() iter.Seq2[string, string] {
	cfg := &usart.config
	p := fmt.Sprintf("U%d", cfg.Index)

	return maps.All(map[string]string{
		p + "CTL":   hex(cfg.Base + USART_CTL),
		p + "TCTL":  hex(cfg.Base + USART_TCTL),
		p + "RCTL":  hex(cfg.Base + USART_RCTL),
		p + "MCTL":  hex(cfg.Base + USART_MCTL),
		p + "BR0":   hex(cfg.Base + USART_BR0),
		p + "BR1":   hex(cfg.Base + USART_BR1),
		p + "RXBUF": hex(cfg.Base + USART_RXBUF),
		p + "TXBUF": hex(cfg.Base + USART_TXBUF),

		fmt.Sprintf("URXIFG%d", cfg.Index): fmt.Sprintf("0x%02x", usart.rxMask()),
		fmt.Sprintf("UTXIFG%d", cfg.Index): fmt.Sprintf("0x%02x", usart.txMask()),
		fmt.Sprintf("URXIE%d", cfg.Index):  fmt.Sprintf("0x%02x", usart.rxMask()),
		fmt.Sprintf("UTXIE%d", cfg.Index):  fmt.Sprintf("0x%02x", usart.txMask()),
		fmt.Sprintf("URXE%d", cfg.Index):   fmt.Sprintf("0x%02x", usart.rxMask()),
		fmt.Sprintf("UTXE%d", cfg.Index):   fmt.Sprintf("0x%02x", usart.txMask()),

		fmt.Sprintf("USART%dRX_VECTOR", cfg.Index): fmt.Sprintf("%d", cfg.RxVector),
		fmt.Sprintf("USART%dTX_VECTOR", cfg.Index): fmt.Sprintf("%d", cfg.TxVector),

		"SWRST":  fmt.Sprintf("0x%02x", UCTL_SWRST),
		"CHAR":   fmt.Sprintf("0x%02x", UCTL_CHAR),
		"SPB":    fmt.Sprintf("0x%02x", UCTL_SPB),
		"PENA":   fmt.Sprintf("0x%02x", UCTL_PENA),
		"SSEL0":  "0x10",
		"SSEL1":  "0x20",
		"TXEPT":  fmt.Sprintf("0x%02x", UTCTL_TXEPT),
		"OE":     fmt.Sprintf("0x%02x", URCTL_OE),
		"URXEIE": "0x08",
	})
}

// Reset holds the USART in software reset, with an empty transmitter.
func (usart *Usart) Reset() {
	usart.cpu.Cancel(usart.txDone)

	usart.ctl = UCTL_SWRST
	usart.tctl = UTCTL_TXEPT
	usart.rctl = 0
	usart.mctl = 0
	usart.br0 = 0
	usart.br1 = 0
	usart.rxbuf = 0
	usart.txbuf = 0

	usart.txFull = false
	usart.shifting = false

	usart.sfr.SetIFG(usart.config.SFR, usart.txMask())
}

func (usart *Usart) rxMask() uint8 {
	return 1 << usart.config.RxBit
}

func (usart *Usart) txMask() uint8 {
	return 1 << usart.config.TxBit
}

// FrameBits returns the bits per character frame: start, data, parity
// and stop bits.
func (usart *Usart) FrameBits() int {
	n := 1 + 8 + 1
	if (usart.ctl & UCTL_CHAR) == 0 {
		n--
	}
	if (usart.ctl & UCTL_PENA) != 0 {
		n++
	}
	if (usart.ctl & UCTL_SPB) != 0 {
		n++
	}
	return n
}

// FrameCycles returns the MCLK cycles per character frame, from the baud
// rate divider, its modulation and the clock selection.
func (usart *Usart) FrameCycles() int64 {
	ubr := max(int(usart.br1)<<8|int(usart.br0), 3)

	frame := usart.FrameBits()

	clocks := ubr * frame
	for bit := range frame {
		if (usart.mctl & (1 << (bit % 8))) != 0 {
			clocks++
		}
	}

	domain := clock.SMCLK
	if (usart.tctl&UTCTL_SSEL)>>utctlSsel == 1 {
		domain = clock.ACLK
	}

	return max(int64(float64(clocks)*usart.cpu.Clock.CyclesPer(domain)), 1)
}

// enabled returns true if out of software reset, and the module enable
// bit is set.
func (usart *Usart) enabled(mask uint8) bool {
	return (usart.ctl&UCTL_SWRST) == 0 && usart.sfr.ME(usart.config.SFR, mask)
}

// Tick polls the tape input once per frame time.
func (usart *Usart) Tick(cycles int64) (next int64) {
	if !usart.enabled(usart.rxMask()) {
		return cycles + USART_IDLE_POLL
	}

	if value, ok := usart.Tape.Receive(); ok {
		reg := usart.config.SFR
		if (usart.sfr.IFG(reg) & usart.rxMask()) != 0 {
			usart.logf("%v", ErrUsartOverrun)
			usart.rctl |= URCTL_OE
		}
		usart.rxbuf = value
		usart.logf("rx 0x%02x", value)
		usart.sfr.SetIFG(reg, usart.rxMask())
	}

	return cycles + usart.FrameCycles()
}

// startShift moves UTXBUF to the shift register.
func (usart *Usart) startShift(cycles int64) {
	usart.shift = usart.txbuf
	usart.shifting = true
	usart.txFull = false
	usart.tctl &^= UTCTL_TXEPT

	usart.sfr.SetIFG(usart.config.SFR, usart.txMask())

	usart.cpu.ScheduleCycle(usart.txDone, cycles+usart.FrameCycles())
}

// onTxDone completes the frame in the shift register.
func (usart *Usart) onTxDone(now int64) {
	value := usart.shift
	if (usart.ctl & UCTL_CHAR) == 0 {
		value &= 0x7f
	}

	usart.logf("tx 0x%02x", value)

	err := usart.Tape.Send(value)
	if err != nil {
		usart.logf("%v", err)
	}

	usart.shifting = false
	if usart.txFull {
		usart.startShift(now)
		return
	}

	usart.tctl |= UTCTL_TXEPT
}

// InterruptAccepted clears UTXIFG on entry to the transmit handler.
func (usart *Usart) InterruptAccepted(vector int) {
	if vector == usart.config.TxVector {
		usart.sfr.ClearIFG(usart.config.SFR, usart.txMask())
	}
}

// InterruptServiced does nothing, the flags are in the SFR.
func (usart *Usart) InterruptServiced(vector int) {
}

// EnableChanged logs module enable changes.
func (usart *Usart) EnableChanged(reg int, bit int, on bool) {
	usart.logf("enable bit %d: %v", bit, on)
}

func (usart *Usart) read(address uint32) (value uint8) {
	switch address - usart.config.Base {
	case USART_CTL:
		value = usart.ctl
	case USART_TCTL:
		value = usart.tctl
	case USART_RCTL:
		value = usart.rctl
	case USART_MCTL:
		value = usart.mctl
	case USART_BR0:
		value = usart.br0
	case USART_BR1:
		value = usart.br1
	case USART_RXBUF:
		value = usart.rxbuf
		usart.rctl &^= URCTL_OE
		usart.sfr.ClearIFG(usart.config.SFR, usart.rxMask())
	case USART_TXBUF:
		value = usart.txbuf
	}
	return
}

func (usart *Usart) write(address uint32, value uint8) {
	switch address - usart.config.Base {
	case USART_CTL:
		usart.ctl = value
		if (value & UCTL_SWRST) != 0 {
			usart.cpu.Cancel(usart.txDone)
			usart.shifting = false
			usart.txFull = false
			usart.rctl &^= URCTL_OE | URCTL_FE | URCTL_PE | URCTL_BRK | URCTL_RXER
			usart.tctl |= UTCTL_TXEPT
			usart.sfr.SetIFG(usart.config.SFR, usart.txMask())
		}
	case USART_TCTL:
		usart.tctl = (value &^ UTCTL_TXEPT) | (usart.tctl & UTCTL_TXEPT)
	case USART_RCTL:
		usart.rctl = value
	case USART_MCTL:
		usart.mctl = value
	case USART_BR0:
		usart.br0 = value
	case USART_BR1:
		usart.br1 = value
	case USART_RXBUF:
		usart.cpu.Bus.Warn(bus.WARN_READ_ONLY, address, usart.name)
	case USART_TXBUF:
		if !usart.enabled(usart.txMask()) {
			usart.warn(bus.WARN_PERIPHERAL, address, ErrUsartDisabled)
			return
		}
		usart.txbuf = value
		usart.sfr.ClearIFG(usart.config.SFR, usart.txMask())
		if usart.shifting {
			usart.txFull = true
		} else {
			usart.startShift(usart.cpu.Cycles())
		}
	}
}

package emulator

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/cpu"
	"github.com/ezrec/msp430/io"
)

// newTestEmulator assembles a program into a fresh emulator, and resets it.
func newTestEmulator(t *testing.T, program ...string) (emu *Emulator) {
	config := DefaultConfig()
	config.Policy = bus.POLICY_FAIL

	emu, err := NewEmulator(config)
	require.NoError(t, err)

	err = emu.Assemble(strings.NewReader(strings.Join(program, "\n")))
	require.NoError(t, err)

	emu.Reset()

	return
}

// timerProgram enables the Timer_A CCR0 interrupt in up mode, with a
// period of CCR0+1 SMCLK cycles, and counts interrupts in r4. The timer
// starts at cycle 17 (2 + 5 + 5 + 5).
var timerProgram = []string{
	".org FLASH_START",
	"start: mov #STACK_TOP, sp",
	"mov #$(WDTPW | WDTHOLD), &WDTCTL",
	"mov #100, &TACCR0",
	"mov #CCIE, &TACCTL0",
	"mov #$(TASSEL_2 | MC_1), &TACTL",
	"eint",
	"loop: jmp loop",
	"isr: inc r4",
	"reti",
	".org 0xffec",
	".word isr",
	".org 0xfffe",
	".word start",
}

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu, err := NewEmulator(DefaultConfig())
	require.NoError(t, err)

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.Equal(uint32(MEMORY_SIZE), emu.Cpu.Bus.Size())

	count := 0
	for p := range emu.Peripherals() {
		assert.NotEmpty(p.Name())
		count++
	}
	assert.Equal(3+PORT_COUNT+4+USART_COUNT, count)

	p, ok := emu.Peripheral("timer_a")
	assert.True(ok)
	assert.Equal(emu.TimerA, p)

	_, ok = emu.Peripheral("adc12")
	assert.False(ok)
}

func TestEmulatorVerbosity(t *testing.T) {
	assert := assert.New(t)

	config := DefaultConfig()
	config.Verbosity = []string{"cpu", "clock", "usart1"}
	emu, err := NewEmulator(config)
	require.NoError(t, err)
	assert.True(emu.Cpu.Verbose)
	assert.True(emu.Cpu.Clock.Verbose)
	assert.True(emu.Usart[1].Verbose)
	assert.False(emu.Usart[0].Verbose)

	config.Verbosity = []string{"adc12"}
	_, err = NewEmulator(config)
	assert.ErrorIs(err, ErrComponent)
}

func TestEmulatorDefines(t *testing.T) {
	assert := assert.New(t)

	emu, err := NewEmulator(DefaultConfig())
	require.NoError(t, err)

	defs := maps.Collect(emu.Defines())

	table := map[string]string{
		"FLASH_START":    "0x4000",
		"STACK_TOP":      "0x3900",
		"GIE":            "0x0008",
		"IFG1":           "0x0002",
		"P1OUT":          "0x0021",
		"P3SEL":          "0x001b",
		"P2_VECTOR":      "1",
		"WDTCTL":         "0x0120",
		"TACTL":          "0x0160",
		"TBCCR6":         "0x019e",
		"TIMERA0_VECTOR": "6",
		"U1TXBUF":        "0x007f",
		"BCSCTL1":        "0x0057",
		"MPY":            "0x0130",
		"FCTL3":          "0x012c",
		"FWKEY":          "0xa500",
	}

	for name, value := range table {
		assert.Equal(value, defs[name], name)
	}
}

func TestEmulatorMemoryMap(t *testing.T) {
	assert := assert.New(t)

	emu, err := NewEmulator(DefaultConfig())
	require.NoError(t, err)
	b := emu.Cpu.Bus
	b.Logger.Policy = bus.POLICY_FAIL

	// The low RAM mirror
	b.Write(0x0200, 0x1234, bus.WORD)
	assert.Equal(uint32(0x1234), b.Read(RAM_START, bus.WORD))
	b.Write(RAM_START+0x10, 0x56, bus.BYTE)
	assert.Equal(uint32(0x56), b.Read(0x0210, bus.BYTE))
	assert.NoError(b.Logger.Err())

	// Flash is read-only, but loadable.
	require.NoError(t, emu.Load([]byte{0x34, 0x12}, FLASH_START))
	assert.Equal(uint32(0x1234), b.Read(FLASH_START, bus.WORD))
	b.Write(FLASH_START, 0, bus.WORD)
	assert.Equal(uint32(0x1234), b.Read(FLASH_START, bus.WORD))
	assert.ErrorIs(b.Logger.Err(), &bus.ErrWarning{Kind: bus.WARN_READ_ONLY})

	b.Write(INFO_START, 0, bus.BYTE)
	assert.ErrorIs(b.Logger.Err(), &bus.ErrWarning{Kind: bus.WARN_READ_ONLY})

	// Images must fit the address space.
	assert.Error(emu.Load(make([]byte, 4), 0xfffe))
}

func TestEmulatorFlashProgram(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t,
		".org FLASH_START",
		"start: mov #STACK_TOP, sp",
		"mov #$(WDTPW | WDTHOLD), &WDTCTL",
		"mov #FWKEY, &FCTL3",
		"mov #$(FWKEY | WRT), &FCTL1",
		"mov #0x1234, &INFO_START",
		"mov #$(FWKEY | LOCK), &FCTL3",
		"loop: jmp loop",
		".org 0xfffe",
		".word start",
	)
	require.NoError(t, emu.Load([]byte{0xff, 0xff}, INFO_START))

	require.NoError(t, emu.Run(1000))
	assert.Equal(uint32(0x1234), emu.Cpu.Bus.Read(INFO_START, bus.WORD))
	assert.False(emu.Flash.Busy())
	assert.Equal(io.FCTL3_LOCK|io.FCTL3_WAIT, emu.Flash.FCTL3())
	assert.Equal(emu.Program.Labels["loop"], emu.Cpu.Reg[cpu.REG_PC])
}

func TestEmulatorTimerInterrupt(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t, timerProgram...)

	isr := emu.Program.Labels["isr"]
	var entered []int64
	emu.Cpu.SetBreakpoint(isr, func(c *cpu.Cpu, pc uint32) bool {
		entered = append(entered, c.Cycles())
		return false
	})

	require.NoError(t, emu.Run(1000))

	// CCR0 matches at cycle 117, and every 101 cycles after. The handler
	// is entered on the match, and its first instruction runs 6 cycles
	// later.
	require.Equal(t, 9, len(entered))
	assert.Equal(int64(123), entered[0])
	assert.Equal(uint32(9), emu.Cpu.Reg[4])
	assert.Equal(io.TIMER_UP, emu.TimerA.Mode())
	assert.Zero(emu.TimerA.CCTL(0) & io.CCTL_CCIFG)
}

func TestEmulatorReplay(t *testing.T) {
	assert := assert.New(t)

	first := newTestEmulator(t, timerProgram...)
	second := newTestEmulator(t, timerProgram...)

	require.NoError(t, first.Run(5000))
	require.NoError(t, second.Run(5000))

	assert.Equal(first.Cpu.Cycles(), second.Cpu.Cycles())
	assert.Equal(first.Cpu.Reg, second.Cpu.Reg)
	assert.Equal(first.TimerA.Counter(), second.TimerA.Counter())
	assert.True(bytes.Equal(first.Cpu.Bus.Memory, second.Cpu.Bus.Memory))
}

func TestEmulatorLowPower(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t,
		".org FLASH_START",
		"start: mov #STACK_TOP, sp",
		"mov #$(WDTPW | WDTHOLD), &WDTCTL",
		"bis.b #1, &P1DIR",
		"mov #999, &TACCR0",
		"mov #CCIE, &TACCTL0",
		"mov #$(TASSEL_2 | MC_1), &TACTL", // timer starts at cycle 21
		"sleep: bis #$(CPUOFF | GIE), sr",
		"jmp sleep",
		"isr: xor.b #1, &P1OUT",
		"reti",
		".org 0xffec",
		".word isr",
		".org 0xfffe",
		".word start",
	)

	var toggles []int64
	emu.Port[0].Listen(func(port *io.Port, value uint8) {
		if (port.Dir() & 1) != 0 {
			toggles = append(toggles, emu.Cpu.Cycles())
		}
	})

	require.NoError(t, emu.Run(10_000))

	require.Equal(t, 10, len(toggles))
	// The direction write, then a toggle per match.
	assert.Equal(int64(7), toggles[0])
	for n, cycles := range toggles[1:] {
		assert.Equal(int64(1026+1000*n), cycles)
	}
	assert.Equal(uint8(1), emu.Port[0].Out()&1)
	assert.Equal(cpu.POWER_LPM0, emu.Cpu.Mode())
}

func TestEmulatorUsart(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t,
		".org FLASH_START",
		"start: mov #STACK_TOP, sp",
		"mov #$(WDTPW | WDTHOLD), &WDTCTL",
		"bis.b #$(UTXE0 | URXE0), &ME1",
		"bis.b #CHAR, &U0CTL",
		"mov.b #SSEL1, &U0TCTL",
		"mov.b #26, &U0BR0",
		"mov.b #0, &U0BR1",
		"bic.b #SWRST, &U0CTL",
		"mov #msg, r5",
		"next: mov.b @r5+, r6",
		"tst.b r6",
		"jz done",
		"wait: bit.b #UTXIFG0, &IFG1",
		"jz wait",
		"mov.b r6, &U0TXBUF",
		"jmp next",
		"done: jmp done",
		"msg: .byte 'H', 'i', '!', 0",
		".org 0xfffe",
		".word start",
	)

	output := &bytes.Buffer{}
	emu.Tape[0].Output = output

	require.NoError(t, emu.Run(5000))
	assert.Equal(int64(260), emu.Usart[0].FrameCycles())
	assert.Equal("Hi!", output.String())
	assert.Equal(3, emu.Tape[0].Sent)
	assert.Equal(emu.Program.Labels["done"], emu.Cpu.Reg[cpu.REG_PC])
}

func TestEmulatorUsartReceive(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t,
		".org FLASH_START",
		"start: mov #STACK_TOP, sp",
		"mov #$(WDTPW | WDTHOLD), &WDTCTL",
		"bis.b #$(UTXE0 | URXE0), &ME1",
		"bis.b #CHAR, &U0CTL",
		"mov.b #SSEL1, &U0TCTL",
		"mov.b #26, &U0BR0",
		"bic.b #SWRST, &U0CTL",
		"mov #RAM_START, r5",
		"next: bit.b #URXIFG0, &IFG1",
		"jz next",
		"mov.b &U0RXBUF, 0(r5)",
		"inc r5",
		"jmp next",
		".org 0xfffe",
		".word start",
	)

	emu.Tape[0].Input = io.BytesChannel([]byte("ok"))

	require.NoError(t, emu.Run(5000))
	assert.Equal(2, emu.Tape[0].Received)
	assert.Equal([]byte("ok"), emu.Cpu.Bus.Memory[RAM_START:RAM_START+2])
	assert.Equal(RAM_START+2, emu.Cpu.Reg[5])
}

func TestEmulatorWatchdogReset(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t,
		".org FLASH_START",
		"start: inc &RAM_START",
		"jmp $",
		".org 0xfffe",
		".word start",
	)

	// Each expiry after 32768 SMCLK cycles resets the chip.
	require.NoError(t, emu.Run(100_000))
	assert.Equal(uint32(4), emu.Cpu.Bus.Read(RAM_START, bus.WORD))
	assert.Equal(io.SFR_WDTIFG, emu.SFR.IFG(0)&io.SFR_WDTIFG)
}

func TestEmulatorErrors(t *testing.T) {
	assert := assert.New(t)

	emu := newTestEmulator(t,
		".org FLASH_START",
		"start: mov #STACK_TOP, sp",
		"mov #1, &FLASH_START",
		"jmp $",
		".org 0xfffe",
		".word start",
	)

	err := emu.Run(100)
	require.Error(t, err)

	var rt *ErrRuntime
	require.True(t, errors.As(err, &rt))
	assert.Equal(FLASH_START+4, rt.PC)
	assert.Equal(3, rt.LineNo)
	assert.Equal(int64(6), rt.Cycles)
	assert.ErrorIs(err, &bus.ErrWarning{Kind: bus.WARN_READ_ONLY})
	assert.Contains(err.Error(), "line 3")

	// No reset vector: execution from address zero.
	emu, err = NewEmulator(DefaultConfig())
	require.NoError(t, err)
	emu.Reset()

	err = emu.Step()
	var exec *cpu.ErrExecute
	require.True(t, errors.As(err, &exec))
	assert.Equal(uint32(0), exec.PC)

	dump := emu.Dump()
	assert.Contains(dump, "cycles: 0")
}

func TestEmulatorUnmapped(t *testing.T) {
	assert := assert.New(t)

	table := []uint32{0x0a00, 0x0bfe, 0x3900, 0x3a00, 0x3ffe}

	for _, target := range table {
		emu := newTestEmulator(t,
			".org FLASH_START",
			fmt.Sprintf("start: br #0x%04x", target),
			".org 0xfffe",
			".word start",
		)

		err := emu.Run(200)
		var exec *cpu.ErrExecute
		if assert.True(errors.As(err, &exec), "0x%04x", target) {
			assert.Equal(target, exec.PC)
		}
		assert.Zero(emu.Cpu.Bus.Logger.Count[bus.WARN_OPCODE], "0x%04x", target)
	}
}

package cpu

import (
	"fmt"
	"log"
)

// Special purpose registers.
const (
	REG_PC  = 0 // Program counter.
	REG_SP  = 1 // Stack pointer.
	REG_SR  = 2 // Status register, constant generator 1.
	REG_CG1 = 2 // Constant generator 1.
	REG_CG2 = 3 // Constant generator 2.

	REGISTER_COUNT = 16
)

// Status register bits.
const (
	SR_C      = uint32(0x0001)
	SR_Z      = uint32(0x0002)
	SR_N      = uint32(0x0004)
	SR_GIE    = uint32(0x0008)
	SR_CPUOFF = uint32(0x0010)
	SR_OSCOFF = uint32(0x0020)
	SR_SCG0   = uint32(0x0040)
	SR_SCG1   = uint32(0x0080)
	SR_V      = uint32(0x0100)
)

// PowerMode is the CPU operating mode, derived from the status register.
type PowerMode int

//go:generate go tool stringer -linecomment -type=PowerMode
const (
	POWER_ACTIVE = PowerMode(0) // active
	POWER_LPM0   = PowerMode(1) // lpm0
	POWER_LPM1   = PowerMode(2) // lpm1
	POWER_LPM2   = PowerMode(3) // lpm2
	POWER_LPM3   = PowerMode(4) // lpm3
	POWER_LPM4   = PowerMode(5) // lpm4
)

// Status register bits set by each low power mode.
var lpmBits = [...]uint32{
	POWER_ACTIVE: 0,
	POWER_LPM0:   SR_CPUOFF,
	POWER_LPM1:   SR_CPUOFF | SR_SCG0,
	POWER_LPM2:   SR_CPUOFF | SR_SCG1,
	POWER_LPM3:   SR_CPUOFF | SR_SCG1 | SR_SCG0,
	POWER_LPM4:   SR_CPUOFF | SR_SCG1 | SR_SCG0 | SR_OSCOFF,
}

// Constant generator table, [CG1, CG2][As].
var creg = [2][4]uint32{
	{0, 0, 4, 8},
	{0, 1, 2, 0xffff},
}

var registerName = [REGISTER_COUNT]string{
	"pc", "sp", "sr", "r3",
	"r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11",
	"r12", "r13", "r14", "r15",
}

var _register_defines = map[string]string{
	"C":      fmt.Sprintf("0x%04x", SR_C),
	"Z":      fmt.Sprintf("0x%04x", SR_Z),
	"N":      fmt.Sprintf("0x%04x", SR_N),
	"GIE":    fmt.Sprintf("0x%04x", SR_GIE),
	"CPUOFF": fmt.Sprintf("0x%04x", SR_CPUOFF),
	"OSCOFF": fmt.Sprintf("0x%04x", SR_OSCOFF),
	"SCG0":   fmt.Sprintf("0x%04x", SR_SCG0),
	"SCG1":   fmt.Sprintf("0x%04x", SR_SCG1),
	"V":      fmt.Sprintf("0x%04x", SR_V),
	"LPM0":   fmt.Sprintf("0x%04x", lpmBits[POWER_LPM0]),
	"LPM1":   fmt.Sprintf("0x%04x", lpmBits[POWER_LPM1]),
	"LPM2":   fmt.Sprintf("0x%04x", lpmBits[POWER_LPM2]),
	"LPM3":   fmt.Sprintf("0x%04x", lpmBits[POWER_LPM3]),
	"LPM4":   fmt.Sprintf("0x%04x", lpmBits[POWER_LPM4]),
}

// modeOf returns the operating mode of a status register value.
func modeOf(sr uint32) PowerMode {
	if (sr & SR_CPUOFF) == 0 {
		return POWER_ACTIVE
	}
	if (sr & SR_OSCOFF) != 0 {
		return POWER_LPM4
	}
	switch sr & (SR_SCG1 | SR_SCG0) {
	case SR_SCG0:
		return POWER_LPM1
	case SR_SCG1:
		return POWER_LPM2
	case SR_SCG1 | SR_SCG0:
		return POWER_LPM3
	}
	return POWER_LPM0
}

// RegisterFunc observes a register access.
type RegisterFunc func(reg int, value uint32)

// ReadRegister returns the value of a register.
func (cpu *Cpu) ReadRegister(reg int) (value uint32) {
	value = cpu.Reg[reg]

	for _, fn := range cpu.regRead[reg] {
		fn(reg, value)
	}

	return
}

// ReadRegisterCG returns the constant generated by a register and source
// addressing mode, if any.
func (cpu *Cpu) ReadRegisterCG(reg int, as AddrMode) (value uint32, ok bool) {
	switch {
	case reg == REG_CG1 && as >= MODE_INDIRECT:
		return creg[0][as], true
	case reg == REG_CG2:
		return creg[1][as], true
	}

	return
}

// WriteRegister sets the value of a register.
//
// The program counter is always even, and writes to the constant generator
// CG2 are discarded. A status register write updates the interrupt enable
// and operating mode.
func (cpu *Cpu) WriteRegister(reg int, value uint32) {
	value &= 0xffff

	for _, fn := range cpu.regWrite[reg] {
		fn(reg, value)
	}

	switch reg {
	case REG_PC:
		cpu.Reg[REG_PC] = value &^ 1
	case REG_CG2:
		// discarded
	case REG_SR:
		cpu.Reg[REG_SR] = value
		enabled := cpu.interruptsEnabled
		cpu.interruptsEnabled = (value & SR_GIE) != 0
		cpu.cpuOff = (value & SR_CPUOFF) != 0
		mode := modeOf(value)
		if mode != cpu.mode && cpu.Verbose {
			log.Printf("cpu: mode %v -> %v", cpu.mode, mode)
		}
		cpu.mode = mode
		if !enabled && cpu.interruptsEnabled && cpu.servicedInterrupt >= 0 {
			// Nested interrupts.
			cpu.handlePendingInterrupts()
		}
	default:
		cpu.Reg[reg] = value
	}
}

// Mode returns the current operating mode.
func (cpu *Cpu) Mode() PowerMode {
	return cpu.mode
}

// InterruptsEnabled returns the state of the GIE bit.
func (cpu *Cpu) InterruptsEnabled() bool {
	return cpu.interruptsEnabled
}

// MonitorRegister adds observers of reads and writes of a register.
// Either may be nil.
func (cpu *Cpu) MonitorRegister(reg int, read RegisterFunc, write RegisterFunc) {
	if read != nil {
		cpu.regRead[reg] = append(cpu.regRead[reg], read)
	}
	if write != nil {
		cpu.regWrite[reg] = append(cpu.regWrite[reg], write)
	}
}

// flag returns the value of a status bit.
func (cpu *Cpu) flag(bit uint32) bool {
	return (cpu.Reg[REG_SR] & bit) != 0
}

// carry returns the carry bit as a value.
func (cpu *Cpu) carry() uint32 {
	return cpu.Reg[REG_SR] & SR_C
}

// setFlag changes a status bit that does not affect the operating mode.
func (cpu *Cpu) setFlag(bit uint32, on bool) {
	if on {
		cpu.Reg[REG_SR] |= bit
	} else {
		cpu.Reg[REG_SR] &^= bit
	}
}

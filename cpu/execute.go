package cpu

import (
	"fmt"
	"log"

	"github.com/ezrec/msp430/bus"
)

// operand is a resolved instruction operand.
type operand struct {
	reg      int
	mode     AddrMode
	address  uint32 // Memory address, when memory is set.
	memory   bool   // Operand is in memory.
	constant bool   // Operand is a generated constant.
}

// immediate returns true if the operand is an immediate (@PC+).
func (op operand) immediate() bool {
	return op.reg == REG_PC && op.mode == MODE_AUTOINC
}

// widthOf returns the access width of an instruction.
func widthOf(byteMode bool) bus.Width {
	if byteMode {
		return bus.BYTE
	}
	return bus.WORD
}

// indexed fetches an extension word, and returns the indexed address.
// The program counter base is the address of the extension word, and
// the status register base is zero (absolute mode).
func (cpu *Cpu) indexed(reg int) (address uint32) {
	pc := cpu.Reg[REG_PC]
	x := cpu.Bus.Read(pc, bus.WORD)
	cpu.Reg[REG_PC] = (pc + 2) & 0xffff

	var base uint32
	switch reg {
	case REG_PC:
		base = pc
	case REG_SR:
		base = 0
	default:
		base = cpu.ReadRegister(reg)
	}

	return (base + x) & 0xffff
}

// sourceOperand resolves a source operand and reads its value.
func (cpu *Cpu) sourceOperand(reg int, mode AddrMode, width bus.Width) (op operand, value uint32) {
	op = operand{reg: reg, mode: mode}

	if cg, ok := cpu.ReadRegisterCG(reg, mode); ok {
		op.constant = true
		value = cg & width.Mask()
		return
	}

	switch mode {
	case MODE_REGISTER:
		value = cpu.ReadRegister(reg) & width.Mask()
		return
	case MODE_INDEXED:
		op.address = cpu.indexed(reg)
	case MODE_INDIRECT:
		op.address = cpu.ReadRegister(reg)
	case MODE_AUTOINC:
		op.address = cpu.ReadRegister(reg)
		step := uint32(2)
		if width == bus.BYTE && reg != REG_PC && reg != REG_SP {
			step = 1
		}
		cpu.WriteRegister(reg, op.address+step)
	}

	op.memory = true
	value = cpu.Bus.Read(op.address, width)

	return
}

// destination resolves a destination operand.
func (cpu *Cpu) destination(reg int, mode AddrMode) (op operand) {
	op = operand{reg: reg, mode: mode}
	if mode == MODE_INDEXED {
		op.address = cpu.indexed(reg)
		op.memory = true
	}
	return
}

// load reads the value of a resolved operand.
func (cpu *Cpu) load(op operand, width bus.Width) uint32 {
	if op.memory {
		return cpu.Bus.Read(op.address, width)
	}
	if cg, ok := cpu.ReadRegisterCG(op.reg, op.mode); ok {
		return cg & width.Mask()
	}
	return cpu.ReadRegister(op.reg) & width.Mask()
}

// store writes the value of a resolved operand. Byte writes to a register
// clear its upper byte.
func (cpu *Cpu) store(op operand, value uint32, width bus.Width) {
	value &= width.Mask()
	switch {
	case op.memory:
		cpu.Bus.Write(op.address, value, width)
	case op.constant:
		// discarded
	default:
		cpu.WriteRegister(op.reg, value)
	}
}

// setStatus sets N and Z from a result, and C and V as given.
func (cpu *Cpu) setStatus(result uint32, width bus.Width, c bool, v bool) {
	msb := (width.Mask() + 1) >> 1
	cpu.setFlag(SR_N, (result&msb) != 0)
	cpu.setFlag(SR_Z, (result&width.Mask()) == 0)
	cpu.setFlag(SR_C, c)
	cpu.setFlag(SR_V, v)
}

// addc adds with carry in, and sets the status flags.
func (cpu *Cpu) addc(src, dst, carry uint32, width bus.Width) (result uint32) {
	mask := width.Mask()
	msb := (mask + 1) >> 1

	sum := (src & mask) + (dst & mask) + carry
	result = sum & mask

	v := ((src^dst)&msb) == 0 && ((src^result)&msb) != 0
	cpu.setStatus(result, width, sum > mask, v)

	return
}

// subc subtracts 'src' from 'dst' with the carry in as not-borrow.
func (cpu *Cpu) subc(src, dst, carry uint32, width bus.Width) uint32 {
	return cpu.addc(^src&width.Mask(), dst, carry, width)
}

// dadd adds binary coded decimal values with carry in.
func (cpu *Cpu) dadd(src, dst uint32, width bus.Width) (result uint32) {
	digits := 2 * int(width.Size())
	carry := cpu.carry()

	for n := range digits {
		shift := uint(n * 4)
		digit := (src>>shift)&0xf + (dst>>shift)&0xf + carry
		carry = 0
		if digit > 9 {
			digit = (digit + 6) & 0xf
			carry = 1
		}
		result |= digit << shift
	}

	msb := (width.Mask() + 1) >> 1
	cpu.setFlag(SR_N, (result&msb) != 0)
	cpu.setFlag(SR_Z, result == 0)
	cpu.setFlag(SR_C, carry != 0)

	return
}

// Execute executes an instruction word, fetched from the word before the
// program counter, and returns the cycles it took.
func (cpu *Cpu) Execute(word uint16) (cycles int) {
	in := Decode(word)

	if cpu.Verbose {
		defer func() {
			log.Printf("cpu: %d: %04x: %v (%d)", cpu.cycles, cpu.Reg[REG_PC], in, cycles)
		}()
	}

	switch in.Format {
	case FORMAT_DOUBLE:
		cycles = cpu.executeDouble(in)
	case FORMAT_SINGLE:
		cycles = cpu.executeSingle(in)
	case FORMAT_JUMP:
		cycles = cpu.executeJump(in)
	default:
		pc := (cpu.Reg[REG_PC] - 2) & 0xffff
		cpu.Bus.Warn(bus.WARN_OPCODE, pc, fmt.Sprintf("0x%04x", word))
		cycles = 1
	}

	return
}

// executeDouble executes a double-operand instruction.
func (cpu *Cpu) executeDouble(in Instruction) (cycles int) {
	width := widthOf(in.Byte)
	mask := width.Mask()
	msb := (mask + 1) >> 1

	src, s := cpu.sourceOperand(in.Src, in.As, width)
	dst := cpu.destination(in.Dst, in.Ad)

	var d uint32
	if in.Double != OP_MOV {
		d = cpu.load(dst, width)
	}

	var result uint32
	write := true

	switch in.Double {
	case OP_MOV:
		result = s
	case OP_ADD:
		result = cpu.addc(s, d, 0, width)
	case OP_ADDC:
		result = cpu.addc(s, d, cpu.carry(), width)
	case OP_SUBC:
		result = cpu.subc(s, d, cpu.carry(), width)
	case OP_SUB:
		result = cpu.subc(s, d, 1, width)
	case OP_CMP:
		cpu.subc(s, d, 1, width)
		write = false
	case OP_DADD:
		result = cpu.dadd(s, d, width)
	case OP_BIT:
		result = s & d
		cpu.setStatus(result, width, result != 0, false)
		write = false
	case OP_BIC:
		result = d &^ s
	case OP_BIS:
		result = d | s
	case OP_XOR:
		result = (s ^ d) & mask
		cpu.setStatus(result, width, result != 0, (s&msb) != 0 && (d&msb) != 0)
	case OP_AND:
		result = s & d
		cpu.setStatus(result, width, result != 0, false)
	}

	// A status register destination takes the result over the flags.
	if write {
		cpu.store(dst, result, width)
	}

	return doubleCycles(src, dst)
}

// doubleCycles returns the cycles of a double-operand instruction.
func doubleCycles(src operand, dst operand) (cycles int) {
	switch {
	case src.constant || src.mode == MODE_REGISTER:
		cycles = 1
	case src.mode == MODE_INDEXED:
		cycles = 3
	default:
		cycles = 2
	}

	switch {
	case dst.memory:
		cycles += 3
	case dst.reg == REG_PC:
		if src.constant || src.mode == MODE_REGISTER || src.mode == MODE_AUTOINC {
			cycles++
		}
	}

	return
}

// executeSingle executes a single-operand instruction.
func (cpu *Cpu) executeSingle(in Instruction) (cycles int) {
	width := widthOf(in.Byte)

	switch in.Single {
	case OP_RETI:
		cpu.reti()
		return RETI_CYCLE
	case OP_PUSH:
		sp := (cpu.Reg[REG_SP] - 2) & 0xffff
		cpu.WriteRegister(REG_SP, sp)
		op, value := cpu.sourceOperand(in.Dst, in.As, width)
		cpu.Bus.Write(sp, value, width)
		return pushCycles(op)
	case OP_CALL:
		sp := (cpu.Reg[REG_SP] - 2) & 0xffff
		cpu.WriteRegister(REG_SP, sp)
		op, value := cpu.sourceOperand(in.Dst, in.As, bus.WORD)
		cpu.Bus.Write(sp, cpu.Reg[REG_PC], bus.WORD)
		cpu.WriteRegister(REG_PC, value)
		return callCycles(op)
	case OP_SWPB, OP_SXT:
		width = bus.WORD
	}

	op, value := cpu.sourceOperand(in.Dst, in.As, width)
	msb := (width.Mask() + 1) >> 1

	var result uint32
	switch in.Single {
	case OP_RRC:
		result = (value >> 1) | (cpu.carry() * msb)
		cpu.setStatus(result, width, (value&1) != 0, false)
	case OP_RRA:
		result = (value >> 1) | (value & msb)
		cpu.setStatus(result, width, (value&1) != 0, false)
	case OP_SWPB:
		result = ((value << 8) | (value >> 8)) & 0xffff
	case OP_SXT:
		result = value & 0xff
		if (result & 0x80) != 0 {
			result |= 0xff00
		}
		cpu.setStatus(result, width, result != 0, false)
	}

	cpu.store(op, result, width)

	return singleCycles(op)
}

// singleCycles returns the cycles of RRC, RRA, SWPB and SXT.
func singleCycles(op operand) int {
	switch {
	case op.constant || op.mode == MODE_REGISTER:
		return 1
	case op.mode == MODE_INDEXED:
		return 4
	}
	return 3
}

// pushCycles returns the cycles of PUSH.
func pushCycles(op operand) int {
	switch {
	case op.constant || op.mode == MODE_REGISTER:
		return 3
	case op.mode == MODE_INDIRECT:
		return 4
	case op.immediate():
		return 4
	}
	return 5
}

// callCycles returns the cycles of CALL.
func callCycles(op operand) int {
	switch {
	case op.constant || op.mode == MODE_REGISTER || op.mode == MODE_INDIRECT:
		return 4
	}
	return 5
}

// executeJump executes a conditional jump.
func (cpu *Cpu) executeJump(in Instruction) (cycles int) {
	n := cpu.flag(SR_N)
	v := cpu.flag(SR_V)

	var taken bool
	switch in.Cond {
	case JUMP_NE:
		taken = !cpu.flag(SR_Z)
	case JUMP_EQ:
		taken = cpu.flag(SR_Z)
	case JUMP_NC:
		taken = !cpu.flag(SR_C)
	case JUMP_C:
		taken = cpu.flag(SR_C)
	case JUMP_N:
		taken = n
	case JUMP_GE:
		taken = n == v
	case JUMP_L:
		taken = n != v
	case JUMP_MP:
		taken = true
	}

	if taken {
		cpu.WriteRegister(REG_PC, uint32(int(cpu.Reg[REG_PC])+in.Offset))
	}

	return 2
}

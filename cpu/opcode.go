package cpu

import (
	"fmt"
	"strings"
)

// Format is the instruction encoding format.
type Format int

//go:generate go tool stringer -linecomment -type=Format,OpDouble,OpSingle,JumpCond,AddrMode
const (
	FORMAT_INVALID = Format(0) // invalid
	FORMAT_DOUBLE  = Format(1) // double
	FORMAT_SINGLE  = Format(2) // single
	FORMAT_JUMP    = Format(3) // jump
)

// OpDouble is a double-operand opcode, from bits 15..12.
type OpDouble int

const (
	OP_MOV  = OpDouble(0x4) // mov
	OP_ADD  = OpDouble(0x5) // add
	OP_ADDC = OpDouble(0x6) // addc
	OP_SUBC = OpDouble(0x7) // subc
	OP_SUB  = OpDouble(0x8) // sub
	OP_CMP  = OpDouble(0x9) // cmp
	OP_DADD = OpDouble(0xa) // dadd
	OP_BIT  = OpDouble(0xb) // bit
	OP_BIC  = OpDouble(0xc) // bic
	OP_BIS  = OpDouble(0xd) // bis
	OP_XOR  = OpDouble(0xe) // xor
	OP_AND  = OpDouble(0xf) // and
)

// OpSingle is a single-operand opcode, from bits 9..7.
type OpSingle int

const (
	OP_RRC  = OpSingle(0) // rrc
	OP_SWPB = OpSingle(1) // swpb
	OP_RRA  = OpSingle(2) // rra
	OP_SXT  = OpSingle(3) // sxt
	OP_PUSH = OpSingle(4) // push
	OP_CALL = OpSingle(5) // call
	OP_RETI = OpSingle(6) // reti
)

// JumpCond is a jump condition, from bits 12..10.
type JumpCond int

const (
	JUMP_NE = JumpCond(0) // jne
	JUMP_EQ = JumpCond(1) // jeq
	JUMP_NC = JumpCond(2) // jnc
	JUMP_C  = JumpCond(3) // jc
	JUMP_N  = JumpCond(4) // jn
	JUMP_GE = JumpCond(5) // jge
	JUMP_L  = JumpCond(6) // jl
	JUMP_MP = JumpCond(7) // jmp
)

// AddrMode is an operand addressing mode.
type AddrMode int

const (
	MODE_REGISTER = AddrMode(0) // Rn
	MODE_INDEXED  = AddrMode(1) // X(Rn)
	MODE_INDIRECT = AddrMode(2) // @Rn
	MODE_AUTOINC  = AddrMode(3) // @Rn+
)

// Opcode encoding bases.
const (
	CODE_SINGLE = uint16(0x1000)
	CODE_JUMP   = uint16(0x2000)
	CODE_DOUBLE = uint16(0x4000)
)

// Instruction is a decoded instruction word.
type Instruction struct {
	Word   uint16
	Format Format

	Double OpDouble // FORMAT_DOUBLE opcode.
	Single OpSingle // FORMAT_SINGLE opcode.
	Cond   JumpCond // FORMAT_JUMP condition.

	Byte   bool     // Byte operation (B/W set).
	Src    int      // Source register.
	As     AddrMode // Source addressing mode.
	Dst    int      // Destination register, or the single-operand register.
	Ad     AddrMode // Destination addressing mode.
	Offset int      // FORMAT_JUMP signed byte offset from the next instruction.
}

// Decode decodes an instruction word.
func Decode(word uint16) (in Instruction) {
	in.Word = word

	switch {
	case word >= CODE_DOUBLE:
		in.Format = FORMAT_DOUBLE
		in.Double = OpDouble(word >> 12)
		in.Src = int((word >> 8) & 0xf)
		in.Ad = AddrMode((word >> 7) & 1)
		in.Byte = (word & 0x40) != 0
		in.As = AddrMode((word >> 4) & 3)
		in.Dst = int(word & 0xf)
	case (word & 0xe000) == CODE_JUMP:
		in.Format = FORMAT_JUMP
		in.Cond = JumpCond((word >> 10) & 7)
		offset := int(word & 0x3ff)
		if offset >= 0x200 {
			offset -= 0x400
		}
		in.Offset = offset * 2
	case (word & 0xfc00) == CODE_SINGLE:
		op := OpSingle((word >> 7) & 7)
		if op > OP_RETI {
			break
		}
		in.Format = FORMAT_SINGLE
		in.Single = op
		in.Byte = (word & 0x40) != 0
		in.As = AddrMode((word >> 4) & 3)
		in.Dst = int(word & 0xf)
	}

	return
}

// Encode returns the instruction word for a decoded instruction.
func (in Instruction) Encode() (word uint16) {
	switch in.Format {
	case FORMAT_DOUBLE:
		word = MakeCodeDouble(in.Double, in.Src, in.As, in.Dst, in.Ad, in.Byte)
	case FORMAT_SINGLE:
		word = MakeCodeSingle(in.Single, in.Dst, in.As, in.Byte)
	case FORMAT_JUMP:
		word = MakeCodeJump(in.Cond, in.Offset)
	default:
		word = in.Word
	}

	return
}

// MakeCodeDouble encodes a double-operand instruction word.
func MakeCodeDouble(op OpDouble, src int, as AddrMode, dst int, ad AddrMode, byteMode bool) (word uint16) {
	word = uint16(op&0xf) << 12
	word |= uint16(src&0xf) << 8
	word |= uint16(ad&1) << 7
	if byteMode {
		word |= 0x40
	}
	word |= uint16(as&3) << 4
	word |= uint16(dst & 0xf)

	return
}

// MakeCodeSingle encodes a single-operand instruction word.
func MakeCodeSingle(op OpSingle, reg int, as AddrMode, byteMode bool) (word uint16) {
	word = CODE_SINGLE | uint16(op&7)<<7
	if byteMode {
		word |= 0x40
	}
	word |= uint16(as&3) << 4
	word |= uint16(reg & 0xf)

	return
}

// MakeCodeJump encodes a jump, with a signed even byte offset from the
// next instruction.
func MakeCodeJump(cond JumpCond, offset int) (word uint16) {
	word = CODE_JUMP | uint16(cond&7)<<10
	word |= uint16((offset/2)&0x3ff)

	return
}

// Words returns the number of extension words that follow the
// instruction word.
func (in Instruction) Words() (count int) {
	switch in.Format {
	case FORMAT_DOUBLE:
		count = extWords(in.Src, in.As)
		if in.Ad == MODE_INDEXED {
			count++
		}
	case FORMAT_SINGLE:
		if in.Single != OP_RETI {
			count = extWords(in.Dst, in.As)
		}
	}

	return
}

// extWords returns the extension words used by a source operand.
func extWords(reg int, as AddrMode) int {
	switch {
	case reg == REG_CG2:
		return 0
	case reg == REG_SR && as >= MODE_INDIRECT:
		return 0
	case as == MODE_INDEXED:
		return 1
	case reg == REG_PC && as == MODE_AUTOINC:
		return 1
	}

	return 0
}

// operandString formats an operand, without extension word values.
func operandString(reg int, mode AddrMode) string {
	name := registerName[reg]
	switch mode {
	case MODE_INDEXED:
		switch reg {
		case REG_SR:
			return "&X"
		case REG_PC:
			return "X"
		}
		return "X(" + name + ")"
	case MODE_INDIRECT:
		return "@" + name
	case MODE_AUTOINC:
		if reg == REG_PC {
			return "#N"
		}
		return "@" + name + "+"
	}

	return name
}

// String returns the instruction in assembler form.
func (in Instruction) String() string {
	suffix := ""
	if in.Byte {
		suffix = ".b"
	}

	switch in.Format {
	case FORMAT_DOUBLE:
		return fmt.Sprintf("%v%s %s, %s", in.Double, suffix,
			operandString(in.Src, in.As), operandString(in.Dst, in.Ad))
	case FORMAT_SINGLE:
		if in.Single == OP_RETI {
			return in.Single.String()
		}
		return fmt.Sprintf("%v%s %s", in.Single, suffix, operandString(in.Dst, in.As))
	case FORMAT_JUMP:
		return fmt.Sprintf("%v $%+d", in.Cond, in.Offset+2)
	}

	return fmt.Sprintf(".word 0x%04x", in.Word)
}

// lookupDouble returns the double-operand opcode for a mnemonic.
func lookupDouble(name string) (op OpDouble, ok bool) {
	for op = OP_MOV; op <= OP_AND; op++ {
		if strings.EqualFold(op.String(), name) {
			return op, true
		}
	}
	return
}

// lookupSingle returns the single-operand opcode for a mnemonic.
func lookupSingle(name string) (op OpSingle, ok bool) {
	for op = OP_RRC; op <= OP_RETI; op++ {
		if strings.EqualFold(op.String(), name) {
			return op, true
		}
	}
	return
}

// lookupJump returns the jump condition for a mnemonic.
func lookupJump(name string) (cond JumpCond, ok bool) {
	for cond = JUMP_NE; cond <= JUMP_MP; cond++ {
		if strings.EqualFold(cond.String(), name) {
			return cond, true
		}
	}
	return
}

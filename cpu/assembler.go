// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass macro assembler for the MSP430 instruction set.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]uint32   // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	address   uint32 // Current assembly address.
	expansion int    // Macro expansion counter.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regMap is a map of register names to register numbers.
var regMap = map[string]int{
	"pc": REG_PC,
	"sp": REG_SP,
	"sr": REG_SR,
	"cg": REG_CG2,
}

func init() {
	for n := range REGISTER_COUNT {
		regMap[fmt.Sprintf("r%d", n)] = n
	}
}

// emulation is an emulated instruction template. "%0" is replaced by the
// single operand.
type emulation struct {
	op   string
	args []string
}

// emulated instructions.
var emulated = map[string]emulation{
	"nop":  {"mov", []string{"#0", "r3"}},
	"ret":  {"mov", []string{"@sp+", "pc"}},
	"pop":  {"mov", []string{"@sp+", "%0"}},
	"br":   {"mov", []string{"%0", "pc"}},
	"clr":  {"mov", []string{"#0", "%0"}},
	"inc":  {"add", []string{"#1", "%0"}},
	"incd": {"add", []string{"#2", "%0"}},
	"dec":  {"sub", []string{"#1", "%0"}},
	"decd": {"sub", []string{"#2", "%0"}},
	"tst":  {"cmp", []string{"#0", "%0"}},
	"inv":  {"xor", []string{"#-1", "%0"}},
	"rla":  {"add", []string{"%0", "%0"}},
	"rlc":  {"addc", []string{"%0", "%0"}},
	"adc":  {"addc", []string{"#0", "%0"}},
	"sbc":  {"subc", []string{"#0", "%0"}},
	"dadc": {"dadd", []string{"#0", "%0"}},
	"clrc": {"bic", []string{"#1", "sr"}},
	"setc": {"bis", []string{"#1", "sr"}},
	"clrz": {"bic", []string{"#2", "sr"}},
	"setz": {"bis", []string{"#2", "sr"}},
	"clrn": {"bic", []string{"#4", "sr"}},
	"setn": {"bis", []string{"#4", "sr"}},
	"dint": {"bic", []string{"#8", "sr"}},
	"eint": {"bis", []string{"#8", "sr"}},
}

// jumpAlias maps alternate jump mnemonics.
var jumpAlias = map[string]string{
	"jz":  "jeq",
	"jnz": "jne",
	"jlo": "jnc",
	"jhs": "jc",
}

// expand substitutes the operand into the template.
func (em emulation) expand(args []string) (op string, out []string, err error) {
	need := 0
	if slices.Contains(em.args, "%0") {
		need = 1
	}
	if len(args) < need {
		err = ErrOpcodeValueMissing
		return
	}
	if len(args) > need {
		err = ErrOpcodeExtraArgs
		return
	}

	op = em.op
	for _, arg := range em.args {
		if arg == "%0" {
			arg = args[0]
		}
		out = append(out, arg)
	}

	return
}

var (
	charRe   = regexp.MustCompile(`'\\?[^']'`)
	parenRe  = regexp.MustCompile(`\$\([^\$]*\)`)
	identRe  = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*`)
	labelRe  = regexp.MustCompile(`^([A-Za-z_.][A-Za-z0-9_.]*):\s*`)
	nameRe   = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
	indexRe  = regexp.MustCompile(`^(.*)\(\s*([A-Za-z0-9]+)\s*\)$`)
	hereRe   = regexp.MustCompile(`^\$([+-][0-9]+)?$`)
	equateRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*,?\s*(.+)$`)
)

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint32, err error) {
	if len(word) == 0 {
		err = ErrOpcodeValueMissing
		return
	}

	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
	}
	v64, err := strconv.ParseInt(word, 0, 33)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if v64 <= 0xffffffff && v64 >= -int64(0x80000000) {
		value = uint32(v64)
	}

	if invert {
		value = ^value
	}

	return
}

// valueOrLabel returns the value of a word, or the label it names.
func (asm *Assembler) valueOrLabel(word string) (value uint32, label string, err error) {
	word = strings.TrimSpace(word)
	value, err = asm.valueOf(word)
	if err != nil && nameRe.MatchString(word) {
		label = word
		err = nil
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value32 uint32
		value32, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	err = nil
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// expand replaces equates, then evaluates $() expressions.
func (asm *Assembler) expand(text string) (out string, err error) {
	for range 8 {
		changed := false
		text = identRe.ReplaceAllStringFunc(text, func(word string) string {
			value, ok := asm.Equate[word]
			if ok && value != word {
				changed = true
				return value
			}
			return word
		})
		if !changed {
			break
		}
	}

	out = parenRe.ReplaceAllStringFunc(text, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})

	return
}

// splitArgs splits a comma separated operand list.
func splitArgs(text string) (args []string) {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return
	}
	for _, arg := range strings.Split(text, ",") {
		args = append(args, strings.TrimSpace(arg))
	}
	return
}

// parseLine parses a single line into a mnemonic and its operands.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = charRe.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.HasPrefix(line, ".equ ") || strings.HasPrefix(line, ".equ\t") {
		m := equateRe.FindStringSubmatch(strings.TrimSpace(line[4:]))
		if m == nil {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[m[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		var value string
		value, err = asm.expand(strings.TrimSpace(m[2]))
		if err != nil {
			return
		}
		asm.Equate[m[1]] = value
		return
	}

	line, err = asm.expand(line)
	if err != nil {
		return
	}

	for {
		m := labelRe.FindStringSubmatch(line)
		if m == nil {
			break
		}
		label := m[1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		asm.Label[label] = asm.address
		line = line[len(m[0]):]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	mnemonic := fields[0]
	args := splitArgs(strings.TrimSpace(line)[len(mnemonic):])

	// .macro processing
	macro, ok := asm.Macro[mnemonic]
	if ok {
		name := mnemonic

		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		unique := fmt.Sprintf("%v_%v_", name, asm.expansion)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, `\@`, unique)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	words = append([]string{mnemonic}, args...)

	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]uint32, 16)
	asm.Opcode = asm.Opcode[:0]
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
	asm.address = 0
	asm.expansion = 0

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]
		for _, link := range op.Links {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")

			address, ok := asm.Label[link.Label]
			if !ok {
				err = ErrLabelMissing(link.Label)
				return
			}

			at := op.Address + uint32(link.Offset)
			word := uint16(op.Data[link.Offset]) | uint16(op.Data[link.Offset+1])<<8
			switch link.Kind {
			case LINK_ABSOLUTE:
				word = uint16(address)
			case LINK_RELATIVE:
				word = uint16(address - at)
			case LINK_JUMP:
				var offset int
				offset, err = jumpOffset(address, at)
				if err != nil {
					return
				}
				word |= uint16((offset / 2) & 0x3ff)
			}
			op.Data[link.Offset] = byte(word)
			op.Data[link.Offset+1] = byte(word >> 8)
		}
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
		Labels:  maps.Clone(asm.Label),
	}

	return
}

// jumpOffset returns the jump offset from the jump at 'at' to 'target'.
func jumpOffset(target uint32, at uint32) (offset int, err error) {
	offset = int(target) - int(at+2)
	if (offset&1) != 0 || offset < -1024 || offset > 1022 {
		err = ErrJumpRange
	}
	return
}

// asmOperand is a parsed operand.
type asmOperand struct {
	reg   int
	mode  AddrMode
	ext   bool     // Uses an extension word.
	value uint32   // Extension word value.
	label string   // Extension word label.
	kind  LinkKind // Extension word label kind.
}

// constantOf returns the constant generator encoding of a value.
func constantOf(value uint32, byteMode bool) (reg int, mode AddrMode, ok bool) {
	value &= 0xffff
	if byteMode {
		value &= 0xff
		if value == 0xff {
			value = 0xffff
		}
	}

	ok = true
	switch value {
	case 0:
		reg, mode = REG_CG2, MODE_REGISTER
	case 1:
		reg, mode = REG_CG2, MODE_INDEXED
	case 2:
		reg, mode = REG_CG2, MODE_INDIRECT
	case 0xffff:
		reg, mode = REG_CG2, MODE_AUTOINC
	case 4:
		reg, mode = REG_CG1, MODE_INDIRECT
	case 8:
		reg, mode = REG_CG1, MODE_AUTOINC
	default:
		ok = false
	}

	return
}

// register returns the register number of a name.
func register(name string) (reg int, err error) {
	reg, ok := regMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		err = ErrOperandInvalid
	}
	return
}

// parseOperand parses an operand. Destination operands are limited to
// register and indexed modes; '@Rn' as a destination is '0(Rn)'.
func (asm *Assembler) parseOperand(text string, byteMode bool, source bool) (op asmOperand, err error) {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		err = ErrOpcodeValueMissing
		return
	}

	if reg, ok := regMap[strings.ToLower(text)]; ok {
		op.reg = reg
		op.mode = MODE_REGISTER
		return
	}

	switch text[0] {
	case '#':
		if !source {
			err = ErrTargetInvalid
			return
		}
		op.value, op.label, err = asm.valueOrLabel(text[1:])
		if err != nil {
			return
		}
		if len(op.label) == 0 {
			if reg, mode, ok := constantOf(op.value, byteMode); ok {
				op = asmOperand{reg: reg, mode: mode}
				return
			}
		}
		op.reg = REG_PC
		op.mode = MODE_AUTOINC
		op.ext = true
	case '&':
		op.value, op.label, err = asm.valueOrLabel(text[1:])
		if err != nil {
			return
		}
		op.reg = REG_SR
		op.mode = MODE_INDEXED
		op.ext = true
	case '@':
		name, inc := strings.CutSuffix(text[1:], "+")
		op.reg, err = register(name)
		if err != nil {
			return
		}
		switch {
		case !source && inc:
			err = ErrTargetInvalid
		case !source:
			op.mode = MODE_INDEXED
			op.ext = true
		case inc:
			op.mode = MODE_AUTOINC
		default:
			op.mode = MODE_INDIRECT
		}
	default:
		if m := indexRe.FindStringSubmatch(text); m != nil {
			op.reg, err = register(m[2])
			if err != nil {
				return
			}
			if index := strings.TrimSpace(m[1]); len(index) > 0 {
				op.value, op.label, err = asm.valueOrLabel(index)
				if err != nil {
					return
				}
			}
			op.mode = MODE_INDEXED
			op.ext = true
			return
		}

		// Symbolic mode, relative to the extension word.
		op.value, op.label, err = asm.valueOrLabel(text)
		if err != nil {
			return
		}
		op.reg = REG_PC
		op.mode = MODE_INDEXED
		op.ext = true
		op.kind = LINK_RELATIVE
	}

	return
}

// emitWord appends a little-endian word.
func emitWord(opcode *Opcode, word uint16) {
	opcode.Data = append(opcode.Data, byte(word), byte(word>>8))
}

// emitExt appends the extension word of an operand, if any.
func emitExt(opcode *Opcode, op asmOperand) {
	if !op.ext {
		return
	}

	offset := len(opcode.Data)
	value := op.value
	switch {
	case len(op.label) > 0:
		opcode.Links = append(opcode.Links, Link{Offset: offset, Label: op.label, Kind: op.kind})
		value = 0
	case op.kind == LINK_RELATIVE:
		value = op.value - (opcode.Address + uint32(offset))
	}

	emitWord(opcode, uint16(value))
}

// parseWords assembles a mnemonic and its operands.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	opcode := Opcode{LineNo: lineno, Address: asm.address, Words: words}

	defer func() {
		if err != nil || len(opcode.Data) == 0 {
			return
		}
		asm.Opcode = append(asm.Opcode, opcode)
		asm.address += uint32(len(opcode.Data))
	}()

	name := strings.ToLower(words[0])
	args := words[1:]

	switch name {
	case ".org":
		if len(args) != 1 {
			err = ErrDirectiveSyntax
			return
		}
		var value uint32
		value, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		asm.address = value & 0xfffff
		return
	case ".even":
		if (asm.address & 1) != 0 {
			opcode.Data = []byte{0}
		}
		return
	case ".byte":
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			var value uint32
			value, err = asm.valueOf(arg)
			if err != nil {
				return
			}
			opcode.Data = append(opcode.Data, byte(value))
		}
		return
	case ".word":
		if len(args) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
		for _, arg := range args {
			var value uint32
			var label string
			value, label, err = asm.valueOrLabel(arg)
			if err != nil {
				return
			}
			emitExt(&opcode, asmOperand{ext: true, value: value, label: label})
		}
		return
	}

	byteMode := false
	if base, ok := strings.CutSuffix(name, ".b"); ok {
		name = base
		byteMode = true
	} else if base, ok := strings.CutSuffix(name, ".w"); ok {
		name = base
	}

	if alias, ok := jumpAlias[name]; ok {
		name = alias
	}

	if em, ok := emulated[name]; ok {
		name, args, err = em.expand(args)
		if err != nil {
			return
		}
	}

	if (asm.address & 1) != 0 {
		err = ErrAlign
		return
	}

	if op, ok := lookupDouble(name); ok {
		if len(args) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var src, dst asmOperand
		src, err = asm.parseOperand(args[0], byteMode, true)
		if err != nil {
			return
		}
		dst, err = asm.parseOperand(args[1], byteMode, false)
		if err != nil {
			return
		}
		emitWord(&opcode, MakeCodeDouble(op, src.reg, src.mode, dst.reg, dst.mode, byteMode))
		emitExt(&opcode, src)
		emitExt(&opcode, dst)
		return
	}

	if op, ok := lookupSingle(name); ok {
		if op == OP_RETI {
			if len(args) != 0 {
				err = ErrOpcodeExtraArgs
				return
			}
			emitWord(&opcode, MakeCodeSingle(op, 0, MODE_REGISTER, false))
			return
		}
		if len(args) != 1 {
			err = ErrOpcodeValueMissing
			if len(args) > 1 {
				err = ErrOpcodeExtraArgs
			}
			return
		}
		var arg asmOperand
		arg, err = asm.parseOperand(args[0], byteMode, true)
		if err != nil {
			return
		}
		emitWord(&opcode, MakeCodeSingle(op, arg.reg, arg.mode, byteMode))
		emitExt(&opcode, arg)
		return
	}

	if cond, ok := lookupJump(name); ok {
		if len(args) != 1 {
			err = ErrOpcodeValueMissing
			if len(args) > 1 {
				err = ErrOpcodeExtraArgs
			}
			return
		}
		var target uint32
		var label string
		if m := hereRe.FindStringSubmatch(args[0]); m != nil {
			target = asm.address
			if len(m[1]) > 0 {
				var delta int64
				delta, err = strconv.ParseInt(m[1], 10, 32)
				if err != nil {
					return
				}
				target = uint32(int64(target) + delta)
			}
		} else {
			target, label, err = asm.valueOrLabel(args[0])
			if err != nil {
				return
			}
		}
		if len(label) > 0 {
			opcode.Links = append(opcode.Links, Link{Offset: 0, Label: label, Kind: LINK_JUMP})
			emitWord(&opcode, MakeCodeJump(cond, 0))
			return
		}
		var offset int
		offset, err = jumpOffset(target, asm.address)
		if err != nil {
			return
		}
		emitWord(&opcode, MakeCodeJump(cond, offset))
		return
	}

	err = ErrOpcodeInvalid

	return
}

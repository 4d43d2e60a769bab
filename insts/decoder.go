package insts

import "fmt"

// Op represents a supported x86 operation.
type Op uint8

// Supported operations. The suffix names the operand shape: R is a
// register, I is a 32-bit immediate.
const (
	OpUnknown Op = iota
	OpAddRI
	OpAddRR
	OpMovRI
	OpMovRR
	OpNegR
	OpNotR
	OpPopR
	OpSubRI
	OpSubRR
	OpXorRI
	OpXorRR
)

var opNames = [...]string{
	OpUnknown: "Unknown",
	OpAddRI:   "AddRI",
	OpAddRR:   "AddRR",
	OpMovRI:   "MovRI",
	OpMovRR:   "MovRR",
	OpNegR:    "NegR",
	OpNotR:    "NotR",
	OpPopR:    "PopR",
	OpSubRI:   "SubRI",
	OpSubRR:   "SubRR",
	OpXorRI:   "XorRI",
	OpXorRR:   "XorRR",
}

var opMnemonics = [...]string{
	OpUnknown: "???",
	OpAddRI:   "ADD",
	OpAddRR:   "ADD",
	OpMovRI:   "MOV",
	OpMovRR:   "MOV",
	OpNegR:    "NEG",
	OpNotR:    "NOT",
	OpPopR:    "POP",
	OpSubRI:   "SUB",
	OpSubRR:   "SUB",
	OpXorRI:   "XOR",
	OpXorRR:   "XOR",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Mnemonic returns the assembler mnemonic of the operation, e.g. "ADD".
func (op Op) Mnemonic() string {
	if int(op) < len(opMnemonics) {
		return opMnemonics[op]
	}
	return opMnemonics[OpUnknown]
}

// Arity returns the number of operands an instruction of this kind carries.
func (op Op) Arity() int {
	switch op {
	case OpNegR, OpNotR, OpPopR:
		return 1
	case OpUnknown:
		return 0
	default:
		return 2
	}
}

// Register indices in ModRM/opcode order.
const (
	EAX uint8 = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
)

// NumRegs is the number of general-purpose 32-bit registers.
const NumRegs = 8

var regNames = [NumRegs]string{
	"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
}

// RegName returns the conventional name of a 32-bit register.
func RegName(reg uint8) string {
	if reg < NumRegs {
		return regNames[reg]
	}
	return fmt.Sprintf("r%d", reg)
}

// OperandKind distinguishes the two operand forms.
type OperandKind uint8

// Operand kinds.
const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
)

// Operand is either a register reference or a 32-bit immediate.
type Operand struct {
	Kind OperandKind
	Reg  uint8 // valid when Kind == OperandReg
	Imm  int32 // valid when Kind == OperandImm
}

// RegOperand returns a register operand.
func RegOperand(reg uint8) Operand {
	return Operand{Kind: OperandReg, Reg: reg}
}

// ImmOperand returns an immediate operand.
func ImmOperand(imm int32) Operand {
	return Operand{Kind: OperandImm, Imm: imm}
}

// IsReg reports whether the operand names a register.
func (o Operand) IsReg() bool { return o.Kind == OperandReg }

// IsImm reports whether the operand is an immediate.
func (o Operand) IsImm() bool { return o.Kind == OperandImm }

// String renders registers by name and immediates as unsigned hex with an
// "h" suffix, e.g. "FFFFFFF6h".
func (o Operand) String() string {
	switch o.Kind {
	case OperandReg:
		return RegName(o.Reg)
	case OperandImm:
		return fmt.Sprintf("%02Xh", uint32(o.Imm))
	default:
		return ""
	}
}

// Instruction represents a decoded x86 instruction.
type Instruction struct {
	Op  Op      // Operation
	Op1 Operand // Destination (always a register for decoded instructions)
	Op2 Operand // Source, OperandNone for one-operand forms

	Offset int64 // Cursor position of the opcode byte
	Len    int   // Encoded length in bytes
}

// String renders the instruction as "MNEMONIC op1,op2" or "MNEMONIC op1".
func (i *Instruction) String() string {
	switch {
	case i.Op1.Kind != OperandNone && i.Op2.Kind != OperandNone:
		return fmt.Sprintf("%s %s,%s", i.Op.Mnemonic(), i.Op1, i.Op2)
	case i.Op1.Kind != OperandNone:
		return fmt.Sprintf("%s %s", i.Op.Mnemonic(), i.Op1)
	default:
		return i.Op.Mnemonic()
	}
}

// ModRM holds the three fields of a ModRM byte.
type ModRM struct {
	Mod uint8 // bits [7:6]
	Reg uint8 // bits [5:3]
	RM  uint8 // bits [2:0]
}

// ParseModRM splits a ModRM byte into its fields.
func ParseModRM(b byte) ModRM {
	return ModRM{
		Mod: (b >> 6) & 3,
		Reg: (b >> 3) & 7,
		RM:  b & 7,
	}
}

// Byte reassembles the ModRM byte.
func (m ModRM) Byte() byte {
	return m.Mod<<6 | (m.Reg&7)<<3 | m.RM&7
}

// ByteReader is the positioned byte source the decoder consumes.
type ByteReader interface {
	// Tell returns the current position.
	Tell() int64
	// ReadU8 reads one byte and advances by 1.
	ReadU8() (byte, error)
	// ReadI32LE reads a little-endian signed 32-bit value and advances by 4.
	ReadI32LE() (int32, error)
}

// Decoder decodes stub machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new x86 stub decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads one instruction from r, leaving r positioned just past it.
func (d *Decoder) Decode(r ByteReader) (*Instruction, error) {
	start := r.Tell()

	opc, err := r.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("failed to read opcode at 0x%X: %w", start, err)
	}

	inst, err := d.decodeOpcode(r, start, opc)
	if err != nil {
		return nil, err
	}

	inst.Offset = start
	inst.Len = int(r.Tell() - start)
	return inst, nil
}

func (d *Decoder) decodeOpcode(r ByteReader, start int64, opc byte) (*Instruction, error) {
	switch {
	case opc == 0x01: // ADD Ed,Gd
		return d.decodeRegReg(r, start, opc, OpAddRR)
	case opc == 0x29: // SUB Ed,Gd
		return d.decodeRegReg(r, start, opc, OpSubRR)
	case opc == 0x31: // XOR Ed,Gd
		return d.decodeRegReg(r, start, opc, OpXorRR)
	case opc >= 0x58 && opc <= 0x5F: // POP r32
		return &Instruction{Op: OpPopR, Op1: RegOperand(opc - 0x58)}, nil
	case opc == 0x81: // Grp1 Ed,Id
		return d.decodeGrp1(r, start, opc)
	case opc == 0x89: // MOV Ed,Gd
		return d.decodeRegReg(r, start, opc, OpMovRR)
	case opc >= 0xB8 && opc <= 0xBF: // MOV r32,Id
		imm, err := d.readImm32(r)
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: OpMovRI, Op1: RegOperand(opc - 0xB8), Op2: ImmOperand(imm)}, nil
	case opc == 0xF7: // Grp3 Ed
		return d.decodeGrp3(r, start, opc)
	default:
		return nil, &UnsupportedOpcodeError{Offset: start, Opcode: opc}
	}
}

// decodeRegReg decodes the "Ed,Gd" forms: rm is the destination, reg the
// source.
func (d *Decoder) decodeRegReg(r ByteReader, start int64, opc byte, op Op) (*Instruction, error) {
	m, err := d.readModRM(r, start, opc)
	if err != nil {
		return nil, err
	}
	return &Instruction{Op: op, Op1: RegOperand(m.RM), Op2: RegOperand(m.Reg)}, nil
}

// decodeGrp1 decodes 0x81; the reg field selects ADD (0), SUB (5) or XOR (6).
func (d *Decoder) decodeGrp1(r ByteReader, start int64, opc byte) (*Instruction, error) {
	m, err := d.readModRM(r, start, opc)
	if err != nil {
		return nil, err
	}

	var op Op
	switch m.Reg {
	case 0:
		op = OpAddRI
	case 5:
		op = OpSubRI
	case 6:
		op = OpXorRI
	default:
		return nil, &UnsupportedOpcodeError{Offset: start, Opcode: opc, ModRM: m.Byte(), HasModRM: true}
	}

	imm, err := d.readImm32(r)
	if err != nil {
		return nil, err
	}
	return &Instruction{Op: op, Op1: RegOperand(m.RM), Op2: ImmOperand(imm)}, nil
}

// decodeGrp3 decodes 0xF7; the reg field selects NOT (2) or NEG (3).
func (d *Decoder) decodeGrp3(r ByteReader, start int64, opc byte) (*Instruction, error) {
	m, err := d.readModRM(r, start, opc)
	if err != nil {
		return nil, err
	}

	switch m.Reg {
	case 2:
		return &Instruction{Op: OpNotR, Op1: RegOperand(m.RM)}, nil
	case 3:
		return &Instruction{Op: OpNegR, Op1: RegOperand(m.RM)}, nil
	default:
		return nil, &UnsupportedOpcodeError{Offset: start, Opcode: opc, ModRM: m.Byte(), HasModRM: true}
	}
}

// readModRM reads and splits a ModRM byte. Only register-direct
// addressing (mod == 3) is accepted.
func (d *Decoder) readModRM(r ByteReader, start int64, opc byte) (ModRM, error) {
	b, err := r.ReadU8()
	if err != nil {
		return ModRM{}, fmt.Errorf("failed to read ModRM of opcode %02X at 0x%X: %w", opc, start, err)
	}

	m := ParseModRM(b)
	if m.Mod != 3 {
		return ModRM{}, &MemoryOperandError{Offset: start, Opcode: opc, ModRM: b}
	}
	return m, nil
}

func (d *Decoder) readImm32(r ByteReader) (int32, error) {
	pos := r.Tell()
	imm, err := r.ReadI32LE()
	if err != nil {
		return 0, fmt.Errorf("failed to read imm32 at 0x%X: %w", pos, err)
	}
	return imm, nil
}

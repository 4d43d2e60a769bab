package insts

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// x86Mode32 is the bit width for 32-bit protected-mode decoding.
const x86Mode32 = 32

// Disassemble decodes the first instruction in code with the general
// purpose x86asm decoder and returns its Intel-syntax text and length.
// It is independent of Decoder and is used for traces and cross-checks.
func Disassemble(code []byte, pc uint64) (string, int, error) {
	inst, err := x86asm.Decode(code, x86Mode32)
	if err != nil {
		return "", 0, fmt.Errorf("x86asm: %w", err)
	}
	return x86asm.IntelSyntax(inst, pc, nil), inst.Len, nil
}

// Reference decodes the first instruction in code with x86asm and returns
// it in this package's Instruction shape: mnemonic-level Op plus operands.
// The Op is resolved from the x86asm mnemonic and the operand shapes, so a
// result can be compared field by field with Decoder output.
func Reference(code []byte) (*Instruction, error) {
	inst, err := x86asm.Decode(code, x86Mode32)
	if err != nil {
		return nil, fmt.Errorf("x86asm: %w", err)
	}

	var ops []Operand
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch a := arg.(type) {
		case x86asm.Reg:
			if a < x86asm.EAX || a > x86asm.EDI {
				return nil, fmt.Errorf("x86asm: non 32-bit register %v", a)
			}
			ops = append(ops, RegOperand(uint8(a-x86asm.EAX)))
		case x86asm.Imm:
			ops = append(ops, ImmOperand(int32(a)))
		default:
			return nil, fmt.Errorf("x86asm: unsupported argument %v", arg)
		}
	}

	op := referenceOp(inst.Op, ops)
	if op == OpUnknown {
		return nil, fmt.Errorf("x86asm: %v has no stub equivalent", inst)
	}

	ref := &Instruction{Op: op, Len: inst.Len}
	if len(ops) > 0 {
		ref.Op1 = ops[0]
	}
	if len(ops) > 1 {
		ref.Op2 = ops[1]
	}
	return ref, nil
}

func referenceOp(op x86asm.Op, ops []Operand) Op {
	imm := len(ops) == 2 && ops[1].IsImm()
	switch op {
	case x86asm.ADD:
		if imm {
			return OpAddRI
		}
		return OpAddRR
	case x86asm.SUB:
		if imm {
			return OpSubRI
		}
		return OpSubRR
	case x86asm.XOR:
		if imm {
			return OpXorRI
		}
		return OpXorRR
	case x86asm.MOV:
		if imm {
			return OpMovRI
		}
		return OpMovRR
	case x86asm.NEG:
		return OpNegR
	case x86asm.NOT:
		return OpNotR
	case x86asm.POP:
		return OpPopR
	default:
		return OpUnknown
	}
}

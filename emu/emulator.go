package emu

import (
	"fmt"
	"io"

	"github.com/deobf/x86emu/insts"
)

// Emulator recovers constants by executing Confuser constant stubs.
//
// An Emulator owns one register file and one argument supply, both reset
// at the start of every run. It is not safe for concurrent use; run one
// Emulator per goroutine, each over its own cursor.
type Emulator struct {
	image   Image
	regFile *RegFile
	args    *ArgSupply
	decoder *insts.Decoder
	alu     *ALU

	// Tracing
	trace io.Writer

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions a single run
// may execute. A value of 0 means no limit.
func WithMaxInstructions(n uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = n
	}
}

// WithTrace writes one line per executed instruction to w.
func WithTrace(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.trace = w
	}
}

// NewEmulator creates a new emulator reading stubs from img.
func NewEmulator(img Image, opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}

	e := &Emulator{
		image:   img,
		regFile: regFile,
		args:    &ArgSupply{},
		decoder: insts.NewDecoder(),
		alu:     NewALU(regFile),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// InstructionCount returns the number of instructions executed by the last
// run.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// EmulateArg runs the stub at rva with a single argument.
func (e *Emulator) EmulateArg(rva uint32, arg uint32) (uint32, error) {
	return e.Emulate(rva, []uint32{arg})
}

// Emulate runs the stub at rva with the given arguments and returns the
// value left in eax. Any failure aborts the run; no partial result is
// returned.
func (e *Emulator) Emulate(rva uint32, args []uint32) (uint32, error) {
	e.reset(args)

	if err := e.enter(rva); err != nil {
		return 0, err
	}

	for {
		done, err := Matches(e.image, Epilog)
		if err != nil {
			return 0, err
		}
		if done {
			break
		}

		if err := e.Step(); err != nil {
			return 0, fmt.Errorf("RVA %08X: %w", rva, err)
		}
	}

	return e.regFile.ReadReg(insts.EAX), nil
}

// Walk decodes the stub at rva without executing it, calling fn for each
// instruction between the prolog and the epilog. The instruction budget
// applies as it does to Emulate.
func (e *Emulator) Walk(rva uint32, fn func(inst *insts.Instruction) error) error {
	if err := e.enter(rva); err != nil {
		return err
	}

	for n := uint64(0); ; n++ {
		done, err := Matches(e.image, Epilog)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if e.maxInstructions > 0 && n >= e.maxInstructions {
			return fmt.Errorf("RVA %08X: %w", rva, ErrInstructionLimit)
		}

		inst, err := e.decoder.Decode(e.image)
		if err != nil {
			return fmt.Errorf("RVA %08X: %w", rva, err)
		}
		if err := fn(inst); err != nil {
			return err
		}
	}
}

// enter positions the cursor on the first instruction after the prolog of
// the stub at rva.
func (e *Emulator) enter(rva uint32) error {
	offset, err := e.image.RVAToOffset(rva)
	if err != nil {
		return fmt.Errorf("failed to resolve RVA %08X: %w", rva, err)
	}
	if err := e.image.Seek(offset); err != nil {
		return fmt.Errorf("failed to seek to RVA %08X: %w", rva, err)
	}

	ok, err := Matches(e.image, Prolog)
	if err != nil {
		return err
	}
	if !ok {
		return &MissingPrologError{RVA: rva, Offset: offset}
	}
	if err := e.image.Seek(offset + int64(len(Prolog))); err != nil {
		return fmt.Errorf("failed to skip prolog: %w", err)
	}
	return nil
}

func (e *Emulator) reset(args []uint32) {
	e.regFile.Reset()
	e.args.Reset(args)
	e.instructionCount = 0
}

// Step decodes and executes the instruction at the cursor.
func (e *Emulator) Step() error {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return ErrInstructionLimit
	}

	inst, err := e.decoder.Decode(e.image)
	if err != nil {
		return err
	}

	if e.trace != nil {
		e.traceInst(inst)
	}

	if err := e.Execute(inst); err != nil {
		return fmt.Errorf("%s at 0x%X: %w", inst, inst.Offset, err)
	}

	e.instructionCount++
	return nil
}

// Execute applies a decoded instruction to the register file.
func (e *Emulator) Execute(inst *insts.Instruction) error {
	if inst.Op == insts.OpPopR {
		v, err := e.args.Next()
		if err != nil {
			return err
		}
		return e.write(inst.Op1, func(rd uint8) { e.alu.MOV32(rd, v) })
	}

	switch inst.Op {
	case insts.OpAddRI, insts.OpAddRR:
		src := e.readOp(inst.Op2)
		return e.write(inst.Op1, func(rd uint8) { e.alu.ADD32(rd, src) })
	case insts.OpSubRI, insts.OpSubRR:
		src := e.readOp(inst.Op2)
		return e.write(inst.Op1, func(rd uint8) { e.alu.SUB32(rd, src) })
	case insts.OpXorRI, insts.OpXorRR:
		src := e.readOp(inst.Op2)
		return e.write(inst.Op1, func(rd uint8) { e.alu.XOR32(rd, src) })
	case insts.OpMovRI, insts.OpMovRR:
		src := e.readOp(inst.Op2)
		return e.write(inst.Op1, func(rd uint8) { e.alu.MOV32(rd, src) })
	case insts.OpNegR:
		return e.write(inst.Op1, e.alu.NEG32)
	case insts.OpNotR:
		return e.write(inst.Op1, e.alu.NOT32)
	default:
		return fmt.Errorf("unimplemented op %v", inst.Op)
	}
}

// readOp resolves a source operand: a register reads the register file,
// an immediate reads its value as unsigned.
func (e *Emulator) readOp(op insts.Operand) uint32 {
	if op.IsReg() {
		return e.regFile.ReadReg(op.Reg)
	}
	return uint32(op.Imm)
}

// write runs fn against the destination register.
func (e *Emulator) write(op insts.Operand, fn func(rd uint8)) error {
	if !op.IsReg() {
		return ErrImmediateDestination
	}
	fn(op.Reg)
	return nil
}

// traceInst writes the offset, the decoded form and the x86asm rendering of
// the bytes the instruction was decoded from.
func (e *Emulator) traceInst(inst *insts.Instruction) {
	ref := "?"
	end := e.image.Tell()
	code := make([]byte, 0, inst.Len)
	if err := e.image.Seek(inst.Offset); err == nil {
		for i := 0; i < inst.Len; i++ {
			b, err := e.image.ReadU8()
			if err != nil {
				break
			}
			code = append(code, b)
		}
	}
	_ = e.image.Seek(end)

	if text, _, err := insts.Disassemble(code, uint64(inst.Offset)); err == nil {
		ref = text
	}
	_, _ = fmt.Fprintf(e.trace, "%08X  % -18X %-24s ; %s\n", inst.Offset, code, inst, ref)
}

package emu_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deobf/x86emu/emu"
	"github.com/deobf/x86emu/insts"
	"github.com/deobf/x86emu/loader"
)

var _ = Describe("Emulator", func() {
	run := func(code []byte, args ...uint32) (uint32, *emu.Emulator, error) {
		e := emu.NewEmulator(cursorFor(code))
		v, err := e.Emulate(stubBase, args)
		return v, e, err
	}

	Describe("NewEmulator", func() {
		It("should create an emulator with a zeroed register file", func() {
			e := emu.NewEmulator(cursorFor(stub()))
			Expect(e).NotTo(BeNil())
			Expect(e.RegFile().R).To(Equal([8]uint32{}))
		})
	})

	Describe("Emulate", func() {
		It("should return 0 for an empty body", func() {
			v, e, err := run(stub())
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0)))
			Expect(e.InstructionCount()).To(Equal(uint64(0)))
		})

		// MOV eax,5 ; ADD eax,3
		It("should compute MOV then ADD immediate", func() {
			v, e, err := run(stub(
				0xB8, 0x05, 0x00, 0x00, 0x00,
				0x81, 0xC0, 0x03, 0x00, 0x00, 0x00,
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(8)))
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
		})

		// POP eax ; NEG eax
		It("should negate a supplied argument", func() {
			v, _, err := run(stub(0x58, 0xF7, 0xD8), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0xFFFFFFF6)))
		})

		// POP eax ; POP ecx ; ADD eax,ecx
		It("should accumulate two arguments", func() {
			v, _, err := run(stub(0x58, 0x59, 0x01, 0xC8), 4, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(11)))
		})

		// POP ecx ; MOV eax,ecx ; XOR eax,0x5A5A5A5A ; NOT eax ; SUB eax,edx
		It("should run a typical mixed stub", func() {
			v, e, err := run(stub(
				0x59,
				0x89, 0xC8,
				0x81, 0xF0, 0x5A, 0x5A, 0x5A, 0x5A,
				0xF7, 0xD0,
				0xBA, 0x01, 0x00, 0x00, 0x00,
				0x29, 0xD0,
			), 0x12345678)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(^(uint32(0x12345678) ^ 0x5A5A5A5A) - 1))
			Expect(e.RegFile().ReadReg(insts.ECX)).To(Equal(uint32(0x12345678)))
			Expect(e.RegFile().ReadReg(insts.EDX)).To(Equal(uint32(1)))
		})

		// SUB eax,1 ; XOR ebx,ebx ; SUB edi,0xFFFFFFFF
		It("should wrap arithmetic modulo 2^32", func() {
			v, e, err := run(stub(
				0x81, 0xE8, 0x01, 0x00, 0x00, 0x00,
				0x31, 0xDB,
				0x81, 0xEF, 0xFF, 0xFF, 0xFF, 0xFF,
			))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0xFFFFFFFF)))
			Expect(e.RegFile().ReadReg(insts.EDI)).To(Equal(uint32(1)))
		})

		It("should ignore unused arguments", func() {
			v, _, err := run(stub(0x58), 1, 2, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(1)))
		})

		It("should reset state between runs", func() {
			e := emu.NewEmulator(cursorFor(stub(0x5B, 0x01, 0xD8)))

			v, err := e.EmulateArg(stubBase, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(5)))

			v, err = e.EmulateArg(stubBase, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(9)))
		})

		It("should run stubs at different RVAs in one image", func() {
			first := stub(0xB8, 0x01, 0x00, 0x00, 0x00)
			second := stub(0xB8, 0x02, 0x00, 0x00, 0x00)
			code := append(append([]byte{}, first...), second...)
			e := emu.NewEmulator(cursorFor(code))

			v, err := e.Emulate(stubBase+uint32(len(first)), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(2)))

			v, err = e.Emulate(stubBase, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(1)))
		})
	})

	Describe("Failures", func() {
		It("should fail when the prolog is missing", func() {
			code := stub(0x58)
			code[0] = 0x90

			_, e, err := run(code, 1)

			var missing *emu.MissingPrologError
			Expect(errors.As(err, &missing)).To(BeTrue())
			Expect(missing.RVA).To(Equal(uint32(stubBase)))
			Expect(err.Error()).To(ContainSubstring("00001000"))
			Expect(e.RegFile().R).To(Equal([8]uint32{}))
			Expect(e.InstructionCount()).To(Equal(uint64(0)))
		})

		It("should fail on an unsupported opcode", func() {
			_, _, err := run(stub(0x58, 0x90), 1)

			var unsupported *insts.UnsupportedOpcodeError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.Opcode).To(Equal(byte(0x90)))
			Expect(unsupported.Offset).To(Equal(int64(len(emu.Prolog) + 1)))
		})

		It("should fail on a memory operand", func() {
			_, _, err := run(stub(0x01, 0x08))

			var memErr *insts.MemoryOperandError
			Expect(errors.As(err, &memErr)).To(BeTrue())
		})

		It("should fail when the argument supply is exhausted", func() {
			_, _, err := run(stub(0x58))

			var exhausted *emu.ArgumentSupplyExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeTrue())
			Expect(exhausted.Supplied).To(Equal(0))
		})

		It("should fail when the RVA is not mapped", func() {
			e := emu.NewEmulator(cursorFor(stub()))
			_, err := e.Emulate(0x9000, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should fail when the image ends before the epilog", func() {
			code := append(append([]byte{}, emu.Prolog...), 0x58)
			_, _, err := run(code, 1)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("opcode"))
		})

		It("should stop at the instruction limit", func() {
			e := emu.NewEmulator(cursorFor(stub(0x58, 0x58, 0x58)), emu.WithMaxInstructions(2))
			_, err := e.Emulate(stubBase, []uint32{1, 2, 3})
			Expect(err).To(MatchError(emu.ErrInstructionLimit))
		})
	})

	Describe("Execute", func() {
		var e *emu.Emulator

		BeforeEach(func() {
			e = emu.NewEmulator(cursorFor(stub()))
		})

		It("should reject writes through an immediate operand", func() {
			inst := &insts.Instruction{
				Op:  insts.OpAddRI,
				Op1: insts.ImmOperand(1),
				Op2: insts.ImmOperand(2),
			}
			Expect(e.Execute(inst)).To(MatchError(emu.ErrImmediateDestination))
		})

		It("should reject unknown operations", func() {
			Expect(e.Execute(&insts.Instruction{Op: insts.OpUnknown})).NotTo(Succeed())
		})

		It("should copy registers with MOV", func() {
			e.RegFile().WriteReg(insts.ESI, 77)
			inst := &insts.Instruction{
				Op:  insts.OpMovRR,
				Op1: insts.RegOperand(insts.EBP),
				Op2: insts.RegOperand(insts.ESI),
			}
			Expect(e.Execute(inst)).To(Succeed())
			Expect(e.RegFile().ReadReg(insts.EBP)).To(Equal(uint32(77)))
		})
	})

	Describe("Tracing", func() {
		It("should write one line per instruction", func() {
			var buf bytes.Buffer
			code := stub(0xB8, 0x05, 0x00, 0x00, 0x00, 0xF7, 0xD0)
			e := emu.NewEmulator(cursorFor(code), emu.WithTrace(&buf))

			v, err := e.Emulate(stubBase, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(^uint32(5)))

			out := buf.String()
			Expect(out).To(ContainSubstring("MOV eax,05h"))
			Expect(out).To(ContainSubstring("; mov eax, "))
			Expect(out).To(ContainSubstring("NOT eax"))
			Expect(bytes.Count(buf.Bytes(), []byte("\n"))).To(Equal(2))
		})
	})

	Describe("Block-cached cursor", func() {
		It("should produce the same result as a plain cursor", func() {
			code := stub(0x58, 0x59, 0x01, 0xC8, 0xF7, 0xD8)
			img := loader.NewRawImage(code, stubBase)
			cached := img.NewCursor(loader.WithBlockCache(cacheConfigForTest()))

			v, err := emu.NewEmulator(cached).Emulate(stubBase, []uint32{4, 7})
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0xFFFFFFF5)))
			Expect(cached.Cache().Stats().Hits).To(BeNumerically(">", 0))
		})
	})
})

var _ = Describe("Walk", func() {
	It("should list the body without executing it", func() {
		e := emu.NewEmulator(cursorFor(stub(0x58, 0x59, 0x01, 0xC8)))

		var listing []string
		err := e.Walk(stubBase, func(inst *insts.Instruction) error {
			listing = append(listing, inst.String())
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(listing).To(Equal([]string{"POP eax", "POP ecx", "ADD eax,ecx"}))
		Expect(e.RegFile().R).To(Equal([8]uint32{}))
	})

	It("should report a missing prolog", func() {
		e := emu.NewEmulator(cursorFor([]byte{0x58, 0x5E, 0x5F, 0x5B, 0xC3}))
		err := e.Walk(stubBase, func(*insts.Instruction) error { return nil })

		var missing *emu.MissingPrologError
		Expect(errors.As(err, &missing)).To(BeTrue())
	})

	It("should stop on the callback's error", func() {
		stop := errors.New("stop")
		e := emu.NewEmulator(cursorFor(stub(0x58, 0x59)))

		calls := 0
		err := e.Walk(stubBase, func(*insts.Instruction) error {
			calls++
			return stop
		})
		Expect(err).To(MatchError(stop))
		Expect(calls).To(Equal(1))
	})

	It("should honor the instruction limit", func() {
		e := emu.NewEmulator(cursorFor(stub(0x58, 0x59, 0x5A)), emu.WithMaxInstructions(2))
		err := e.Walk(stubBase, func(*insts.Instruction) error { return nil })
		Expect(err).To(MatchError(emu.ErrInstructionLimit))
	})
})

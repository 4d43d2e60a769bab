// Package insts provides x86 instruction definitions and decoding for the
// register-only stub dialect that Confuser emits for its constant
// computations.
//
// The decoder understands a fixed table of 32-bit opcodes:
//   - ADD, SUB, XOR, MOV between two registers (0x01, 0x29, 0x31, 0x89)
//   - ADD, SUB, XOR with a 32-bit immediate through Grp1 (0x81 /0, /5, /6)
//   - MOV of a 32-bit immediate into a register (0xB8+r)
//   - POP into a register (0x58+r)
//   - NOT and NEG through Grp3 (0xF7 /2, /3)
//
// Anything else, including any ModRM byte that addresses memory, is
// rejected with a typed error.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(reader) // reader positioned at 81 C0 03 00 00 00
//	fmt.Println(inst)                   // ADD eax,03h
package insts

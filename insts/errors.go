package insts

import "fmt"

// UnsupportedOpcodeError is returned when the opcode byte, or the ModRM reg
// field of a group opcode, is outside the supported table.
type UnsupportedOpcodeError struct {
	Offset   int64
	Opcode   byte
	ModRM    byte
	HasModRM bool
}

func (e *UnsupportedOpcodeError) Error() string {
	if e.HasModRM {
		return fmt.Sprintf("unsupported opcode %02X /%d (ModRM %02X) at 0x%X",
			e.Opcode, ParseModRM(e.ModRM).Reg, e.ModRM, e.Offset)
	}
	return fmt.Sprintf("unsupported opcode %02X at 0x%X", e.Opcode, e.Offset)
}

// MemoryOperandError is returned when a ModRM byte addresses memory
// (mod != 3).
type MemoryOperandError struct {
	Offset int64
	Opcode byte
	ModRM  byte
}

func (e *MemoryOperandError) Error() string {
	return fmt.Sprintf("memory operand in opcode %02X (ModRM %02X, mod %d) at 0x%X",
		e.Opcode, e.ModRM, ParseModRM(e.ModRM).Mod, e.Offset)
}

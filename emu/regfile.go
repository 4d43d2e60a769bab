package emu

import "github.com/deobf/x86emu/insts"

// RegFile represents the eight 32-bit general-purpose registers, indexed
// eax, ecx, edx, ebx, esp, ebp, esi, edi.
type RegFile struct {
	R [insts.NumRegs]uint32
}

// ReadReg reads a register value. Indices outside 0..7 read as 0; the
// decoder derives indices from 3-bit fields, so they never occur.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg >= insts.NumRegs {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a register value. Writes outside 0..7 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg >= insts.NumRegs {
		return
	}
	r.R[reg] = value
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.R = [insts.NumRegs]uint32{}
}

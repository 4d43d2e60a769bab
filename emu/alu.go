package emu

// ALU implements the 32-bit arithmetic and logic operations of the stub
// dialect. Every result wraps modulo 2^32; flags are not modelled.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADD32 performs rd = rd + value.
func (a *ALU) ADD32(rd uint8, value uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rd)+value)
}

// SUB32 performs rd = rd - value.
func (a *ALU) SUB32(rd uint8, value uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rd)-value)
}

// XOR32 performs rd = rd ^ value.
func (a *ALU) XOR32(rd uint8, value uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rd)^value)
}

// MOV32 performs rd = value.
func (a *ALU) MOV32(rd uint8, value uint32) {
	a.regFile.WriteReg(rd, value)
}

// NEG32 performs rd = -rd (two's complement).
func (a *ALU) NEG32(rd uint8) {
	a.regFile.WriteReg(rd, -a.regFile.ReadReg(rd))
}

// NOT32 performs rd = ^rd.
func (a *ALU) NOT32(rd uint8) {
	a.regFile.WriteReg(rd, ^a.regFile.ReadReg(rd))
}

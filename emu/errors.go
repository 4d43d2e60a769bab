package emu

import (
	"errors"
	"fmt"
)

// ErrInstructionLimit is returned when a run exceeds the configured
// instruction budget without reaching the epilog.
var ErrInstructionLimit = errors.New("max instructions reached")

// ErrImmediateDestination is returned if an instruction tries to write
// through an immediate operand. The decoder never produces one.
var ErrImmediateDestination = errors.New("write to immediate operand")

// MissingPrologError is returned when the bytes at the start address are
// not the stub prolog.
type MissingPrologError struct {
	RVA    uint32
	Offset int64
}

func (e *MissingPrologError) Error() string {
	return fmt.Sprintf("missing prolog @ RVA %08X (offset 0x%X)", e.RVA, e.Offset)
}

// ArgumentSupplyExhaustedError is returned when a POP executes after every
// supplied argument has been consumed.
type ArgumentSupplyExhaustedError struct {
	Supplied int
}

func (e *ArgumentSupplyExhaustedError) Error() string {
	return fmt.Sprintf("argument supply exhausted (%d supplied)", e.Supplied)
}

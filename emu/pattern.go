package emu

// Prolog is the fixed entry sequence of a constant stub. It is matched as
// raw bytes and skipped, never executed.
var Prolog = []byte{
	0x89, 0xE0, 0x53, 0x57, 0x56, 0x29, 0xE0, 0x83,
	0xF8, 0x18, 0x74, 0x07, 0x8B, 0x44, 0x24, 0x10,
	0x50, 0xEB, 0x01, 0x51,
}

// Epilog is the fixed exit sequence (pop esi; pop edi; pop ebx; ret)
// that terminates emulation.
var Epilog = []byte{
	0x5E, 0x5F, 0x5B, 0xC3,
}

// Matches reports whether the bytes at the cursor equal pattern. The cursor
// position is restored on every path, so a match never consumes input. A
// read that runs off the image is a mismatch.
func Matches(c ByteCursor, pattern []byte) (matched bool, err error) {
	pos := c.Tell()
	defer func() {
		if seekErr := c.Seek(pos); seekErr != nil && err == nil {
			matched, err = false, seekErr
		}
	}()

	for _, want := range pattern {
		got, readErr := c.ReadU8()
		if readErr != nil || got != want {
			return false, nil
		}
	}
	return true, nil
}

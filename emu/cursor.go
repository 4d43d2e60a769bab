// Package emu provides functional emulation of Confuser constant stubs.
package emu

import "github.com/deobf/x86emu/insts"

// ByteCursor is a positionable byte-stream reader over an image.
type ByteCursor interface {
	insts.ByteReader

	// Seek moves the cursor to an absolute position.
	Seek(pos int64) error
}

// AddressResolver maps a relative virtual address to a file position.
type AddressResolver interface {
	RVAToOffset(rva uint32) (int64, error)
}

// Image is what the emulator runs against: a cursor plus the address
// mapping of the image it reads.
type Image interface {
	ByteCursor
	AddressResolver
}

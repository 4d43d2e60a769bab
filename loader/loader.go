// Package loader provides PE image loading for x86 binaries protected by
// Confuser, and the byte cursor the emulator reads stubs through.
package loader

import (
	"bytes"
	"debug/pe"
	"fmt"
	"os"
)

// Section is one mapped section of an image.
type Section struct {
	// Name is the section name, e.g. ".text".
	Name string
	// VirtualAddress is the RVA where the section is mapped.
	VirtualAddress uint32
	// VirtualSize is the size of the section in memory.
	VirtualSize uint32
	// Offset is the file position of the section's raw data.
	Offset uint32
	// Size is the size of the section's raw data in the file.
	Size uint32
}

// contains reports whether rva falls in the section. The extent is the
// larger of the virtual and raw sizes.
func (s Section) contains(rva uint32) bool {
	extent := s.VirtualSize
	if s.Size > extent {
		extent = s.Size
	}
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(extent)
}

// Image is a loaded binary: the raw file bytes plus its section table.
// It is immutable and may be shared by any number of cursors.
type Image struct {
	// ImageBase is the preferred load address from the optional header.
	ImageBase uint32
	// Sections contains the section table.
	Sections []Section

	data []byte
}

// Load reads and parses the PE file at path.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PE file: %w", err)
	}
	return Parse(data)
}

// Parse parses an in-memory PE file. Only 32-bit x86 images are accepted.
func Parse(data []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PE file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Machine != pe.IMAGE_FILE_MACHINE_I386 {
		return nil, fmt.Errorf("not an x86 PE file (machine type: 0x%X)", f.Machine)
	}

	img := &Image{data: data}
	if oh, ok := f.OptionalHeader.(*pe.OptionalHeader32); ok {
		img.ImageBase = oh.ImageBase
	}

	for _, s := range f.Sections {
		if uint64(s.Offset)+uint64(s.Size) > uint64(len(data)) {
			return nil, fmt.Errorf("section %s raw data [0x%X, 0x%X) exceeds file size 0x%X",
				s.Name, s.Offset, uint64(s.Offset)+uint64(s.Size), len(data))
		}
		img.Sections = append(img.Sections, Section{
			Name:           s.Name,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			Offset:         s.Offset,
			Size:           s.Size,
		})
	}

	return img, nil
}

// NewRawImage wraps a flat dump whose first byte lives at RVA base.
func NewRawImage(data []byte, base uint32) *Image {
	return &Image{
		data: data,
		Sections: []Section{{
			Name:           ".raw",
			VirtualAddress: base,
			VirtualSize:    uint32(len(data)),
			Offset:         0,
			Size:           uint32(len(data)),
		}},
	}
}

// Len returns the file size in bytes.
func (img *Image) Len() int64 {
	return int64(len(img.data))
}

// RVAToOffset maps a relative virtual address to a file position.
func (img *Image) RVAToOffset(rva uint32) (int64, error) {
	for _, s := range img.Sections {
		if s.contains(rva) {
			return int64(rva-s.VirtualAddress) + int64(s.Offset), nil
		}
	}
	return 0, fmt.Errorf("RVA %08X is not inside any section", rva)
}

// Read returns size bytes at addr, zero-filled past the end of the file.
func (img *Image) Read(addr uint64, size int) []byte {
	out := make([]byte, size)
	if addr < uint64(len(img.data)) {
		copy(out, img.data[addr:])
	}
	return out
}

// NewCursor returns an independent cursor positioned at file offset 0.
func (img *Image) NewCursor(opts ...CursorOption) *Cursor {
	c := &Cursor{image: img}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

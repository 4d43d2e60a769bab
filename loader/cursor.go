package loader

import (
	"fmt"
	"io"

	"github.com/deobf/x86emu/loader/cache"
)

// Cursor is a positioned reader over an Image.
type Cursor struct {
	image *Image
	pos   int64
	cache *cache.Cache
}

// CursorOption is a functional option for configuring a Cursor.
type CursorOption func(*Cursor)

// WithBlockCache routes byte reads through a block cache over the image.
func WithBlockCache(config cache.Config) CursorOption {
	return func(c *Cursor) {
		c.cache = cache.New(config, c.image)
	}
}

// Cache returns the cursor's block cache, or nil.
func (c *Cursor) Cache() *cache.Cache {
	return c.cache
}

// RVAToOffset maps a relative virtual address to a file position.
func (c *Cursor) RVAToOffset(rva uint32) (int64, error) {
	return c.image.RVAToOffset(rva)
}

// Seek moves the cursor. Positions 0 through Len are valid.
func (c *Cursor) Seek(pos int64) error {
	if pos < 0 || pos > c.image.Len() {
		return fmt.Errorf("seek to 0x%X outside image of 0x%X bytes", pos, c.image.Len())
	}
	c.pos = pos
	return nil
}

// Tell returns the current position.
func (c *Cursor) Tell() int64 {
	return c.pos
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (byte, error) {
	if c.pos >= c.image.Len() {
		return 0, io.ErrUnexpectedEOF
	}

	var b byte
	if c.cache != nil {
		b = byte(c.cache.Read(uint64(c.pos), 1).Data)
	} else {
		b = c.image.data[c.pos]
	}
	c.pos++
	return b, nil
}

// ReadI32LE reads a little-endian signed 32-bit value.
func (c *Cursor) ReadI32LE() (int32, error) {
	if c.pos+4 > c.image.Len() {
		return 0, io.ErrUnexpectedEOF
	}

	var v uint32
	for i := 0; i < 4; i++ {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return int32(v), nil
}

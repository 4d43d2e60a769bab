// Package cache provides a read-only block cache over image bytes using
// Akita cache components.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes
	BlockSize int
}

// DefaultConfig returns a small cache sized for stub-at-a-time access:
// 16KB, 4-way, 64B blocks.
func DefaultConfig() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     64,
	}
}

// Validate checks that the geometry describes at least one whole set.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("cache size, associativity and block size must be > 0")
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not a multiple of associativity*block size (%d)",
			c.Size, c.Associativity*c.BlockSize)
	}
	return nil
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Data is the little-endian value read.
	Data uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// Statistics holds cache statistics.
type Statistics struct {
	Reads     uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// BackingStore is the byte source behind the cache.
type BackingStore interface {
	// Read fetches size bytes at addr. Bytes past the end of the store
	// read as zero.
	Read(addr uint64, size int) []byte
}

// Cache is a set-associative read-only cache backed by an Akita directory.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats   Statistics
	backing BackingStore
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// Read reads size bytes (at most 8) at addr. The access must not cross a
// block boundary.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.stats.Reads++

	blockAddr := c.blockAddr(addr)
	offset := addr - blockAddr

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		return AccessResult{
			Hit:  true,
			Data: extractData(c.dataStore[c.blockIndex(block)], offset, size),
		}
	}

	c.stats.Misses++
	return c.handleMiss(blockAddr, offset, size)
}

// handleMiss fills a victim block from the backing store.
func (c *Cache) handleMiss(blockAddr, offset uint64, size int) AccessResult {
	result := AccessResult{}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// Directory always yields a victim for a well-formed geometry.
		if c.backing != nil {
			result.Data = extractData(c.backing.Read(blockAddr, c.config.BlockSize), offset, size)
		}
		return result
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
	}

	victimData := c.dataStore[c.blockIndex(victim)]
	if c.backing != nil {
		n := copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
		clear(victimData[n:])
	} else {
		clear(victimData)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	result.Data = extractData(victimData, offset, size)
	return result
}

// Invalidate marks the block holding addr as invalid.
func (c *Cache) Invalidate(addr uint64) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
	}
}

// Reset invalidates all blocks and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

// extractData extracts a little-endian value of the given size.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

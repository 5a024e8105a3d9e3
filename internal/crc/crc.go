// Package crc computes the CRC32C (Castagnoli) checksums stored in the
// metadata header and slot entries.
package crc

import (
	"github.com/klauspost/crc32"
)

var table = crc32.MakeTable(crc32.Castagnoli)

// CRC is a running CRC32C value.
type CRC uint32

// New returns the checksum of b.
func New(b []byte) CRC {
	return CRC(0).Update(b)
}

// Update extends the checksum with b.
func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), table, b))
}

// Value returns the checksum as stored on disk.
func (c CRC) Value() uint32 {
	return uint32(c)
}

// Checksum is shorthand for New(b).Value().
func Checksum(b []byte) uint32 {
	return New(b).Value()
}

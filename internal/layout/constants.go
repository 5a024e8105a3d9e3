// Package layout encodes and decodes the metadata header stored at the start
// of the LUKS header hole.
//
// On-disk format, all integers big-endian:
//
//	[8 bytes magic "LUKSMETA"][4 bytes version][4 bytes crc32c]
//	8 x [16 bytes uuid][4 bytes offset][4 bytes length][4 bytes crc32c][4 bytes reserved]
//
// The header checksum covers the whole record with the checksum field zeroed.
// Slot offsets are measured from the start of the hole.
package layout

import "github.com/MikhailWahib/luksmeta/internal/shared"

// NumSlots is the number of LUKS1 key slots, and so of metadata slots.
const NumSlots = 8

// Version is the only supported header version.
const Version = 1

const (
	magicSize    = 8
	versionSize  = 4
	checksumSize = 4
	uuidSize     = 16
	slotSize     = uuidSize + 4*4

	versionOffset  = magicSize
	checksumOffset = versionOffset + versionSize
	slotsOffset    = checksumOffset + checksumSize
)

// HeaderSize is the encoded size of the header in bytes.
const HeaderSize = slotsOffset + NumSlots*slotSize // 272 bytes

// HeaderPage is the page-aligned size reserved for the header. Payloads are
// placed at or after this offset.
const HeaderPage = (HeaderSize + shared.PageSize - 1) / shared.PageSize * shared.PageSize

// Magic identifies an initialized hole.
var Magic = [magicSize]byte{'L', 'U', 'K', 'S', 'M', 'E', 'T', 'A'}

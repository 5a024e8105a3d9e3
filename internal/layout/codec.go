package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/MikhailWahib/luksmeta/internal/crc"
	"github.com/MikhailWahib/luksmeta/internal/shared"
)

// Encode serializes the header, stamping magic, version and checksum.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf, Magic[:])
	binary.BigEndian.PutUint32(buf[versionOffset:], Version)

	for i, s := range h.Slots {
		b := buf[slotsOffset+i*slotSize:]
		copy(b, s.UUID[:])
		binary.BigEndian.PutUint32(b[uuidSize:], s.Offset)
		binary.BigEndian.PutUint32(b[uuidSize+4:], s.Length)
		binary.BigEndian.PutUint32(b[uuidSize+8:], s.CRC32C)
		// reserved stays zero
	}

	binary.BigEndian.PutUint32(buf[checksumOffset:], checksum(buf))
	return buf
}

// Decode parses and validates an encoded header read from a hole of
// holeLength bytes.
func Decode(buf []byte, holeLength uint32) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, shared.Newf(shared.NotInitialized, "short header")
	}
	buf = buf[:HeaderSize]

	if !bytes.Equal(buf[:magicSize], Magic[:]) {
		return nil, shared.New(shared.NotInitialized, nil)
	}

	if v := binary.BigEndian.Uint32(buf[versionOffset:]); v != Version {
		return nil, shared.New(shared.Unsupported, fmt.Errorf("header version %d", v))
	}

	stored := binary.BigEndian.Uint32(buf[checksumOffset:])
	if sum := checksum(buf); sum != stored {
		return nil, shared.New(shared.Corrupt, fmt.Errorf("header checksum %08x, expected %08x", stored, sum))
	}

	h := &Header{}
	for i := range h.Slots {
		b := buf[slotsOffset+i*slotSize:]
		s := &h.Slots[i]
		copy(s.UUID[:], b[:uuidSize])
		s.Offset = binary.BigEndian.Uint32(b[uuidSize:])
		s.Length = binary.BigEndian.Uint32(b[uuidSize+4:])
		s.CRC32C = binary.BigEndian.Uint32(b[uuidSize+8:])
	}

	if err := h.Validate(holeLength); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks that every occupied slot lies after the header page,
// inside the hole, and clear of every other occupied slot.
func (h *Header) Validate(holeLength uint32) error {
	for i, s := range h.Slots {
		if s.Empty() {
			continue
		}
		if s.Offset < HeaderPage {
			return shared.New(shared.Corrupt, fmt.Errorf("slot %d offset %d inside header page", i, s.Offset))
		}
		if s.End() > uint64(holeLength) {
			return shared.New(shared.Corrupt, fmt.Errorf("slot %d ends at %d past hole length %d", i, s.End(), holeLength))
		}
		for j := i + 1; j < NumSlots; j++ {
			o := h.Slots[j]
			if o.Empty() {
				continue
			}
			if shared.Overlaps(uint64(s.Offset), s.End(), uint64(o.Offset), o.End()) {
				return shared.New(shared.Corrupt, fmt.Errorf("slot %d overlaps slot %d", i, j))
			}
		}
	}
	return nil
}

// checksum computes the header checksum with the checksum field zeroed.
func checksum(buf []byte) uint32 {
	var zero [checksumSize]byte
	return crc.New(buf[:checksumOffset]).
		Update(zero[:]).
		Update(buf[checksumOffset+checksumSize : HeaderSize]).
		Value()
}

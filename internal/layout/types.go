package layout

import "github.com/google/uuid"

// Slot is one entry of the slot table. A slot with a zero UUID is empty.
type Slot struct {
	UUID   uuid.UUID
	Offset uint32 // bytes from the start of the hole
	Length uint32
	CRC32C uint32
}

// Empty reports whether the slot holds no metadata.
func (s Slot) Empty() bool { return s.UUID == uuid.Nil }

// End returns the offset one past the payload.
func (s Slot) End() uint64 { return uint64(s.Offset) + uint64(s.Length) }

// Header is the decoded metadata header.
type Header struct {
	Slots [NumSlots]Slot
}

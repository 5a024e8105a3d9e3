// Package hole locates the unused byte range between the end of the LUKS1
// key-slot area and the start of the encrypted payload, and gives positioned
// access to it.
package hole

import (
	"fmt"
	"math"

	"github.com/MikhailWahib/luksmeta/internal/diskmanager"
	"github.com/MikhailWahib/luksmeta/internal/layout"
	"github.com/MikhailWahib/luksmeta/internal/shared"
)

// TypeLUKS1 is the only supported volume type.
const TypeLUKS1 = "LUKS1"

// maxLength keeps every hole offset representable in the 32-bit slot fields.
const maxLength = math.MaxUint32 &^ (shared.PageSize - 1)

// Volume is the view of an encrypted volume the metadata store needs.
type Volume interface {
	// Type returns the volume format name, e.g. "LUKS1".
	Type() string
	// PayloadOffset returns the byte offset of the encrypted payload. Zero
	// means the header is detached from the data.
	PayloadOffset() uint64
	// KeyslotArea returns the byte range reserved for a key slot's material.
	KeyslotArea(slot int) (offset, length uint64, err error)
	// DevicePath returns the path of the device holding the header.
	DevicePath() string
}

// KeyslotStatuser is implemented by volumes that can report whether a key
// slot holds active key material.
type KeyslotStatuser interface {
	KeyslotActive(slot int) (bool, error)
}

// Locate returns the byte offset of the hole on the device and its
// page-aligned length.
func Locate(vol Volume) (start uint64, length uint32, err error) {
	if t := vol.Type(); t != TypeLUKS1 {
		return 0, 0, shared.New(shared.Unsupported, fmt.Errorf("volume type %q", t))
	}

	payload := vol.PayloadOffset()
	if payload == 0 {
		return 0, 0, shared.Newf(shared.Unsupported, "detached header")
	}

	for slot := 0; slot < layout.NumSlots; slot++ {
		off, n, err := vol.KeyslotArea(slot)
		if err != nil {
			return 0, 0, fmt.Errorf("keyslot %d area: %w", slot, err)
		}
		if end := shared.AlignUp(off + n); end > start {
			start = end
		}
	}

	if start == 0 {
		return 0, 0, shared.Newf(shared.Unsupported, "no keyslot area")
	}
	if start >= payload {
		return 0, 0, shared.New(shared.OutOfSpace, fmt.Errorf("keyslot area ends at %d, payload starts at %d", start, payload))
	}

	return start, uint32(min(shared.AlignDown(payload-start), maxLength)), nil
}

// Hole is an open handle positioned at the start of the hole. Offsets passed
// to its methods are relative to the hole start.
type Hole struct {
	fh     diskmanager.FileHandle
	start  uint64
	length uint32
}

// Open locates the hole and opens the volume's device in the given mode.
func Open(dm diskmanager.DiskManager, vol Volume, mode diskmanager.Mode) (*Hole, error) {
	start, length, err := Locate(vol)
	if err != nil {
		return nil, err
	}

	fh, err := dm.Open(vol.DevicePath(), mode)
	if err != nil {
		return nil, err
	}

	return &Hole{fh: fh, start: start, length: length}, nil
}

// Start returns the byte offset of the hole on the device.
func (h *Hole) Start() uint64 { return h.start }

// Length returns the usable length of the hole.
func (h *Hole) Length() uint32 { return h.length }

// ReadAt fills b from the hole at off.
func (h *Hole) ReadAt(b []byte, off uint32) error {
	if err := h.check(len(b), off); err != nil {
		return err
	}
	if err := diskmanager.ReadFull(h.fh, b, int64(h.start)+int64(off)); err != nil {
		return fmt.Errorf("read %d bytes at hole offset %d: %w", len(b), off, err)
	}
	return nil
}

// WriteAt writes all of b to the hole at off.
func (h *Hole) WriteAt(b []byte, off uint32) error {
	if err := h.check(len(b), off); err != nil {
		return err
	}
	if err := diskmanager.WriteFull(h.fh, b, int64(h.start)+int64(off)); err != nil {
		return fmt.Errorf("write %d bytes at hole offset %d: %w", len(b), off, err)
	}
	return nil
}

// Sync is the durability barrier for everything written so far.
func (h *Hole) Sync() error { return h.fh.Sync() }

// Close releases the device.
func (h *Hole) Close() error { return h.fh.Close() }

func (h *Hole) check(n int, off uint32) error {
	if uint64(off)+uint64(n) > uint64(h.length) {
		return shared.New(shared.OutOfSpace, fmt.Errorf("%d bytes at offset %d exceed hole length %d", n, off, h.length))
	}
	return nil
}

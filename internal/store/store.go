// Package store implements the metadata slot operations on top of the hole
// locator, the header codec and the gap allocator.
//
// Every operation opens the device, does its work with positioned I/O and
// closes it again. Mutations always write the payload region before the
// header that references it and finish with a durability barrier, so a crash
// leaves either the previous header (Save) or a header whose payload fails
// its checksum (Wipe).
//
// A Store takes no locks. Callers must hold an exclusive lock on the device,
// across processes, for the duration of each call.
package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/MikhailWahib/luksmeta/internal/alloc"
	"github.com/MikhailWahib/luksmeta/internal/config"
	"github.com/MikhailWahib/luksmeta/internal/crc"
	"github.com/MikhailWahib/luksmeta/internal/diskmanager"
	"github.com/MikhailWahib/luksmeta/internal/hole"
	"github.com/MikhailWahib/luksmeta/internal/layout"
	"github.com/MikhailWahib/luksmeta/internal/shared"
	"github.com/google/uuid"
)

// AnySlot asks Save to pick the lowest usable slot.
const AnySlot = -1

// Store reads and writes metadata slots in the hole of one volume.
type Store struct {
	vol    hole.Volume
	dm     diskmanager.DiskManager
	config *config.Config
}

// New creates a Store for vol using the real disk manager.
func New(vol hole.Volume, cfg *config.Config) *Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.FillDefaults()
	return NewWithDiskManager(vol, diskmanager.NewDiskManager(diskmanager.SyncMode(cfg.SyncMode)), cfg)
}

// NewWithDiskManager creates a Store that opens devices through dm.
func NewWithDiskManager(vol hole.Volume, dm diskmanager.DiskManager, cfg *config.Config) *Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.FillDefaults()
	return &Store{vol: vol, dm: dm, config: cfg}
}

// Test reports whether the hole holds a valid metadata header.
func (s *Store) Test() error {
	h, _, err := s.readHeader(diskmanager.ReadOnly)
	if err != nil {
		return shared.Wrap("test", shared.NoSlot, err)
	}
	_ = h.Close()
	return nil
}

// Init writes an empty metadata header into the hole. A hole that holds a
// valid header is left alone; one that is corrupt is overwritten.
func (s *Store) Init() error {
	const op = "init"

	err := s.Test()
	if err == nil {
		return shared.Wrap(op, shared.NoSlot, shared.New(shared.AlreadyInitialized, nil))
	}
	if k := shared.KindOf(err); k != shared.NotInitialized && k != shared.Corrupt {
		return shared.Wrap(op, shared.NoSlot, err)
	}

	h, err := hole.Open(s.dm, s.vol, diskmanager.ReadWrite)
	if err != nil {
		return shared.Wrap(op, shared.NoSlot, err)
	}
	defer func() { _ = h.Close() }()

	if h.Length() < layout.HeaderPage {
		return shared.Wrap(op, shared.NoSlot, shared.New(shared.OutOfSpace,
			fmt.Errorf("hole length %d smaller than header page", h.Length())))
	}

	return shared.Wrap(op, shared.NoSlot, writeHeader(h, &layout.Header{}))
}

// Load reads the payload of slot into buf and returns the slot's UUID and
// the payload length.
//
// With a nil buf, Load only probes: it returns the UUID and length without
// reading the payload. If buf is too small, Load fails with BufferTooSmall
// and still returns the stored length, which is also set as Error.Need.
func (s *Store) Load(slot int, buf []byte) (uuid.UUID, int, error) {
	const op = "load"

	if !validSlot(slot) {
		return uuid.Nil, 0, badSlot(op, slot)
	}

	h, hdr, err := s.readHeader(diskmanager.ReadOnly)
	if err != nil {
		return uuid.Nil, 0, shared.Wrap(op, slot, err)
	}
	defer func() { _ = h.Close() }()

	sl := hdr.Slots[slot]
	if sl.Empty() {
		return uuid.Nil, 0, shared.Wrap(op, slot, shared.New(shared.NoData, nil))
	}

	n := int(sl.Length)
	if buf == nil {
		return sl.UUID, n, nil
	}

	if len(buf) < n {
		return uuid.Nil, n, &shared.Error{Op: op, Kind: shared.BufferTooSmall, Slot: slot, Need: n,
			Err: fmt.Errorf("need %d bytes, have %d", n, len(buf))}
	}

	if err := h.ReadAt(buf[:n], sl.Offset); err != nil {
		return uuid.Nil, 0, shared.Wrap(op, slot, err)
	}

	if sum := crc.Checksum(buf[:n]); sum != sl.CRC32C {
		return uuid.Nil, 0, shared.Wrap(op, slot, shared.New(shared.Corrupt,
			fmt.Errorf("payload checksum %08x, expected %08x", sum, sl.CRC32C)))
	}

	return sl.UUID, n, nil
}

// Save stores data under id in slot, or in the lowest usable slot when slot
// is AnySlot, and returns the slot used.
func (s *Store) Save(slot int, id uuid.UUID, data []byte) (int, error) {
	const op = "save"

	if id == uuid.Nil {
		return 0, shared.Wrap(op, slot, shared.Newf(shared.KeyRejected, "uuid must not be zero"))
	}
	if slot != AnySlot && !validSlot(slot) {
		return 0, badSlot(op, slot)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return 0, shared.Wrap(op, slot, shared.New(shared.OutOfSpace,
			fmt.Errorf("payload of %d bytes", len(data))))
	}

	h, hdr, err := s.readHeader(diskmanager.ReadWrite)
	if err != nil {
		return 0, shared.Wrap(op, slot, err)
	}
	defer func() { _ = h.Close() }()

	if slot == AnySlot {
		if slot, err = s.unusedSlot(hdr); err != nil {
			return 0, shared.Wrap(op, shared.NoSlot, err)
		}
	}

	if !hdr.Slots[slot].Empty() {
		return 0, shared.Wrap(op, slot, shared.New(shared.AlreadyExists, nil))
	}

	off, ok := alloc.FindGap(hdr, h.Length(), uint32(len(data)), slot)
	if !ok {
		return 0, shared.Wrap(op, slot, shared.New(shared.OutOfSpace,
			fmt.Errorf("no gap for %d bytes", len(data))))
	}

	// Payload first: until the header lands, the new bytes are unreferenced.
	if err := h.WriteAt(data, off); err != nil {
		return 0, shared.Wrap(op, slot, err)
	}

	hdr.Slots[slot] = layout.Slot{
		UUID:   id,
		Offset: off,
		Length: uint32(len(data)),
		CRC32C: crc.Checksum(data),
	}

	if err := writeHeader(h, hdr); err != nil {
		return 0, shared.Wrap(op, slot, err)
	}
	return slot, nil
}

// Wipe zeroes the payload of slot and marks it empty. If expected is not
// uuid.Nil, the slot must hold that UUID or nothing is changed.
func (s *Store) Wipe(slot int, expected uuid.UUID) error {
	const op = "wipe"

	if !validSlot(slot) {
		return badSlot(op, slot)
	}

	h, hdr, err := s.readHeader(diskmanager.ReadWrite)
	if err != nil {
		return shared.Wrap(op, slot, err)
	}
	defer func() { _ = h.Close() }()

	sl := hdr.Slots[slot]
	if sl.Empty() {
		return shared.Wrap(op, slot, shared.New(shared.AlreadyEmpty, nil))
	}
	if expected != uuid.Nil && expected != sl.UUID {
		return shared.Wrap(op, slot, shared.New(shared.KeyRejected,
			fmt.Errorf("slot holds %s, not %s", sl.UUID, expected)))
	}

	// Payload first: a crash before the header write leaves a slot whose
	// checksum no longer matches, which Load reports as Corrupt.
	if err := h.WriteAt(make([]byte, sl.Length), sl.Offset); err != nil {
		return shared.Wrap(op, slot, err)
	}

	hdr.Slots[slot] = layout.Slot{}
	return shared.Wrap(op, slot, writeHeader(h, hdr))
}

// readHeader opens the hole and decodes its header. On success the caller
// owns the returned hole.
func (s *Store) readHeader(mode diskmanager.Mode) (*hole.Hole, *layout.Header, error) {
	h, err := hole.Open(s.dm, s.vol, mode)
	if err != nil {
		return nil, nil, err
	}

	hdr, err := decodeHeader(h)
	if err != nil {
		_ = h.Close()
		return nil, nil, err
	}
	return h, hdr, nil
}

func decodeHeader(h *hole.Hole) (*layout.Header, error) {
	if h.Length() < layout.HeaderSize {
		return nil, shared.New(shared.NotInitialized, fmt.Errorf("hole length %d", h.Length()))
	}

	buf := make([]byte, layout.HeaderSize)
	if err := h.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return layout.Decode(buf, h.Length())
}

// writeHeader persists hdr in one positioned write and issues the barrier.
func writeHeader(h *hole.Hole, hdr *layout.Header) error {
	if err := h.WriteAt(hdr.Encode(), 0); err != nil {
		return err
	}
	if err := h.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// unusedSlot returns the lowest empty slot. Unless configured otherwise,
// slots whose LUKS key slot is active are skipped so metadata is never
// attached to key material it does not describe.
func (s *Store) unusedSlot(hdr *layout.Header) (int, error) {
	statuser, _ := s.vol.(hole.KeyslotStatuser)
	if s.config.IgnoreKeyslotStatus {
		statuser = nil
	}

	for slot, sl := range hdr.Slots {
		if !sl.Empty() {
			continue
		}
		if statuser != nil {
			active, err := statuser.KeyslotActive(slot)
			if err != nil {
				return 0, fmt.Errorf("keyslot %d status: %w", slot, err)
			}
			if active {
				continue
			}
		}
		return slot, nil
	}
	return 0, shared.Newf(shared.BadSlot, "no usable slot")
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < layout.NumSlots
}

func badSlot(op string, slot int) error {
	return shared.Wrap(op, slot, shared.New(shared.BadSlot,
		errors.New("slot index out of range")))
}

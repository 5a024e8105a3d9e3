// Package luksmeta stores small, attributed metadata blobs in the unused
// space of a LUKS1 header, between the key-slot area and the encrypted
// payload.
//
// The space holds a fixed table of eight slots. Each slot pairs a UUID
// naming the kind of metadata with an opaque payload guarded by a CRC32C
// checksum. The on-disk format never changes the LUKS1 header itself.
//
// Example usage:
//
//	s, err := luksmeta.OpenDevice("/dev/sda2", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := s.Init(); err != nil && !errors.Is(err, luksmeta.AlreadyInitialized) {
//		log.Fatal(err)
//	}
//
//	slot, err := s.Save(luksmeta.AnySlot, id, []byte("payload"))
//	if err != nil {
//		log.Printf("Save failed: %v", err)
//	}
//
//	_, n, err := s.Load(slot, nil)
//	if err == nil {
//		buf := make([]byte, n)
//		_, _, err = s.Load(slot, buf)
//	}
//
// A Store takes no locks. Callers sharing a device across processes must
// serialize operations themselves, for example with flock(2) on the device.
package luksmeta

import (
	"errors"

	"github.com/MikhailWahib/luksmeta/internal/config"
	"github.com/MikhailWahib/luksmeta/internal/hole"
	"github.com/MikhailWahib/luksmeta/internal/layout"
	"github.com/MikhailWahib/luksmeta/internal/luks1"
	"github.com/MikhailWahib/luksmeta/internal/shared"
	"github.com/MikhailWahib/luksmeta/internal/store"
)

// Config is an alias for config.Config, re-exported for user convenience.
type Config = config.Config

// DefaultConfig returns a Config struct populated with default values. Re-exported for user convenience.
var DefaultConfig = config.DefaultConfig

// LoadConfig reads a TOML configuration file. A missing file yields the defaults.
var LoadConfig = config.Load

// Store performs the slot operations on one volume.
type Store = store.Store

// Volume describes the LUKS1 header geometry of a device.
type Volume = hole.Volume

// KeyslotStatuser is implemented by volumes that know which key slots are
// active. Save with AnySlot skips slots whose key slot is active.
type KeyslotStatuser = hole.KeyslotStatuser

// Error is the error type returned by every Store operation.
type Error = shared.Error

// Kind classifies an Error. Match it with errors.Is.
type Kind = shared.Kind

// Error kinds.
const (
	IO                 = shared.IO
	NotInitialized     = shared.NotInitialized
	Unsupported        = shared.Unsupported
	Corrupt            = shared.Corrupt
	BadSlot            = shared.BadSlot
	AlreadyInitialized = shared.AlreadyInitialized
	AlreadyExists      = shared.AlreadyExists
	AlreadyEmpty       = shared.AlreadyEmpty
	NoData             = shared.NoData
	BufferTooSmall     = shared.BufferTooSmall
	OutOfSpace         = shared.OutOfSpace
	KeyRejected        = shared.KeyRejected
)

// AnySlot asks Save to pick the lowest usable slot.
const AnySlot = store.AnySlot

// NumSlots is the number of metadata slots.
const NumSlots = layout.NumSlots

// KindOf returns the Kind of a non-nil error.
func KindOf(err error) Kind { return shared.KindOf(err) }

// Open returns a Store for vol. A nil cfg uses DefaultConfig.
func Open(vol Volume, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return store.New(vol, cfg), nil
}

// OpenDevice reads the LUKS1 header at path and returns a Store for it.
//
// A device that is not LUKS1 fails with Unsupported; a device that cannot
// be read fails with IO.
func OpenDevice(path string, cfg *Config) (*Store, error) {
	vol, err := luks1.Open(path)
	if errors.Is(err, luks1.ErrNotLUKS1) {
		return nil, &Error{Op: "open", Kind: Unsupported, Slot: shared.NoSlot, Err: err}
	}
	if err != nil {
		return nil, shared.Wrap("open", shared.NoSlot, err)
	}
	return Open(vol, cfg)
}

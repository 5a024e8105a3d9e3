// Package luks1 reads the boundaries of a LUKS1 volume from its on-disk
// header: payload offset, per-key-slot material areas and key-slot state.
// It never touches key material.
package luks1

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/MikhailWahib/luksmeta/internal/hole"
	"github.com/MikhailWahib/luksmeta/internal/layout"
)

const (
	// SectorSize is the unit of LUKS1 offsets.
	SectorSize = 512
	// PhdrSize is the size of the LUKS1 partition header.
	PhdrSize = 592

	// KeyEnabled and KeyDisabled are the key-slot active markers.
	KeyEnabled  = 0x00AC71F3
	KeyDisabled = 0x0000DEAD

	nameSize   = 32
	digestSize = 20
	saltSize   = 32
	uuidSize   = 40

	offPayload  = 104
	offKeyBytes = 108
	offUUID     = 168
	offKeyslots = 208
	keyslotSize = 48
)

// Magic is the LUKS partition header magic.
var Magic = [6]byte{'L', 'U', 'K', 'S', 0xba, 0xbe}

// ErrNotLUKS1 is returned when the device does not start with a LUKS1 header.
var ErrNotLUKS1 = errors.New("not a LUKS1 device")

// Keyslot is the part of a LUKS1 key-slot descriptor that locates it.
type Keyslot struct {
	Active            uint32
	Iterations        uint32
	KeyMaterialOffset uint32 // sectors
	Stripes           uint32
}

// Header holds the LUKS1 header fields the metadata store depends on.
type Header struct {
	CipherName    string
	CipherMode    string
	HashSpec      string
	PayloadOffset uint32 // sectors
	KeyBytes      uint32
	UUID          string
	Keyslots      [layout.NumSlots]Keyslot
}

// areaLength returns the byte length of the anti-forensic key material for
// one slot, rounded up to whole sectors.
func (h *Header) areaLength(ks Keyslot) uint64 {
	n := uint64(h.KeyBytes) * uint64(ks.Stripes)
	return (n + SectorSize - 1) / SectorSize * SectorSize
}

// ParseHeader decodes a LUKS1 partition header.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < PhdrSize || !bytes.Equal(buf[:6], Magic[:]) {
		return nil, ErrNotLUKS1
	}
	if v := binary.BigEndian.Uint16(buf[6:8]); v != 1 {
		return nil, fmt.Errorf("%w: header version %d", ErrNotLUKS1, v)
	}

	h := &Header{
		CipherName:    cstring(buf[8 : 8+nameSize]),
		CipherMode:    cstring(buf[40 : 40+nameSize]),
		HashSpec:      cstring(buf[72 : 72+nameSize]),
		PayloadOffset: binary.BigEndian.Uint32(buf[offPayload:]),
		KeyBytes:      binary.BigEndian.Uint32(buf[offKeyBytes:]),
		UUID:          cstring(buf[offUUID : offUUID+uuidSize]),
	}

	for i := range h.Keyslots {
		b := buf[offKeyslots+i*keyslotSize:]
		h.Keyslots[i] = Keyslot{
			Active:            binary.BigEndian.Uint32(b[0:]),
			Iterations:        binary.BigEndian.Uint32(b[4:]),
			KeyMaterialOffset: binary.BigEndian.Uint32(b[8+saltSize:]),
			Stripes:           binary.BigEndian.Uint32(b[12+saltSize:]),
		}
	}
	return h, nil
}

// MarshalBinary encodes the header. Digest and salt fields are left zero.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PhdrSize)
	copy(buf, Magic[:])
	binary.BigEndian.PutUint16(buf[6:], 1)
	copy(buf[8:8+nameSize-1], h.CipherName)
	copy(buf[40:40+nameSize-1], h.CipherMode)
	copy(buf[72:72+nameSize-1], h.HashSpec)
	binary.BigEndian.PutUint32(buf[offPayload:], h.PayloadOffset)
	binary.BigEndian.PutUint32(buf[offKeyBytes:], h.KeyBytes)
	copy(buf[offUUID:offUUID+uuidSize-1], h.UUID)

	for i, ks := range h.Keyslots {
		b := buf[offKeyslots+i*keyslotSize:]
		binary.BigEndian.PutUint32(b[0:], ks.Active)
		binary.BigEndian.PutUint32(b[4:], ks.Iterations)
		binary.BigEndian.PutUint32(b[8+saltSize:], ks.KeyMaterialOffset)
		binary.BigEndian.PutUint32(b[12+saltSize:], ks.Stripes)
	}
	return buf, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Volume is an opened LUKS1 device. It implements hole.Volume and
// hole.KeyslotStatuser.
type Volume struct {
	path   string
	header *Header
}

var (
	_ hole.Volume          = (*Volume)(nil)
	_ hole.KeyslotStatuser = (*Volume)(nil)
)

// Open reads the LUKS1 header of the device at path.
func Open(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, PhdrSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read LUKS header of %s: %w", path, err)
	}

	h, err := ParseHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Volume{path: path, header: h}, nil
}

// Header returns the parsed header.
func (v *Volume) Header() *Header { return v.header }

// Type always reports LUKS1.
func (v *Volume) Type() string { return hole.TypeLUKS1 }

// PayloadOffset returns the payload offset in bytes.
func (v *Volume) PayloadOffset() uint64 {
	return uint64(v.header.PayloadOffset) * SectorSize
}

// KeyslotArea returns the byte range of a key slot's material.
func (v *Volume) KeyslotArea(slot int) (uint64, uint64, error) {
	if slot < 0 || slot >= layout.NumSlots {
		return 0, 0, fmt.Errorf("keyslot %d out of range", slot)
	}
	ks := v.header.Keyslots[slot]
	return uint64(ks.KeyMaterialOffset) * SectorSize, v.header.areaLength(ks), nil
}

// KeyslotActive reports whether the key slot holds enabled key material.
func (v *Volume) KeyslotActive(slot int) (bool, error) {
	if slot < 0 || slot >= layout.NumSlots {
		return false, fmt.Errorf("keyslot %d out of range", slot)
	}
	switch a := v.header.Keyslots[slot].Active; a {
	case KeyEnabled:
		return true, nil
	case KeyDisabled:
		return false, nil
	default:
		return false, fmt.Errorf("keyslot %d has invalid state %#x", slot, a)
	}
}

// DevicePath returns the device path.
func (v *Volume) DevicePath() string { return v.path }

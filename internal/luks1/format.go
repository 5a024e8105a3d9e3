package luks1

import (
	"fmt"
	"os"
)

const (
	// DefaultKeyBytes and DefaultStripes match a cryptsetup aes-xts-plain64
	// volume with a 256-bit master key.
	DefaultKeyBytes = 32
	DefaultStripes  = 4000

	keyslotAlignSectors = 4096 / SectorSize
	payloadAlignSectors = 1 << 20 / SectorSize
)

// NewHeader lays out a LUKS1 header the way cryptsetup does: key-slot areas
// start after the first 4 KiB, each is rounded to 4 KiB, and the payload
// starts at the next 1 MiB boundary. All key slots are disabled.
func NewHeader(keyBytes, stripes uint32) *Header {
	h := &Header{
		CipherName: "aes",
		CipherMode: "xts-plain64",
		HashSpec:   "sha256",
		KeyBytes:   keyBytes,
	}

	sectors := uint32(h.areaLength(Keyslot{Stripes: stripes}) / SectorSize)
	current := uint32(keyslotAlignSectors)
	for i := range h.Keyslots {
		h.Keyslots[i] = Keyslot{
			Active:            KeyDisabled,
			KeyMaterialOffset: current,
			Stripes:           stripes,
		}
		current = roundUp(current+sectors, keyslotAlignSectors)
	}
	h.PayloadOffset = roundUp(current, payloadAlignSectors)
	return h
}

func roundUp(n, to uint32) uint32 {
	return (n + to - 1) / to * to
}

// Format writes h at the start of a sparse image of size bytes at path,
// creating or truncating the file.
func Format(path string, h *Header, size int64) error {
	if need := int64(h.PayloadOffset) * SectorSize; size < need {
		return fmt.Errorf("image size %d smaller than payload offset %d", size, need)
	}

	buf, err := h.MarshalBinary()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		_ = f.Close()
		return fmt.Errorf("write LUKS header: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Package alloc places slot payloads inside the hole.
//
// Placement is a first-fit scan at page granularity, recomputed from the
// header on every call. Wiped slots therefore free their space without any
// persisted free list.
package alloc

import (
	"github.com/MikhailWahib/luksmeta/internal/layout"
	"github.com/MikhailWahib/luksmeta/internal/shared"
)

// NoSkip makes FindGap check every occupied slot.
const NoSkip = -1

// FindGap returns the lowest page-aligned offset, at or after the header
// page, where size bytes (rounded up to a page) fit inside a hole of
// holeLength bytes without overlapping any occupied slot other than skip.
// It reports false when no such offset exists.
func FindGap(h *layout.Header, holeLength uint32, size uint32, skip int) (uint32, bool) {
	span := shared.AlignUp(uint64(size))

	for off := uint64(layout.HeaderPage); off < uint64(holeLength) && off+span <= uint64(holeLength); off += shared.PageSize {
		if !overlaps(h, skip, off, off+span) {
			return uint32(off), true
		}
	}
	return 0, false
}

func overlaps(h *layout.Header, skip int, start, end uint64) bool {
	for i, s := range h.Slots {
		if i == skip || s.Empty() {
			continue
		}
		if shared.Overlaps(start, end, uint64(s.Offset), s.End()) {
			return true
		}
	}
	return false
}

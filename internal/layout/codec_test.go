package layout_test

import (
	"encoding/binary"
	"testing"

	"github.com/MikhailWahib/luksmeta/internal/layout"
	"github.com/MikhailWahib/luksmeta/internal/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holeLength = 1044480

var (
	uuid0 = uuid.MustParse("350850c3-25c9-85ea-1b55-9356362ad985")
	uuid1 = uuid.MustParse("b4cb8c1c-34ea-cc21-0b9c-c39c9a09c00f")
)

func twoSlots() *layout.Header {
	h := &layout.Header{}
	h.Slots[0] = layout.Slot{UUID: uuid0, Offset: 4096, Length: 32, CRC32C: 0xdeadbeef}
	h.Slots[5] = layout.Slot{UUID: uuid1, Offset: 8192, Length: 5000, CRC32C: 0x01020304}
	return h
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, 272, layout.HeaderSize)
	assert.Equal(t, 4096, layout.HeaderPage)
}

func TestEncode_Layout(t *testing.T) {
	buf := twoSlots().Encode()
	require.Len(t, buf, layout.HeaderSize)

	assert.Equal(t, []byte("LUKSMETA"), buf[:8])
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(buf[8:12]))

	slot5 := buf[16+5*32:]
	assert.Equal(t, uuid1[:], slot5[:16])
	assert.Equal(t, uint32(8192), binary.BigEndian.Uint32(slot5[16:20]))
	assert.Equal(t, uint32(5000), binary.BigEndian.Uint32(slot5[20:24]))
	assert.Equal(t, uint32(0x01020304), binary.BigEndian.Uint32(slot5[24:28]))
	assert.Equal(t, []byte{0, 0, 0, 0}, slot5[28:32], "reserved must be zero")

	// slots 1..4 are untouched
	for _, b := range buf[16+32 : 16+5*32] {
		require.Zero(t, b)
	}
}

func TestEncodeDecode(t *testing.T) {
	want := twoSlots()
	got, err := layout.Decode(want.Encode(), holeLength)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.False(t, got.Slots[0].Empty())
	assert.True(t, got.Slots[1].Empty())
	assert.Equal(t, uint64(8192+5000), got.Slots[5].End())
}

func TestDecode_FreshHeader(t *testing.T) {
	h, err := layout.Decode((&layout.Header{}).Encode(), holeLength)
	require.NoError(t, err)
	for _, s := range h.Slots {
		assert.True(t, s.Empty())
	}
}

func TestDecode_NotInitialized(t *testing.T) {
	_, err := layout.Decode(make([]byte, layout.HeaderSize), holeLength)
	assert.ErrorIs(t, err, shared.NotInitialized)

	_, err = layout.Decode([]byte("LUKSMETA"), holeLength)
	assert.ErrorIs(t, err, shared.NotInitialized)
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	buf := twoSlots().Encode()
	binary.BigEndian.PutUint32(buf[8:12], 2)

	_, err := layout.Decode(buf, holeLength)
	assert.ErrorIs(t, err, shared.Unsupported)
}

func TestDecode_EveryBitFlipDetected(t *testing.T) {
	orig := twoSlots().Encode()

	for i := 0; i < layout.HeaderSize; i++ {
		for bit := 0; bit < 8; bit++ {
			buf := append([]byte(nil), orig...)
			buf[i] ^= 1 << bit

			_, err := layout.Decode(buf, holeLength)
			require.Error(t, err, "flip of byte %d bit %d went unnoticed", i, bit)

			want := shared.Corrupt
			switch {
			case i < 8:
				want = shared.NotInitialized
			case i < 12:
				want = shared.Unsupported
			}
			require.Equal(t, want, shared.KindOf(err), "byte %d bit %d", i, bit)
		}
	}
}

func TestDecode_InvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		slot layout.Slot
	}{
		{"offset in header page", layout.Slot{UUID: uuid1, Offset: 272, Length: 10}},
		{"offset zero", layout.Slot{UUID: uuid1, Offset: 0, Length: 0}},
		{"past hole end", layout.Slot{UUID: uuid1, Offset: holeLength - 4096, Length: 4097}},
		{"offset overflow", layout.Slot{UUID: uuid1, Offset: 0xfffff000, Length: 0xffffffff}},
		{"overlaps slot 0", layout.Slot{UUID: uuid1, Offset: 4096, Length: 1}},
		{"contains slot 0", layout.Slot{UUID: uuid1, Offset: 4096, Length: 8192}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &layout.Header{}
			h.Slots[0] = layout.Slot{UUID: uuid0, Offset: 4096, Length: 32}
			h.Slots[3] = tt.slot

			// Encode never validates, so the checksum is good and only
			// the invariants can reject the header.
			_, err := layout.Decode(h.Encode(), holeLength)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.Corrupt)
		})
	}
}

func TestDecode_EmptySlotsAreNotValidated(t *testing.T) {
	h := &layout.Header{}
	h.Slots[2] = layout.Slot{Offset: 1, Length: 0xffffffff}

	_, err := layout.Decode(h.Encode(), holeLength)
	assert.NoError(t, err)
}

func TestValidate_AdjacentSlots(t *testing.T) {
	h := &layout.Header{}
	h.Slots[0] = layout.Slot{UUID: uuid0, Offset: 4096, Length: 4096}
	h.Slots[1] = layout.Slot{UUID: uuid1, Offset: 8192, Length: 4096}
	assert.NoError(t, h.Validate(holeLength))
	assert.ErrorIs(t, h.Validate(8192), shared.Corrupt)
}

package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MikhailWahib/luksmeta/internal/config"
	"github.com/MikhailWahib/luksmeta/internal/diskmanager/mockdm"
	"github.com/MikhailWahib/luksmeta/internal/hole"
	"github.com/MikhailWahib/luksmeta/internal/luks1"
	"github.com/MikhailWahib/luksmeta/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	imageSize  = 4 << 20
	holeStart  = 1052672
	holeLength = 1044480
	page       = 4096
)

var (
	uuid0 = uuid.MustParse("350850c3-25c9-85ea-1b55-9356362ad985")
	uuid1 = uuid.MustParse("b4cb8c1c-34ea-cc21-0b9c-c39c9a09c00f")
	uuid2 = uuid.MustParse("fb068c1f-6804-879f-f4cd-3225b21a7ef8")
)

// image is a sparse LUKS1 image on disk.
type image struct {
	path   string
	header *luks1.Header
}

func newImage(t *testing.T) *image {
	t.Helper()
	img := &image{
		path:   filepath.Join(t.TempDir(), "luks.img"),
		header: luks1.NewHeader(luks1.DefaultKeyBytes, luks1.DefaultStripes),
	}
	require.NoError(t, luks1.Format(img.path, img.header, imageSize))
	return img
}

func (img *image) store(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	vol, err := luks1.Open(img.path)
	require.NoError(t, err)
	return store.New(vol, cfg)
}

func (img *image) initStore(t *testing.T) *store.Store {
	t.Helper()
	s := img.store(t, nil)
	require.NoError(t, s.Init())
	return s
}

func (img *image) read(t *testing.T, off, length int) []byte {
	t.Helper()
	f, err := os.Open(img.path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, length)
	_, err = f.ReadAt(buf, int64(off))
	require.NoError(t, err)
	return buf
}

func (img *image) flipBit(t *testing.T, off int, bit uint) {
	t.Helper()
	f, err := os.OpenFile(img.path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	b := make([]byte, 1)
	_, err = f.ReadAt(b, int64(off))
	require.NoError(t, err)
	b[0] ^= 1 << bit
	_, err = f.WriteAt(b, int64(off))
	require.NoError(t, err)
}

// span describes a byte range of the image and whether it must be all zero.
type span struct {
	start, length int
	zero          bool
}

// requireLayout checks each span is entirely zero, or contains a nonzero byte.
func requireLayout(t *testing.T, img *image, spans ...span) {
	t.Helper()
	for _, sp := range spans {
		buf := img.read(t, sp.start, sp.length)
		nonzero := false
		for _, b := range buf {
			if b != 0 {
				nonzero = true
				break
			}
		}
		if sp.zero {
			require.False(t, nonzero, "expected zero bytes in [%d,%d)", sp.start, sp.start+sp.length)
		} else {
			require.True(t, nonzero, "expected data in [%d,%d)", sp.start, sp.start+sp.length)
		}
	}
}

// fakeVolume mirrors the standard LUKS1 geometry for the in-memory device.
type fakeVolume struct {
	payload uint64
	active  [8]bool
}

func newFakeVolume() *fakeVolume { return &fakeVolume{payload: 4096 * 512} }

func (v *fakeVolume) Type() string          { return hole.TypeLUKS1 }
func (v *fakeVolume) PayloadOffset() uint64 { return v.payload }
func (v *fakeVolume) DevicePath() string    { return "/dev/mock" }

func (v *fakeVolume) KeyslotArea(slot int) (uint64, uint64, error) {
	return uint64(8+slot*256) * 512, 128000, nil
}

func (v *fakeVolume) KeyslotActive(slot int) (bool, error) { return v.active[slot], nil }

func newMockStore(t *testing.T) (*store.Store, *mockdm.MockFile, *fakeVolume) {
	t.Helper()
	dm := mockdm.NewMockDiskManager()
	file := dm.Create("/dev/mock", imageSize)
	vol := newFakeVolume()
	s := store.NewWithDiskManager(vol, dm, nil)
	require.NoError(t, s.Init())
	return s, file, vol
}

func writeAt(path string, b []byte, off int64) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(b, off); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func removeFile(path string) error { return os.Remove(path) }

// Package mockdm provides an in-memory disk manager with fault injection for testing
package mockdm

import (
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/MikhailWahib/luksmeta/internal/diskmanager"
	"golang.org/x/sys/unix"
)

// MockFile is an in-memory device image shared by every handle opened on
// its path.
type MockFile struct {
	data []byte
	name string

	// ChunkSize, when positive, caps every transfer at ChunkSize bytes and
	// reports EAGAIN for the remainder, the way a non-blocking device would.
	ChunkSize int
	// FailWrite, when set, is consulted before every write. A non-nil error
	// fails the write without modifying the image.
	FailWrite func(off int64, b []byte) error

	opens  int
	closes int
	syncs  int
	reads  int
}

// Bytes returns a copy of the image.
func (m *MockFile) Bytes() []byte {
	return append([]byte(nil), m.data...)
}

// Range returns a copy of length bytes at off.
func (m *MockFile) Range(off, length int) []byte {
	return append([]byte(nil), m.data[off:off+length]...)
}

// Poke overwrites the image at off, bypassing fault injection.
func (m *MockFile) Poke(off int, b []byte) {
	copy(m.data[off:], b)
}

// Opens returns the number of handles opened on the file.
func (m *MockFile) Opens() int { return m.opens }

// Closes returns the number of handles closed.
func (m *MockFile) Closes() int { return m.closes }

// Syncs returns the number of Sync calls.
func (m *MockFile) Syncs() int { return m.syncs }

// Reads returns the number of ReadAt calls.
func (m *MockFile) Reads() int { return m.reads }

func (m *MockFile) chunk(n int) (int, bool) {
	if m.ChunkSize > 0 && n > m.ChunkSize {
		return m.ChunkSize, true
	}
	return n, false
}

type mockHandle struct {
	file *MockFile
	mode diskmanager.Mode
}

// ReadAt reads len(b) bytes from the image starting at byte offset off
func (h *mockHandle) ReadAt(b []byte, off int64) (int, error) {
	m := h.file
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	want, partial := m.chunk(len(b))
	n := copy(b[:want], m.data[off:])
	if partial && n == want {
		return n, &os.PathError{Op: "read", Path: m.name, Err: unix.EAGAIN}
	}
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes len(b) bytes to the image starting at byte offset off.
// Devices have a fixed size, so writes past the end fail with ENOSPC.
func (h *mockHandle) WriteAt(b []byte, off int64) (int, error) {
	m := h.file
	if h.mode != diskmanager.ReadWrite {
		return 0, &os.PathError{Op: "write", Path: m.name, Err: syscall.EBADF}
	}
	if m.FailWrite != nil {
		if err := m.FailWrite(off, b); err != nil {
			return 0, err
		}
	}
	want, partial := m.chunk(len(b))
	if off+int64(want) > int64(len(m.data)) {
		return 0, &os.PathError{Op: "write", Path: m.name, Err: syscall.ENOSPC}
	}
	n := copy(m.data[off:], b[:want])
	if partial {
		return n, &os.PathError{Op: "write", Path: m.name, Err: unix.EAGAIN}
	}
	return n, nil
}

// Close closes the handle
func (h *mockHandle) Close() error {
	h.file.closes++
	return nil
}

// Sync records a durability barrier
func (h *mockHandle) Sync() error {
	h.file.syncs++
	return nil
}

// MockDiskManager implements diskmanager.DiskManager interface for testing
type MockDiskManager struct {
	files map[string]*MockFile
}

// NewMockDiskManager creates a new MockDiskManager instance
func NewMockDiskManager() *MockDiskManager {
	return &MockDiskManager{
		files: make(map[string]*MockFile),
	}
}

// Create registers a zero-filled image of the given size at path.
func (dm *MockDiskManager) Create(path string, size int) *MockFile {
	file := &MockFile{
		data: make([]byte, size),
		name: path,
	}
	dm.files[path] = file
	return file
}

// File returns the image registered at path, or nil.
func (dm *MockDiskManager) File(path string) *MockFile {
	return dm.files[path]
}

// Open opens a handle on a previously created image
func (dm *MockDiskManager) Open(path string, mode diskmanager.Mode) (diskmanager.FileHandle, error) {
	file, exists := dm.files[path]
	if !exists {
		return nil, &os.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	file.opens++
	return &mockHandle{file: file, mode: mode}, nil
}

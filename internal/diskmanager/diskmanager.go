// Package diskmanager opens the block device (or image file) holding the
// LUKS header and provides positioned, full-count I/O on it.
package diskmanager

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Mode selects how a device is opened.
type Mode int

const (
	// ReadOnly opens the device for reading.
	ReadOnly Mode = iota
	// ReadWrite opens the device for reading and synchronous writing.
	ReadWrite
)

// SyncMode selects the durability barrier issued by FileHandle.Sync.
type SyncMode string

const (
	// SyncFsync flushes data and metadata with fsync(2).
	SyncFsync SyncMode = "fsync"
	// SyncFdatasync flushes data with fdatasync(2).
	SyncFdatasync SyncMode = "fdatasync"
)

// FileHandle abstracts positioned device I/O.
type FileHandle interface {
	// ReadAt reads len(b) bytes from the file starting at byte offset off.
	// It returns the number of bytes read and any error encountered.
	ReadAt(b []byte, off int64) (int, error)
	// WriteAt writes len(b) bytes to the file starting at byte offset off.
	// It returns the number of bytes written and any error encountered.
	WriteAt(b []byte, off int64) (int, error)
	// Close closes the file handle, rendering it unusable for I/O.
	Close() error
	// Sync commits the current contents of the file to stable storage.
	Sync() error
}

type fileHandle struct {
	file *os.File
	sync SyncMode
}

// NewFileHandle wraps an *os.File into a FileHandle implementation.
func NewFileHandle(file *os.File, sync SyncMode) FileHandle {
	return &fileHandle{file: file, sync: sync}
}

func (fh *fileHandle) ReadAt(b []byte, off int64) (int, error) { return fh.file.ReadAt(b, off) }

func (fh *fileHandle) WriteAt(b []byte, off int64) (int, error) { return fh.file.WriteAt(b, off) }

func (fh *fileHandle) Close() error { return fh.file.Close() }

func (fh *fileHandle) Sync() error {
	if fh.sync == SyncFdatasync {
		if err := unix.Fdatasync(int(fh.file.Fd())); err != nil {
			return &os.PathError{Op: "fdatasync", Path: fh.file.Name(), Err: err}
		}
		return nil
	}
	return fh.file.Sync()
}

// DiskManager opens devices. Every call returns a fresh handle that the
// caller owns and must close.
type DiskManager interface {
	Open(path string, mode Mode) (FileHandle, error)
}

type diskManager struct {
	sync SyncMode
}

// NewDiskManager creates a DiskManager whose handles use the given barrier.
// An empty mode means SyncFsync.
func NewDiskManager(sync SyncMode) DiskManager {
	if sync == "" {
		sync = SyncFsync
	}
	return &diskManager{sync: sync}
}

// Open opens path read-only, or read-write with O_SYNC.
func (dm *diskManager) Open(path string, mode Mode) (FileHandle, error) {
	flags := os.O_RDONLY
	if mode == ReadWrite {
		flags = os.O_RDWR | os.O_SYNC
	}
	file, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, err
	}
	return NewFileHandle(file, dm.sync), nil
}

// ReadFull reads exactly len(b) bytes at off, retrying while the device
// reports EAGAIN. A short read ends with io.ErrUnexpectedEOF.
func ReadFull(fh FileHandle, b []byte, off int64) error {
	for t := 0; t < len(b); {
		n, err := fh.ReadAt(b[t:], off+int64(t))
		t += n
		switch {
		case t == len(b):
			return nil
		case errors.Is(err, unix.EAGAIN):
			continue
		case err == io.EOF:
			return io.ErrUnexpectedEOF
		case err != nil:
			return err
		case n == 0:
			return io.ErrNoProgress
		}
	}
	return nil
}

// WriteFull writes all of b at off, retrying while the device reports EAGAIN.
func WriteFull(fh FileHandle, b []byte, off int64) error {
	for t := 0; t < len(b); {
		n, err := fh.WriteAt(b[t:], off+int64(t))
		t += n
		switch {
		case t == len(b):
			return nil
		case errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return err
		case n == 0:
			return io.ErrShortWrite
		}
	}
	return nil
}

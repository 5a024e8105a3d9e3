package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MikhailWahib/luksmeta"
	"github.com/MikhailWahib/luksmeta/internal/hole"
	"github.com/MikhailWahib/luksmeta/internal/luks1"
	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// lockDevice takes an exclusive advisory lock on path. The store itself
// never locks, so every subcommand runs under this lock.
func lockDevice(path string) (func(), error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		_ = unix.Close(fd)
		return nil, &os.PathError{Op: "flock", Path: path, Err: err}
	}
	return func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
		_ = unix.Close(fd)
	}, nil
}

// withDevice loads the configuration, locks the device and hands fn a store
// for it. The lock is released when fn returns.
func withDevice(path string, fn func(vol *luks1.Volume, s *luksmeta.Store) error) error {
	cfg, err := luksmeta.LoadConfig(configPath)
	if err != nil {
		return err
	}

	unlock, err := lockDevice(path)
	if err != nil {
		return err
	}
	defer unlock()

	vol, err := luks1.Open(path)
	if err != nil {
		return err
	}

	if glog.V(1) {
		if start, length, err := hole.Locate(vol); err == nil {
			glog.Infof("%s: hole at %d, %d bytes", path, start, length)
		}
	}

	s, err := luksmeta.Open(vol, cfg)
	if err != nil {
		return err
	}
	return fn(vol, s)
}

var kindMessages = map[luksmeta.Kind]string{
	luksmeta.IO:                 "I/O error",
	luksmeta.NotInitialized:     "device is not initialized",
	luksmeta.Unsupported:        "device type or metadata version is not supported",
	luksmeta.Corrupt:            "metadata is corrupted",
	luksmeta.BadSlot:            "invalid or unavailable slot",
	luksmeta.AlreadyInitialized: "device is already initialized",
	luksmeta.AlreadyExists:      "slot is already in use",
	luksmeta.AlreadyEmpty:       "slot is already empty",
	luksmeta.NoData:             "slot is empty",
	luksmeta.BufferTooSmall:     "metadata is larger than expected",
	luksmeta.OutOfSpace:         "insufficient space in the LUKS header",
	luksmeta.KeyRejected:        "UUID mismatch",
}

// describe turns err into a message for the user.
func describe(err error) string {
	if errors.Is(err, luks1.ErrNotLUKS1) {
		return fmt.Sprintf("device is not LUKS1: %v", err)
	}
	var e *luksmeta.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", kindMessages[e.Kind], err)
}

// fail reports err and marks the run as failed.
func fail(device string, err error) {
	glog.Errorf("%s: %s", device, describe(err))
	setExitStatus(1)
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(format string, args ...any) bool {
	fmt.Fprintf(stderr, format+" [yn] ", args...)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.TrimSpace(line) == "y"
}

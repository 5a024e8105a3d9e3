package main

import (
	"fmt"
	"io"
	"math"

	"github.com/MikhailWahib/luksmeta"
	"github.com/MikhailWahib/luksmeta/internal/luks1"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

func newShowCommand() *Command {
	cmd := newCommand("show -d DEVICE [-s SLOT]",
		"list metadata slots",
		`show prints one line per slot: the index, whether the LUKS key slot is
active, and the UUID of the stored metadata or "empty".`)
	device := cmd.deviceFlag()
	slot := cmd.slotFlag(-1)

	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 || *device == "" {
			return false
		}
		err := withDevice(*device, func(vol *luks1.Volume, s *luksmeta.Store) error {
			if err := s.Test(); err != nil {
				return err
			}
			first, last := 0, luksmeta.NumSlots-1
			if *slot >= 0 {
				first, last = *slot, *slot
			}
			for i := first; i <= last; i++ {
				if err := showSlot(vol, s, i); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			fail(*device, err)
		}
		return true
	}
	return cmd
}

func showSlot(vol *luks1.Volume, s *luksmeta.Store, slot int) error {
	state := "inactive"
	if active, err := vol.KeyslotActive(slot); err != nil {
		return err
	} else if active {
		state = "active"
	}

	name := "empty"
	id, _, err := s.Load(slot, nil)
	switch {
	case err == nil:
		name = id.String()
	case luksmeta.KindOf(err) != luksmeta.NoData:
		return err
	}

	_, err = fmt.Fprintf(stdout, "%d %8s %s\n", slot, state, name)
	return err
}

func newSaveCommand() *Command {
	cmd := newCommand("save -d DEVICE [-s SLOT] -u UUID",
		"store metadata read from standard input",
		`save reads the metadata from standard input and stores it under UUID.

Without -s the lowest empty slot whose LUKS key slot is inactive is used.
The slot used is printed on standard output.`)
	device := cmd.deviceFlag()
	slot := cmd.slotFlag(luksmeta.AnySlot)
	id := cmd.uuidFlag()

	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 || *device == "" || *id == "" {
			return false
		}
		u, err := uuid.Parse(*id)
		if err != nil {
			glog.Errorf("invalid UUID %q: %v", *id, err)
			return false
		}

		data, err := io.ReadAll(io.LimitReader(stdin, math.MaxUint32+1))
		if err != nil {
			fail(*device, fmt.Errorf("read metadata: %w", err))
			return true
		}

		err = withDevice(*device, func(_ *luks1.Volume, s *luksmeta.Store) error {
			used, err := s.Save(*slot, u, data)
			if err != nil {
				return err
			}
			glog.V(1).Infof("%s: saved %d bytes to slot %d", *device, len(data), used)
			_, err = fmt.Fprintf(stdout, "%d\n", used)
			return err
		})
		if err != nil {
			fail(*device, err)
		}
		return true
	}
	return cmd
}

func newLoadCommand() *Command {
	cmd := newCommand("load -d DEVICE -s SLOT [-u UUID]",
		"write stored metadata to standard output",
		`load writes the metadata of SLOT to standard output. With -u the slot
must hold metadata with that UUID.`)
	device := cmd.deviceFlag()
	slot := cmd.slotFlag(-1)
	id := cmd.uuidFlag()

	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 || *device == "" || *slot == -1 {
			return false
		}
		want := uuid.Nil
		if *id != "" {
			u, err := uuid.Parse(*id)
			if err != nil {
				glog.Errorf("invalid UUID %q: %v", *id, err)
				return false
			}
			want = u
		}

		err := withDevice(*device, func(_ *luks1.Volume, s *luksmeta.Store) error {
			got, n, err := s.Load(*slot, nil)
			if err != nil {
				return err
			}
			if want != uuid.Nil && got != want {
				return &luksmeta.Error{Op: "load", Kind: luksmeta.KeyRejected, Slot: *slot,
					Err: fmt.Errorf("slot holds %s, not %s", got, want)}
			}
			buf := make([]byte, n)
			if _, n, err = s.Load(*slot, buf); err != nil {
				return err
			}
			_, err = stdout.Write(buf[:n])
			return err
		})
		if err != nil {
			fail(*device, err)
		}
		return true
	}
	return cmd
}

func newWipeCommand() *Command {
	cmd := newCommand("wipe -d DEVICE -s SLOT [-u UUID] [-f]",
		"erase the metadata in a slot",
		`wipe zeroes the metadata of SLOT and marks the slot empty. With -u the
slot must hold metadata with that UUID. Unless -f is given, wipe asks for
confirmation.`)
	device := cmd.deviceFlag()
	slot := cmd.slotFlag(-1)
	id := cmd.uuidFlag()
	force := cmd.Flag.Bool("f", false, "do not ask for confirmation")

	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 || *device == "" || *slot == -1 {
			return false
		}
		want := uuid.Nil
		if *id != "" {
			u, err := uuid.Parse(*id)
			if err != nil {
				glog.Errorf("invalid UUID %q: %v", *id, err)
				return false
			}
			want = u
		}

		err := withDevice(*device, func(_ *luks1.Volume, s *luksmeta.Store) error {
			if !*force && !confirm("Wipe slot %d of %s?", *slot, *device) {
				return errAborted
			}
			if err := s.Wipe(*slot, want); err != nil {
				return err
			}
			glog.V(1).Infof("%s: wiped slot %d", *device, *slot)
			return nil
		})
		if err != nil {
			fail(*device, err)
		}
		return true
	}
	return cmd
}

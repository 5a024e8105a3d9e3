package main

import (
	"errors"

	"github.com/MikhailWahib/luksmeta"
	"github.com/MikhailWahib/luksmeta/internal/luks1"
	"github.com/golang/glog"
)

func newTestCommand() *Command {
	cmd := newCommand("test -d DEVICE",
		"check whether a device is initialized",
		`test exits with status 0 if the device holds a valid metadata header and 1 otherwise.`)
	device := cmd.deviceFlag()

	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 || *device == "" {
			return false
		}
		err := withDevice(*device, func(_ *luks1.Volume, s *luksmeta.Store) error {
			return s.Test()
		})
		switch {
		case err == nil:
		case errors.Is(err, luksmeta.NotInitialized):
			glog.V(1).Infof("%s: not initialized", *device)
			setExitStatus(1)
		default:
			fail(*device, err)
		}
		return true
	}
	return cmd
}

func newInitCommand() *Command {
	cmd := newCommand("init -d DEVICE [-f]",
		"initialize metadata storage on a device",
		`init writes an empty metadata header into the LUKS1 header hole.

Any data already stored in the hole in another format is lost. Unless -f is
given, init asks for confirmation. A device that is already initialized is
left unchanged.`)
	device := cmd.deviceFlag()
	force := cmd.Flag.Bool("f", false, "do not ask for confirmation")

	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 || *device == "" {
			return false
		}
		err := withDevice(*device, func(_ *luks1.Volume, s *luksmeta.Store) error {
			err := s.Test()
			if err == nil {
				glog.V(1).Infof("%s: already initialized", *device)
				return nil
			}
			if k := luksmeta.KindOf(err); k != luksmeta.NotInitialized && k != luksmeta.Corrupt {
				return err
			}
			if !*force && !confirm("Initialize %s for metadata storage? Existing data in the header hole will be lost.", *device) {
				return errAborted
			}
			return s.Init()
		})
		if err != nil {
			fail(*device, err)
		}
		return true
	}
	return cmd
}

var errAborted = errors.New("aborted")

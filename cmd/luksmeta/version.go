package main

import (
	"fmt"
	"runtime"
)

const VERSION = "1.0"

func newVersionCommand() *Command {
	cmd := newCommand("version", "print version", `version prints the luksmeta version`)
	cmd.Run = func(cmd *Command, args []string) bool {
		if len(args) != 0 {
			return false
		}
		fmt.Fprintf(stdout, "luksmeta %s %s/%s\n", VERSION, runtime.GOOS, runtime.GOARCH)
		return true
	}
	return cmd
}

package main

import (
	"flag"
	"fmt"
	"strings"
)

// Command is one luksmeta subcommand.
type Command struct {
	Run       func(cmd *Command, args []string) bool
	UsageLine string
	Short     string
	Long      string
	Flag      flag.FlagSet
}

// commands builds a fresh command table so flag values never leak between runs.
func commands() []*Command {
	return []*Command{
		newTestCommand(),
		newInitCommand(),
		newShowCommand(),
		newSaveCommand(),
		newLoadCommand(),
		newWipeCommand(),
		newVersionCommand(),
	}
}

func (m *Command) Name() string {
	name := m.UsageLine
	i := strings.Index(name, " ")
	if i >= 0 {
		name = name[:i]
	}
	return name
}

func (m *Command) Usage() {
	fmt.Fprintf(stderr, "Usage: luksmeta %s\n", m.UsageLine)
	fmt.Fprintf(stderr, "Flags:\n")
	m.Flag.SetOutput(stderr)
	m.Flag.PrintDefaults()
	fmt.Fprintf(stderr, "Description:\n")
	fmt.Fprintf(stderr, "  %s\n", strings.TrimSpace(m.Long))
}

func (m *Command) Runnable() bool {
	return m.Run != nil
}

// deviceFlag registers the -d flag every device command takes.
func (m *Command) deviceFlag() *string {
	return m.Flag.String("d", "", "path of the LUKS1 device")
}

// slotFlag registers -s with the given default.
func (m *Command) slotFlag(def int) *int {
	return m.Flag.Int("s", def, "metadata slot index")
}

// uuidFlag registers -u.
func (m *Command) uuidFlag() *string {
	return m.Flag.String("u", "", "UUID of the metadata")
}

func newCommand(usage, short, long string) *Command {
	c := &Command{UsageLine: usage, Short: short, Long: long}
	c.Flag.Init(c.Name(), flag.ContinueOnError)
	return c
}

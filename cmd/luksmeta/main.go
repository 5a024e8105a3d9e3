// Command luksmeta manages metadata slots stored in the header of LUKS1
// devices.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/MikhailWahib/luksmeta/internal/config"
	"github.com/golang/glog"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	configPath = config.DefaultPath
)

var exitStatus = 0

func setExitStatus(n int) {
	if exitStatus < n {
		exitStatus = n
	}
}

var usageTemplate = `luksmeta manages metadata slots in the LUKS1 header hole.

Usage:

	luksmeta [options] command [arguments]

The commands are:
{{range .}}{{if .Runnable}}
    {{.Name | printf "%-11s"}} {{.Short}}{{end}}{{end}}

Use "luksmeta help [command]" for more information about a command.

`

var helpTemplate = `{{if .Runnable}}Usage: luksmeta {{.UsageLine}}
{{end}}
  {{.Long | trim}}
`

func tmpl(w io.Writer, text string, data any) {
	t := template.New("luksmeta")
	t.Funcs(template.FuncMap{"trim": strings.TrimSpace})
	template.Must(t.Parse(text))
	if err := t.Execute(w, data); err != nil {
		panic(err)
	}
}

func usage() {
	tmpl(stderr, usageTemplate, commands())
	fmt.Fprintf(stderr, "The options are:\n")
	flag.PrintDefaults()
}

func help(args []string) int {
	if len(args) == 0 {
		tmpl(stdout, usageTemplate, commands())
		return 0
	}
	if len(args) != 1 {
		fmt.Fprintf(stderr, "usage: luksmeta help command\n\nToo many arguments given.\n")
		return 2
	}

	for _, cmd := range commands() {
		if cmd.Name() == args[0] {
			tmpl(stdout, helpTemplate, cmd)
			cmd.Flag.SetOutput(stdout)
			cmd.Flag.PrintDefaults()
			return 0
		}
	}

	fmt.Fprintf(stderr, "luksmeta: unknown help topic %#q. Run 'luksmeta help'.\n", args[0])
	return 2
}

// run executes one command line and returns the process exit status:
// 0 on success, 1 when the operation fails and 2 on a usage error.
func run(args []string) int {
	exitStatus = 0
	if len(args) < 1 {
		usage()
		return 2
	}
	if args[0] == "help" {
		return help(args[1:])
	}

	for _, cmd := range commands() {
		if cmd.Name() != args[0] || !cmd.Runnable() {
			continue
		}
		cmd.Flag.SetOutput(stderr)
		cmd.Flag.Usage = cmd.Usage
		if err := cmd.Flag.Parse(args[1:]); err != nil {
			return 2
		}
		if !cmd.Run(cmd, cmd.Flag.Args()) {
			cmd.Usage()
			return 2
		}
		return exitStatus
	}

	fmt.Fprintf(stderr, "luksmeta: unknown command %#q\n", args[0])
	fmt.Fprintf(stderr, "Run 'luksmeta help' for usage.\n")
	return 2
}

func main() {
	// Log to stderr unless the caller asks for files.
	_ = flag.Set("logtostderr", "true")
	flag.StringVar(&configPath, "config", config.DefaultPath, "configuration file")
	flag.Usage = usage
	flag.Parse()

	status := run(flag.Args())
	glog.Flush()
	os.Exit(status)
}

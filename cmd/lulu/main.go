// Command lulu is a minimal host for running a Lua source file: it
// reads the file, loads it through the VM's host API, calls the
// resulting function, and reports any thrown error to stderr as
// "<source>:<line>: <text>", exiting with a status that reflects which
// of the three error kinds was thrown. It is not a REPL, a standard
// library, or a disassembler.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"lulu/internal/lerr"
	"lulu/internal/vm"
)

// commandAliases maps short forms to canonical command names; lulu only
// ever recognizes "run", but the indirection is kept so a second
// command (e.g. a future "check") slots in the same way.
var commandAliases = map[string]string{
	"r":   "run",
	"run": "run",
}

// exitCode maps a thrown lerr.Kind to this process's exit status, in
// the order §6 lists them: OK=0, SYNTAX, RUNTIME, MEMORY.
func exitCode(k lerr.Kind) int {
	return int(k)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lulu [-trace] [-color=auto|always|never] run <file.lua>")
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var trace bool
	colorMode := "auto"
	var positional []string
	for _, a := range args {
		switch {
		case a == "-trace" || a == "--trace":
			trace = true
		case a == "-color=always":
			colorMode = "always"
		case a == "-color=never":
			colorMode = "never"
		case a == "-color=auto":
			colorMode = "auto"
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) == 0 {
		usage()
		os.Exit(1)
	}

	cmd, ok := commandAliases[positional[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "lulu: unknown command %q\n", positional[0])
		os.Exit(1)
	}
	if cmd != "run" || len(positional) < 2 {
		usage()
		os.Exit(1)
	}
	filename := positional[1]

	useColor := colorMode == "always" || (colorMode == "auto" && isatty.IsTerminal(os.Stderr.Fd()))

	var logOut discardingWriter = discardingWriter{}
	var logger *log.Logger
	if trace {
		logger = log.New(os.Stderr, "lulu: ", 0)
	} else {
		logger = log.New(logOut, "", 0)
	}

	os.Exit(run(filename, logger, useColor))
}

// discardingWriter swallows the logger's output when tracing is off; the
// log.Logger still formats each of its few messages before handing them
// here.
type discardingWriter struct{}

func (discardingWriter) Write(p []byte) (int, error) { return len(p), nil }

func run(filename string, logger *log.Logger, useColor bool) int {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lulu: cannot open %s: %v\n", filename, err)
		return exitCode(lerr.Runtime)
	}

	logger.Printf("loading %s (%d bytes)", filename, len(source))

	machine := vm.New()
	read := false
	reader := func(user any) ([]byte, bool) {
		if read {
			return nil, false
		}
		read = true
		return source, true
	}

	if err := machine.Load(filename, reader, nil); err != nil {
		return reportError(err, useColor)
	}

	logger.Printf("running %s", filename)

	if err := machine.CallTop(0, vm.VarargAll); err != nil {
		return reportError(err, useColor)
	}

	logger.Printf("%s finished, %d object(s) allocated", filename, machine.ObjectCount())
	return exitCode(lerr.OK)
}

func reportError(err error, useColor bool) int {
	le := lerr.As(err, "", 0)
	msg := le.Message
	if useColor {
		msg = "\x1b[31m" + msg + "\x1b[0m"
	}
	fmt.Fprintln(os.Stderr, msg)
	return exitCode(le.Kind)
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type app struct {
	args []string
	out  io.Writer
}

type command interface {
	Name() string
	Help() string
	Run(out io.Writer) error
	Register(*pflag.FlagSet)
}

func (a *app) run() int {
	cmdName, args := parseArgs(a.args)
	if cmdName == "" {
		a.printUsage()
		return errorExitCode
	}

	for _, cmd := range commands() {
		if cmd.Name() != cmdName {
			continue
		}
		flags := pflag.NewFlagSet(cmdName, pflag.ContinueOnError)
		flags.SetOutput(a.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			flags.PrintDefaults()
			return errorExitCode
		}
		if err := cmd.Run(a.out); err != nil {
			fmt.Fprintf(a.out, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	a.printUsage()
	return errorExitCode
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

func commands() []command {
	return []command{
		&rxCommand{},
		&genCommand{},
		&inspectCommand{},
		&fetchCommand{},
	}
}

func main() {
	a := app{
		args: os.Args,
		out:  os.Stdout,
	}
	os.Exit(a.run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func (a *app) printUsage() {
	fmt.Fprintln(a.out, "nbfmrx demodulates narrowband FM from IQ recordings")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Usage: nbfmrx <command> [flags]")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(a.out, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}

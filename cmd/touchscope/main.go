// Command touchscope streams touch-sensor readings to the DataScope tool
// over a serial port and reviews captured tuning sessions.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/touchscope/internal/scopeuart"
	"github.com/banshee-data/touchscope/internal/version"
)

func main() {
	if err := dispatch(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func dispatch(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return fmt.Errorf("missing subcommand")
	}

	var err error
	switch args[0] {
	case "run":
		err = runCommand(args[1:], out)
	case "report":
		err = reportCommand(args[1:], out)
	case "ports":
		err = portsCommand(out)
	case "version":
		fmt.Fprintln(out, version.String())
	case "help", "-h", "--help":
		printUsage(out)
	default:
		printUsage(out)
		err = fmt.Errorf("unknown subcommand %q", args[0])
	}

	// -h on a subcommand has already printed its flags.
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `Usage: touchscope <command> [flags]

Commands:
  run       stream channel readings to DataScope over a serial port
  report    summarise and chart a captured session
  ports     list serial ports on this machine
  version   print build information

Run 'touchscope <command> -h' for command flags.`)
}

func portsCommand(out io.Writer) error {
	ports, err := scopeuart.ListPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}

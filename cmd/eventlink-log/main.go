// Command eventlink-log reads protocol log files written by eventlink
// (-protocol-log or log.protocol_file).
//
// Usage:
//
//	eventlink-log view   [-layer L] [-direction D] [-category C] [-kind K] <file>
//	eventlink-log stats  <file>
//	eventlink-log export [-format jsonl|csv] [-o out] <file>
//	eventlink-log filter -o out [-conn-id ID] [-time-start T] [-time-end T] [selectors] <file>
//
// Selectors are the view flags. Examples:
//
//	eventlink-log view -category heartbeat client.elog
//	eventlink-log filter -kind chat.message -o chat.elog client.elog
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mash-protocol/eventlink-go/cmd/eventlink-log/commands"
)

// subcommand is one eventlink-log verb.
type subcommand struct {
	name    string
	summary string
	run     func(fs *flag.FlagSet, args []string) error
}

var subcommands = []subcommand{
	{"view", "print events in readable form", runView},
	{"stats", "summarize connections, envelopes and heartbeats", runStats},
	{"export", "convert to " + strings.Join(commands.ExportFormats(), " or "), runExport},
	{"filter", "copy matching events to a new log file", runFilter},
}

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "-help" || name == "--help" {
		printUsage()
		return
	}

	for _, sc := range subcommands {
		if sc.name != name {
			continue
		}
		fs := flag.NewFlagSet("eventlink-log "+sc.name, flag.ExitOnError)
		err := sc.run(fs, os.Args[2:])
		if errors.Is(err, errUsage) {
			fs.Usage()
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
	printUsage()
	os.Exit(2)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: eventlink-log <command> [flags] <file>")
	fmt.Fprintln(os.Stderr)
	for _, sc := range subcommands {
		fmt.Fprintf(os.Stderr, "  %-7s %s\n", sc.name, sc.summary)
	}
}

// selectors are the event flags shared by view and filter.
type selectors struct {
	layer, direction, category, kind *string
}

func addSelectors(fs *flag.FlagSet) selectors {
	return selectors{
		layer:     fs.String("layer", "", "transport, envelope or connection"),
		direction: fs.String("direction", "", "in, out or local"),
		category:  fs.String("category", "", "message, heartbeat, state or error"),
		kind:      fs.String("kind", "", "envelope kind"),
	}
}

func (s selectors) viewFilter() (commands.ViewFilter, error) {
	f := commands.ViewFilter{Kind: *s.kind}
	if *s.layer != "" {
		l, err := commands.ParseLayerFlag(*s.layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if *s.direction != "" {
		d, err := commands.ParseDirectionFlag(*s.direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if *s.category != "" {
		c, err := commands.ParseCategoryFlag(*s.category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	return f, nil
}

// fileArg parses args and returns the single log file operand.
func fileArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", errUsage
	}
	return fs.Arg(0), nil
}

func runView(fs *flag.FlagSet, args []string) error {
	sel := addSelectors(fs)
	path, err := fileArg(fs, args)
	if err != nil {
		return err
	}
	filter, err := sel.viewFilter()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runStats(fs *flag.FlagSet, args []string) error {
	path, err := fileArg(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}

func runExport(fs *flag.FlagSet, args []string) error {
	format := fs.String("format", "jsonl", "output format: "+strings.Join(commands.ExportFormats(), ", "))
	output := fs.String("o", "", "output file (default stdout)")
	path, err := fileArg(fs, args)
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output)
}

func runFilter(fs *flag.FlagSet, args []string) error {
	sel := addSelectors(fs)
	output := fs.String("o", "", "output file (required)")
	connID := fs.String("conn-id", "", "connection ID")
	timeStart := fs.String("time-start", "", "earliest timestamp (RFC3339)")
	timeEnd := fs.String("time-end", "", "latest timestamp (RFC3339)")
	path, err := fileArg(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		return errUsage
	}

	opts := commands.FilterOptions{
		Output:    *output,
		ConnID:    *connID,
		Kind:      *sel.kind,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Layer:     *sel.layer,
		Direction: *sel.direction,
		Category:  *sel.category,
	}
	n, err := commands.RunFilter(path, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
	return nil
}

package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mash-protocol/eventlink-go/pkg/log"
)

// exportFunc writes every event of r to w in one output format.
type exportFunc func(r *log.Reader, w io.Writer) error

var exportFormats = map[string]exportFunc{
	"jsonl": exportJSONL,
	"csv":   exportCSV,
}

// ExportFormats lists the supported export formats.
func ExportFormats() []string {
	names := make([]string, 0, len(exportFormats))
	for name := range exportFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunExport converts the log at path to format. An empty output or "-"
// writes to stdout.
func RunExport(path, format, output string) error {
	export, ok := exportFormats[format]
	if !ok {
		return fmt.Errorf("unknown format %q (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer reader.Close()

	if output == "" || output == "-" {
		return export(reader, os.Stdout)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export(reader, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// eachEvent calls fn for every event until EOF.
func eachEvent(r *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

func exportJSONL(r *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	return eachEvent(r, func(event log.Event) error {
		return enc.Encode(event)
	})
}

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category",
	"attempt", "type", "detail", "endpoint",
}

func exportCSV(r *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	err := eachEvent(r, func(event log.Event) error {
		return cw.Write(csvRow(event))
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}

func csvRow(event log.Event) []string {
	typ, detail := eventSummary(event)
	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		strconv.FormatUint(uint64(event.Attempt), 10),
		typ,
		detail,
		event.Endpoint,
	}
}

// eventSummary names the event's payload type and its most useful field.
func eventSummary(event log.Event) (typ, detail string) {
	switch {
	case event.Envelope != nil:
		return "envelope", event.Envelope.Kind
	case event.Heartbeat != nil:
		return "heartbeat", event.Heartbeat.Type.String()
	case event.StateChange != nil:
		return "state", event.StateChange.NewState
	case event.Error != nil:
		return "error", event.Error.Message
	}
	return "unknown", ""
}

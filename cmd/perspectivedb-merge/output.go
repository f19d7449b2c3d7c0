package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/dag/merge"
)

// printer renders a merge run's inputs and result to an io.Writer, with
// colored section headers when writing to a terminal (or when forced on via
// configuration).
type printer struct {
	w       io.Writer
	color   bool
	verbose bool
}

// newPrinter constructs a printer for w. Color defaults to whether w is a
// terminal, detected via go-isatty; cfg.Color overrides that detection when
// set explicitly.
func newPrinter(w io.Writer, cfg *outputConfig) *printer {
	enableColor := false
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		enableColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if cfg != nil && cfg.Color != nil {
		enableColor = *cfg.Color
	}
	return &printer{w: w, color: enableColor, verbose: cfg != nil && cfg.Verbose}
}

// heading renders a section heading, in bold cyan when color is enabled.
func (p *printer) heading(text string) string {
	if !p.color {
		return text
	}
	return color.New(color.Bold, color.FgCyan).Sprint(text)
}

func (p *printer) printInputs(fixture *merge.Fixture, itemX, itemY *dag.Item) {
	fmt.Fprintf(p.w, "%s\n", p.heading("Merge inputs"))
	fmt.Fprintf(p.w, "  id: %s\n", string(itemX.Header.ID))
	fmt.Fprintf(p.w, "  X: %s (%s attributes, %s)\n", fixture.Merge.X, humanize.Comma(int64(len(itemX.Body))), bodySize(itemX.Body))
	fmt.Fprintf(p.w, "  Y: %s (%s attributes, %s)\n", fixture.Merge.Y, humanize.Comma(int64(len(itemY.Body))), bodySize(itemY.Body))
	if p.verbose {
		fmt.Fprintf(p.w, "  X body: %v\n", itemX.Body)
		fmt.Fprintf(p.w, "  Y body: %v\n", itemY.Body)
	}
}

func (p *printer) printResult(mergedX, mergedY *dag.Item) {
	fmt.Fprintf(p.w, "%s\n", p.heading("Merge result"))
	kind := "true merge"
	if mergedX.Header.Version != "" && mergedX.Header.Version == mergedY.Header.Version {
		kind = "fast-forward"
	}
	fmt.Fprintf(p.w, "  kind: %s\n", kind)
	fmt.Fprintf(p.w, "  X -> version %q, parents %v, tombstone=%v\n", mergedX.Header.Version, mergedX.Header.Parents, mergedX.Header.Tombstone)
	fmt.Fprintf(p.w, "  Y -> version %q, parents %v, tombstone=%v\n", mergedY.Header.Version, mergedY.Header.Parents, mergedY.Header.Tombstone)
	fmt.Fprintf(p.w, "  X body (%s): %v\n", bodySize(mergedX.Body), mergedX.Body)
	fmt.Fprintf(p.w, "  Y body (%s): %v\n", bodySize(mergedY.Body), mergedY.Body)
}

func (p *printer) printError(err error) {
	msg := fmt.Sprintf("merge failed: %v", err)
	if p.color {
		msg = color.RedString(msg)
	}
	fmt.Fprintln(p.w, msg)
}

// bodySize renders a human-readable approximation of a body's encoded size,
// for comparing fixture bodies at a glance.
func bodySize(body dag.Body) string {
	data, err := json.Marshal(body)
	if err != nil {
		return "unknown size"
	}
	return humanize.Bytes(uint64(len(data)))
}

package livereporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

// LineOutput writes one human-readable line per event to w, the simplest
// possible monitoring.Output implementation (spec.md §6 "Outputs receive
// typed writes"), suitable for piping a reporter's stream to a terminal or
// log aggregator alongside the websocket broadcast.
type LineOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineOutput returns a LineOutput writing to w.
func NewLineOutput(w io.Writer) *LineOutput {
	return &LineOutput{w: w}
}

// Initialize satisfies monitoring.Output; LineOutput needs no per-reporter
// setup or cleanup.
func (o *LineOutput) Initialize(monitoring.Reporter) (func(), error) {
	return func() {}, nil
}

// WriteItem writes one formatted event line.
func (o *LineOutput) WriteItem(_ monitoring.Event, message string) {
	o.writeln(message)
}

// WriteSummary writes a free-form summary line, e.g. at end of scope.
func (o *LineOutput) WriteSummary(message string) {
	o.writeln("summary: " + message)
}

// WriteError writes a formatted error line.
func (o *LineOutput) WriteError(err error) {
	o.writeln(fmt.Sprintf("error: %v", err))
}

func (o *LineOutput) writeln(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, line)
}

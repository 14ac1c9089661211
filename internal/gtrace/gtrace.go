// Package gtrace emits a Chrome trace-event file (chrome://tracing) of the
// rule generator's own phases: library closures resolved, directories
// scanned, preprocessor drivers built. There is no CPU/memory sampling,
// since there is no long-running process here to profile; generation is
// a single pass.
package gtrace

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = ioutil.Discard
)

// Sink writes all following Event()s as a Chrome trace event file into w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	w.Write([]byte{'['}) // Start the JSON Array Format; the trailing ] is optional
}

// Enable creates path and wires it as the sink, used by cmd/rulegen's
// -tracefile flag.
func Enable(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	Sink(f)
	return nil
}

// Close flushes and closes the current sink if it is a file opened by
// Enable, restoring the discard sink. Registered with dune.RegisterAtExit
// so a trace written mid-run is never left unflushed.
func Close() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	c, ok := sink.(io.Closer)
	sink = ioutil.Discard
	if !ok {
		return nil
	}
	return c.Close()
}

// PendingEvent is a trace span opened by Event and closed by Done.
type PendingEvent struct {
	Name           string      `json:"name"`
	Type           string      `json:"ph"`
	ClockTimestamp uint64      `json:"ts"`
	Duration       uint64      `json:"dur"`
	Pid            uint64      `json:"pid"`
	Tid            uint64      `json:"tid"`
	Args           interface{} `json:"args,omitempty"`

	begin time.Time
}

// Event opens a span named name on logical thread tid (use a distinct tid
// per directory being processed concurrently so spans don't overlap in the
// viewer).
func Event(name string, tid int) *PendingEvent {
	return &PendingEvent{
		Name:           name,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(tid),
		begin:          time.Now(),
	}
}

// Done closes the span and writes it to the current sink.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.begin) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[gtrace] %v", err)
	}
}

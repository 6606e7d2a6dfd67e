package future

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Snapshot is an immutable view of one completed tick's outcome, paired
// with a live back-reference to the handle it came from. Its own Last
// always returns the frozen (res, err) it was built with; every other
// method delegates to the live handle, so a Snapshot held by a listener
// can still be used to cancel the handle or check whether it has since
// gone done.
//
// See spec §4.7.
type Snapshot[R any] struct {
	handle *Handle[R]
	res    R
	err    error
}

func newSnapshot[R any](h *Handle[R], res R, err error) Snapshot[R] {
	return Snapshot[R]{handle: h, res: res, err: err}
}

// Last returns the outcome this snapshot was taken with: the tick's
// result, or its error wrapped in a *TaskError.
func (s Snapshot[R]) Last() (R, error) {
	if s.err != nil {
		var zero R
		return zero, &TaskError{Cause: s.err}
	}
	return s.res, nil
}

// IsDone delegates to the live handle.
func (s Snapshot[R]) IsDone() bool { return s.handle.IsDone() }

// IsCancelled delegates to the live handle.
func (s Snapshot[R]) IsCancelled() bool { return s.handle.IsCancelled() }

// Stats delegates to the live handle.
func (s Snapshot[R]) Stats() Stats { return s.handle.Stats() }

// Pattern delegates to the live handle.
func (s Snapshot[R]) Pattern() Pattern { return s.handle.Pattern() }

// Cancel delegates to the live handle.
func (s Snapshot[R]) Cancel() bool { return s.handle.Cancel() }

// Get delegates to the live handle.
func (s Snapshot[R]) Get() (R, error) { return s.handle.Get() }

// GetContext delegates to the live handle.
func (s Snapshot[R]) GetContext(ctx context.Context) (R, error) { return s.handle.GetContext(ctx) }

// NextExecutionTimes delegates to the live handle.
func (s Snapshot[R]) NextExecutionTimes(count int, start time.Time) ([]time.Time, error) {
	return s.handle.NextExecutionTimes(count, start)
}

// yamlSnapshot is the human-readable rendering produced by MarshalYAML, used
// by cmd/cronfuturectl to print a snapshot without exposing the package's
// unexported Handle fields.
type yamlSnapshot struct {
	Pattern      string        `yaml:"pattern"`
	Done         bool          `yaml:"done"`
	Cancelled    bool          `yaml:"cancelled"`
	Result       any           `yaml:"result,omitempty"`
	Error        string        `yaml:"error,omitempty"`
	Running      bool          `yaml:"running"`
	Executions   int           `yaml:"executions"`
	LastStart    time.Time     `yaml:"lastStart,omitempty"`
	LastEnd      time.Time     `yaml:"lastEnd,omitempty"`
	AvgExecTime  time.Duration `yaml:"averageExecutionTime"`
	AvgIdleTime  time.Duration `yaml:"averageIdleTime"`
	SyncNotify   bool          `yaml:"syncNotify"`
	ConcurNotify bool          `yaml:"concurrentNotify"`
}

// MarshalYAML implements yaml.Marshaler, rendering s as a plain document
// suitable for cmd/cronfuturectl's list and snapshot output.
func (s Snapshot[R]) MarshalYAML() (interface{}, error) {
	stats := s.handle.Stats()
	y := yamlSnapshot{
		Pattern:      s.handle.Pattern().Raw,
		Done:         s.handle.IsDone(),
		Cancelled:    s.handle.IsCancelled(),
		Result:       s.res,
		Running:      stats.running,
		Executions:   stats.executionCount,
		LastStart:    stats.lastStartTime,
		LastEnd:      stats.lastEndTime,
		AvgExecTime:  stats.AverageExecutionTime(),
		AvgIdleTime:  stats.AverageIdleTime(),
		SyncNotify:   s.handle.SyncNotify(),
		ConcurNotify: s.handle.ConcurrentNotify(),
	}
	if s.err != nil {
		y.Error = s.err.Error()
	}
	return y, nil
}

// YAML renders s via MarshalYAML and encodes the result as a YAML document.
func (s Snapshot[R]) YAML() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

// wireSnapshot is the on-the-wire representation of spec §6's cross-process
// snapshot: cancelled, lastRes, lastErr, stats, syncNotify, concurNotify, in
// that field order. lastErr can't cross a gob boundary as an arbitrary
// error value, so only its message survives; a deserialized snapshot's
// error is always a plain error carrying that message, never the original
// error's concrete type.
type wireSnapshot[R any] struct {
	Cancelled    bool
	Result       R
	HasError     bool
	ErrorMessage string
	Stats        wireStats
	SyncNotify   bool
	ConcurNotify bool
}

type wireStats struct {
	CreateTime         time.Time
	LastStartTime      time.Time
	LastEndTime        time.Time
	ExecutionCount     int
	TotalExecutionTime time.Duration
	TotalIdleTime      time.Duration
	LastExecutionTime  time.Duration
	LastIdleTime       time.Duration
	Running            bool
}

func toWireStats(s Stats) wireStats {
	return wireStats{
		CreateTime:         s.createTime,
		LastStartTime:      s.lastStartTime,
		LastEndTime:        s.lastEndTime,
		ExecutionCount:     s.executionCount,
		TotalExecutionTime: s.totalExecutionTime,
		TotalIdleTime:      s.totalIdleTime,
		LastExecutionTime:  s.lastExecutionTime,
		LastIdleTime:       s.lastIdleTime,
		Running:            s.running,
	}
}

func (w wireStats) toStats() Stats {
	return Stats{
		createTime:         w.CreateTime,
		lastStartTime:      w.LastStartTime,
		lastEndTime:        w.LastEndTime,
		executionCount:     w.ExecutionCount,
		totalExecutionTime: w.TotalExecutionTime,
		totalIdleTime:      w.TotalIdleTime,
		lastExecutionTime:  w.LastExecutionTime,
		lastIdleTime:       w.LastIdleTime,
		running:            w.Running,
	}
}

// MarshalBinary implements encoding.BinaryMarshaler using gob, encoding the
// exact field set spec §6 requires a cross-process snapshot to carry.
func (s Snapshot[R]) MarshalBinary() ([]byte, error) {
	w := wireSnapshot[R]{
		Cancelled:    s.handle.IsCancelled(),
		Result:       s.res,
		Stats:        toWireStats(s.handle.Stats()),
		SyncNotify:   s.handle.SyncNotify(),
		ConcurNotify: s.handle.ConcurrentNotify(),
	}
	if s.err != nil {
		w.HasError = true
		w.ErrorMessage = s.err.Error()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("future: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a Snapshot written by MarshalBinary. The
// result is detached: it has no cron registration, no task reference, and
// no listeners, and reports done=true regardless of the original handle's
// state, matching spec §6's "reading reconstructs a terminal handle" rule.
func DeserializeSnapshot[R any](data []byte) (Snapshot[R], error) {
	var w wireSnapshot[R]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return Snapshot[R]{}, fmt.Errorf("future: decode snapshot: %w", err)
	}

	h := &Handle[R]{
		done:      true,
		cancelled: w.Cancelled,
		lastRes:   w.Result,
		stats:     w.Stats.toStats(),
		doneCh:    make(chan struct{}),
	}
	close(h.doneCh)
	h.syncNotify.Store(w.SyncNotify)
	h.concurNotify.Store(w.ConcurNotify)
	if w.HasError {
		h.lastErr = errors.New(w.ErrorMessage)
	}

	return newSnapshot(h, w.Result, h.lastErr), nil
}

// Package history keeps the transcripts of recently finished runs so they
// can be read back after the next run has replaced them.
package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Load for an unknown or evicted run.
var ErrNotFound = errors.New("run not found")

// Outcome is how a run ended.
type Outcome string

const (
	Completed Outcome = "completed" // output ended
	Errored   Outcome = "error"     // error line detected
	TimedOut  Outcome = "timeout"   // no output within the inactivity window
	Cancelled Outcome = "cancelled" // stopped on request
	Invalid   Outcome = "invalid"   // request rejected, nothing launched
	Failed    Outcome = "failed"    // launch or internal failure
)

// Store persists and retrieves finished runs.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
	List() []*Record
}

// Record is one finished run.
type Record struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	Outcome    Outcome   `json:"outcome"`
	Started    time.Time `json:"started"`
	Stopped    time.Time `json:"stopped"`
	Transcript string    `json:"transcript"` // rendered, as a caller would have seen it
}

// Duration returns how long the run was supervised.
func (r *Record) Duration() time.Duration {
	if r.Stopped.Before(r.Started) {
		return 0
	}
	return r.Stopped.Sub(r.Started)
}

// Summary is a one-line description for listings.
func (r *Record) Summary() string {
	return fmt.Sprintf("%s  %-12s  %-9s  %s  %s",
		r.ID, r.Task, r.Outcome, r.Started.Format(time.DateTime), r.Duration().Round(time.Second))
}

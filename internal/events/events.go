// Package events defines the notifications the client publishes.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/model"
)

// PollingConfigurationApplied is published when a polling configuration
// starts driving the scheduler.
type PollingConfigurationApplied struct {
	Configuration model.PollingConfiguration
}

// PollingConfigurationErrorOccurred is published when a polling
// configuration is rejected. Polling pauses until a valid one arrives.
type PollingConfigurationErrorOccurred struct {
	Configuration model.PollingConfiguration
	Err           error
}

// ScanCompleted is published after every scan cycle.
type ScanCompleted struct {
	Request   model.ScanRequest
	EndActual time.Time
	Entities  int
	Changes   map[model.ChangeType]int
}

// Duration is the time from the actual start to the end of the scan.
func (e ScanCompleted) Duration() time.Duration {
	return e.EndActual.Sub(e.Request.StartActual)
}

// Listener receives client events. Implementations must not block.
type Listener interface {
	PollingConfigurationApplied(PollingConfigurationApplied)
	PollingConfigurationErrorOccurred(PollingConfigurationErrorOccurred)
	ScanCompleted(ScanCompleted)
}

// Nop discards every event.
type Nop struct{}

func (Nop) PollingConfigurationApplied(PollingConfigurationApplied)             {}
func (Nop) PollingConfigurationErrorOccurred(PollingConfigurationErrorOccurred) {}
func (Nop) ScanCompleted(ScanCompleted)                                         {}

// Multi fans every event out to each listener in order.
type Multi []Listener

func (m Multi) PollingConfigurationApplied(e PollingConfigurationApplied) {
	for _, l := range m {
		l.PollingConfigurationApplied(e)
	}
}

func (m Multi) PollingConfigurationErrorOccurred(e PollingConfigurationErrorOccurred) {
	for _, l := range m {
		l.PollingConfigurationErrorOccurred(e)
	}
}

func (m Multi) ScanCompleted(e ScanCompleted) {
	for _, l := range m {
		l.ScanCompleted(e)
	}
}

// Logging writes every event to a zap logger.
type Logging struct {
	Logger *zap.SugaredLogger
}

func (l Logging) PollingConfigurationApplied(e PollingConfigurationApplied) {
	l.Logger.Infow("polling configuration applied", "configuration", e.Configuration.String())
}

func (l Logging) PollingConfigurationErrorOccurred(e PollingConfigurationErrorOccurred) {
	l.Logger.Errorw("polling configuration rejected, polling will pause until an updated configuration is found",
		"configuration", e.Configuration.String(), "error", e.Err)
}

func (l Logging) ScanCompleted(e ScanCompleted) {
	l.Logger.Debugw("scan completed",
		"scan_id", e.Request.ID.String(),
		"type", string(e.Request.Type),
		"scheduled", e.Request.StartScheduled,
		"duration", e.Duration(),
		"entities", e.Entities,
		"adds", e.Changes[model.ChangeAdd],
		"updates", e.Changes[model.ChangeUpdate],
		"deletes", e.Changes[model.ChangeDelete],
	)
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	applied   []PollingConfigurationApplied
	failed    []PollingConfigurationErrorOccurred
	completed []ScanCompleted
}

func (r *Recorder) PollingConfigurationApplied(e PollingConfigurationApplied) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, e)
}

func (r *Recorder) PollingConfigurationErrorOccurred(e PollingConfigurationErrorOccurred) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, e)
}

func (r *Recorder) ScanCompleted(e ScanCompleted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, e)
}

// Applied returns a copy of the recorded applied events.
func (r *Recorder) Applied() []PollingConfigurationApplied {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PollingConfigurationApplied(nil), r.applied...)
}

// Failed returns a copy of the recorded rejection events.
func (r *Recorder) Failed() []PollingConfigurationErrorOccurred {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PollingConfigurationErrorOccurred(nil), r.failed...)
}

// Completed returns a copy of the recorded scan events.
func (r *Recorder) Completed() []ScanCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ScanCompleted(nil), r.completed...)
}

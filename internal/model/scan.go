package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanType records what started a scan.
type ScanType string

const (
	ScanPoll   ScanType = "POLL"
	ScanManual ScanType = "MANUAL"
	ScanLoad   ScanType = "LOAD"
)

// ScanRequest triggers one full scan of the item store.
type ScanRequest struct {
	ID             uuid.UUID
	StartScheduled time.Time
	// StartActual is when the scan began. Requesters stamp the emission
	// time; the snapshot pipeline restamps it when it takes the request.
	StartActual time.Time
	Type        ScanType
}

// NewScanRequest stamps a request with a fresh time-ordered id.
func NewScanRequest(scheduled, actual time.Time, typ ScanType) ScanRequest {
	return ScanRequest{
		ID:             uuid.Must(uuid.NewV7()),
		StartScheduled: scheduled,
		StartActual:    actual,
		Type:           typ,
	}
}

package models

import "time"

// Phase is the controller's sync state. A write cycle moves
// idle -> writing -> verifying -> idle; a standalone read moves
// idle -> reading -> idle. The enum replaces independent busy booleans so
// illegal combinations cannot be represented.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReading   Phase = "reading"
	PhaseWriting   Phase = "writing"
	PhaseVerifying Phase = "verifying"
)

// ControllerStatus is what the dashboard consumes: the confirmed snapshot plus
// the controller's in-flight state. DisplayedMode equals the snapshot mode
// except during the optimistic window of a pending mode change.
type ControllerStatus struct {
	Snapshot      ChannelSnapshot `json:"snapshot"`
	Phase         Phase           `json:"phase"`
	Loading       bool            `json:"loading"`
	PendingMode   bool            `json:"pending_mode"`
	ExpectedMode  string          `json:"expected_mode,omitempty"`
	DisplayedMode string          `json:"displayed_mode,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LastSyncAt    time.Time       `json:"last_sync_at,omitempty"`
}

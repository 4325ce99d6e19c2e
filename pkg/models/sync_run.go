package models

import "time"

// RunStatus is the lifecycle status shared by sync runs and diff runs.
// Runs are created running and become immutable once terminal.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// SyncRun is one extraction invocation. Every entity produced by the run
// carries its SyncID; the diff engine operates between two sync runs of the
// same connection.
type SyncRun struct {
	SyncID         string
	ConnectorName  string
	ConnectionName string
	TenantID       string
	Status         RunStatus
	ErrorMessage   *string
	Timestamp      time.Time
	CreatedAt      time.Time
}

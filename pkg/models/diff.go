package models

import "time"

// ChangeType classifies an entity's fate between two snapshots.
type ChangeType string

const (
	ChangeTypeAdded     ChangeType = "added"
	ChangeTypeRemoved   ChangeType = "removed"
	ChangeTypeModified  ChangeType = "modified"
	ChangeTypeUnchanged ChangeType = "unchanged"
)

// FieldChange records one differing field: the value on the older side and
// the value on the newer side. A side missing the field carries nil.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// DiffRun is one invocation of the diff engine, comparing the two most
// recent sync runs of a connection. Created running before any comparison,
// finalized completed (with counters) or failed (with message).
type DiffRun struct {
	DiffSyncID     string
	ConnectionID   string
	OlderSyncID    string
	NewerSyncID    string
	Status         RunStatus
	SchemasChanged int
	TablesChanged  int
	ColumnsChanged int
	ErrorMessage   *string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// DiffRecord is one changed entity within a diff run. Unchanged entities are
// never persisted, keeping diff storage proportional to drift rather than to
// catalog size. Records are immutable once written.
type DiffRecord struct {
	DiffSyncID    string                 `json:"diffSyncId"`
	Kind          EntityKind             `json:"typeName"`
	Key           EntityKey              `json:"key"`
	ChangeType    ChangeType             `json:"changeType"`
	SnapshotOlder map[string]any         `json:"snapshotOlder,omitempty"` // nil for added
	SnapshotNewer map[string]any         `json:"snapshotNewer,omitempty"` // nil for removed
	Differences   map[string]FieldChange `json:"differences,omitempty"`   // non-empty only for modified
}

// ChangeCounts aggregates per-kind change counters for a diff run.
type ChangeCounts struct {
	Schemas int `json:"schemas"`
	Tables  int `json:"tables"`
	Columns int `json:"columns"`
}

// Total returns the sum across the three entity kinds.
func (c ChangeCounts) Total() int {
	return c.Schemas + c.Tables + c.Columns
}

// DiffSummary is the caller-facing result of a successful diff run.
type DiffSummary struct {
	DiffSyncID   string       `json:"diffSyncId"`
	ConnectionID string       `json:"connectionId"`
	OlderSyncID  string       `json:"syncRunOlder"`
	NewerSyncID  string       `json:"syncRunNewer"`
	Counts       ChangeCounts `json:"counts"`
}

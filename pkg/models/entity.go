package models

// EntityKind identifies one of the fixed normalized entity kinds.
// The set is closed: the catalog inventories schemas, tables, and columns,
// plus a Database pseudo-kind used only for parent back-references.
type EntityKind string

const (
	KindDatabase EntityKind = "Database"
	KindSchema   EntityKind = "Schema"
	KindTable    EntityKind = "Table"
	KindColumn   EntityKind = "Column"
)

// StatusActive is the lifecycle status of every extracted record. Removal is
// never marked on the record itself; it is inferred by absence in a later
// snapshot.
const StatusActive = "ACTIVE"

// Entity is the normalized record shape shared by all entity kinds.
// Attributes holds structural facts that are always populated for the kind;
// CustomAttributes holds sparse, extraction-derived facts (comments, tags,
// constraint flags) present only when discovered.
type Entity struct {
	Kind             EntityKind     `json:"typeName"`
	Status           string         `json:"status"`
	Name             string         `json:"name"`
	ConnectionName   string         `json:"connectionName"`
	TenantID         string         `json:"tenantId"`
	LastSyncRun      string         `json:"lastSyncRun"`
	LastSyncRunAt    int64          `json:"lastSyncRunAt"` // milliseconds since epoch
	ConnectorName    string         `json:"connectorName"`
	Attributes       map[string]any `json:"attributes"`
	CustomAttributes map[string]any `json:"customAttributes"`
}

// SchemaEntity is a schema record together with the tables it owns.
// Ownership matters only for serialized exports; the diff engine treats each
// kind as an independent flat collection.
type SchemaEntity struct {
	Entity
	Tables []*TableEntity `json:"tables,omitempty"`
}

// TableEntity is a table record together with the columns it owns.
type TableEntity struct {
	Entity
	Columns []*Entity `json:"columns,omitempty"`
}

// EntityKey is the composite identity of an entity within one sync run.
// Unused ancestor fields are empty: a schema is keyed by Name alone, a table
// by (SchemaName, Name), a column by (SchemaName, TableName, Name). Two
// entities across sync runs are "the same" iff their keys match.
type EntityKey struct {
	SchemaName string `json:"schemaName,omitempty"`
	TableName  string `json:"tableName,omitempty"`
	Name       string `json:"name"`
}

// Key returns the composite identity of an entity for the given kind,
// derived from the entity's own name and its parent-linkage attributes.
func (e *Entity) Key() EntityKey {
	key := EntityKey{Name: e.Name}
	switch e.Kind {
	case KindTable:
		key.SchemaName, _ = e.Attributes["schemaName"].(string)
	case KindColumn:
		key.SchemaName, _ = e.Attributes["schemaName"].(string)
		key.TableName, _ = e.Attributes["tableName"].(string)
	}
	return key
}

// SnapshotEntity is an entity as loaded back from the snapshot store: its
// composite key, the decoded entity, the two attribute maps (JSON-decoded),
// and the full persisted record used for the older/newer snapshots on diff
// records.
type SnapshotEntity struct {
	Key              EntityKey
	Entity           *Entity
	Attributes       map[string]any
	CustomAttributes map[string]any
	Record           map[string]any
}

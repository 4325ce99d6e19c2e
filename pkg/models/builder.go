package models

import (
	"sort"
	"time"
)

// EntityBuilder produces fully-identified normalized entities for one
// extraction run. Connection context and sync id are fixed for the builder's
// lifetime, so two calls with identical facts yield identical records -- the
// determinism the diff engine relies on to avoid phantom drift.
//
// The builder never validates inputs; malformed facts are the extraction
// layer's problem.
type EntityBuilder struct {
	connectionName string
	tenantID       string
	connectorName  string
	syncID         string
	syncedAtMillis int64
}

// NewEntityBuilder creates a builder bound to one extraction run.
func NewEntityBuilder(connectionName, tenantID, connectorName, syncID string, syncedAt time.Time) *EntityBuilder {
	return &EntityBuilder{
		connectionName: connectionName,
		tenantID:       tenantID,
		connectorName:  connectorName,
		syncID:         syncID,
		syncedAtMillis: syncedAt.UnixMilli(),
	}
}

func (b *EntityBuilder) identity(path ...string) Identity {
	return NewIdentity(b.tenantID, b.connectorName, path...)
}

func (b *EntityBuilder) base(kind EntityKind, name string) Entity {
	return Entity{
		Kind:           kind,
		Status:         StatusActive,
		Name:           name,
		ConnectionName: b.connectionName,
		TenantID:       b.tenantID,
		LastSyncRun:    b.syncID,
		LastSyncRunAt:  b.syncedAtMillis,
		ConnectorName:  b.connectorName,
	}
}

// NewDatabase builds a database entity. Databases are not snapshotted as a
// diffable kind; the record exists for JSON export and for back-references.
func (b *EntityBuilder) NewDatabase(databaseName string) *Entity {
	qualified := b.identity(databaseName).QualifiedName()
	e := b.base(KindDatabase, databaseName)
	e.Attributes = map[string]any{
		"qualifiedName":           qualified,
		"connectionQualifiedName": b.identity().QualifiedName(),
		"databaseName":            databaseName,
		"databaseQualifiedName":   qualified,
	}
	e.CustomAttributes = map[string]any{}
	return &e
}

// NewSchema builds a schema entity. The parent database is embedded as a
// weak by-value reference under attributes.database.uniqueAttributes; it is
// used for downstream lookup only and never traversed for lifecycle.
func (b *EntityBuilder) NewSchema(databaseName, schemaName string) *SchemaEntity {
	qualified := b.identity(databaseName, schemaName).QualifiedName()
	databaseQualified := b.identity(databaseName).QualifiedName()

	e := b.base(KindSchema, schemaName)
	e.Attributes = map[string]any{
		"qualifiedName":           qualified,
		"connectionQualifiedName": b.identity().QualifiedName(),
		"databaseName":            databaseName,
		"databaseQualifiedName":   databaseQualified,
		"schemaName":              schemaName,
		"schemaQualifiedName":     qualified,
		"database": map[string]any{
			"typeName":   string(KindDatabase),
			"attributes": map[string]any{},
			"uniqueAttributes": map[string]any{
				"qualifiedName": databaseQualified,
			},
		},
	}
	e.CustomAttributes = map[string]any{}
	return &SchemaEntity{Entity: e}
}

// NewTable builds a table entity. extra facts (constraint summaries,
// partition and tablespace info, comments, tags) are promoted into
// customAttributes; table_type is always recorded there as well.
func (b *EntityBuilder) NewTable(databaseName, schemaName, tableName, tableType string, extra map[string]any) *TableEntity {
	e := b.base(KindTable, tableName)
	e.Attributes = map[string]any{
		"qualifiedName":           b.identity(databaseName, schemaName, tableName).QualifiedName(),
		"connectionQualifiedName": b.identity().QualifiedName(),
		"databaseName":            databaseName,
		"databaseQualifiedName":   b.identity(databaseName).QualifiedName(),
		"schemaName":              schemaName,
		"schemaQualifiedName":     b.identity(databaseName, schemaName).QualifiedName(),
	}
	e.CustomAttributes = map[string]any{
		"table_type":                tableType,
		"is_insertable_into":        "YES",
		"is_typed":                  "NO",
		"self_referencing_col_name": "",
	}
	mergeCustom(e.CustomAttributes, extra)
	return &TableEntity{Entity: e}
}

// NewColumn builds a column entity with the full ancestor chain in its
// qualified names. dataType, nullability, and ordinal position are intrinsic
// attributes; everything in extra lands in customAttributes.
func (b *EntityBuilder) NewColumn(databaseName, schemaName, tableName, columnName, dataType string, isNullable bool, ordinalPosition int, extra map[string]any) *Entity {
	e := b.base(KindColumn, columnName)
	e.Attributes = map[string]any{
		"qualifiedName":           b.identity(databaseName, schemaName, tableName, columnName).QualifiedName(),
		"connectionQualifiedName": b.identity().QualifiedName(),
		"databaseName":            databaseName,
		"databaseQualifiedName":   b.identity(databaseName).QualifiedName(),
		"schemaName":              schemaName,
		"schemaQualifiedName":     b.identity(databaseName, schemaName).QualifiedName(),
		"tableName":               tableName,
		"tableQualifiedName":      b.identity(databaseName, schemaName, tableName).QualifiedName(),
		"dataType":                dataType,
		"isNullable":              isNullable,
		"order":                   ordinalPosition,
	}
	e.CustomAttributes = map[string]any{
		"ordinal_position":    ordinalPosition,
		"is_self_referencing": "NO",
		"type_name":           dataType,
		"is_generated":        "NEVER",
		"is_identity":         "NO",
		"identity_cycle":      "NO",
	}
	mergeCustom(e.CustomAttributes, extra)
	return &e
}

// mergeCustom copies extra facts into dst, normalizing tag lists to a
// sorted, de-duplicated form so identical inputs always serialize
// identically.
func mergeCustom(dst, extra map[string]any) {
	for k, v := range extra {
		if tags, ok := v.([]string); ok {
			dst[k] = CanonicalTags(tags)
			continue
		}
		dst[k] = v
	}
}

// CanonicalTags de-duplicates and sorts a tag list. Stored and compared in
// canonical order so list-order drift between extractions never shows up as
// a modification.
func CanonicalTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

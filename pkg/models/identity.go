package models

import "strings"

// identityEscape protects the path delimiter inside entity names. A schema
// literally named "a/b" must not collide with schema "b" under database "a".
const identityEscape = "%2F"

// Identity is the ordered ancestor path that identifies an entity across
// sync runs: tenant, connector, then database/schema/table/column as deep as
// the entity kind requires. It renders to the slash-joined qualified name
// used in attribute maps.
type Identity struct {
	TenantID      string
	ConnectorName string
	Path          []string
}

// NewIdentity creates an identity rooted at a tenant and connector.
func NewIdentity(tenantID, connectorName string, path ...string) Identity {
	return Identity{TenantID: tenantID, ConnectorName: connectorName, Path: path}
}

// Child returns a new identity one level deeper. The receiver is not mutated.
func (id Identity) Child(name string) Identity {
	path := make([]string, 0, len(id.Path)+1)
	path = append(path, id.Path...)
	path = append(path, name)
	return Identity{TenantID: id.TenantID, ConnectorName: id.ConnectorName, Path: path}
}

// QualifiedName renders the identity as tenant/connector/part... with any
// literal "/" inside a part escaped.
func (id Identity) QualifiedName() string {
	parts := make([]string, 0, len(id.Path)+2)
	parts = append(parts, escapePart(id.TenantID), escapePart(id.ConnectorName))
	for _, p := range id.Path {
		parts = append(parts, escapePart(p))
	}
	return strings.Join(parts, "/")
}

// ParseQualifiedName parses a rendered qualified name back into its identity.
// Returns false if the string has fewer than the tenant and connector
// segments.
func ParseQualifiedName(qualified string) (Identity, bool) {
	segments := strings.Split(qualified, "/")
	if len(segments) < 2 {
		return Identity{}, false
	}
	id := Identity{
		TenantID:      unescapePart(segments[0]),
		ConnectorName: unescapePart(segments[1]),
	}
	for _, s := range segments[2:] {
		id.Path = append(id.Path, unescapePart(s))
	}
	return id, true
}

func escapePart(part string) string {
	// Escape "%" first so an unescape round-trips names containing "%2F".
	part = strings.ReplaceAll(part, "%", "%25")
	return strings.ReplaceAll(part, "/", identityEscape)
}

func unescapePart(part string) string {
	part = strings.ReplaceAll(part, identityEscape, "/")
	return strings.ReplaceAll(part, "%25", "%")
}

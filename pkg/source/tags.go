package source

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// tagPattern matches an inline tag block in a database comment, e.g.
// "Customer accounts [tags: pii, core]".
var tagPattern = regexp.MustCompile(`(?i)\[tags:\s*([^\]]+)\]`)

// ParseCommentTags extracts the tag list from a comment and returns the
// comment with the tag block stripped. Tags are comma-separated inside the
// block; surrounding whitespace is trimmed and empty entries dropped.
func ParseCommentTags(comment string) (clean string, tags []string) {
	match := tagPattern.FindStringSubmatch(comment)
	if match == nil {
		return strings.TrimSpace(comment), nil
	}

	for _, part := range strings.Split(match[1], ",") {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	clean = strings.TrimSpace(tagPattern.ReplaceAllString(comment, ""))
	return clean, tags
}

// ColumnOverlay carries business tags for one column.
type ColumnOverlay struct {
	Tags []string `yaml:"tags"`
}

// TableOverlay carries business tags for one table and its columns.
type TableOverlay struct {
	Tags    []string                 `yaml:"tags"`
	Columns map[string]ColumnOverlay `yaml:"columns"`
}

// MetadataOverlay is an optional YAML document layering business tags onto
// tables and columns on top of whatever the comments carry. Table keys are
// either "schema.table" or a bare table name applying across schemas.
type MetadataOverlay struct {
	Tables map[string]TableOverlay `yaml:"tables"`
}

// LoadOverlay reads a metadata overlay from a YAML file. An empty path
// returns an empty overlay.
func LoadOverlay(path string) (*MetadataOverlay, error) {
	overlay := &MetadataOverlay{Tables: map[string]TableOverlay{}}
	if path == "" {
		return overlay, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata overlay %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, overlay); err != nil {
		return nil, fmt.Errorf("failed to parse metadata overlay %s: %w", path, err)
	}
	if overlay.Tables == nil {
		overlay.Tables = map[string]TableOverlay{}
	}
	return overlay, nil
}

func (o *MetadataOverlay) lookup(schemaName, tableName string) (TableOverlay, bool) {
	if t, ok := o.Tables[schemaName+"."+tableName]; ok {
		return t, true
	}
	t, ok := o.Tables[tableName]
	return t, ok
}

// TableTags returns overlay tags for a table, or nil.
func (o *MetadataOverlay) TableTags(schemaName, tableName string) []string {
	if t, ok := o.lookup(schemaName, tableName); ok {
		return t.Tags
	}
	return nil
}

// ColumnTags returns overlay tags for a column, or nil.
func (o *MetadataOverlay) ColumnTags(schemaName, tableName, columnName string) []string {
	t, ok := o.lookup(schemaName, tableName)
	if !ok {
		return nil
	}
	if c, ok := t.Columns[columnName]; ok {
		return c.Tags
	}
	return nil
}

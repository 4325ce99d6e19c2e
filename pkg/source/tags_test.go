package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommentTags(t *testing.T) {
	clean, tags := ParseCommentTags("Customer accounts [tags: pii, core]")
	assert.Equal(t, "Customer accounts", clean)
	assert.Equal(t, []string{"pii", "core"}, tags)
}

func TestParseCommentTags_CaseInsensitive(t *testing.T) {
	clean, tags := ParseCommentTags("[TAGS: finance] Quarterly rollup")
	assert.Equal(t, "Quarterly rollup", clean)
	assert.Equal(t, []string{"finance"}, tags)
}

func TestParseCommentTags_NoBlock(t *testing.T) {
	clean, tags := ParseCommentTags("  plain comment  ")
	assert.Equal(t, "plain comment", clean)
	assert.Nil(t, tags)
}

func TestParseCommentTags_EmptyEntriesDropped(t *testing.T) {
	_, tags := ParseCommentTags("[tags: a, , b ,]")
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestParseCommentTags_TagsOnly(t *testing.T) {
	clean, tags := ParseCommentTags("[tags: internal]")
	assert.Empty(t, clean)
	assert.Equal(t, []string{"internal"}, tags)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.yaml")
	doc := `
tables:
  public.users:
    tags: [pii]
    columns:
      email:
        tags: [pii, contact]
  orders:
    tags: [finance]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	overlay, err := LoadOverlay(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"pii"}, overlay.TableTags("public", "users"))
	assert.Equal(t, []string{"pii", "contact"}, overlay.ColumnTags("public", "users", "email"))
	assert.Nil(t, overlay.ColumnTags("public", "users", "id"))

	// Bare table names apply across schemas.
	assert.Equal(t, []string{"finance"}, overlay.TableTags("sales", "orders"))
	assert.Nil(t, overlay.TableTags("public", "unknown"))
}

func TestLoadOverlay_EmptyPath(t *testing.T) {
	overlay, err := LoadOverlay("")
	require.NoError(t, err)
	assert.Nil(t, overlay.TableTags("public", "users"))
}

func TestLoadOverlay_MissingFile(t *testing.T) {
	_, err := LoadOverlay(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

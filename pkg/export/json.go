// Package export writes extraction and diff results to local files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/models"
)

// JSONWriter writes snapshots and diff results as indented JSON documents.
type JSONWriter struct {
	dir    string
	logger *zap.Logger
}

// NewJSONWriter creates a writer rooted at dir. The directory is created on
// first write.
func NewJSONWriter(dir string, logger *zap.Logger) *JSONWriter {
	return &JSONWriter{dir: dir, logger: logger}
}

type snapshotDocument struct {
	SyncID   string                 `json:"syncId"`
	Database *models.Entity         `json:"database"`
	Schemas  []*models.SchemaEntity `json:"schemas"`
}

// WriteSnapshot writes the nested schema/table/column tree of one sync run
// and returns the file path.
func (w *JSONWriter) WriteSnapshot(syncID string, database *models.Entity, schemas []*models.SchemaEntity) (string, error) {
	doc := snapshotDocument{SyncID: syncID, Database: database, Schemas: schemas}
	path := filepath.Join(w.dir, fmt.Sprintf("catalog_%s.json", syncID))
	if err := w.writeFile(path, doc); err != nil {
		return "", err
	}

	w.logger.Info("Wrote snapshot export", zap.String("path", path))
	return path, nil
}

type diffDocument struct {
	Summary *models.DiffSummary  `json:"summary"`
	Records []*models.DiffRecord `json:"records"`
}

// WriteDiff writes a diff run's summary and change records and returns the
// file path.
func (w *JSONWriter) WriteDiff(summary *models.DiffSummary, records []*models.DiffRecord) (string, error) {
	doc := diffDocument{Summary: summary, Records: records}
	path := filepath.Join(w.dir, fmt.Sprintf("diff_%s.json", summary.DiffSyncID))
	if err := w.writeFile(path, doc); err != nil {
		return "", err
	}

	w.logger.Info("Wrote diff export", zap.String("path", path))
	return path, nil
}

func (w *JSONWriter) writeFile(path string, doc any) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", w.dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
)

// DiffService computes incremental diffs between the two most recent
// completed sync runs of a connection.
type DiffService interface {
	RunIncrementalDiff(ctx context.Context, connectionName string) (*models.DiffSummary, error)
}

type diffService struct {
	snapshots repositories.SnapshotRepository
	diffs     repositories.DiffRepository
	logger    *zap.Logger
}

// NewDiffService creates a new DiffService.
func NewDiffService(snapshots repositories.SnapshotRepository, diffs repositories.DiffRepository, logger *zap.Logger) DiffService {
	return &diffService{snapshots: snapshots, diffs: diffs, logger: logger}
}

var _ DiffService = (*diffService)(nil)

// diffKinds are the kinds compared by a diff run, in persistence order.
var diffKinds = []models.EntityKind{models.KindSchema, models.KindTable, models.KindColumn}

func (s *diffService) RunIncrementalDiff(ctx context.Context, connectionName string) (*models.DiffSummary, error) {
	runs, err := s.snapshots.ListRecentSyncRuns(ctx, connectionName, 2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, fmt.Errorf("%w: connection %s has %d completed sync runs, need 2",
			apperrors.ErrInsufficientHistory, connectionName, len(runs))
	}

	newer, older := runs[0], runs[1]
	diffRun := &models.DiffRun{
		DiffSyncID:   uuid.New().String(),
		ConnectionID: connectionName,
		OlderSyncID:  older.SyncID,
		NewerSyncID:  newer.SyncID,
	}
	if err := s.diffs.CreateRun(ctx, diffRun); err != nil {
		return nil, err
	}

	s.logger.Info("Starting incremental diff",
		zap.String("diff_sync_id", diffRun.DiffSyncID),
		zap.String("older", older.SyncID),
		zap.String("newer", newer.SyncID))

	summary, err := s.compute(ctx, diffRun)
	if err != nil {
		if markErr := s.diffs.MarkFailed(ctx, diffRun.DiffSyncID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark diff run failed",
				zap.String("diff_sync_id", diffRun.DiffSyncID), zap.Error(markErr))
		}
		return nil, err
	}

	s.logger.Info("Incremental diff completed",
		zap.String("diff_sync_id", diffRun.DiffSyncID),
		zap.Int("schemas_changed", summary.Counts.Schemas),
		zap.Int("tables_changed", summary.Counts.Tables),
		zap.Int("columns_changed", summary.Counts.Columns))

	return summary, nil
}

func (s *diffService) compute(ctx context.Context, diffRun *models.DiffRun) (*models.DiffSummary, error) {
	var (
		records []*models.DiffRecord
		counts  models.ChangeCounts
	)

	for _, kind := range diffKinds {
		olderEntities, err := s.snapshots.LoadEntities(ctx, diffRun.OlderSyncID, kind)
		if err != nil {
			return nil, err
		}
		newerEntities, err := s.snapshots.LoadEntities(ctx, diffRun.NewerSyncID, kind)
		if err != nil {
			return nil, err
		}

		olderByKey, err := indexByKey(kind, olderEntities)
		if err != nil {
			return nil, err
		}
		newerByKey, err := indexByKey(kind, newerEntities)
		if err != nil {
			return nil, err
		}

		kindRecords := diffEntities(diffRun.DiffSyncID, kind, olderByKey, newerByKey)
		records = append(records, kindRecords...)

		switch kind {
		case models.KindSchema:
			counts.Schemas = len(kindRecords)
		case models.KindTable:
			counts.Tables = len(kindRecords)
		case models.KindColumn:
			counts.Columns = len(kindRecords)
		}
	}

	if err := s.diffs.WriteRun(ctx, diffRun.DiffSyncID, records, counts); err != nil {
		return nil, err
	}

	return &models.DiffSummary{
		DiffSyncID:   diffRun.DiffSyncID,
		ConnectionID: diffRun.ConnectionID,
		OlderSyncID:  diffRun.OlderSyncID,
		NewerSyncID:  diffRun.NewerSyncID,
		Counts:       counts,
	}, nil
}

// indexByKey builds a key index over one side of a diff. Two entities
// sharing a key within one snapshot make the comparison ill-defined, so the
// run aborts rather than pick a winner.
func indexByKey(kind models.EntityKind, entities []*models.SnapshotEntity) (map[models.EntityKey]*models.SnapshotEntity, error) {
	byKey := make(map[models.EntityKey]*models.SnapshotEntity, len(entities))
	for _, e := range entities {
		if _, dup := byKey[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate %s key %+v", apperrors.ErrIdentityCollision, kind, e.Key)
		}
		byKey[e.Key] = e
	}
	return byKey, nil
}

// diffEntities classifies every key present on either side as added,
// removed, modified, or unchanged. Only changed entities produce records.
// Keys are walked in sorted order so record output is deterministic.
func diffEntities(diffSyncID string, kind models.EntityKind, older, newer map[models.EntityKey]*models.SnapshotEntity) []*models.DiffRecord {
	keys := unionKeys(older, newer)

	records := make([]*models.DiffRecord, 0)
	for _, key := range keys {
		olderEnt, inOlder := older[key]
		newerEnt, inNewer := newer[key]

		record := &models.DiffRecord{DiffSyncID: diffSyncID, Kind: kind, Key: key}
		switch {
		case !inOlder:
			record.ChangeType = models.ChangeTypeAdded
			record.SnapshotNewer = newerEnt.Record
		case !inNewer:
			record.ChangeType = models.ChangeTypeRemoved
			record.SnapshotOlder = olderEnt.Record
		default:
			differences := compareAttributes(olderEnt, newerEnt)
			if len(differences) == 0 {
				continue // unchanged
			}
			record.ChangeType = models.ChangeTypeModified
			record.SnapshotOlder = olderEnt.Record
			record.SnapshotNewer = newerEnt.Record
			record.Differences = differences
		}
		records = append(records, record)
	}

	return records
}

func unionKeys(older, newer map[models.EntityKey]*models.SnapshotEntity) []models.EntityKey {
	seen := make(map[models.EntityKey]struct{}, len(older)+len(newer))
	keys := make([]models.EntityKey, 0, len(older)+len(newer))
	for k := range older {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range newer {
		if _, dup := seen[k]; !dup {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.SchemaName != b.SchemaName {
			return a.SchemaName < b.SchemaName
		}
		if a.TableName != b.TableName {
			return a.TableName < b.TableName
		}
		return a.Name < b.Name
	})
	return keys
}

// compareAttributes walks the union of field names in both attribute maps
// and records every field whose value differs. Field names are prefixed with
// the map they came from; a side missing a field contributes nil.
func compareAttributes(older, newer *models.SnapshotEntity) map[string]models.FieldChange {
	differences := make(map[string]models.FieldChange)
	compareMap(differences, "attributes.", older.Attributes, newer.Attributes)
	compareMap(differences, "custom_attributes.", older.CustomAttributes, newer.CustomAttributes)
	return differences
}

func compareMap(out map[string]models.FieldChange, prefix string, older, newer map[string]any) {
	for field, olderValue := range older {
		newerValue, inNewer := newer[field]
		if !inNewer {
			out[prefix+field] = models.FieldChange{Old: olderValue, New: nil}
			continue
		}
		if !valueEqual(olderValue, newerValue) {
			out[prefix+field] = models.FieldChange{Old: olderValue, New: newerValue}
		}
	}
	for field, newerValue := range newer {
		if _, inOlder := older[field]; !inOlder {
			out[prefix+field] = models.FieldChange{Old: nil, New: newerValue}
		}
	}
}

// valueEqual deep-compares two attribute values. Numbers compare by value
// regardless of concrete type, since snapshot decoding yields float64 where
// fresh extraction yields int.
func valueEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !valueEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []string:
		return valueEqual(stringsToAny(av), b)
	}

	if bv, ok := b.([]string); ok {
		return valueEqual(a, stringsToAny(bv))
	}

	return reflect.DeepEqual(a, b)
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

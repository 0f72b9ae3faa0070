package store

import (
	"context"
	"fmt"

	"github.com/amaumene/catalogarr/internal/models"
)

// ResumeEntry pairs a resume mark with the canonical record it points at
type ResumeEntry struct {
	Mark  models.ResumeMark
	Media models.CanonicalMedia
}

// QueryContinueWatching returns the most recently updated unfinished resume marks for
// profileID, joined with their canonical records.
//
// It issues exactly two queries regardless of limit: one for the top marks and one
// batch lookup for their canonical records. Marks whose record no longer exists are
// dropped.
func (s *Store) QueryContinueWatching(ctx context.Context, profileID string, limit int) ([]ResumeEntry, error) {
	if limit <= 0 {
		return []ResumeEntry{}, nil
	}

	var marks []models.ResumeMark
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND position_percent > 0 AND is_completed = ? AND cleared_at IS NULL", profileID, false).
		Order("updated_at DESC").
		Order("canonical_key ASC").
		Limit(limit).
		Find(&marks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query resume marks: %w", err)
	}
	if len(marks) == 0 {
		return []ResumeEntry{}, nil
	}

	keys := make([]string, 0, len(marks))
	for _, m := range marks {
		keys = append(keys, m.CanonicalKey)
	}
	byKey, err := s.GetCanonicalBatch(ctx, keys)
	if err != nil {
		return nil, err
	}

	entries := make([]ResumeEntry, 0, len(marks))
	for _, m := range marks {
		media, ok := byKey[m.CanonicalKey]
		if !ok {
			s.logger.Debug().
				Str("canonical_key", m.CanonicalKey).
				Str("profile_id", profileID).
				Msg("Dropping resume mark without canonical media")
			continue
		}
		entries = append(entries, ResumeEntry{Mark: m, Media: media})
	}
	return entries, nil
}

// QueryRecentlyAdded returns the newest canonical records with their sources
func (s *Store) QueryRecentlyAdded(ctx context.Context, limit int) ([]models.CanonicalMedia, error) {
	if limit <= 0 {
		return []models.CanonicalMedia{}, nil
	}

	var media []models.CanonicalMedia
	err := s.db.WithContext(ctx).
		Preload("Sources").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&media).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recently added: %w", err)
	}
	return media, nil
}

// GetCanonicalBatch loads the records for keys in a single lookup. Missing keys are
// simply absent from the result.
func (s *Store) GetCanonicalBatch(ctx context.Context, keys []string) (map[string]models.CanonicalMedia, error) {
	result := make(map[string]models.CanonicalMedia, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var media []models.CanonicalMedia
	err := s.db.WithContext(ctx).
		Preload("Sources").
		Where("canonical_key IN ?", keys).
		Find(&media).Error
	if err != nil {
		return nil, fmt.Errorf("failed to batch load canonical media: %w", err)
	}
	for _, m := range media {
		result[m.CanonicalKey] = m
	}
	return result, nil
}

// Stats summarizes the catalog
type Stats struct {
	Total           int64                         `json:"total"`
	ByResolveState  map[models.ResolveState]int64 `json:"by_resolve_state"`
	ByKind          map[models.MediaKind]int64    `json:"by_kind"`
	BySourceType    map[models.SourceType]int64   `json:"by_source_type"`
	LiveResumeMarks int64                         `json:"live_resume_marks"`
	IntegrityFaults int64                         `json:"integrity_faults"`
}

type groupCount struct {
	Value string
	Count int64
}

// Stats counts canonical records by resolve state, kind and source type
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByResolveState: make(map[models.ResolveState]int64),
		ByKind:         make(map[models.MediaKind]int64),
		BySourceType:   make(map[models.SourceType]int64),
	}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.CanonicalMedia{}).Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("failed to count canonical media: %w", err)
	}

	var rows []groupCount
	if err := db.Model(&models.CanonicalMedia{}).
		Select("resolve_state AS value, COUNT(*) AS count").
		Group("resolve_state").
		Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("failed to count resolve states: %w", err)
	}
	for _, r := range rows {
		stats.ByResolveState[models.ResolveState(r.Value)] = r.Count
	}

	rows = nil
	if err := db.Model(&models.CanonicalMedia{}).
		Select("kind AS value, COUNT(*) AS count").
		Group("kind").
		Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("failed to count kinds: %w", err)
	}
	for _, r := range rows {
		stats.ByKind[models.MediaKind(r.Value)] = r.Count
	}

	rows = nil
	if err := db.Model(&models.MediaSourceRef{}).
		Select("source_type AS value, COUNT(DISTINCT canonical_key) AS count").
		Group("source_type").
		Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("failed to count source types: %w", err)
	}
	for _, r := range rows {
		stats.BySourceType[models.ParseSourceType(r.Value)] += r.Count
	}

	if err := db.Model(&models.ResumeMark{}).Where("cleared_at IS NULL").Count(&stats.LiveResumeMarks).Error; err != nil {
		return stats, fmt.Errorf("failed to count resume marks: %w", err)
	}
	if err := db.Model(&models.IntegrityFault{}).Count(&stats.IntegrityFaults).Error; err != nil {
		return stats, fmt.Errorf("failed to count integrity faults: %w", err)
	}
	return stats, nil
}

const orphanCondition = `NOT EXISTS (SELECT 1 FROM media_source_refs r WHERE r.canonical_key = canonical_media.canonical_key)
	AND NOT EXISTS (SELECT 1 FROM resume_marks m WHERE m.canonical_key = canonical_media.canonical_key AND m.cleared_at IS NULL)`

// DeleteOrphans removes canonical records that no source references and no live resume
// mark points at. With dryRun set it only reports the keys.
func (s *Store) DeleteOrphans(ctx context.Context, dryRun bool) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&models.CanonicalMedia{}).
		Where(orphanCondition).
		Order("canonical_key ASC").
		Pluck("canonical_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find orphans: %w", err)
	}
	if dryRun || len(keys) == 0 {
		return keys, nil
	}

	deleted := make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := s.deleteOrphan(ctx, key)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, key)
		}
	}
	if len(deleted) > 0 {
		s.logger.Info().Int("count", len(deleted)).Msg("Pruned orphaned canonical media")
		s.notifier.Publish(models.TableCanonicalMedia, models.TableResumeMarks)
	}
	return deleted, nil
}

// deleteOrphan re-checks the orphan condition under the key lock so a concurrent upsert
// that attached a source wins.
func (s *Store) deleteOrphan(ctx context.Context, key string) (bool, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	res := s.db.WithContext(ctx).
		Where("canonical_key = ?", key).
		Where(orphanCondition).
		Delete(&models.CanonicalMedia{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete orphan %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := s.db.WithContext(ctx).Where("canonical_key = ?", key).Delete(&models.ResumeMark{}).Error; err != nil {
		return true, fmt.Errorf("failed to delete cleared resume marks for %s: %w", key, err)
	}
	return true, nil
}

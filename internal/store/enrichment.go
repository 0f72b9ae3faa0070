package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/amaumene/catalogarr/internal/models"
)

// ClaimEnrichment moves key to Pending if it is still due under q and returns the
// claimed record. It returns nil when key is unknown, disabled or no longer due,
// which is the case when another attempt claimed it first.
func (s *Store) ClaimEnrichment(ctx context.Context, key string, q CandidateQuery, at time.Time) (*models.CanonicalMedia, error) {
	at = at.UTC()
	unlock := s.locks.lock(key)
	defer unlock()

	var claimed *models.CanonicalMedia
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CanonicalMedia{}).
			Where("canonical_key = ? AND enrichment_disabled = ?", key, false).
			Where(s.dueCondition(q)).
			Updates(map[string]interface{}{
				"resolve_state": models.ResolvePending,
				"pending_since": at,
				"updated_at":    at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to claim canonical media: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var media models.CanonicalMedia
		if err := tx.Where("canonical_key = ?", key).Take(&media).Error; err != nil {
			return fmt.Errorf("failed to load claimed canonical media: %w", err)
		}
		claimed = &media
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		s.notifier.Publish(models.TableCanonicalMedia)
	}
	return claimed, nil
}

// ApplyEnrichment resolves key and overwrites the image, external id and year fields
// that are present in fields. Absent fields keep their stored value.
func (s *Store) ApplyEnrichment(ctx context.Context, key string, fields models.EnrichedMetadata, by models.ResolvedBy, at time.Time) error {
	at = at.UTC()
	return s.mutate(ctx, key, func(m *models.CanonicalMedia) error {
		overwriteExternalIDs(&m.ExternalIDs, fields.ExternalIDs)
		overwriteImages(&m.Images, fields.Images)
		overwrite(&m.Year, fields.Year)
		markResolved(m, by, at)
		return nil
	})
}

// MarkEnrichmentApplied resolves key without changing any field
func (s *Store) MarkEnrichmentApplied(ctx context.Context, key string, by models.ResolvedBy, at time.Time) error {
	at = at.UTC()
	return s.mutate(ctx, key, func(m *models.CanonicalMedia) error {
		markResolved(m, by, at)
		return nil
	})
}

// MarkEnrichmentFailed records a failed attempt and when the key may be retried
func (s *Store) MarkEnrichmentFailed(ctx context.Context, key, reason string, at, nextEligibleAt time.Time) error {
	at = at.UTC()
	next := nextEligibleAt.UTC()
	return s.mutate(ctx, key, func(m *models.CanonicalMedia) error {
		m.ResolveState = models.ResolveFailed
		m.ResolveAttempts++
		m.ConsecutiveFails++
		m.LastFailureReason = &reason
		m.NextEligibleAt = &next
		m.PendingSince = nil
		m.UpdatedAt = at
		return nil
	})
}

func markResolved(m *models.CanonicalMedia, by models.ResolvedBy, at time.Time) {
	m.ResolveState = models.ResolveResolved
	m.ResolvedBy = &by
	m.LastResolvedAt = &at
	m.ResolveAttempts++
	m.ConsecutiveFails = 0
	m.LastFailureReason = nil
	m.NextEligibleAt = nil
	m.PendingSince = nil
	m.UpdatedAt = at
}

// CandidateQuery selects entities due for enrichment
type CandidateQuery struct {
	Now            time.Time // failed entities are eligible once next_eligible_at <= Now
	PendingBefore  time.Time // pending entities started before this are presumed abandoned
	RefreshBefore  time.Time // resolved entities last resolved before this are refreshed; zero disables
	IgnoreCooldown bool      // every state is due except a live pending attempt
	Limit          int
}

// dueCondition is the eligibility filter shared by candidate listing and claiming
func (s *Store) dueCondition(q CandidateQuery) *gorm.DB {
	if q.IgnoreCooldown {
		return s.db.Where("resolve_state <> ? OR pending_since IS NULL OR pending_since <= ?",
			models.ResolvePending, q.PendingBefore.UTC())
	}

	cond := s.db.Where("resolve_state = ?", models.ResolveUnresolved).
		Or("resolve_state = ? AND (next_eligible_at IS NULL OR next_eligible_at <= ?)", models.ResolveFailed, q.Now.UTC()).
		Or("resolve_state = ? AND (pending_since IS NULL OR pending_since <= ?)", models.ResolvePending, q.PendingBefore.UTC())
	if !q.RefreshBefore.IsZero() {
		cond = cond.Or("resolve_state = ? AND last_resolved_at <= ?", models.ResolveResolved, q.RefreshBefore.UTC())
	}
	return cond
}

// ListEnrichmentCandidates returns entities due for enrichment: unresolved ones first,
// then failed ones whose cooldown elapsed, then abandoned and stale ones.
// Administratively disabled entities are never returned.
func (s *Store) ListEnrichmentCandidates(ctx context.Context, q CandidateQuery) ([]models.CanonicalMedia, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	var media []models.CanonicalMedia
	err := s.db.WithContext(ctx).
		Where("enrichment_disabled = ?", false).
		Where(s.dueCondition(q)).
		Order(fmt.Sprintf(
			"CASE resolve_state WHEN '%s' THEN 0 WHEN '%s' THEN 1 WHEN '%s' THEN 2 ELSE 3 END, created_at ASC, id ASC",
			models.ResolveUnresolved, models.ResolveFailed, models.ResolvePending,
		)).
		Limit(q.Limit).
		Find(&media).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrichment candidates: %w", err)
	}
	return media, nil
}

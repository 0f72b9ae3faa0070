// Package store owns the canonical media records, their source references and the
// per-profile resume marks.
//
// Writes are serialized per canonical key, never globally: two upserts for the same
// key run one after the other while upserts for different keys proceed in parallel.
// Every committed write publishes a change trigger on the Notifier for the tables it
// touched.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amaumene/catalogarr/internal/identity"
	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/models"
)

var tracer = otel.Tracer("github.com/amaumene/catalogarr/internal/store")

var (
	// ErrNotFound is returned by write operations on a key that does not exist
	ErrNotFound = errors.New("canonical media not found")
	// ErrInvalidRecord is returned for records that cannot be ingested at all
	ErrInvalidRecord = errors.New("invalid record")
	// ErrDataIntegrity marks writes rejected to protect an existing record
	ErrDataIntegrity = errors.New("data integrity fault")
)

// IntegrityError is returned when a key already belongs to a record of another kind
type IntegrityError struct {
	Key          string
	StoredKind   models.MediaKind
	IncomingKind models.MediaKind
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("canonical key %q is a %s, incoming record is a %s", e.Key, e.StoredKind, e.IncomingKind)
}

func (e *IntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// DefaultCompletionThreshold is the percentage at which playback counts as finished
const DefaultCompletionThreshold = 95.0

// Config tunes store behaviour. Zero values select the defaults.
type Config struct {
	CompletionThreshold float64 // percent, (0, 100]
	Now                 func() time.Time
	Identify            func(models.RawMediaMetadata) identity.Identity
}

// Store is the canonical media store
type Store struct {
	db                  *gorm.DB
	locks               *keyLocks
	notifier            *Notifier
	metrics             *metrics.Metrics
	logger              zerolog.Logger
	now                 func() time.Time
	identify            func(models.RawMediaMetadata) identity.Identity
	completionThreshold float64
}

// New creates a store over an opened database
func New(database *models.Database, notifier *Notifier, m *metrics.Metrics, logger zerolog.Logger, cfg Config) *Store {
	s := &Store{
		db:                  database.DB,
		locks:               newKeyLocks(),
		notifier:            notifier,
		metrics:             m,
		logger:              logger.With().Str("component", "store").Logger(),
		now:                 func() time.Time { return time.Now().UTC() },
		identify:            identity.Identify,
		completionThreshold: DefaultCompletionThreshold,
	}
	if cfg.Now != nil {
		s.now = func() time.Time { return cfg.Now().UTC() }
	}
	if cfg.Identify != nil {
		s.identify = cfg.Identify
	}
	if cfg.CompletionThreshold > 0 && cfg.CompletionThreshold <= 100 {
		s.completionThreshold = cfg.CompletionThreshold
	}
	return s
}

// Notifier returns the change notifier fed by this store
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Now returns the store clock
func (s *Store) Now() time.Time {
	return s.now()
}

// UpsertResult describes what an upsert changed
type UpsertResult struct {
	ID          models.CanonicalMediaID
	Created     bool
	Merged      bool
	SourceAdded bool
}

// Upsert resolves the identity of raw, creates the canonical record if it is new and
// merges raw into it otherwise. The source reference is attached once per
// (source type, source id).
func (s *Store) Upsert(ctx context.Context, raw models.RawMediaMetadata, ref models.SourceRef) (models.CanonicalMediaID, error) {
	res, err := s.UpsertDetailed(ctx, raw, ref)
	return res.ID, err
}

// UpsertDetailed is Upsert returning what changed
func (s *Store) UpsertDetailed(ctx context.Context, raw models.RawMediaMetadata, ref models.SourceRef) (UpsertResult, error) {
	ctx, span := tracer.Start(ctx, "store.Upsert")
	defer span.End()

	if strings.TrimSpace(raw.Title) == "" {
		return UpsertResult{}, fmt.Errorf("%w: empty title", ErrInvalidRecord)
	}
	if !ref.SourceType.Valid() || strings.TrimSpace(ref.SourceID) == "" {
		return UpsertResult{}, fmt.Errorf("%w: source %q/%q", ErrInvalidRecord, ref.SourceType, ref.SourceID)
	}

	raw = cleanRaw(raw)
	ident := s.identify(raw)
	res := UpsertResult{ID: ident.ID}
	span.SetAttributes(
		attribute.String("canonical_key", ident.ID.Key),
		attribute.String("kind", string(ident.ID.Kind)),
		attribute.String("source_type", string(ref.SourceType)),
	)

	unlock := s.locks.lock(ident.ID.Key)
	defer unlock()

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CanonicalMedia
		err := tx.Where("canonical_key = ?", ident.ID.Key).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			media := newCanonical(ident, raw, now)
			if err := tx.Omit(clause.Associations).Create(&media).Error; err != nil {
				return fmt.Errorf("failed to create canonical media: %w", err)
			}
			res.Created = true
		case err != nil:
			return fmt.Errorf("failed to load canonical media: %w", err)
		default:
			if existing.Kind != ident.ID.Kind {
				return &IntegrityError{Key: ident.ID.Key, StoredKind: existing.Kind, IncomingKind: ident.ID.Kind}
			}
			if mergeRaw(&existing, ident, raw) {
				existing.UpdatedAt = now
				if err := tx.Omit(clause.Associations).Save(&existing).Error; err != nil {
					return fmt.Errorf("failed to update canonical media: %w", err)
				}
				res.Merged = true
			}
		}

		added, err := addSourceRef(tx, ident.ID.Key, ref, now)
		if err != nil {
			return err
		}
		res.SourceAdded = added
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			s.metrics.Upserts.WithLabelValues("rejected").Inc()
			s.recordFault(ctx, integrity, raw, ref, now)
		}
		return UpsertResult{ID: ident.ID}, err
	}

	switch {
	case res.Created:
		s.metrics.Upserts.WithLabelValues("created").Inc()
		s.logger.Info().
			Str("canonical_key", ident.ID.Key).
			Str("kind", string(ident.ID.Kind)).
			Str("source_type", string(ref.SourceType)).
			Msg("Added new canonical media")
	case res.Merged || res.SourceAdded:
		s.metrics.Upserts.WithLabelValues("merged").Inc()
		s.logger.Debug().
			Str("canonical_key", ident.ID.Key).
			Str("source_type", string(ref.SourceType)).
			Bool("fields_changed", res.Merged).
			Bool("source_added", res.SourceAdded).
			Msg("Merged raw record into canonical media")
	default:
		s.metrics.Upserts.WithLabelValues("unchanged").Inc()
	}

	var tables []string
	if res.Created || res.Merged {
		tables = append(tables, models.TableCanonicalMedia)
	}
	if res.SourceAdded {
		tables = append(tables, models.TableMediaSourceRefs)
	}
	s.notifier.Publish(tables...)

	return res, nil
}

// GetCanonical returns the record for key with its sources, or nil when absent
func (s *Store) GetCanonical(ctx context.Context, key string) (*models.CanonicalMedia, error) {
	var media models.CanonicalMedia
	err := s.db.WithContext(ctx).Preload("Sources").Where("canonical_key = ?", key).Take(&media).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get canonical media: %w", err)
	}
	return &media, nil
}

// SetEnrichmentDisabled administratively enables or disables enrichment for key
func (s *Store) SetEnrichmentDisabled(ctx context.Context, key string, disabled bool) error {
	return s.mutate(ctx, key, func(m *models.CanonicalMedia) error {
		m.EnrichmentDisabled = disabled
		m.UpdatedAt = s.now()
		return nil
	})
}

// mutate runs fn on the record for key under the key lock and saves it
func (s *Store) mutate(ctx context.Context, key string, fn func(m *models.CanonicalMedia) error) error {
	unlock := s.locks.lock(key)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var media models.CanonicalMedia
		err := tx.Where("canonical_key = ?", key).Take(&media).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return fmt.Errorf("failed to load canonical media: %w", err)
		}
		if err := fn(&media); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&media).Error; err != nil {
			return fmt.Errorf("failed to save canonical media: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Publish(models.TableCanonicalMedia)
	return nil
}

func (s *Store) recordFault(ctx context.Context, ie *IntegrityError, raw models.RawMediaMetadata, ref models.SourceRef, at time.Time) {
	s.metrics.IntegrityFaults.Inc()
	s.logger.Error().
		Str("canonical_key", ie.Key).
		Str("stored_kind", string(ie.StoredKind)).
		Str("incoming_kind", string(ie.IncomingKind)).
		Str("source_type", string(ref.SourceType)).
		Str("source_id", ref.SourceID).
		Str("title", raw.Title).
		Msg("Rejected record: canonical key already belongs to another kind")

	fault := models.IntegrityFault{
		ID:           uuid.NewString(),
		CanonicalKey: ie.Key,
		StoredKind:   ie.StoredKind,
		IncomingKind: ie.IncomingKind,
		SourceType:   ref.SourceType,
		SourceID:     ref.SourceID,
		RawTitle:     raw.Title,
		Reason:       ie.Error(),
		OccurredAt:   at,
	}
	if err := s.db.WithContext(ctx).Create(&fault).Error; err != nil {
		s.logger.Error().Err(err).Str("canonical_key", ie.Key).Msg("Failed to journal integrity fault")
		return
	}
	s.notifier.Publish(models.TableIntegrityFaults)
}

// ListIntegrityFaults returns the most recent journaled faults
func (s *Store) ListIntegrityFaults(ctx context.Context, limit int) ([]models.IntegrityFault, error) {
	if limit <= 0 {
		limit = 100
	}
	var faults []models.IntegrityFault
	err := s.db.WithContext(ctx).Order("occurred_at DESC").Limit(limit).Find(&faults).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrity faults: %w", err)
	}
	return faults, nil
}

func addSourceRef(tx *gorm.DB, key string, ref models.SourceRef, now time.Time) (bool, error) {
	row := models.MediaSourceRef{
		CanonicalKey: key,
		SourceType:   ref.SourceType,
		SourceID:     strings.TrimSpace(ref.SourceID),
		AddedAt:      now,
	}
	if label := strings.TrimSpace(ref.Label); label != "" {
		row.Label = &label
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to attach source ref: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

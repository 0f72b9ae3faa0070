package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/store"
	"github.com/amaumene/catalogarr/internal/utils"
)

const (
	pathDetails = "details"
	pathSearch  = "search"
)

// Orchestrator runs enrichment cycles against a Client
type Orchestrator struct {
	store      *store.Store
	client     Client
	exclusions *utils.ExclusionList
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	tracer     trace.Tracer
	cfg        Config
	running    atomic.Bool
}

// NewOrchestrator creates an orchestrator. A nil client or cfg.Enabled == false turns
// every cycle into a no-op.
func NewOrchestrator(st *store.Store, client Client, exclusions *utils.ExclusionList, m *metrics.Metrics, logger zerolog.Logger, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MaxCooldown < cfg.Cooldown {
		cfg.MaxCooldown = cfg.Cooldown
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		cfg.MatchThreshold = def.MatchThreshold
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = def.PendingTimeout
	}
	if client == nil {
		cfg.Enabled = false
	}

	return &Orchestrator{
		store:      st,
		client:     client,
		exclusions: exclusions,
		metrics:    m,
		logger:     logger.With().Str("component", "enrichment").Logger(),
		tracer:     otel.Tracer("github.com/amaumene/catalogarr/internal/enrichment"),
		cfg:        cfg,
	}
}

// Enabled reports whether enrichment can run at all
func (o *Orchestrator) Enabled() bool {
	return o.cfg.Enabled
}

// RunCycle enriches one batch of due entities with bounded concurrency.
// When enrichment is disabled it does nothing and reports Disabled. Only one cycle
// runs at a time; a call made while another cycle is running reports Busy.
func (o *Orchestrator) RunCycle(ctx context.Context) (Summary, error) {
	if !o.cfg.Enabled {
		o.logger.Debug().Msg("Enrichment disabled, skipping cycle")
		return Summary{Disabled: true}, nil
	}
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info().Msg("Enrichment cycle already running, skipping")
		return Summary{Busy: true}, nil
	}
	defer o.running.Store(false)

	ctx, span := o.tracer.Start(ctx, "enrichment.RunCycle")
	defer span.End()

	start := time.Now()
	now := o.store.Now()
	q := store.CandidateQuery{
		Now:           now,
		PendingBefore: now.Add(-o.cfg.PendingTimeout),
		Limit:         o.cfg.BatchSize,
	}
	if o.cfg.RefreshAfter > 0 {
		q.RefreshBefore = now.Add(-o.cfg.RefreshAfter)
	}

	candidates, err := o.store.ListEnrichmentCandidates(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	summary := Summary{Candidates: len(candidates)}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		o.logger.Debug().Msg("No entities due for enrichment")
		return summary, nil
	}
	o.logger.Info().Int("candidates", len(candidates)).Msg("Starting enrichment cycle")

	p := pool.NewWithResults[Outcome]().WithMaxGoroutines(o.cfg.Concurrency)
	for i := range candidates {
		media := candidates[i]
		p.Go(func() Outcome {
			if ctx.Err() != nil {
				return OutcomeSkipped
			}
			outcome, err := o.enrich(ctx, &media, q, false)
			if err != nil {
				o.logger.Error().Err(err).Str("canonical_key", media.CanonicalKey).Msg("Failed to record enrichment result")
			}
			return outcome
		})
	}
	for _, outcome := range p.Wait() {
		summary.add(outcome)
	}
	summary.Duration = time.Since(start)

	o.logger.Info().
		Int("applied", summary.Applied).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Enrichment cycle finished")
	return summary, ctx.Err()
}

// EnrichOne enriches a single entity now, ignoring its cooldown. An entity another
// attempt is working on is skipped. Results are recorded as resolved manually.
// Returns ErrEnrichmentDisabled when enrichment is not configured.
func (o *Orchestrator) EnrichOne(ctx context.Context, key string) (Outcome, error) {
	if !o.cfg.Enabled {
		return "", ErrEnrichmentDisabled
	}

	media, err := o.store.GetCanonical(ctx, key)
	if err != nil {
		return "", err
	}
	if media == nil {
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	due := store.CandidateQuery{
		IgnoreCooldown: true,
		PendingBefore:  o.store.Now().Add(-o.cfg.PendingTimeout),
	}
	return o.enrich(ctx, media, due, true)
}

// enrich claims media while it is still due and runs the matching path on the claimed
// record. Losing the claim to a concurrent attempt is a skip.
func (o *Orchestrator) enrich(ctx context.Context, media *models.CanonicalMedia, due store.CandidateQuery, manual bool) (Outcome, error) {
	logger := o.logger.With().Str("canonical_key", media.CanonicalKey).Logger()

	if media.EnrichmentDisabled {
		o.metrics.EnrichmentSkipped.WithLabelValues("disabled").Inc()
		logger.Debug().Msg("Enrichment disabled for entity, skipping")
		return OutcomeSkipped, nil
	}
	if excluded, term := o.exclusions.Match(media.CanonicalTitle); excluded {
		o.metrics.EnrichmentSkipped.WithLabelValues("excluded").Inc()
		logger.Debug().Str("term", term).Msg("Title matches exclusion list, skipping")
		return OutcomeSkipped, nil
	}

	path := pathSearch
	if media.HasExternalRef() {
		path = pathDetails
	}

	ctx, span := o.tracer.Start(ctx, "enrichment.attempt", trace.WithAttributes(
		attribute.String("canonical_key", media.CanonicalKey),
		attribute.String("kind", string(media.Kind)),
		attribute.String("path", path),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		o.metrics.EnrichmentDuration.WithLabelValues(path).Observe(time.Since(started).Seconds())
	}()

	claimed, err := o.store.ClaimEnrichment(ctx, media.CanonicalKey, due, o.store.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OutcomeFailed, err
	}
	if claimed == nil {
		o.metrics.EnrichmentSkipped.WithLabelValues("claimed").Inc()
		logger.Debug().Msg("Entity claimed by another attempt, skipping")
		span.SetAttributes(attribute.String("outcome", string(OutcomeSkipped)))
		return OutcomeSkipped, nil
	}
	media = claimed

	var outcome Outcome
	if path == pathDetails {
		outcome, err = o.refreshByID(ctx, media, resolvedBy(models.ResolvedByDetailsRefresh, manual))
	} else {
		outcome, err = o.searchAndMatch(ctx, media, resolvedBy(models.ResolvedBySearchMatch, manual))
	}

	if err != nil && ctx.Err() != nil {
		// Left pending; the pending timeout makes it selectable again
		span.SetStatus(codes.Error, "cancelled")
		return OutcomeSkipped, nil
	}
	if err != nil {
		span.RecordError(err)
		outcome, err = OutcomeFailed, o.recordFailure(ctx, media, err)
	}

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome == OutcomeFailed {
		span.SetStatus(codes.Error, "enrichment failed")
	}
	o.metrics.EnrichmentAttempts.WithLabelValues(path, string(outcome)).Inc()
	return outcome, err
}

func resolvedBy(automatic models.ResolvedBy, manual bool) models.ResolvedBy {
	if manual {
		return models.ResolvedByManual
	}
	return automatic
}

// refreshByID is the known-reference path
func (o *Orchestrator) refreshByID(ctx context.Context, media *models.CanonicalMedia, by models.ResolvedBy) (Outcome, error) {
	fields, err := o.client.Details(ctx, queryFor(media))
	if err != nil {
		return "", fmt.Errorf("details lookup: %w", err)
	}

	if !addsData(media, fields) {
		if err := o.store.MarkEnrichmentApplied(ctx, media.CanonicalKey, by, o.store.Now()); err != nil {
			return OutcomeFailed, err
		}
		o.logger.Debug().Str("canonical_key", media.CanonicalKey).Msg("Catalog confirmed stored metadata")
		return OutcomeUnchanged, nil
	}

	if err := o.store.ApplyEnrichment(ctx, media.CanonicalKey, fields, by, o.store.Now()); err != nil {
		return OutcomeFailed, err
	}
	o.logger.Info().Str("canonical_key", media.CanonicalKey).Msg("Refreshed metadata by catalog reference")
	return OutcomeApplied, nil
}

// searchAndMatch is the search-and-score path
func (o *Orchestrator) searchAndMatch(ctx context.Context, media *models.CanonicalMedia, by models.ResolvedBy) (Outcome, error) {
	result, err := SearchAndScore(ctx, o.client, queryFor(media), o.cfg.MatchThreshold)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if result.Accepted == nil {
		return "", fmt.Errorf("%w (best %.2f %q)", ErrNoConfidentMatch, result.Confidence, result.Title)
	}

	if err := o.store.ApplyEnrichment(ctx, media.CanonicalKey, *result.Accepted, by, o.store.Now()); err != nil {
		return OutcomeFailed, err
	}
	o.logger.Info().
		Str("canonical_key", media.CanonicalKey).
		Str("match", result.Title).
		Float64("confidence", result.Confidence).
		Msg("Matched entity by search")
	return OutcomeApplied, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, media *models.CanonicalMedia, cause error) error {
	// A store failure after the catalog answered is not a catalog failure
	var integrity *store.IntegrityError
	if errors.As(cause, &integrity) || errors.Is(cause, store.ErrNotFound) {
		return cause
	}

	failures := media.ConsecutiveFails + 1
	at := o.store.Now()
	next := at.Add(o.cooldownFor(failures))

	o.logger.Warn().
		Err(cause).
		Str("canonical_key", media.CanonicalKey).
		Int("consecutive_fails", failures).
		Time("next_eligible_at", next).
		Msg("Enrichment attempt failed")
	return o.store.MarkEnrichmentFailed(ctx, media.CanonicalKey, cause.Error(), at, next)
}

// cooldownFor returns the wait after the n-th consecutive failure: Cooldown doubled per
// earlier failure, capped at MaxCooldown.
func (o *Orchestrator) cooldownFor(failures int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.Cooldown
	b.MaxInterval = o.cfg.MaxCooldown
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	if failures > 64 {
		failures = 64
	}
	wait := b.NextBackOff()
	for i := 1; i < failures; i++ {
		wait = b.NextBackOff()
	}
	if wait < o.cfg.Cooldown {
		wait = o.cfg.Cooldown
	}
	return wait
}

// addsData reports whether fields would set or change any stored image, external id or year
func addsData(m *models.CanonicalMedia, fields models.EnrichedMetadata) bool {
	return differs(m.ExternalIDs.TmdbRef, fields.ExternalIDs.TmdbRef) ||
		differs(m.ExternalIDs.ImdbID, fields.ExternalIDs.ImdbID) ||
		differs(m.ExternalIDs.TvdbID, fields.ExternalIDs.TvdbID) ||
		differs(m.Images.Poster, fields.Images.Poster) ||
		differs(m.Images.Backdrop, fields.Images.Backdrop) ||
		differs(m.Images.Thumbnail, fields.Images.Thumbnail) ||
		differs(m.Year, fields.Year)
}

func differs[T comparable](stored, incoming *T) bool {
	if incoming == nil {
		return false
	}
	return stored == nil || *stored != *incoming
}

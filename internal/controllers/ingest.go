package controllers

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/store"
)

// IngestOutcome is what happened to one ingested record
type IngestOutcome string

const (
	IngestCreated   IngestOutcome = "created"
	IngestMerged    IngestOutcome = "merged"
	IngestUnchanged IngestOutcome = "unchanged"
	IngestRejected  IngestOutcome = "rejected" // integrity fault, existing record kept
	IngestInvalid   IngestOutcome = "invalid"
	IngestFailed    IngestOutcome = "failed" // storage error
)

// IngestItemResult reports one record of a batch, in input order
type IngestItemResult struct {
	Index        int              `json:"index"`
	CanonicalKey string           `json:"canonical_key,omitempty"`
	Kind         models.MediaKind `json:"kind,omitempty"`
	Outcome      IngestOutcome    `json:"outcome"`
	Error        string           `json:"error,omitempty"`
}

// IngestReport summarizes a batch
type IngestReport struct {
	Items  []IngestItemResult    `json:"items"`
	Counts map[IngestOutcome]int `json:"counts"`
}

// IngestController feeds raw records from the ingestion sources into the store
type IngestController struct {
	store   *store.Store
	workers int
	logger  zerolog.Logger
}

// NewIngestController creates a new ingest controller
func NewIngestController(st *store.Store, workers int, logger zerolog.Logger) *IngestController {
	if workers < 1 {
		workers = 1
	}
	return &IngestController{
		store:   st,
		workers: workers,
		logger:  logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest upserts every record with bounded concurrency. A failing record never aborts
// the batch; its outcome is reported instead.
func (c *IngestController) Ingest(ctx context.Context, records []models.IngestRecord) IngestReport {
	report := IngestReport{
		Items:  make([]IngestItemResult, len(records)),
		Counts: make(map[IngestOutcome]int),
	}
	if len(records) == 0 {
		return report
	}

	c.logger.Debug().Int("records", len(records)).Msg("Ingesting batch")

	p := pool.New().WithMaxGoroutines(c.workers)
	for i := range records {
		i := i
		p.Go(func() {
			report.Items[i] = c.ingestOne(ctx, i, records[i])
		})
	}
	p.Wait()

	for _, item := range report.Items {
		report.Counts[item.Outcome]++
	}

	c.logger.Info().
		Int("records", len(records)).
		Int("created", report.Counts[IngestCreated]).
		Int("merged", report.Counts[IngestMerged]).
		Int("unchanged", report.Counts[IngestUnchanged]).
		Int("rejected", report.Counts[IngestRejected]).
		Int("invalid", report.Counts[IngestInvalid]).
		Int("failed", report.Counts[IngestFailed]).
		Msg("Ingest batch completed")
	return report
}

func (c *IngestController) ingestOne(ctx context.Context, index int, record models.IngestRecord) IngestItemResult {
	item := IngestItemResult{Index: index}
	if err := ctx.Err(); err != nil {
		item.Outcome = IngestFailed
		item.Error = err.Error()
		return item
	}

	res, err := c.store.UpsertDetailed(ctx, record.Raw, record.Source)
	item.CanonicalKey = res.ID.Key
	item.Kind = res.ID.Kind

	var integrity *store.IntegrityError
	switch {
	case errors.As(err, &integrity):
		item.Outcome = IngestRejected
		item.Error = err.Error()
		c.logger.Error().
			Err(err).
			Str("canonical_key", integrity.Key).
			Str("source_type", string(record.Source.SourceType)).
			Str("source_id", record.Source.SourceID).
			Msg("Rejected record conflicting with stored media kind")
	case errors.Is(err, store.ErrInvalidRecord):
		item.Outcome = IngestInvalid
		item.Error = err.Error()
		c.logger.Debug().Err(err).Int("index", index).Msg("Skipping invalid record")
	case err != nil:
		item.Outcome = IngestFailed
		item.Error = err.Error()
		c.logger.Error().Err(err).Int("index", index).Msg("Failed to store record")
	case res.Created:
		item.Outcome = IngestCreated
	case res.Merged || res.SourceAdded:
		item.Outcome = IngestMerged
	default:
		item.Outcome = IngestUnchanged
	}
	return item
}

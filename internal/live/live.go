// Package live turns store queries into subscriptions.
//
// A subscription delivers the query result once immediately and then again after every
// change trigger on the tables the query reads. Triggers carry no data: each one causes
// a fresh read, and only that read's result is delivered. Triggers that arrive while a
// read is in flight coalesce into a single follow-up read, so the last delivered value
// always reflects the last committed write.
//
// Every subscription releases its change listener exactly once when it ends, whether the
// consumer cancelled, a read failed, or the context expired mid-read.
package live

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/store"
)

// Update is one delivery of a subscription. A non-nil Err is the last delivery.
type Update[V any] struct {
	Value V
	Err   error
}

// Observer creates subscriptions fed by a store notifier
type Observer struct {
	notifier *store.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewObserver creates an observer over notifier
func NewObserver(notifier *store.Notifier, m *metrics.Metrics, logger zerolog.Logger) *Observer {
	return &Observer{
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "live").Logger(),
	}
}

// List subscribes to a list query. A nil result is delivered as an empty list.
func List[T any](ctx context.Context, o *Observer, name string, tables []string, read func(context.Context) ([]T, error)) <-chan Update[[]T] {
	return observe(ctx, o, name, tables, func(ctx context.Context) ([]T, error) {
		items, err := read(ctx)
		if items == nil && err == nil {
			items = []T{}
		}
		return items, err
	})
}

// Optional subscribes to a single-row query. Absence is delivered as nil.
func Optional[T any](ctx context.Context, o *Observer, name string, tables []string, read func(context.Context) (*T, error)) <-chan Update[*T] {
	return observe(ctx, o, name, tables, read)
}

func observe[V any](ctx context.Context, o *Observer, name string, tables []string, read func(context.Context) (V, error)) <-chan Update[V] {
	out := make(chan Update[V])

	// Subscribing before the first read means no write can slip between the two
	listener := o.notifier.Subscribe(tables...)
	o.metrics.LiveSubscriptions.Inc()
	logger := o.logger.With().Str("query", name).Logger()
	logger.Debug().Strs("tables", tables).Msg("Subscription started")

	go func() {
		defer close(out)
		defer o.metrics.LiveSubscriptions.Dec()
		defer listener.Close()

		for reread := false; ; reread = true {
			if reread {
				o.metrics.LiveRereads.Inc()
			}
			value, err := read(ctx)
			if ctx.Err() != nil {
				logger.Debug().Msg("Subscription cancelled")
				return
			}

			select {
			case out <- Update[V]{Value: value, Err: err}:
			case <-ctx.Done():
				logger.Debug().Msg("Subscription cancelled")
				return
			}
			if err != nil {
				logger.Warn().Err(err).Msg("Subscription ended by read failure")
				return
			}

			select {
			case <-listener.Changes():
			case <-ctx.Done():
				logger.Debug().Msg("Subscription cancelled")
				return
			}
		}
	}()

	return out
}

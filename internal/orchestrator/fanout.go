package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/hotel-offers/internal/offer"
	"github.com/neexbeast/hotel-offers/internal/supplier"
)

// fanOutRecord is the journaled outcome of a fan-out. A run id only resumes
// for the city it was recorded with.
type fanOutRecord struct {
	City    string               `json:"city"`
	Results []offer.SourceResult `json:"results"`
}

// fanOut queries every gateway concurrently and waits for all of them.
// Results are indexed by gateway position, so merge priority never depends on
// completion order. A failing source never cancels its siblings. It fails only
// when the run context ends, discarding every result, or when runID was
// recorded for another city.
func (o *Orchestrator) fanOut(ctx context.Context, log *slog.Logger, runID, city string) ([]offer.SourceResult, error) {
	var recorded fanOutRecord
	found, err := o.journal.Load(ctx, runID, StepFanOut, &recorded)
	switch {
	case err != nil:
		log.Warn("loading recorded fan-out failed, fetching live", "err", err)
	case found && recorded.City != city:
		return nil, fmt.Errorf("%w: run %s belongs to city %q", ErrInvalidRequest, runID, recorded.City)
	case found:
		log.Info("resuming run from recorded fan-out", "sources", len(recorded.Results))
		return recorded.Results, nil
	}

	ctx, span := o.tracer.Start(ctx, "fanout", trace.WithAttributes(attribute.Int("sources", len(o.gateways))))
	defer span.End()

	results := make([]offer.SourceResult, len(o.gateways))

	var g errgroup.Group
	for i, gw := range o.gateways {
		g.Go(func() error {
			results[i] = o.fetchOne(ctx, log, gw, city)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		log.Warn("run ended during fan-out, discarding results", "err", err)
		return nil, err
	}

	if err := o.journal.Record(ctx, runID, StepFanOut, fanOutRecord{City: city, Results: results}); err != nil {
		log.Warn("recording fan-out step failed", "err", err)
	}
	return results, nil
}

// fetchOne calls a single gateway under its own deadline. A gateway that
// overruns the deadline or panics yields an unhealthy result.
func (o *Orchestrator) fetchOne(ctx context.Context, log *slog.Logger, gw supplier.Gateway, city string) offer.SourceResult {
	name := gw.Name()

	ctx, span := o.tracer.Start(ctx, "source.fetch", trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan offer.SourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("source fetch panicked", "source", name, "recover", r)
				done <- offer.Unhealthy(name, fmt.Errorf("%s fetch panicked: %v", name, r))
			}
		}()
		done <- gw.Fetch(callCtx, city)
	}()

	var res offer.SourceResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = offer.Unhealthy(name, fmt.Errorf("%s fetch for %s: %w", name, city, callCtx.Err()))
	}
	o.metrics.ObserveSourceLatency(name, time.Since(start))

	res.SourceName = name
	if res.Offers == nil {
		res.Offers = []offer.RawOffer{}
	}
	if res.Status != offer.StatusHealthy {
		res.Status = offer.StatusUnhealthy
		res.Offers = []offer.RawOffer{}
		o.metrics.IncSourceFailure(name)
		log.Warn("source unhealthy", "source", name, "err", res.ErrorDetail)
	}

	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.Int("offers", len(res.Offers)),
	)
	return res
}

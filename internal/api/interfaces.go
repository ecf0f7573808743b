package api

import (
	"context"

	"github.com/neexbeast/hotel-offers/internal/cache"
	"github.com/neexbeast/hotel-offers/internal/offer"
	"github.com/neexbeast/hotel-offers/internal/orchestrator"
)

// OfferService defines the orchestration operations needed by handlers.
type OfferService interface {
	Orchestrate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	ClearCache(ctx context.Context, city string) error
	SourceHealth() map[string]offer.Status
}

// RunInspector lists the recorded steps of a run.
type RunInspector interface {
	Steps(ctx context.Context, runID string) ([]orchestrator.Step, error)
}

// CacheStats reports what the offer cache holds.
type CacheStats interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

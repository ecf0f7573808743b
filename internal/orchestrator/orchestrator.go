package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neexbeast/hotel-offers/internal/cache"
	"github.com/neexbeast/hotel-offers/internal/events"
	"github.com/neexbeast/hotel-offers/internal/offer"
	"github.com/neexbeast/hotel-offers/internal/supplier"
)

const (
	DefaultRunTimeout = time.Minute

	tracerName = "github.com/neexbeast/hotel-offers/internal/orchestrator"
)

var (
	// ErrInvalidRequest is returned before any work when a request is malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMergeInvariant is returned when a merge yields the same hotel twice.
	ErrMergeInvariant = errors.New("merge invariant violated")
)

// CacheStore is the offer cache the orchestrator reads and populates.
type CacheStore interface {
	Get(ctx context.Context, city string) (*cache.Entry, error)
	Put(ctx context.Context, city string, offers []offer.MergedOffer, ttl time.Duration) error
	FilterCached(ctx context.Context, city string, r offer.PriceRange) ([]offer.MergedOffer, error)
	Clear(ctx context.Context, city string) error
}

// Publisher announces refreshed offer lists.
type Publisher interface {
	Publish(ctx context.Context, ev events.OffersRefreshed) error
}

// Metrics receives run, cache and source observations.
type Metrics interface {
	IncRun(outcome string)
	IncCacheHit()
	IncCacheMiss()
	IncCacheError(op string)
	IncSourceFailure(source string)
	ObserveSourceLatency(source string, d time.Duration)
}

// Request asks for the offers of one city, optionally bounded by price.
type Request struct {
	City     string
	MinPrice *float64
	MaxPrice *float64
	UseCache bool
	// RunID resumes a previous run when set; a new one is generated otherwise.
	RunID string
}

// Result is what a run produced.
type Result struct {
	RunID        string                  `json:"runId"`
	Offers       []offer.MergedOffer     `json:"hotels"`
	FromCache    bool                    `json:"fromCache"`
	SourceStatus map[string]offer.Status `json:"supplierStatus"`
}

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	CacheTTL      time.Duration
	SourceTimeout time.Duration
	RunTimeout    time.Duration
	Logger        *slog.Logger
	Journal       Journal
	Publisher     Publisher
	Metrics       Metrics
	Tracer        trace.Tracer
}

// Orchestrator runs the cache check, fan-out, merge, cache put and filter steps
// for a single city request.
type Orchestrator struct {
	gateways      []supplier.Gateway
	cache         CacheStore
	cacheTTL      time.Duration
	sourceTimeout time.Duration
	runTimeout    time.Duration
	logger        *slog.Logger
	journal       Journal
	publisher     Publisher
	metrics       Metrics
	tracer        trace.Tracer

	mu     sync.RWMutex
	health map[string]offer.Status
}

// New constructs an Orchestrator. Gateways are merged in the order given.
func New(gateways []supplier.Gateway, store CacheStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		gateways:      gateways,
		cache:         store,
		cacheTTL:      opts.CacheTTL,
		sourceTimeout: opts.SourceTimeout,
		runTimeout:    opts.RunTimeout,
		logger:        opts.Logger,
		journal:       opts.Journal,
		publisher:     opts.Publisher,
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
		health:        make(map[string]offer.Status, len(gateways)),
	}
	if o.cacheTTL <= 0 {
		o.cacheTTL = cache.DefaultTTL
	}
	if o.sourceTimeout <= 0 {
		o.sourceTimeout = supplier.DefaultTimeout
	}
	if o.runTimeout <= 0 {
		o.runTimeout = DefaultRunTimeout
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.journal == nil {
		o.journal = NewMemoryJournal()
	}
	if o.publisher == nil {
		o.publisher = events.NoopPublisher{}
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	for _, gw := range gateways {
		o.health[gw.Name()] = offer.StatusHealthy
	}
	return o
}

// Orchestrate serves one request, from the cache when possible and from the
// sources otherwise.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		o.metrics.IncRun("invalid")
		return nil, err
	}

	city := strings.ToLower(strings.TrimSpace(req.City))
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	bounds := offer.PriceRange{Min: req.MinPrice, Max: req.MaxPrice}
	log := o.logger.With("run_id", runID, "city", city)

	ctx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "orchestrate", trace.WithAttributes(
		attribute.String("city", city),
		attribute.String("run_id", runID),
		attribute.Bool("use_cache", req.UseCache),
	))
	defer span.End()

	if req.UseCache {
		if offers, ok := o.checkCache(ctx, log, city, bounds); ok {
			span.SetAttributes(attribute.Bool("from_cache", true))
			o.metrics.IncRun("cache_hit")
			log.Debug("served from cache", "offers", len(offers))
			return &Result{
				RunID:        runID,
				Offers:       offers,
				FromCache:    true,
				SourceStatus: o.allHealthy(),
			}, nil
		}
	}

	results, err := o.fanOut(ctx, log, runID, city)
	if err != nil {
		outcome := "cancelled"
		if errors.Is(err, ErrInvalidRequest) {
			outcome = "invalid"
		}
		return nil, o.fail(span, outcome, fmt.Errorf("run %s for %s: %w", runID, city, err))
	}

	merged, err := o.merge(ctx, results)
	if err != nil {
		log.Error("merge failed", "err", err)
		return nil, o.fail(span, "error", fmt.Errorf("run %s for %s: %w", runID, city, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, o.fail(span, "cancelled", fmt.Errorf("run %s for %s: %w", runID, city, err))
	}

	o.cachePut(ctx, log, runID, city, merged)

	status := make(map[string]offer.Status, len(results))
	for _, res := range results {
		status[res.SourceName] = res.Status
	}
	o.recordHealth(status)
	o.publish(ctx, log, events.OffersRefreshed{
		RunID:        runID,
		City:         city,
		OfferCount:   len(merged),
		SourceStatus: status,
		OccurredAt:   time.Now().UTC(),
	})

	o.metrics.IncRun("live")
	span.SetAttributes(attribute.Bool("from_cache", false), attribute.Int("offers", len(merged)))
	log.Info("offers refreshed", "offers", len(merged), "sources", status)

	return &Result{
		RunID:        runID,
		Offers:       offer.Filter(merged, bounds),
		FromCache:    false,
		SourceStatus: status,
	}, nil
}

// ClearCache drops the cached offers for city, or for every city when city is empty.
func (o *Orchestrator) ClearCache(ctx context.Context, city string) error {
	if err := o.cache.Clear(ctx, city); err != nil {
		o.metrics.IncCacheError("clear")
		return fmt.Errorf("clearing cached offers: %w", err)
	}
	o.logger.Info("cache cleared", "city", city)
	return nil
}

// SourceHealth returns the status each source reported in the latest live run.
func (o *Orchestrator) SourceHealth() map[string]offer.Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]offer.Status, len(o.health))
	for name, st := range o.health {
		out[name] = st
	}
	return out
}

// Sources returns the configured source names in priority order.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.gateways))
	for _, gw := range o.gateways {
		names = append(names, gw.Name())
	}
	return names
}

func (r Request) validate() error {
	if strings.TrimSpace(r.City) == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidRequest)
	}
	if r.MinPrice != nil && *r.MinPrice < 0 {
		return fmt.Errorf("%w: minPrice must not be negative", ErrInvalidRequest)
	}
	if r.MaxPrice != nil && *r.MaxPrice < 0 {
		return fmt.Errorf("%w: maxPrice must not be negative", ErrInvalidRequest)
	}
	if r.MinPrice != nil && r.MaxPrice != nil && *r.MinPrice > *r.MaxPrice {
		return fmt.Errorf("%w: minPrice %v exceeds maxPrice %v", ErrInvalidRequest, *r.MinPrice, *r.MaxPrice)
	}
	return nil
}

// checkCache returns the cached offers for city narrowed to bounds.
// Read failures and empty entries count as misses.
func (o *Orchestrator) checkCache(ctx context.Context, log *slog.Logger, city string, bounds offer.PriceRange) ([]offer.MergedOffer, bool) {
	ctx, span := o.tracer.Start(ctx, "cache.check")
	defer span.End()

	entry, err := o.cache.Get(ctx, city)
	if err != nil {
		log.Warn("cache read failed, fetching live", "err", err)
		span.RecordError(err)
		o.metrics.IncCacheError("get")
		o.metrics.IncCacheMiss()
		return nil, false
	}
	if entry == nil || len(entry.Offers) == 0 {
		span.SetAttributes(attribute.Bool("hit", false))
		o.metrics.IncCacheMiss()
		return nil, false
	}

	span.SetAttributes(attribute.Bool("hit", true))
	o.metrics.IncCacheHit()

	if !bounds.Bounded() {
		return entry.Offers, true
	}

	filtered, err := o.cache.FilterCached(ctx, city, bounds)
	if err != nil {
		log.Warn("filtering cached offers failed, filtering locally", "err", err)
		o.metrics.IncCacheError("filter")
		filtered = offer.Filter(entry.Offers, bounds)
	}
	return filtered, true
}

func (o *Orchestrator) merge(ctx context.Context, results []offer.SourceResult) ([]offer.MergedOffer, error) {
	_, span := o.tracer.Start(ctx, "merge")
	defer span.End()

	merged := offer.Merge(results)
	if err := offer.CheckUnique(merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "duplicate hotel")
		return nil, fmt.Errorf("%w: %v", ErrMergeInvariant, err)
	}
	span.SetAttributes(attribute.Int("offers", len(merged)))
	return merged, nil
}

func (o *Orchestrator) cachePut(ctx context.Context, log *slog.Logger, runID, city string, merged []offer.MergedOffer) {
	ctx, span := o.tracer.Start(ctx, "cache.put")
	defer span.End()

	if err := o.cache.Put(ctx, city, merged, o.cacheTTL); err != nil {
		log.Warn("cache write failed", "err", err)
		span.RecordError(err)
		o.metrics.IncCacheError("put")
		return
	}
	if err := o.journal.Record(ctx, runID, StepCachePut, merged); err != nil {
		log.Warn("recording cache put step failed", "err", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, ev events.OffersRefreshed) {
	if err := o.publisher.Publish(ctx, ev); err != nil {
		log.Warn("publishing offers refreshed event failed", "err", err)
	}
}

func (o *Orchestrator) allHealthy() map[string]offer.Status {
	status := make(map[string]offer.Status, len(o.gateways))
	for _, gw := range o.gateways {
		status[gw.Name()] = offer.StatusHealthy
	}
	return status
}

func (o *Orchestrator) recordHealth(status map[string]offer.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for name, st := range status {
		o.health[name] = st
	}
}

func (o *Orchestrator) fail(span trace.Span, outcome string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	o.metrics.IncRun(outcome)
	return err
}

type nopMetrics struct{}

func (nopMetrics) IncRun(string)                              {}
func (nopMetrics) IncCacheHit()                               {}
func (nopMetrics) IncCacheMiss()                              {}
func (nopMetrics) IncCacheError(string)                       {}
func (nopMetrics) IncSourceFailure(string)                    {}
func (nopMetrics) ObserveSourceLatency(string, time.Duration) {}

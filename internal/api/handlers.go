package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/hotel-offers/internal/cache"
	"github.com/neexbeast/hotel-offers/internal/offer"
	"github.com/neexbeast/hotel-offers/internal/orchestrator"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	offers OfferService
	runs   RunInspector
	log    *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(offers OfferService, runs RunInspector, log *slog.Logger) *Handlers {
	return &Handlers{
		offers: offers,
		runs:   runs,
		log:    log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type hotelsMetadata struct {
	FromCache      bool                    `json:"fromCache"`
	SupplierStatus map[string]offer.Status `json:"supplierStatus"`
	TotalCount     int                     `json:"totalCount"`
	RunID          string                  `json:"runId"`
}

type hotelsResponse struct {
	Hotels   []offer.MergedOffer `json:"hotels"`
	Metadata hotelsMetadata      `json:"metadata"`
}

// GetHotels handles GET /api/v1/hotels?city=&minPrice=&maxPrice=&useCache=&runId=.
func (h *Handlers) GetHotels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	city := q.Get("city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city parameter is required")
		return
	}

	minPrice, err := parsePrice(q.Get("minPrice"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minPrice parameter")
		return
	}
	maxPrice, err := parsePrice(q.Get("maxPrice"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxPrice parameter")
		return
	}

	res, err := h.offers.Orchestrate(r.Context(), orchestrator.Request{
		City:     city,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		UseCache: q.Get("useCache") != "false",
		RunID:    q.Get("runId"),
	})
	if err != nil {
		h.writeRunError(w, city, err)
		return
	}

	writeJSON(w, http.StatusOK, hotelsResponse{
		Hotels: res.Offers,
		Metadata: hotelsMetadata{
			FromCache:      res.FromCache,
			SupplierStatus: res.SourceStatus,
			TotalCount:     len(res.Offers),
			RunID:          res.RunID,
		},
	})
}

func (h *Handlers) writeRunError(w http.ResponseWriter, city string, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("offer run timed out", "city", city, "err", err)
		writeError(w, http.StatusGatewayTimeout, "offer lookup timed out")
	case errors.Is(err, context.Canceled):
		h.log.Info("offer run cancelled", "city", city, "err", err)
		writeError(w, http.StatusServiceUnavailable, "offer lookup cancelled")
	default:
		h.log.Error("offer run failed", "city", city, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePrice returns nil for an absent value and rejects non-numeric input.
// Negative values are left for the orchestrator to reject.
func parsePrice(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, strconv.ErrSyntax
	}
	return &f, nil
}

// ClearCache handles DELETE /api/v1/cache?city=. An absent city clears every city.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")

	if err := h.offers.ClearCache(r.Context(), city); err != nil {
		h.log.Error("cache clear failed", "city", city, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "cache cleared successfully"})
}

// GetRun handles GET /api/v1/runs/{runID}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	steps, err := h.runs.Steps(r.Context(), runID)
	if err != nil {
		h.log.Error("listing run steps failed", "run_id", runID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(steps) == 0 {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runId": runID, "steps": steps})
}

type serviceStatus struct {
	Status string       `json:"status"`
	Stats  *cache.Stats `json:"stats,omitempty"`
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]serviceStatus `json:"services"`
	Suppliers map[string]offer.Status  `json:"suppliers"`
}

type sourceHealther interface {
	SourceHealth() map[string]offer.Status
}

// HealthHandlerFunc returns an http.HandlerFunc reporting source, Redis and
// database health. db may be nil when no database is configured.
// Any unhealthy dependency yields 503 with status "degraded".
func HealthHandlerFunc(sources sourceHealther, redis Pinger, stats CacheStats, db Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		healthy := true
		services := make(map[string]serviceStatus, 2)

		redisStatus := serviceStatus{Status: "healthy"}
		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus.Status = "unhealthy"
			healthy = false
		} else if st, err := stats.Stats(ctx); err != nil {
			log.Warn("health check: cache stats failed", "err", err)
		} else {
			redisStatus.Stats = &st
		}
		services["redis"] = redisStatus

		if db != nil {
			dbStatus := serviceStatus{Status: "healthy"}
			if err := db.Ping(ctx); err != nil {
				log.Error("health check: db ping failed", "err", err)
				dbStatus.Status = "unhealthy"
				healthy = false
			}
			services["db"] = dbStatus
		}

		suppliers := sources.SourceHealth()
		for _, st := range suppliers {
			if st != offer.StatusHealthy {
				healthy = false
			}
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		writeJSON(w, code, healthResponse{
			Status:    status,
			Timestamp: time.Now().UTC(),
			Services:  services,
			Suppliers: suppliers,
		})
	}
}

package supplier

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/hotel-offers/internal/offer"
)

// Catalog holds the offers each mock supplier knows about, keyed by source name.
type Catalog struct {
	offers map[string][]offer.RawOffer
}

// NewCatalog builds a catalog from per-source offer lists.
func NewCatalog(offers map[string][]offer.RawOffer) *Catalog {
	return &Catalog{offers: offers}
}

// DefaultCatalog returns the demo inventory for delhi, mumbai and bangalore.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string][]offer.RawOffer{
		SupplierA: {
			{SourceOfferID: "a1", HotelName: "Holtin", Price: 6000, City: "delhi", CommissionPct: 10},
			{SourceOfferID: "a2", HotelName: "Radison", Price: 5900, City: "delhi", CommissionPct: 13},
			{SourceOfferID: "a3", HotelName: "Taj Palace", Price: 12000, City: "delhi", CommissionPct: 15},
			{SourceOfferID: "a4", HotelName: "Oberoi", Price: 15000, City: "delhi", CommissionPct: 12},
			{SourceOfferID: "a5", HotelName: "Le Meridien", Price: 8000, City: "delhi", CommissionPct: 18},
			{SourceOfferID: "a6", HotelName: "Taj Mahal Palace", Price: 18500, City: "mumbai", CommissionPct: 12},
			{SourceOfferID: "a7", HotelName: "Oberoi Mumbai", Price: 15800, City: "mumbai", CommissionPct: 15},
			{SourceOfferID: "a8", HotelName: "ITC Gardenia", Price: 8800, City: "bangalore", CommissionPct: 14},
			{SourceOfferID: "a9", HotelName: "Leela Palace", Price: 12200, City: "bangalore", CommissionPct: 18},
		},
		SupplierB: {
			{SourceOfferID: "b1", HotelName: "Holtin", Price: 5340, City: "delhi", CommissionPct: 20},
			{SourceOfferID: "b2", HotelName: "Radison", Price: 6100, City: "delhi", CommissionPct: 8},
			{SourceOfferID: "b3", HotelName: "Taj Palace", Price: 11500, City: "delhi", CommissionPct: 14},
			{SourceOfferID: "b4", HotelName: "Marriott", Price: 9000, City: "delhi", CommissionPct: 16},
			{SourceOfferID: "b5", HotelName: "Hilton", Price: 7500, City: "delhi", CommissionPct: 22},
			{SourceOfferID: "b6", HotelName: "Taj Mahal Palace", Price: 17900, City: "mumbai", CommissionPct: 13},
			{SourceOfferID: "b7", HotelName: "Trident Nariman Point", Price: 14000, City: "mumbai", CommissionPct: 11},
			{SourceOfferID: "b8", HotelName: "ITC Gardenia", Price: 8300, City: "bangalore", CommissionPct: 15},
			{SourceOfferID: "b9", HotelName: "Sheraton Grand", Price: 9500, City: "bangalore", CommissionPct: 17},
		},
	})
}

// Sources returns the source names the catalog has inventory for.
func (c *Catalog) Sources() []string {
	names := make([]string, 0, len(c.offers))
	for name := range c.offers {
		names = append(names, name)
	}
	return names
}

// Has reports whether source is part of the catalog.
func (c *Catalog) Has(source string) bool {
	_, ok := c.offers[source]
	return ok
}

// Lookup returns a copy of the offers source holds for city.
// Unknown sources and cities yield an empty slice.
func (c *Catalog) Lookup(source, city string) []offer.RawOffer {
	city = NormalizeCity(city)
	out := make([]offer.RawOffer, 0)
	for _, o := range c.offers[source] {
		if NormalizeCity(o.City) == city {
			out = append(out, o)
		}
	}
	return out
}

// Handler serves GET /{source}/hotels?city=<city> from the catalog, sleeping up to
// maxLatency before answering to imitate a remote supplier.
func (c *Catalog) Handler(maxLatency time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Get("/{source}/hotels", func(w http.ResponseWriter, req *http.Request) {
		source := chi.URLParam(req, "source")
		if !c.Has(source) {
			http.Error(w, `{"error":"unknown supplier"}`, http.StatusNotFound)
			return
		}
		city := req.URL.Query().Get("city")
		if city == "" {
			http.Error(w, `{"error":"city parameter is required"}`, http.StatusBadRequest)
			return
		}

		if maxLatency > 0 {
			delay := rand.N(maxLatency)
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c.Lookup(source, city)); err != nil {
			slog.Error("encoding supplier response", "source", source, "err", err)
		}
	})
	return r
}

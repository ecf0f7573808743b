package offer

// Status is the health a source reported for one fetch.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// RawOffer is a single offer as returned by one upstream source.
type RawOffer struct {
	SourceOfferID string  `json:"hotelId"`
	HotelName     string  `json:"name" validate:"required"`
	Price         float64 `json:"price" validate:"gte=0"`
	City          string  `json:"city"`
	CommissionPct float64 `json:"commissionPct" validate:"gte=0"`
}

// SourceResult is the outcome of querying one source during a run.
type SourceResult struct {
	SourceName  string     `json:"source"`
	Offers      []RawOffer `json:"offers"`
	Status      Status     `json:"status"`
	ErrorDetail string     `json:"error,omitempty"`
}

// Healthy builds a successful result. A nil offers slice is normalized to empty.
func Healthy(source string, offers []RawOffer) SourceResult {
	if offers == nil {
		offers = []RawOffer{}
	}
	return SourceResult{SourceName: source, Offers: offers, Status: StatusHealthy}
}

// Unhealthy builds a failed result carrying no offers.
func Unhealthy(source string, err error) SourceResult {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return SourceResult{
		SourceName:  source,
		Offers:      []RawOffer{},
		Status:      StatusUnhealthy,
		ErrorDetail: detail,
	}
}

// MergedOffer is the cheapest known offer for a hotel across all sources.
type MergedOffer struct {
	HotelName     string  `json:"name"`
	Price         float64 `json:"price"`
	Source        string  `json:"supplier"`
	CommissionPct float64 `json:"commissionPct"`
}

// PriceRange holds optional inclusive price bounds.
type PriceRange struct {
	Min *float64
	Max *float64
}

// Bounded reports whether at least one bound is set.
func (r PriceRange) Bounded() bool {
	return r.Min != nil || r.Max != nil
}

// Contains reports whether price lies inside the range.
func (r PriceRange) Contains(price float64) bool {
	if r.Min != nil && price < *r.Min {
		return false
	}
	if r.Max != nil && price > *r.Max {
		return false
	}
	return true
}

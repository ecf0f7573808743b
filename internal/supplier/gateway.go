package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/hotel-offers/internal/offer"
)

// Source names in merge priority order.
const (
	SupplierA = "supplierA"
	SupplierB = "supplierB"
)

// DefaultTimeout bounds a single Fetch call when no timeout is configured.
const DefaultTimeout = 3 * time.Second

// Gateway fetches raw offers for a city from one upstream source.
// Fetch never returns an error: every failure is reported as an unhealthy result.
type Gateway interface {
	Name() string
	Fetch(ctx context.Context, city string) offer.SourceResult
}

// NormalizeCity returns the lowercased, trimmed city sent upstream.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// HTTPGateway fetches offers from a supplier endpoint that answers
// GET <baseURL>?city=<city> with a JSON array of offers.
type HTTPGateway struct {
	name     string
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	validate *validator.Validate
}

// NewHTTPGateway constructs an HTTPGateway. A non-positive timeout falls back to DefaultTimeout.
func NewHTTPGateway(name, baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPGateway{
		name:     name,
		baseURL:  baseURL,
		timeout:  timeout,
		client:   &http.Client{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Name returns the source name used in results and status maps.
func (g *HTTPGateway) Name() string { return g.name }

// Fetch retrieves and validates the offers for city.
func (g *HTTPGateway) Fetch(ctx context.Context, city string) offer.SourceResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	city = NormalizeCity(city)
	endpoint := g.baseURL + "?city=" + url.QueryEscape(city)

	var raw []offer.RawOffer
	if err := doGet(ctx, g.client, endpoint, &raw); err != nil {
		return offer.Unhealthy(g.name, fmt.Errorf("%s fetch for %s: %w", g.name, city, err))
	}

	for i := range raw {
		if err := g.validate.Struct(raw[i]); err != nil {
			return offer.Unhealthy(g.name, fmt.Errorf("%s offer %d for %s: %w", g.name, i, city, err))
		}
		if raw[i].City == "" {
			raw[i].City = city
		}
	}

	return offer.Healthy(g.name, raw)
}

// doGet performs a GET request and decodes the JSON response into dst.
func doGet(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", rawURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("GET %s timed out: %w", rawURL, err)
		}
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	return nil
}

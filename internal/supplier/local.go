package supplier

import (
	"context"
	"fmt"

	"github.com/neexbeast/hotel-offers/internal/offer"
)

// LocalGateway answers from an in-process Catalog instead of going over HTTP.
type LocalGateway struct {
	name    string
	catalog *Catalog
}

// NewLocalGateway constructs a LocalGateway for one catalog source.
func NewLocalGateway(name string, catalog *Catalog) *LocalGateway {
	return &LocalGateway{name: name, catalog: catalog}
}

// Name returns the source name.
func (g *LocalGateway) Name() string { return g.name }

// Fetch returns the catalog offers for city. A cancelled context is reported as unhealthy.
func (g *LocalGateway) Fetch(ctx context.Context, city string) offer.SourceResult {
	if err := ctx.Err(); err != nil {
		return offer.Unhealthy(g.name, fmt.Errorf("%s fetch for %s: %w", g.name, NormalizeCity(city), err))
	}
	if !g.catalog.Has(g.name) {
		return offer.Unhealthy(g.name, fmt.Errorf("%s is not in the catalog", g.name))
	}
	return offer.Healthy(g.name, g.catalog.Lookup(g.name, city))
}

package supplier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/hotel-offers/internal/offer"
	"github.com/neexbeast/hotel-offers/internal/supplier"
)

func TestCatalog_Lookup(t *testing.T) {
	c := supplier.DefaultCatalog()

	delhiA := c.Lookup(supplier.SupplierA, "DELHI")
	require.Len(t, delhiA, 5)
	assert.Equal(t, "Holtin", delhiA[0].HotelName)
	assert.Equal(t, 6000.0, delhiA[0].Price)

	assert.Len(t, c.Lookup(supplier.SupplierB, "bangalore"), 2)
	assert.Empty(t, c.Lookup(supplier.SupplierA, "atlantis"))
	assert.Empty(t, c.Lookup("supplierZ", "delhi"))
}

func TestCatalog_LookupReturnsCopy(t *testing.T) {
	c := supplier.DefaultCatalog()

	first := c.Lookup(supplier.SupplierA, "delhi")
	first[0].Price = 1

	again := c.Lookup(supplier.SupplierA, "delhi")
	assert.Equal(t, 6000.0, again[0].Price)
}

func TestCatalog_Sources(t *testing.T) {
	assert.ElementsMatch(t, []string{supplier.SupplierA, supplier.SupplierB}, supplier.DefaultCatalog().Sources())
}

func TestCatalog_Handler(t *testing.T) {
	srv := httptest.NewServer(supplier.DefaultCatalog().Handler(0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/supplierB/hotels?city=delhi")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []offer.RawOffer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 5)
	assert.Equal(t, "b1", got[0].SourceOfferID)
	assert.Equal(t, "Hilton", got[4].HotelName)
}

func TestCatalog_Handler_UnknownSupplier(t *testing.T) {
	srv := httptest.NewServer(supplier.DefaultCatalog().Handler(0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/supplierZ/hotels?city=delhi")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCatalog_Handler_MissingCity(t *testing.T) {
	srv := httptest.NewServer(supplier.DefaultCatalog().Handler(0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/supplierA/hotels")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCatalog_Handler_Latency(t *testing.T) {
	srv := httptest.NewServer(supplier.DefaultCatalog().Handler(20 * time.Millisecond))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/supplierA/hotels?city=delhi")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLocalGateway_Fetch(t *testing.T) {
	gw := supplier.NewLocalGateway(supplier.SupplierB, supplier.DefaultCatalog())

	res := gw.Fetch(context.Background(), " Delhi")

	assert.Equal(t, supplier.SupplierB, gw.Name())
	assert.Equal(t, offer.StatusHealthy, res.Status)
	assert.Len(t, res.Offers, 5)
}

func TestLocalGateway_UnknownCityIsHealthy(t *testing.T) {
	res := supplier.NewLocalGateway(supplier.SupplierA, supplier.DefaultCatalog()).Fetch(context.Background(), "atlantis")

	assert.Equal(t, offer.StatusHealthy, res.Status)
	assert.NotNil(t, res.Offers)
	assert.Empty(t, res.Offers)
}

func TestLocalGateway_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := supplier.NewLocalGateway(supplier.SupplierA, supplier.DefaultCatalog()).Fetch(ctx, "delhi")

	assert.Equal(t, offer.StatusUnhealthy, res.Status)
	assert.Contains(t, res.ErrorDetail, "context canceled")
}

func TestLocalGateway_SourceMissingFromCatalog(t *testing.T) {
	res := supplier.NewLocalGateway("supplierZ", supplier.DefaultCatalog()).Fetch(context.Background(), "delhi")

	assert.Equal(t, offer.StatusUnhealthy, res.Status)
}

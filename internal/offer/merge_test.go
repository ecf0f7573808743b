package offer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/hotel-offers/internal/offer"
)

func raw(name string, price float64) offer.RawOffer {
	return offer.RawOffer{HotelName: name, Price: price, City: "delhi", CommissionPct: 10}
}

func TestMerge_DelhiScenario(t *testing.T) {
	a := offer.Healthy("supplierA", []offer.RawOffer{raw("Holtin", 6000), raw("Radison", 5900)})
	b := offer.Healthy("supplierB", []offer.RawOffer{raw("Holtin", 5340), raw("Marriott", 9000)})

	got := offer.Merge([]offer.SourceResult{a, b})

	require.Len(t, got, 3)
	assert.Equal(t, offer.MergedOffer{HotelName: "Holtin", Price: 5340, Source: "supplierB", CommissionPct: 10}, got[0])
	assert.Equal(t, offer.MergedOffer{HotelName: "Radison", Price: 5900, Source: "supplierA", CommissionPct: 10}, got[1])
	assert.Equal(t, offer.MergedOffer{HotelName: "Marriott", Price: 9000, Source: "supplierB", CommissionPct: 10}, got[2])
}

func TestMerge_UnhealthySourceExcluded(t *testing.T) {
	a := offer.Unhealthy("supplierA", errors.New("connection refused"))
	b := offer.Healthy("supplierB", []offer.RawOffer{raw("Taj", 11500)})

	got := offer.Merge([]offer.SourceResult{a, b})

	require.Len(t, got, 1)
	assert.Equal(t, "Taj", got[0].HotelName)
	assert.Equal(t, 11500.0, got[0].Price)
	assert.Equal(t, "supplierB", got[0].Source)
}

func TestMerge_UnhealthyOffersIgnoredEvenIfPresent(t *testing.T) {
	a := offer.SourceResult{
		SourceName: "supplierA",
		Status:     offer.StatusUnhealthy,
		Offers:     []offer.RawOffer{raw("Holtin", 1)},
	}
	b := offer.Healthy("supplierB", []offer.RawOffer{raw("Holtin", 5340)})

	got := offer.Merge([]offer.SourceResult{a, b})

	require.Len(t, got, 1)
	assert.Equal(t, 5340.0, got[0].Price)
	assert.Equal(t, "supplierB", got[0].Source)
}

func TestMerge_TieKeepsEarlierSource(t *testing.T) {
	a := offer.Healthy("supplierA", []offer.RawOffer{raw("Oberoi", 15000)})
	b := offer.Healthy("supplierB", []offer.RawOffer{raw("Oberoi", 15000)})

	got := offer.Merge([]offer.SourceResult{a, b})

	require.Len(t, got, 1)
	assert.Equal(t, "supplierA", got[0].Source)
}

func TestMerge_MinPriceProperty(t *testing.T) {
	cases := []struct {
		name   string
		priceA float64
		priceB float64
		want   string
	}{
		{"a cheaper", 100, 200, "supplierA"},
		{"b cheaper", 200, 100, "supplierB"},
		{"equal", 150, 150, "supplierA"},
		{"zero price", 0, 10, "supplierA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := offer.Healthy("supplierA", []offer.RawOffer{raw("H", tc.priceA)})
			b := offer.Healthy("supplierB", []offer.RawOffer{raw("H", tc.priceB)})

			got := offer.Merge([]offer.SourceResult{a, b})

			require.Len(t, got, 1)
			assert.Equal(t, min(tc.priceA, tc.priceB), got[0].Price)
			assert.Equal(t, tc.want, got[0].Source)
		})
	}
}

func TestMerge_NameMatchIsCaseSensitive(t *testing.T) {
	a := offer.Healthy("supplierA", []offer.RawOffer{raw("Holtin", 6000)})
	b := offer.Healthy("supplierB", []offer.RawOffer{raw("holtin", 5000)})

	got := offer.Merge([]offer.SourceResult{a, b})

	assert.Len(t, got, 2)
}

func TestMerge_DuplicatesWithinOneSource(t *testing.T) {
	a := offer.Healthy("supplierA", []offer.RawOffer{raw("Hilton", 7500), raw("Hilton", 7000), raw("Hilton", 8000)})

	got := offer.Merge([]offer.SourceResult{a})

	require.Len(t, got, 1)
	assert.Equal(t, 7000.0, got[0].Price)
	require.NoError(t, offer.CheckUnique(got))
}

func TestMerge_EmptyInputs(t *testing.T) {
	got := offer.Merge(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = offer.Merge([]offer.SourceResult{
		offer.Healthy("supplierA", nil),
		offer.Healthy("supplierB", nil),
	})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMerge_Deterministic(t *testing.T) {
	results := []offer.SourceResult{
		offer.Healthy("supplierA", []offer.RawOffer{raw("Holtin", 6000), raw("Radison", 5900), raw("Taj Palace", 12000)}),
		offer.Healthy("supplierB", []offer.RawOffer{raw("Holtin", 5340), raw("Radison", 6100), raw("Hilton", 7500)}),
	}

	first := offer.Merge(results)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, offer.Merge(results))
	}
}

func TestCheckUnique(t *testing.T) {
	require.NoError(t, offer.CheckUnique(nil))

	err := offer.CheckUnique([]offer.MergedOffer{{HotelName: "A"}, {HotelName: "B"}, {HotelName: "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"A"`)
}

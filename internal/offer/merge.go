package offer

import "fmt"

// Merge combines per-source results into one list holding the cheapest offer
// per hotel name.
//
// Results are consumed in slice order, which is the source priority order.
// Unhealthy results contribute nothing. Hotel names are matched exactly, so
// "Holtin" and "holtin" are two hotels. An existing offer is only replaced by
// a strictly cheaper one; ties keep the earlier source. Output follows first
// insertion order.
func Merge(results []SourceResult) []MergedOffer {
	index := make(map[string]int)
	merged := make([]MergedOffer, 0)

	for _, res := range results {
		if res.Status != StatusHealthy {
			continue
		}
		for _, raw := range res.Offers {
			candidate := MergedOffer{
				HotelName:     raw.HotelName,
				Price:         raw.Price,
				Source:        res.SourceName,
				CommissionPct: raw.CommissionPct,
			}

			i, ok := index[raw.HotelName]
			if !ok {
				index[raw.HotelName] = len(merged)
				merged = append(merged, candidate)
				continue
			}
			if candidate.Price < merged[i].Price {
				merged[i] = candidate
			}
		}
	}

	return merged
}

// CheckUnique returns an error naming the first hotel that appears twice.
func CheckUnique(offers []MergedOffer) error {
	seen := make(map[string]struct{}, len(offers))
	for _, o := range offers {
		if _, dup := seen[o.HotelName]; dup {
			return fmt.Errorf("hotel %q appears more than once", o.HotelName)
		}
		seen[o.HotelName] = struct{}{}
	}
	return nil
}

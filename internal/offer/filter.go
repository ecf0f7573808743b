package offer

// Filter returns the offers whose price lies inside r. The result is always a
// new slice, so callers never share backing arrays with the input.
func Filter(offers []MergedOffer, r PriceRange) []MergedOffer {
	out := make([]MergedOffer, 0, len(offers))
	for _, o := range offers {
		if r.Contains(o.Price) {
			out = append(out, o)
		}
	}
	return out
}

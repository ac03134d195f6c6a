package retrieval

import "sort"

// ApplyPriceOrder stable-sorts candidates by price according to the
// detected intent, replacing relevance order. Products without a usable
// price sort last regardless of direction. Neutral intent leaves the
// order untouched.
func ApplyPriceOrder(candidates []ScoredCandidate, intent PriceIntent) {
	if intent == IntentNeutral {
		return
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi := candidates[i].Product.Price
		pj := candidates[j].Product.Price

		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}

		if intent == IntentCheapest {
			return *pi < *pj
		}
		return *pi > *pj
	})
}

package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

// ScoredCandidate is a reranked product with its relevance score.
type ScoredCandidate struct {
	Product catalog.Product
	Score   float64
	// Weight is the pack-size variant parsed from the candidate key,
	// empty when the product has no variant weight.
	Weight string
}

// Reranker reorders retrieval candidates using a relevance scorer.
// Scorer failures never fail the search: the original candidate order
// is kept instead.
type Reranker struct {
	scorer RelevanceScorer
	logger *observability.Logger
}

// NewReranker creates a reranker.
func NewReranker(scorer RelevanceScorer, logger *observability.Logger) *Reranker {
	return &Reranker{scorer: scorer, logger: logger}
}

// candidateKey builds the composite passage id for a product: the
// product id, plus "_" and the trimmed weight when one exists.
func candidateKey(p catalog.Product) string {
	weight := strings.TrimSpace(p.Weight)
	if weight == "" {
		return p.ID
	}
	return p.ID + "_" + weight
}

// splitCandidateKey recovers (id, weight) from a composite key. A key
// without a separator is a bare product id with no weight.
func splitCandidateKey(key string) (string, string) {
	idx := strings.Index(key, "_")
	if idx < 0 {
		return key, ""
	}
	return key[:idx], key[idx+1:]
}

// Rerank scores the candidates against the query and returns up to cap
// of them in descending score order. Candidates with no searchable text
// are not sent to the scorer. Scorer output that matches no candidate
// is discarded. When the scorer errors or matches nothing, the first
// cap candidates are returned in their original order with zero scores.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []catalog.Product, cap int) []ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if cap <= 0 || cap > len(candidates) {
		cap = len(candidates)
	}

	byKey := make(map[string]catalog.Product, len(candidates))
	passages := make([]Passage, 0, len(candidates))
	for _, c := range candidates {
		text := c.Passage()
		if text == "" {
			continue
		}

		key := candidateKey(c)
		if _, seen := byKey[key]; seen {
			continue
		}
		byKey[key] = c
		passages = append(passages, Passage{ID: key, Text: text})
	}

	scored, err := r.scorer.Score(ctx, query, passages)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Relevance scoring failed, keeping retrieval order")
		return fallbackCandidates(candidates, cap)
	}

	var matched []ScoredCandidate
	for _, sp := range scored {
		product, ok := byKey[sp.ID]
		if !ok {
			r.logger.Debug().Str("passage_id", sp.ID).Msg("Discarding unmatched scorer result")
			continue
		}

		_, weight := splitCandidateKey(sp.ID)
		matched = append(matched, ScoredCandidate{
			Product: product,
			Score:   sp.Score,
			Weight:  weight,
		})
	}

	if len(matched) == 0 {
		r.logger.Warn().
			Str("query", query).
			Msg("Scorer matched no candidates, keeping retrieval order")
		return fallbackCandidates(candidates, cap)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})

	if cap < len(matched) {
		matched = matched[:cap]
	}
	return matched
}

func fallbackCandidates(candidates []catalog.Product, cap int) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, cap)
	for _, c := range candidates[:cap] {
		out = append(out, ScoredCandidate{
			Product: c,
			Weight:  strings.TrimSpace(c.Weight),
		})
	}
	return out
}

package catalog

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory catalog store for development and tests.
// It keeps normalized vectors alongside a lexical index and fuses the
// two scores at query time.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]storedProduct // keyed by Product.Key()
}

type storedProduct struct {
	product Product
	vector  []float32 // normalized copy, nil when the product has no vector
	terms   map[string]int
}

// NewMemoryStore creates an empty in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]storedProduct),
	}
}

// HybridQuery blends lexical and vector scoring.
func (s *MemoryStore) HybridQuery(ctx context.Context, text string, vector []float32, blend float64, cap int, pred Predicate) ([]Hit, error) {
	if blend < 0 {
		blend = 0
	}
	if blend > 1 {
		blend = 1
	}

	queryVec := normalizeVector(vector)
	queryTerms := tokenize(text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.products))
	for _, sp := range s.products {
		if pred != nil && !pred.Matches(sp.product) {
			continue
		}

		lexical := lexicalScore(queryTerms, sp.terms)
		semantic := 0.0
		if len(queryVec) > 0 && len(sp.vector) == len(queryVec) {
			semantic = cosineSimilarity(queryVec, sp.vector)
		}

		score := (1-blend)*lexical + blend*semantic
		if score <= 0 {
			continue
		}

		hits = append(hits, Hit{Product: sp.product, Score: score})
	}

	sortHits(hits)
	return capHits(hits, cap), nil
}

// KeywordQuery runs a purely lexical query.
func (s *MemoryStore) KeywordQuery(ctx context.Context, text string, cap int, pred Predicate) ([]Hit, error) {
	return s.HybridQuery(ctx, text, nil, 0, cap, pred)
}

// GetByID returns the first variant with the given product identifier.
// Variants are scanned in key order so the lookup is deterministic.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.products))
	for key, sp := range s.products {
		if sp.product.ID == id {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return Product{}, ErrNotFound
	}

	sort.Strings(keys)
	return s.products[keys[0]].product, nil
}

// FetchAll returns up to limit products in key order.
func (s *MemoryStore) FetchAll(ctx context.Context, limit int) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.products))
	for key := range s.products {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}

	products := make([]Product, len(keys))
	for i, key := range keys {
		products[i] = s.products[key].product
	}
	return products, nil
}

// Upsert inserts or replaces products keyed by (ID, Weight).
func (s *MemoryStore) Upsert(ctx context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if p.ID == "" {
			continue
		}
		s.products[p.Key()] = storedProduct{
			product: p,
			vector:  normalizeVector(p.Vector),
			terms:   termCounts(tokenize(p.Passage())),
		}
	}
	return nil
}

// Count returns the number of stored product variants.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

// Close releases resources.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

// tokenize lowercases text and splits it on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// lexicalScore is the fraction of query terms present in the document,
// boosted slightly by repeat occurrences.
func lexicalScore(queryTerms []string, docTerms map[string]int) float64 {
	if len(queryTerms) == 0 || len(docTerms) == 0 {
		return 0
	}

	matched := 0
	occurrences := 0
	for _, t := range queryTerms {
		if n := docTerms[t]; n > 0 {
			matched++
			occurrences += n
		}
	}
	if matched == 0 {
		return 0
	}

	coverage := float64(matched) / float64(len(queryTerms))
	boost := 1 + math.Log1p(float64(occurrences-matched))/10
	score := coverage * boost
	if score > 1 {
		score = 1
	}
	return score
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	// Inputs are normalized; clamp floating point drift.
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return dot
}

func normalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}

	normalized := make([]float32, len(v))
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Product.Key() < hits[j].Product.Key()
	})
}

func capHits(hits []Hit, cap int) []Hit {
	if cap > 0 && cap < len(hits) {
		return hits[:cap]
	}
	return hits
}

package retrieval

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

// PriceIntent is the detected price-ordering intent of a query.
type PriceIntent string

const (
	// IntentCheapest asks for low prices first.
	IntentCheapest PriceIntent = "price_asc"
	// IntentPremium asks for high prices first.
	IntentPremium PriceIntent = "price_desc"
	// IntentNeutral expresses no price preference.
	IntentNeutral PriceIntent = "neutral"
)

var cheapKeywords = []string{
	"cheap", "cheapest", "affordable", "budget", "inexpensive",
	"low price", "lowest price", "low cost", "economical", "bargain",
	"least expensive", "save money", "under",
}

var expensiveKeywords = []string{
	"expensive", "most expensive", "premium", "luxury", "high end",
	"highest price", "high price", "top of the line", "costly",
	"upscale", "finest", "exclusive",
}

var cheapExemplars = []string{
	"show me the cheapest products",
	"what are the most affordable options",
	"i want something inexpensive on a budget",
}

var expensiveExemplars = []string{
	"show me the most expensive products",
	"what are the premium luxury options",
	"i want the highest quality top of the line item",
}

// PriceIntentClassifier detects whether a query asks for price-ordered
// results. It blends a keyword signal with a semantic signal from
// exemplar phrase embeddings.
type PriceIntentClassifier struct {
	embedder embedding.Embedder
	alpha    float64 // weight of the semantic component
	gate     float64 // minimum winning score to leave neutral
	logger   *observability.Logger

	once          sync.Once
	cheapVecs     [][]float32
	expensiveVecs [][]float32
	exemplarErr   error
}

// IntentConfig holds classifier settings.
type IntentConfig struct {
	Alpha float64
	Gate  float64
}

// NewPriceIntentClassifier creates a classifier.
func NewPriceIntentClassifier(embedder embedding.Embedder, cfg IntentConfig, logger *observability.Logger) *PriceIntentClassifier {
	alpha := cfg.Alpha
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.45
	}
	gate := cfg.Gate
	if gate <= 0 || gate >= 1 {
		gate = 0.45
	}

	return &PriceIntentClassifier{
		embedder: embedder,
		alpha:    alpha,
		gate:     gate,
		logger:   logger,
	}
}

// Classify returns the price intent of the query. The winning class is
// accepted only when its blended score clears the gate; otherwise the
// query is treated as neutral.
func (c *PriceIntentClassifier) Classify(ctx context.Context, query string) PriceIntent {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return IntentNeutral
	}

	kwCheap, kwExp := keywordScores(normalized)
	semCheap, semExp := c.semanticScores(ctx, normalized)

	cheapScore := c.alpha*semCheap + (1-c.alpha)*kwCheap
	expScore := c.alpha*semExp + (1-c.alpha)*kwExp

	c.logger.Debug().
		Str("query", normalized).
		Float64("cheap_score", cheapScore).
		Float64("expensive_score", expScore).
		Msg("Price intent scores")

	switch {
	case cheapScore > expScore && cheapScore > c.gate:
		return IntentCheapest
	case expScore > cheapScore && expScore > c.gate:
		return IntentPremium
	default:
		return IntentNeutral
	}
}

// normalizeQuery lowercases the query and strips punctuation, keeping
// word boundaries intact.
func normalizeQuery(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		switch {
		case 'a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// keywordScores counts substring hits for each class and normalizes
// both counts by the larger raw count so the scores are comparable.
func keywordScores(normalized string) (cheap, expensive float64) {
	rawCheap := countHits(normalized, cheapKeywords)
	rawExp := countHits(normalized, expensiveKeywords)

	denom := rawCheap
	if rawExp > denom {
		denom = rawExp
	}
	if denom < 1 {
		denom = 1
	}

	return float64(rawCheap) / float64(denom), float64(rawExp) / float64(denom)
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

// semanticScores returns the maximum cosine similarity of the query
// against each class's exemplar embeddings. Embedding failures yield
// zero so classification degrades to the keyword signal.
func (c *PriceIntentClassifier) semanticScores(ctx context.Context, normalized string) (cheap, expensive float64) {
	c.once.Do(func() { c.embedExemplars(ctx) })
	if c.exemplarErr != nil {
		return 0, 0
	}

	queryVec, err := c.embedder.EmbedSingle(ctx, normalized)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Query embedding failed, using keyword signal only")
		return 0, 0
	}

	return maxCosine(queryVec, c.cheapVecs), maxCosine(queryVec, c.expensiveVecs)
}

func (c *PriceIntentClassifier) embedExemplars(ctx context.Context) {
	cheapVecs, err := c.embedder.Embed(ctx, cheapExemplars)
	if err != nil {
		c.exemplarErr = err
		c.logger.Warn().Err(err).Msg("Exemplar embedding failed, using keyword signal only")
		return
	}

	expVecs, err := c.embedder.Embed(ctx, expensiveExemplars)
	if err != nil {
		c.exemplarErr = err
		c.logger.Warn().Err(err).Msg("Exemplar embedding failed, using keyword signal only")
		return
	}

	c.cheapVecs = cheapVecs
	c.expensiveVecs = expVecs
}

func maxCosine(query []float32, exemplars [][]float32) float64 {
	best := 0.0
	for _, ex := range exemplars {
		if sim := cosine(query, ex); sim > best {
			best = sim
		}
	}
	return best
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Package retrieval implements hybrid product search: blended
// lexical/semantic retrieval, relevance reranking, price-intent
// handling, and offer cross-referencing.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

// ErrRetrievalUnavailable indicates the catalog store or embedding
// service cannot serve the query. Callers may degrade to keyword-only
// retrieval.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Options tunes a single retrieval call.
type Options struct {
	// Blend trades lexical against semantic scoring, in [0,1].
	// Zero-value means "use the configured default".
	Blend *float64

	// Cap limits the number of candidates returned.
	Cap int

	// Predicate filters candidates. Stock and rating defaults are
	// applied around it, see Retrieve.
	Predicate catalog.Predicate

	// HasStockConstraint marks that Predicate already constrains
	// availability, suppressing the implicit in-stock default.
	HasStockConstraint bool

	// MinRating, when set, admits products at or above the floor plus
	// unrated products.
	MinRating *float64

	// KeywordOnly skips query embedding and vector scoring.
	KeywordOnly bool
}

// Retriever runs hybrid queries against the catalog store.
type Retriever struct {
	store        catalog.Store
	embedder     embedding.Embedder
	defaultBlend float64
	resultCap    int
	keywordCap   int
	logger       *observability.Logger
}

// RetrieverConfig holds retriever defaults.
type RetrieverConfig struct {
	DefaultBlend float64
	ResultCap    int
	KeywordCap   int
}

// NewRetriever creates a retriever with the given defaults.
func NewRetriever(store catalog.Store, embedder embedding.Embedder, cfg RetrieverConfig, logger *observability.Logger) *Retriever {
	if cfg.DefaultBlend <= 0 || cfg.DefaultBlend > 1 {
		cfg.DefaultBlend = 0.5
	}
	if cfg.ResultCap <= 0 {
		cfg.ResultCap = 5
	}
	if cfg.KeywordCap <= 0 {
		cfg.KeywordCap = 3
	}

	return &Retriever{
		store:        store,
		embedder:     embedder,
		defaultBlend: cfg.DefaultBlend,
		resultCap:    cfg.ResultCap,
		keywordCap:   cfg.KeywordCap,
		logger:       logger,
	}
}

// Retrieve runs a hybrid query and returns candidate products in score
// order. When the caller gives no stock constraint, an implicit
// in-stock filter is applied. A requested rating floor keeps unrated
// products. An empty candidate set is a valid result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]catalog.Product, error) {
	pred := r.buildPredicate(opts)

	cap := opts.Cap
	if cap <= 0 {
		if opts.KeywordOnly {
			cap = r.keywordCap
		} else {
			cap = r.resultCap
		}
	}

	var hits []catalog.Hit
	var err error

	if opts.KeywordOnly {
		hits, err = r.store.KeywordQuery(ctx, query, cap, pred)
	} else {
		blend := r.defaultBlend
		if opts.Blend != nil {
			blend = *opts.Blend
		}

		var vector []float32
		vector, embErr := r.embedder.EmbedSingle(ctx, query)
		if embErr != nil {
			r.logger.Warn().Err(embErr).Msg("Query embedding failed, falling back to lexical scoring")
			vector = nil
			blend = 0
		}

		hits, err = r.store.HybridQuery(ctx, query, vector, blend, cap, pred)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	products := make([]catalog.Product, len(hits))
	for i, h := range hits {
		products[i] = h.Product
	}

	r.logger.Debug().
		Str("query", query).
		Int("candidates", len(products)).
		Bool("keyword_only", opts.KeywordOnly).
		Msg("Retrieval complete")

	return products, nil
}

func (r *Retriever) buildPredicate(opts Options) catalog.Predicate {
	var parts []catalog.Predicate

	if opts.Predicate != nil {
		parts = append(parts, opts.Predicate)
	}

	if !opts.HasStockConstraint {
		parts = append(parts, catalog.InStock())
	}

	if opts.MinRating != nil {
		parts = append(parts, catalog.MinRating(*opts.MinRating))
	}

	if len(parts) == 0 {
		return nil
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return catalog.And(parts)
}

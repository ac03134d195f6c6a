package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/shoplens-ai/search-engine/internal/cache"
	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

// Session carries per-conversation search state. It is passed in and
// returned with every search so callers own the state; nothing is kept
// in process globals.
type Session struct {
	ID      string `json:"id"`
	Queries int    `json:"queries"`
}

// offerSuggestionInterval controls how often a session is nudged toward
// browsing offers.
const offerSuggestionInterval = 3

// ResultProduct is a search result formatted for responses.
type ResultProduct struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Weight      string   `json:"weight,omitempty"`
	Image       string   `json:"image,omitempty"`
	Link        string   `json:"link,omitempty"`
	Score       float64  `json:"score"`
}

// Response is a completed search.
type Response struct {
	Query         string               `json:"query"`
	Products      []ResultProduct      `json:"products"`
	Offers        map[string]OfferView `json:"offers"`
	PriceIntent   PriceIntent          `json:"price_intent"`
	SuggestOffers bool                 `json:"suggest_offers"`
	Message       string               `json:"message,omitempty"`
}

// Service orchestrates a full product search: filter extraction,
// retrieval, reranking, price ordering, and offer attachment.
type Service struct {
	retriever  *Retriever
	reranker   *Reranker
	intent     *PriceIntentClassifier
	extractor  *FilterExtractor
	offers     *CrossReferencer
	cache      cache.Client
	cacheTTL   time.Duration
	useCache   bool
	resultCap  int
	keywordCap int
	logger     *observability.Logger
}

// ServiceConfig holds orchestration settings.
type ServiceConfig struct {
	ResultCap    int
	KeywordCap   int
	CacheResults bool
	CacheTTL     time.Duration
}

// NewService wires the search pipeline together. The extractor, offers
// cross-referencer, and cache may be nil; the corresponding stage is
// skipped.
func NewService(
	retriever *Retriever,
	reranker *Reranker,
	intent *PriceIntentClassifier,
	extractor *FilterExtractor,
	offers *CrossReferencer,
	cacheClient cache.Client,
	cfg ServiceConfig,
	logger *observability.Logger,
) *Service {
	resultCap := cfg.ResultCap
	if resultCap <= 0 {
		resultCap = 5
	}
	keywordCap := cfg.KeywordCap
	if keywordCap <= 0 {
		keywordCap = 3
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Service{
		retriever:  retriever,
		reranker:   reranker,
		intent:     intent,
		extractor:  extractor,
		offers:     offers,
		cache:      cacheClient,
		cacheTTL:   cacheTTL,
		useCache:   cfg.CacheResults && cacheClient != nil,
		resultCap:  resultCap,
		keywordCap: keywordCap,
		logger:     logger,
	}
}

// Search runs the full pipeline for one query. The updated session is
// always returned, also on error. When the catalog store is down the
// search retries in keyword-only mode before giving up.
func (s *Service) Search(ctx context.Context, session Session, query string) (Response, Session, error) {
	session.Queries++

	if s.useCache {
		if resp, ok := s.cachedResponse(ctx, session.ID, query); ok {
			resp.SuggestOffers = session.Queries%offerSuggestionInterval == 0
			return resp, session, nil
		}
	}

	opts := Options{Cap: s.resultCap}
	if s.extractor != nil {
		filters := s.extractor.Extract(ctx, query)
		opts.Predicate = filters.Predicate
		opts.MinRating = filters.MinRating
	}

	candidates, err := s.retriever.Retrieve(ctx, query, opts)
	if errors.Is(err, ErrRetrievalUnavailable) {
		s.logger.Warn().Err(err).Msg("Hybrid retrieval unavailable, degrading to keyword search")
		opts.KeywordOnly = true
		opts.Cap = s.keywordCap
		candidates, err = s.retriever.Retrieve(ctx, query, opts)
	}
	if err != nil {
		return Response{}, session, err
	}

	intent := IntentNeutral
	if s.intent != nil {
		intent = s.intent.Classify(ctx, query)
	}

	scored := s.reranker.Rerank(ctx, query, candidates, s.resultCap)
	ApplyPriceOrder(scored, intent)

	products := make([]catalog.Product, len(scored))
	for i, sc := range scored {
		products[i] = sc.Product
	}

	offers := map[string]OfferView{}
	if s.offers != nil && len(products) > 0 {
		_, offers = s.offers.AttachOffers(ctx, products)
	}

	resp := Response{
		Query:       query,
		Products:    formatResults(scored),
		Offers:      offers,
		PriceIntent: intent,
	}
	if len(resp.Products) == 0 {
		resp.Message = "no matching items"
	}

	if s.useCache {
		s.storeResponse(ctx, session.ID, query, resp)
	}

	resp.SuggestOffers = session.Queries%offerSuggestionInterval == 0
	return resp, session, nil
}

func formatResults(scored []ScoredCandidate) []ResultProduct {
	results := make([]ResultProduct, len(scored))
	for i, sc := range scored {
		results[i] = ResultProduct{
			ID:          sc.Product.ID,
			Title:       sc.Product.Title,
			Description: sc.Product.Description,
			Categories:  sc.Product.Categories,
			Price:       sc.Product.Price,
			Rating:      sc.Product.Rating,
			Weight:      sc.Weight,
			Image:       sc.Product.Image,
			Link:        sc.Product.Link,
			Score:       sc.Score,
		}
	}
	return results
}

func (s *Service) cachedResponse(ctx context.Context, sessionID, query string) (Response, bool) {
	data, err := s.cache.Get(ctx, searchCacheKey(sessionID, query))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("Cache read failed")
		}
		return Response{}, false
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		s.logger.Warn().Err(err).Msg("Dropping undecodable cached response")
		return Response{}, false
	}
	return resp, true
}

func (s *Service) storeResponse(ctx context.Context, sessionID, query string, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, searchCacheKey(sessionID, query), data, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Cache write failed")
	}
}

// searchCacheKey scopes cached responses to the session so concurrent
// conversations never see each other's results.
func searchCacheKey(sessionID, query string) string {
	sum := sha256.Sum256([]byte(query))
	return cache.SearchKey(sessionID, "search", hex.EncodeToString(sum[:8]))
}

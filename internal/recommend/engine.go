// Package recommend implements collaborative and content-based product
// recommendations over user ratings and the catalog.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

// RatingSource supplies the full rating history. Implemented by
// storage.RatingRepository.
type RatingSource interface {
	ListAll(ctx context.Context) ([]storage.Rating, error)
}

// Recommendation is a scored product suggestion.
type Recommendation struct {
	ProductID string          `json:"product_id"`
	Product   catalog.Product `json:"product"`
	Score     float64         `json:"score"`
}

// Config holds recommendation engine settings.
type Config struct {
	TopK         int
	SimilarUsers int
	HybridAlpha  float64
	RatingScale  float64
	CatalogLimit int
}

// Engine builds similarity models from ratings and the catalog and
// serves recommendation queries. It is read-mostly after Build; all
// query methods are safe for concurrent use.
type Engine struct {
	ratings  RatingSource
	store    catalog.Store
	cfg      Config
	logger   *observability.Logger

	mu sync.RWMutex
	// model state, replaced wholesale on (re)build
	users        []string
	items        []string
	userIdx      map[string]int
	itemIdx      map[string]int
	matrix       *mat.Dense // users x items, missing ratings are 0
	userSim      *mat.Dense
	itemSim      *mat.Dense
	products     map[string]catalog.Product
	catalogItems []string // every catalog product, rated or not
	catalogIdx   map[string]int
	contentVecs  [][]float32
	contentToks  []map[string]int
	useVectors   bool
}

// NewEngine creates an engine. Call Build before querying; an unbuilt
// engine answers every query with empty results.
func NewEngine(ratings RatingSource, store catalog.Store, cfg Config, logger *observability.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SimilarUsers <= 0 {
		cfg.SimilarUsers = 5
	}
	if cfg.HybridAlpha <= 0 || cfg.HybridAlpha > 1 {
		cfg.HybridAlpha = 0.7
	}
	if cfg.RatingScale <= 0 {
		cfg.RatingScale = 5
	}
	if cfg.CatalogLimit <= 0 {
		cfg.CatalogLimit = 10000
	}

	return &Engine{
		ratings: ratings,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// Build snapshots ratings and the catalog and computes the similarity
// matrices. On failure the previous model is discarded and the engine
// stays queryable with empty results.
func (e *Engine) Build(ctx context.Context) error {
	model, err := e.buildModel(ctx)

	e.mu.Lock()
	if err != nil {
		e.users, e.items = nil, nil
		e.userIdx, e.itemIdx = nil, nil
		e.matrix, e.userSim, e.itemSim = nil, nil, nil
		e.products = nil
		e.catalogItems, e.catalogIdx = nil, nil
		e.contentVecs, e.contentToks = nil, nil
	} else {
		e.users, e.items = model.users, model.items
		e.userIdx, e.itemIdx = model.userIdx, model.itemIdx
		e.matrix, e.userSim, e.itemSim = model.matrix, model.userSim, model.itemSim
		e.products = model.products
		e.catalogItems, e.catalogIdx = model.catalogItems, model.catalogIdx
		e.contentVecs, e.contentToks = model.contentVecs, model.contentToks
		e.useVectors = model.useVectors
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error().Err(err).Msg("Recommendation model build failed, serving empty results")
		return err
	}

	e.logger.Info().
		Int("users", len(model.users)).
		Int("items", len(model.items)).
		Msg("Recommendation model built")
	return nil
}

// Refresh rebuilds the model from current data.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.Build(ctx)
}

type model struct {
	users        []string
	items        []string
	userIdx      map[string]int
	itemIdx      map[string]int
	matrix       *mat.Dense
	userSim      *mat.Dense
	itemSim      *mat.Dense
	products     map[string]catalog.Product
	catalogItems []string
	catalogIdx   map[string]int
	contentVecs  [][]float32
	contentToks  []map[string]int
	useVectors   bool
}

func (e *Engine) buildModel(ctx context.Context) (*model, error) {
	history, err := e.ratings.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}

	all, err := e.store.FetchAll(ctx, e.cfg.CatalogLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	products := make(map[string]catalog.Product, len(all))
	for _, p := range all {
		if _, seen := products[p.ID]; !seen {
			products[p.ID] = p
		}
	}

	// Latest rating wins for each (user, product) pair. History is
	// ordered by timestamp, so later entries simply overwrite.
	type pair struct{ user, item string }
	latest := make(map[pair]storage.Rating, len(history))
	for _, r := range history {
		key := pair{r.UserID, r.ProductID}
		if prev, ok := latest[key]; !ok || !r.RatedAt.Before(prev.RatedAt) {
			latest[key] = r
		}
	}

	userSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})
	for key := range latest {
		userSet[key.user] = struct{}{}
		itemSet[key.item] = struct{}{}
	}

	catalogSet := make(map[string]struct{}, len(products))
	for id := range products {
		catalogSet[id] = struct{}{}
	}

	m := &model{
		users:        sortedKeys(userSet),
		items:        sortedKeys(itemSet),
		products:     products,
		catalogItems: sortedKeys(catalogSet),
	}
	m.userIdx = indexOf(m.users)
	m.itemIdx = indexOf(m.items)
	m.catalogIdx = indexOf(m.catalogItems)

	for _, id := range m.items {
		if _, ok := products[id]; !ok {
			e.logger.Warn().Str("product_id", id).Msg("Rated product missing from catalog")
		}
	}

	e.buildContent(m)

	if len(m.users) == 0 || len(m.items) == 0 {
		m.matrix = mat.NewDense(1, 1, nil)
		m.userSim = mat.NewDense(1, 1, nil)
		m.itemSim = mat.NewDense(1, 1, nil)
		m.users, m.items = nil, nil
		m.userIdx, m.itemIdx = map[string]int{}, map[string]int{}
		return m, nil
	}

	m.matrix = mat.NewDense(len(m.users), len(m.items), nil)
	for key, r := range latest {
		m.matrix.Set(m.userIdx[key.user], m.itemIdx[key.item], r.Score)
	}

	m.userSim = rowCosineMatrix(m.matrix)
	m.itemSim = columnCosineMatrix(m.matrix)

	return m, nil
}

// buildContent prepares per-product content representations spanning
// the whole catalog, rated or not. Product vectors are used when every
// catalog product has one; otherwise all products fall back to
// term-count vectors from their searchable text.
func (e *Engine) buildContent(m *model) {
	m.useVectors = len(m.catalogItems) > 0
	for _, id := range m.catalogItems {
		if len(m.products[id].Vector) == 0 {
			m.useVectors = false
			break
		}
	}

	if m.useVectors {
		m.contentVecs = make([][]float32, len(m.catalogItems))
		for i, id := range m.catalogItems {
			m.contentVecs[i] = m.products[id].Vector
		}
		return
	}

	m.contentToks = make([]map[string]int, len(m.catalogItems))
	for i, id := range m.catalogItems {
		counts := make(map[string]int)
		p := m.products[id]
		for _, tok := range strings.Fields(strings.ToLower(p.Passage())) {
			counts[strings.Trim(tok, ".,!?;:")]++
		}
		m.contentToks[i] = counts
	}
}

// RecommendForUser predicts ratings from the most similar users and
// returns the top products the target has not rated yet. An unknown
// user gets an empty result.
func (e *Engine) RecommendForUser(userID string, topK int) []Recommendation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	uIdx, ok := e.userIdx[userID]
	if !ok {
		return nil
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	predicted := e.predictRatings(uIdx)

	// Items the target already rated are never recommended back.
	for i := range predicted {
		if e.matrix.At(uIdx, i) != 0 {
			predicted[i] = 0
		}
	}

	return e.topRecommendations(predicted, e.items, topK, "")
}

// predictRatings averages the rating rows of the most similar users.
// Must be called with the read lock held.
func (e *Engine) predictRatings(uIdx int) []float64 {
	type neighbor struct {
		idx int
		sim float64
	}

	neighbors := make([]neighbor, 0, len(e.users))
	for i := range e.users {
		if i == uIdx {
			continue
		}
		neighbors = append(neighbors, neighbor{idx: i, sim: e.userSim.At(uIdx, i)})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].sim > neighbors[j].sim
	})

	limit := e.cfg.SimilarUsers
	if limit > len(neighbors) {
		limit = len(neighbors)
	}
	neighbors = neighbors[:limit]

	predicted := make([]float64, len(e.items))
	if len(neighbors) == 0 {
		return predicted
	}

	for _, n := range neighbors {
		row := e.matrix.RawRowView(n.idx)
		for i, score := range row {
			predicted[i] += score
		}
	}
	for i := range predicted {
		predicted[i] /= float64(len(neighbors))
	}

	return predicted
}

// SimilarItems returns products whose rating columns are most similar
// to the given product's. The product itself is never included.
func (e *Engine) SimilarItems(productID string, topK int) []Recommendation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	iIdx, ok := e.itemIdx[productID]
	if !ok {
		return nil
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	scores := make([]float64, len(e.items))
	for i := range e.items {
		if i == iIdx {
			continue
		}
		scores[i] = e.itemSim.At(iIdx, i)
	}

	return e.topRecommendations(scores, e.items, topK, productID)
}

// Hybrid blends user-based collaborative scores with content similarity
// to an anchor product. Candidates span the whole catalog; products
// nobody has rated get a collaborative score of 0 and compete on
// content alone. Items already rated by the user and the anchor itself
// are excluded.
func (e *Engine) Hybrid(userID, anchorID string, topK int, alpha float64) []Recommendation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	aIdx, ok := e.catalogIdx[anchorID]
	if !ok {
		return nil
	}
	if alpha <= 0 || alpha > 1 {
		alpha = e.cfg.HybridAlpha
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	var predicted []float64
	uIdx, knownUser := e.userIdx[userID]
	if knownUser {
		predicted = e.predictRatings(uIdx)
	}

	scores := make([]float64, len(e.catalogItems))
	for i, id := range e.catalogItems {
		if i == aIdx {
			continue
		}

		collaborative := 0.0
		if rIdx, rated := e.itemIdx[id]; rated {
			if knownUser {
				if e.matrix.At(uIdx, rIdx) != 0 {
					continue
				}
				collaborative = predicted[rIdx]
			}
		}

		scores[i] = alpha*collaborative + (1-alpha)*e.contentSimilarity(aIdx, i)*e.cfg.RatingScale
	}

	return e.topRecommendations(scores, e.catalogItems, topK, anchorID)
}

// contentSimilarity must be called with the read lock held.
func (e *Engine) contentSimilarity(a, b int) float64 {
	if e.useVectors {
		return cosine32(e.contentVecs[a], e.contentVecs[b])
	}
	if e.contentToks == nil {
		return 0
	}
	return tokenCosine(e.contentToks[a], e.contentToks[b])
}

// topRecommendations selects the topK positive scores, ties broken by
// item id for determinism. ids names the item space scores is indexed
// by. Must be called with the read lock held.
func (e *Engine) topRecommendations(scores []float64, ids []string, topK int, exclude string) []Recommendation {
	type candidate struct {
		idx   int
		score float64
	}

	candidates := make([]candidate, 0, len(scores))
	for i, score := range scores {
		if score <= 0 || ids[i] == exclude {
			continue
		}
		candidates = append(candidates, candidate{idx: i, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return ids[candidates[i].idx] < ids[candidates[j].idx]
	})

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	recs := make([]Recommendation, len(candidates))
	for i, c := range candidates {
		id := ids[c.idx]
		recs[i] = Recommendation{
			ProductID: id,
			Product:   e.products[id],
			Score:     c.score,
		}
	}
	return recs
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexOf(keys []string) map[string]int {
	idx := make(map[string]int, len(keys))
	for i, k := range keys {
		idx[k] = i
	}
	return idx
}

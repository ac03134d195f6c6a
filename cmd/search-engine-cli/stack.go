package main

import (
	"context"
	"fmt"

	"github.com/shoplens-ai/search-engine/internal/cache"
	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/llm"
	"github.com/shoplens-ai/search-engine/internal/recommend"
	"github.com/shoplens-ai/search-engine/internal/retrieval"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

// stack bundles the wired services a CLI command needs.
type stack struct {
	store      catalog.Store
	embedder   embedding.Embedder
	ingestor   *catalog.Ingestor
	service    *retrieval.Service
	engine     *recommend.Engine
	offerRepo  *storage.OfferRepository
	ratingRepo *storage.RatingRepository
	closers    []func() error
}

func (s *stack) close() {
	for _, closeFn := range s.closers {
		_ = closeFn()
	}
}

// buildStack wires the full pipeline from config. The catalog starts
// empty; commands that need products run an ingest first.
func buildStack(ctx context.Context) (*stack, error) {
	s := &stack{}

	s.embedder = embedding.NewMockClient(cfg.Embedding.Dimension)
	if cfg.Embedding.BaseURL != "" {
		client, err := embedding.NewClient(embedding.Config{
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err == nil {
			s.embedder = client
		} else {
			logger.Warn().Err(err).Msg("Embedding client unavailable, using deterministic mock embeddings")
		}
	}

	store := catalog.NewMemoryStore()
	s.store = store
	s.closers = append(s.closers, store.Close)

	db, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.DatabaseDSN(),
	})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s.closers = append(s.closers, db.Close)

	if err := storage.Schema(ctx, db); err != nil {
		s.close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s.offerRepo = storage.NewOfferRepository(db, logger)
	s.ratingRepo = storage.NewRatingRepository(db)
	ingestRuns := storage.NewIngestRunRepository(db)

	s.ingestor = catalog.NewIngestor(s.store, s.embedder, ingestRuns, catalog.IngestorConfig{
		ChunkSize:       cfg.Ingestion.ChunkSize,
		StalenessWindow: cfg.Ingestion.StalenessWindow,
	}, logger)

	retriever := retrieval.NewRetriever(s.store, s.embedder, retrieval.RetrieverConfig{
		DefaultBlend: cfg.Retrieval.DefaultBlend,
		ResultCap:    cfg.Retrieval.ResultCap,
		KeywordCap:   cfg.Retrieval.KeywordCap,
	}, logger)

	var scorer retrieval.RelevanceScorer = &retrieval.MockScorer{}
	if cfg.Scorer.BaseURL != "" {
		httpScorer, err := retrieval.NewHTTPScorer(retrieval.ScorerConfig{
			BaseURL: cfg.Scorer.BaseURL,
			APIKey:  cfg.Scorer.APIKey,
			Model:   cfg.Scorer.Model,
			Timeout: cfg.Scorer.Timeout,
		})
		if err == nil {
			scorer = httpScorer
		} else {
			logger.Warn().Err(err).Msg("Scorer unavailable, results keep retrieval order")
		}
	}
	reranker := retrieval.NewReranker(scorer, logger)

	intent := retrieval.NewPriceIntentClassifier(s.embedder, retrieval.IntentConfig{
		Alpha: cfg.Retrieval.IntentAlpha,
		Gate:  cfg.Retrieval.IntentGate,
	}, logger)

	var extractor *retrieval.FilterExtractor
	if provider, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}); err == nil {
		extractor = retrieval.NewFilterExtractor(provider, logger)
	} else {
		logger.Warn().Err(err).Msg("LLM provider unavailable, filter extraction disabled")
	}

	xref := retrieval.NewCrossReferencer(s.offerRepo, s.store, logger)

	s.service = retrieval.NewService(retriever, reranker, intent, extractor, xref,
		cache.NewMemoryClient(cfg.Cache.MaxEntries), retrieval.ServiceConfig{
			ResultCap:    cfg.Retrieval.ResultCap,
			KeywordCap:   cfg.Retrieval.KeywordCap,
			CacheResults: cfg.Retrieval.CacheResults,
			CacheTTL:     cfg.Retrieval.CacheTTL,
		}, logger)

	s.engine = recommend.NewEngine(s.ratingRepo, s.store, recommend.Config{
		TopK:         cfg.Recommend.TopK,
		SimilarUsers: cfg.Recommend.SimilarUsers,
		HybridAlpha:  cfg.Recommend.HybridAlpha,
		RatingScale:  cfg.Recommend.RatingScale,
		CatalogLimit: cfg.Catalog.FetchLimit,
	}, logger)

	return s, nil
}

// loadCatalog ingests the configured snapshot so search and
// recommendation commands have products to work with.
func (s *stack) loadCatalog(ctx context.Context, force bool) error {
	if cfg.Ingestion.ProductsCSV == "" {
		return fmt.Errorf("no product snapshot configured (set PRODUCTS_CSV or ingestion.products_csv)")
	}

	// The in-memory store starts empty each run, so the persisted
	// staleness gate must not skip the initial load.
	if count, err := s.store.Count(ctx); err == nil && count == 0 {
		force = true
	}

	_, err := s.ingestor.Run(ctx, catalog.CSVSnapshot{Path: cfg.Ingestion.ProductsCSV}, force, nil)
	return err
}

// Package main provides the search engine API server.
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/shoplens-ai/search-engine/cmd/search-engine-api/handlers"
	"github.com/shoplens-ai/search-engine/cmd/search-engine-api/middleware"
	"github.com/shoplens-ai/search-engine/internal/cache"
	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/config"
	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/llm"
	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/recommend"
	"github.com/shoplens-ai/search-engine/internal/retrieval"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

// App holds the wired application and its cleanup hooks.
type App struct {
	Handler http.Handler
	closers []func() error
}

// Close releases application resources.
func (a *App) Close() {
	for _, closeFn := range a.closers {
		_ = closeFn()
	}
}

// NewApp wires all services from config and builds the router.
func NewApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	app := &App{}

	cacheClient := newCacheClient(cfg, logger)
	app.closers = append(app.closers, cacheClient.Close)

	embedder := newEmbedder(cfg, logger)

	store := catalog.NewMemoryStore()
	if cfg.Catalog.Adapter != "memory" {
		logger.Warn().
			Str("adapter", cfg.Catalog.Adapter).
			Msg("Unsupported catalog adapter, using in-memory store")
	}
	app.closers = append(app.closers, store.Close)

	db, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, db.Close)

	if err := storage.Schema(ctx, db); err != nil {
		app.Close()
		return nil, err
	}

	offerRepo := storage.NewOfferRepository(db, logger)
	ratingRepo := storage.NewRatingRepository(db)
	ingestRuns := storage.NewIngestRunRepository(db)

	ingestor := catalog.NewIngestor(store, embedder, ingestRuns, catalog.IngestorConfig{
		ChunkSize:       cfg.Ingestion.ChunkSize,
		StalenessWindow: cfg.Ingestion.StalenessWindow,
	}, logger)

	if cfg.Ingestion.ProductsCSV != "" {
		if _, err := ingestor.Run(ctx, catalog.CSVSnapshot{Path: cfg.Ingestion.ProductsCSV}, false, nil); err != nil {
			logger.Error().Err(err).Msg("Startup catalog ingest failed")
		}
	}

	retriever := retrieval.NewRetriever(store, embedder, retrieval.RetrieverConfig{
		DefaultBlend: cfg.Retrieval.DefaultBlend,
		ResultCap:    cfg.Retrieval.ResultCap,
		KeywordCap:   cfg.Retrieval.KeywordCap,
	}, logger)

	reranker := retrieval.NewReranker(newScorer(cfg, logger), logger)

	intent := retrieval.NewPriceIntentClassifier(embedder, retrieval.IntentConfig{
		Alpha: cfg.Retrieval.IntentAlpha,
		Gate:  cfg.Retrieval.IntentGate,
	}, logger)

	var extractor *retrieval.FilterExtractor
	provider, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("LLM provider unavailable, filter extraction disabled")
	} else {
		extractor = retrieval.NewFilterExtractor(provider, logger)
	}

	xref := retrieval.NewCrossReferencer(offerRepo, store, logger)

	service := retrieval.NewService(retriever, reranker, intent, extractor, xref, cacheClient, retrieval.ServiceConfig{
		ResultCap:    cfg.Retrieval.ResultCap,
		KeywordCap:   cfg.Retrieval.KeywordCap,
		CacheResults: cfg.Retrieval.CacheResults,
		CacheTTL:     cfg.Retrieval.CacheTTL,
	}, logger)

	engine := recommend.NewEngine(ratingRepo, store, recommend.Config{
		TopK:         cfg.Recommend.TopK,
		SimilarUsers: cfg.Recommend.SimilarUsers,
		HybridAlpha:  cfg.Recommend.HybridAlpha,
		RatingScale:  cfg.Recommend.RatingScale,
		CatalogLimit: cfg.Catalog.FetchLimit,
	}, logger)
	if err := engine.Build(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial recommendation build failed, serving empty recommendations")
	}

	app.Handler = newRouter(cfg, logger, service, engine, offerRepo, ingestor)
	return app, nil
}

func newRouter(
	cfg *config.Config,
	logger *observability.Logger,
	service *retrieval.Service,
	engine *recommend.Engine,
	offerRepo *storage.OfferRepository,
	ingestor *catalog.Ingestor,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"search-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	searchHandler := handlers.NewSearchHandler(logger, service)
	recommendHandler := handlers.NewRecommendHandler(logger, engine)
	offersHandler := handlers.NewOffersHandler(logger, offerRepo)
	ingestHandler := handlers.NewIngestHandler(logger, ingestor, cfg.Ingestion.ProductsCSV)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", searchHandler.Search)

		r.Route("/recommendations", func(r chi.Router) {
			r.Post("/user", recommendHandler.ForUser)
			r.Post("/similar", recommendHandler.Similar)
			r.Post("/hybrid", recommendHandler.Hybrid)
			r.Post("/refresh", recommendHandler.Refresh)
		})

		r.Get("/offers", offersHandler.List)
		r.Get("/offers/{productID}", offersHandler.ForProduct)

		r.Post("/ingest", ingestHandler.Ingest)
	})

	return r
}

func newCacheClient(cfg *config.Config, logger *observability.Logger) cache.Client {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err == nil {
			return client
		}
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries)
}

func newEmbedder(cfg *config.Config, logger *observability.Logger) embedding.Embedder {
	if cfg.Embedding.BaseURL == "" {
		logger.Warn().Msg("No embedding service configured, using deterministic mock embeddings")
		return embedding.NewMockClient(cfg.Embedding.Dimension)
	}

	client, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Embedding client unavailable, using deterministic mock embeddings")
		return embedding.NewMockClient(cfg.Embedding.Dimension)
	}
	return client
}

func newScorer(cfg *config.Config, logger *observability.Logger) retrieval.RelevanceScorer {
	if cfg.Scorer.BaseURL == "" {
		logger.Warn().Msg("No relevance scorer configured, search results keep retrieval order")
		return &retrieval.MockScorer{}
	}

	scorer, err := retrieval.NewHTTPScorer(retrieval.ScorerConfig{
		BaseURL: cfg.Scorer.BaseURL,
		APIKey:  cfg.Scorer.APIKey,
		Model:   cfg.Scorer.Model,
		Timeout: cfg.Scorer.Timeout,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Scorer unavailable, search results keep retrieval order")
		return &retrieval.MockScorer{}
	}
	return scorer
}

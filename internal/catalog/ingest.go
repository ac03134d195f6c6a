package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

// SnapshotReader supplies a full product snapshot for ingestion.
type SnapshotReader interface {
	ReadAll(ctx context.Context) ([]Product, error)
}

// IngestMarker records when the catalog was last successfully ingested.
type IngestMarker interface {
	LastIngest(ctx context.Context) (time.Time, error)
	RecordIngest(ctx context.Context, at time.Time, count int) error
}

// CSVSnapshot reads products from a CSV export. Expected header columns:
// id, title, description, categories, price, rating, weight, image, link,
// stock_status. Categories are pipe-separated within their cell.
type CSVSnapshot struct {
	Path string
}

// ReadAll parses the CSV file into products. Rows with an empty id are
// skipped; malformed numeric cells are treated as absent values.
func (s CSVSnapshot) ReadAll(ctx context.Context) ([]Product, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cell := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var products []Product
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot row: %w", err)
		}

		id := cell(row, "id")
		if id == "" {
			continue
		}

		p := Product{
			ID:          id,
			Title:       cell(row, "title"),
			Description: cell(row, "description"),
			Weight:      cell(row, "weight"),
			Image:       cell(row, "image"),
			Link:        cell(row, "link"),
			StockStatus: ParseStockStatus(cell(row, "stock_status")),
		}

		if cats := cell(row, "categories"); cats != "" {
			for _, c := range strings.Split(cats, "|") {
				if c = strings.TrimSpace(c); c != "" {
					p.Categories = append(p.Categories, c)
				}
			}
		}

		p.Price = ParsePrice(cell(row, "price"))
		if raw := cell(row, "rating"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				p.Rating = &v
			}
		}

		products = append(products, p)
	}

	return products, nil
}

// ParsePrice parses a price string, tolerating a leading currency symbol
// and surrounding whitespace. Returns nil when the value is unusable.
func ParsePrice(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	// Strip one leading non-digit run (currency symbol plus spacing).
	trimmed = strings.TrimLeftFunc(trimmed, func(r rune) bool {
		return !('0' <= r && r <= '9' || r == '.' || r == '-')
	})
	trimmed = strings.ReplaceAll(trimmed, ",", "")

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Ingestor loads product snapshots into the catalog store in chunks.
type Ingestor struct {
	store     Store
	embedder  embedding.Embedder
	marker    IngestMarker
	chunkSize int
	staleness time.Duration
	logger    *observability.Logger
}

// IngestorConfig holds ingestion settings.
type IngestorConfig struct {
	ChunkSize       int
	StalenessWindow time.Duration
}

// NewIngestor creates an ingestor. The marker may be nil, in which case
// every run ingests unconditionally.
func NewIngestor(store Store, embedder embedding.Embedder, marker IngestMarker, cfg IngestorConfig, logger *observability.Logger) *Ingestor {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}

	return &Ingestor{
		store:     store,
		embedder:  embedder,
		marker:    marker,
		chunkSize: chunkSize,
		staleness: cfg.StalenessWindow,
		logger:    logger,
	}
}

// Run ingests the snapshot unless the last successful ingest is still
// fresh. force bypasses the staleness gate. The progress callback, when
// non-nil, receives running counts for UI reporting. Returns the number
// of products ingested (0 when skipped as fresh).
func (ing *Ingestor) Run(ctx context.Context, src SnapshotReader, force bool, progress func(done, total int)) (int, error) {
	if !force && ing.marker != nil && ing.staleness > 0 {
		last, err := ing.marker.LastIngest(ctx)
		if err != nil {
			ing.logger.Warn().Err(err).Msg("Could not read last ingest time, proceeding")
		} else if !last.IsZero() && time.Since(last) < ing.staleness {
			ing.logger.Info().
				Dur("age", time.Since(last)).
				Msg("Catalog is fresh, skipping ingest")
			return 0, nil
		}
	}

	products, err := src.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	total := len(products)
	done := 0

	for start := 0; start < total; start += ing.chunkSize {
		end := start + ing.chunkSize
		if end > total {
			end = total
		}
		chunk := products[start:end]

		if ing.embedder != nil {
			passages := make([]string, len(chunk))
			for i, p := range chunk {
				passages[i] = p.Passage()
			}

			vectors, err := ing.embedder.Embed(ctx, passages)
			if err != nil {
				ing.logger.Warn().
					Err(err).
					Int("chunk_start", start).
					Msg("Embedding chunk failed, ingesting without vectors")
			} else {
				for i := range chunk {
					if i < len(vectors) {
						chunk[i].Vector = vectors[i]
					}
				}
			}
		}

		if err := ing.store.Upsert(ctx, chunk); err != nil {
			return done, fmt.Errorf("upsert chunk at %d: %w", start, err)
		}

		done = end
		if progress != nil {
			progress(done, total)
		}
	}

	if ing.marker != nil {
		if err := ing.marker.RecordIngest(ctx, time.Now(), total); err != nil {
			ing.logger.Warn().Err(err).Msg("Could not record ingest time")
		}
	}

	ing.logger.Info().Int("products", total).Msg("Catalog ingest complete")
	return total, nil
}

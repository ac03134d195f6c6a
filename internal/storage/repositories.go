package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shoplens-ai/search-engine/internal/observability"
)

// OfferRepository handles offer persistence and lookups.
type OfferRepository struct {
	db     DB
	logger *observability.Logger
}

// NewOfferRepository creates a new offer repository.
func NewOfferRepository(db DB, logger *observability.Logger) *OfferRepository {
	return &OfferRepository{db: db, logger: logger}
}

// Insert stores an offer. The product id list is serialized as JSON.
func (r *OfferRepository) Insert(ctx context.Context, offer *Offer) error {
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now()
	}

	ids, err := encodeProductIDs(offer.ProductIDs)
	if err != nil {
		return fmt.Errorf("encode product ids: %w", err)
	}

	query := `
		INSERT INTO offers (id, name, price, description, product_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		offer.ID, offer.Name, offer.Price, offer.Description, string(ids), offer.CreatedAt,
	)
	return err
}

// GetByID retrieves an offer by id.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*Offer, error) {
	query := `
		SELECT id, name, price, description, product_ids, created_at
		FROM offers WHERE id = $1
	`
	offer, err := r.scanOffer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return offer, err
}

// List returns all offers. Rows whose product id list fails to parse are
// logged and skipped rather than failing the whole listing.
func (r *OfferRepository) List(ctx context.Context) ([]*Offer, error) {
	query := `
		SELECT id, name, price, description, product_ids, created_at
		FROM offers ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*Offer
	for rows.Next() {
		var (
			offer Offer
			raw   string
		)
		if err := rows.Scan(&offer.ID, &offer.Name, &offer.Price, &offer.Description, &raw, &offer.CreatedAt); err != nil {
			return nil, err
		}

		ids, err := decodeProductIDs([]byte(raw))
		if err != nil {
			r.logger.Warn().
				Str("offer_id", offer.ID).
				Err(err).
				Msg("Skipping offer with malformed product id list")
			continue
		}
		offer.ProductIDs = ids

		offers = append(offers, &offer)
	}

	return offers, rows.Err()
}

// FindOffersContaining returns all offers that bundle the given product.
// Containment is checked against the strictly parsed product id list.
func (r *OfferRepository) FindOffersContaining(ctx context.Context, productID string) ([]*Offer, error) {
	offers, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*Offer
	for _, offer := range offers {
		for _, id := range offer.ProductIDs {
			if id == productID {
				matched = append(matched, offer)
				break
			}
		}
	}

	return matched, nil
}

func (r *OfferRepository) scanOffer(row *sql.Row) (*Offer, error) {
	var (
		offer Offer
		raw   string
	)
	if err := row.Scan(&offer.ID, &offer.Name, &offer.Price, &offer.Description, &raw, &offer.CreatedAt); err != nil {
		return nil, err
	}

	ids, err := decodeProductIDs([]byte(raw))
	if err != nil {
		return nil, err
	}
	offer.ProductIDs = ids

	return &offer, nil
}

// RatingRepository handles rating persistence and lookups.
type RatingRepository struct {
	db DB
}

// NewRatingRepository creates a new rating repository.
func NewRatingRepository(db DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Insert stores a rating. Existing rows for the same (user, product) are
// kept; readers resolve duplicates by timestamp.
func (r *RatingRepository) Insert(ctx context.Context, rating *Rating) error {
	if rating.RatedAt.IsZero() {
		rating.RatedAt = time.Now()
	}

	query := `
		INSERT INTO ratings (id, user_id, product_id, score, rated_at)
		VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM ratings), $1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		rating.UserID, rating.ProductID, rating.Score, rating.RatedAt,
	)
	return err
}

// ListAll returns every rating ordered by timestamp.
func (r *RatingRepository) ListAll(ctx context.Context) ([]Rating, error) {
	query := `
		SELECT id, user_id, product_id, score, rated_at
		FROM ratings ORDER BY rated_at, id
	`
	return r.listRatings(ctx, query)
}

// ListForUser returns a user's ratings ordered by timestamp.
func (r *RatingRepository) ListForUser(ctx context.Context, userID string) ([]Rating, error) {
	query := `
		SELECT id, user_id, product_id, score, rated_at
		FROM ratings WHERE user_id = $1 ORDER BY rated_at, id
	`
	return r.listRatings(ctx, query, userID)
}

func (r *RatingRepository) listRatings(ctx context.Context, query string, args ...interface{}) ([]Rating, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []Rating
	for rows.Next() {
		var rating Rating
		if err := rows.Scan(&rating.ID, &rating.UserID, &rating.ProductID, &rating.Score, &rating.RatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}

// IngestRunRepository records completed catalog ingests. It backs the
// ingestion staleness gate.
type IngestRunRepository struct {
	db DB
}

// NewIngestRunRepository creates a new ingest run repository.
func NewIngestRunRepository(db DB) *IngestRunRepository {
	return &IngestRunRepository{db: db}
}

// LastIngest returns the time of the most recent completed ingest, or
// the zero time when none has run.
func (r *IngestRunRepository) LastIngest(ctx context.Context) (time.Time, error) {
	query := `SELECT finished_at FROM ingest_runs ORDER BY finished_at DESC LIMIT 1`

	var finished time.Time
	err := r.db.QueryRowContext(ctx, query).Scan(&finished)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return finished, err
}

// RecordIngest stores a completed ingest run.
func (r *IngestRunRepository) RecordIngest(ctx context.Context, at time.Time, count int) error {
	query := `
		INSERT INTO ingest_runs (id, products, finished_at)
		VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM ingest_runs), $1, $2)
	`
	_, err := r.db.ExecContext(ctx, query, count, at)
	return err
}

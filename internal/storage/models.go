// Package storage provides database models and repositories for offers
// and user ratings.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Offer is a promotional bundle referencing catalog products by id.
// ProductIDs is persisted as a JSON array column.
type Offer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       *float64  `json:"price,omitempty"`
	Description string    `json:"description"`
	ProductIDs  []string  `json:"product_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// decodeProductIDs strictly parses a JSON array of product id strings.
// Anything that is not a flat string array is rejected.
func decodeProductIDs(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var ids []string
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&ids); err != nil {
		return nil, fmt.Errorf("parse product id list: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse product id list: trailing data")
	}
	return ids, nil
}

func encodeProductIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// Rating is a user's score for a product. Duplicate (user, product) rows
// are allowed; consumers resolve them latest-timestamp-wins.
type Rating struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Score     float64   `json:"score"`
	RatedAt   time.Time `json:"rated_at"`
}

// IngestRun records a completed catalog ingest.
type IngestRun struct {
	ID         int64     `json:"id"`
	Products   int       `json:"products"`
	FinishedAt time.Time `json:"finished_at"`
}

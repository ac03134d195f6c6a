package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/llm"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

const filterPrompt = `Extract price and rating constraints from this product search query.
Respond with only a JSON object, no prose. Schema:
{"price": {"op": "less_or_equal"|"greater_or_equal"|"equal", "value": <number>},
 "rating": {"op": "greater_or_equal", "value": <number>}}
Omit a field entirely when the query has no such constraint.

Query: %s`

// ExtractedFilters holds the constraints parsed from a free-text query.
type ExtractedFilters struct {
	// Predicate covers price constraints, nil when none were found.
	Predicate catalog.Predicate

	// MinRating is a requested rating floor, nil when none was found.
	MinRating *float64
}

// FilterExtractor derives structured filters from free text via a
// language model. Every failure mode collapses to "no extra filters"
// so retrieval falls back to its defaults.
type FilterExtractor struct {
	provider llm.Provider
	logger   *observability.Logger
}

// NewFilterExtractor creates a filter extractor.
func NewFilterExtractor(provider llm.Provider, logger *observability.Logger) *FilterExtractor {
	return &FilterExtractor{provider: provider, logger: logger}
}

type rawConstraint struct {
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

type rawFilters struct {
	Price  *rawConstraint `json:"price"`
	Rating *rawConstraint `json:"rating"`
}

// Extract asks the model for price and rating constraints. The model
// output must be a strict JSON object; anything else is logged and
// treated as no constraints.
func (e *FilterExtractor) Extract(ctx context.Context, query string) ExtractedFilters {
	output, err := e.provider.Invoke(ctx, fmt.Sprintf(filterPrompt, query))
	if err != nil {
		e.logger.Warn().Err(err).Msg("Filter extraction failed, using defaults")
		return ExtractedFilters{}
	}

	var raw rawFilters
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &raw); err != nil {
		e.logger.Warn().Err(err).Str("output", output).Msg("Filter output is not valid JSON, using defaults")
		return ExtractedFilters{}
	}

	var filters ExtractedFilters

	if raw.Price != nil {
		if value, ok := e.numericValue(raw.Price.Value, "price"); ok {
			switch catalog.Op(raw.Price.Op) {
			case catalog.OpLessOrEqual:
				filters.Predicate = catalog.MaxPrice(value)
			case catalog.OpGreaterOrEqual:
				filters.Predicate = catalog.Compare{Field: catalog.FieldPrice, Op: catalog.OpGreaterOrEqual, Number: value}
			case catalog.OpEqual:
				filters.Predicate = catalog.Compare{Field: catalog.FieldPrice, Op: catalog.OpEqual, Number: value}
			default:
				e.logger.Warn().Str("op", raw.Price.Op).Msg("Unknown price operator, ignoring")
			}
		}
	}

	if raw.Rating != nil {
		if value, ok := e.numericValue(raw.Rating.Value, "rating"); ok {
			filters.MinRating = &value
		}
	}

	return filters
}

// numericValue accepts a JSON number or a numeric string. Anything else
// is ignored with a warning.
func (e *FilterExtractor) numericValue(raw json.RawMessage, field string) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if num, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return num, true
		}
	}

	e.logger.Warn().
		Str("field", field).
		Str("value", string(raw)).
		Msg("Non-numeric filter value, ignoring")
	return 0, false
}

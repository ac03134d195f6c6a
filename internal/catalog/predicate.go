package catalog

import (
	"fmt"
	"strings"
)

// Field names a filterable product attribute.
type Field string

const (
	FieldPrice       Field = "price"
	FieldRating      Field = "rating"
	FieldStockStatus Field = "stock_status"
	FieldCategories  Field = "categories"
)

// Op is a comparison operator.
type Op string

const (
	OpEqual          Op = "equal"
	OpLessOrEqual    Op = "less_or_equal"
	OpGreaterOrEqual Op = "greater_or_equal"
	OpIsAbsent       Op = "is_absent"
)

// Predicate is an evaluable filter expression over product attributes.
type Predicate interface {
	Matches(p Product) bool
	String() string
}

// Compare is a single field comparison.
type Compare struct {
	Field  Field
	Op     Op
	Number float64
	Text   string
}

// Matches evaluates the comparison against a product.
func (c Compare) Matches(p Product) bool {
	switch c.Field {
	case FieldPrice:
		return compareNumber(p.Price, c.Op, c.Number)
	case FieldRating:
		return compareNumber(p.Rating, c.Op, c.Number)
	case FieldStockStatus:
		if c.Op != OpEqual {
			return false
		}
		return p.StockStatus == ParseStockStatus(c.Text)
	case FieldCategories:
		if c.Op != OpEqual {
			return false
		}
		for _, cat := range p.Categories {
			if strings.EqualFold(cat, c.Text) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (c Compare) String() string {
	if c.Op == OpIsAbsent {
		return fmt.Sprintf("%s is_absent", c.Field)
	}
	if c.Field == FieldStockStatus || c.Field == FieldCategories {
		return fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Text)
	}
	return fmt.Sprintf("%s %s %g", c.Field, c.Op, c.Number)
}

func compareNumber(val *float64, op Op, target float64) bool {
	if op == OpIsAbsent {
		return val == nil
	}
	if val == nil {
		return false
	}
	switch op {
	case OpEqual:
		return *val == target
	case OpLessOrEqual:
		return *val <= target
	case OpGreaterOrEqual:
		return *val >= target
	default:
		return false
	}
}

// And matches when all children match.
type And []Predicate

// Matches evaluates the conjunction.
func (a And) Matches(p Product) bool {
	for _, child := range a {
		if !child.Matches(p) {
			return false
		}
	}
	return true
}

func (a And) String() string {
	return joinPredicates([]Predicate(a), " AND ")
}

// Or matches when any child matches.
type Or []Predicate

// Matches evaluates the disjunction.
func (o Or) Matches(p Product) bool {
	for _, child := range o {
		if child.Matches(p) {
			return true
		}
	}
	return len(o) == 0
}

func (o Or) String() string {
	return joinPredicates([]Predicate(o), " OR ")
}

func joinPredicates(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// InStock returns the default availability predicate.
func InStock() Predicate {
	return Compare{Field: FieldStockStatus, Op: OpEqual, Text: string(StockInStock)}
}

// MaxPrice returns a price ceiling predicate.
func MaxPrice(limit float64) Predicate {
	return Compare{Field: FieldPrice, Op: OpLessOrEqual, Number: limit}
}

// MinRating returns a rating floor predicate that also admits unrated
// products, so items without reviews are not silently dropped.
func MinRating(floor float64) Predicate {
	return Or{
		Compare{Field: FieldRating, Op: OpGreaterOrEqual, Number: floor},
		Compare{Field: FieldRating, Op: OpIsAbsent},
	}
}

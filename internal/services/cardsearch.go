package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/deckmuse/deckmuse/backend/internal/metrics"
	"github.com/deckmuse/deckmuse/backend/internal/models"
)

// maxSearchResults is the hard ceiling on a single card search. Requested
// limits are clamped to it, never rejected, to protect the backing store
// from unbounded scans.
const maxSearchResults = 200

// searchableColumns maps filter field names to columns of the MTGJSON
// cards table. Fields outside this map are rejected; the projection below
// is the only data the adapter ever returns.
var searchableColumns = map[string]string{
	"name":            "name",
	"type":            "type",
	"text":            "text",
	"manaCost":        "manaCost",
	"manaValue":       "manaValue",
	"power":           "power",
	"toughness":       "toughness",
	"rarity":          "rarity",
	"setCode":         "setCode",
	"number":          "number",
	"edhrecRank":      "edhrecRank",
	"edhrecSaltiness": "edhrecSaltiness",
	"colors":          "colors",
	"colorIdentity":   "colorIdentity",
	"keywords":        "keywords",
	"subtypes":        "subtypes",
	"types":           "types",
	"uuid":            "uuid",
}

// projectionColumns is the fixed set of columns returned to callers.
var projectionColumns = []string{
	"name", "type", "text", "manaCost", "power", "toughness", "rarity",
	"setCode", "number", "manaValue", "edhrecRank", "edhrecSaltiness",
	"colorIdentity", "subtypes", "uuid", "types",
}

// FieldCondition is a single predicate on one card field. Exactly one of
// Contains or Equals is set; a bare scalar in the incoming JSON decodes as
// Equals.
type FieldCondition struct {
	Contains *string
	Equals   any
}

func (c *FieldCondition) UnmarshalJSON(data []byte) error {
	var obj struct {
		Contains *string `json:"contains"`
		Equals   any     `json:"equals"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && (obj.Contains != nil || obj.Equals != nil) {
		c.Contains = obj.Contains
		c.Equals = obj.Equals
		return nil
	}

	var scalar any
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	switch scalar.(type) {
	case string, float64, bool, nil:
		c.Equals = scalar
		return nil
	default:
		return fmt.Errorf("unsupported condition value: %s", string(data))
	}
}

// Filter is a recursive boolean expression over card field predicates,
// mirroring the where-object shape the model is instructed to produce:
// field conditions plus optional AND/OR/NOT branches, all implicitly
// conjoined.
type Filter struct {
	And    []Filter
	Or     []Filter
	Not    *Filter
	Fields map[string]FieldCondition
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter must be an object: %w", err)
	}

	for key, val := range raw {
		switch key {
		case "AND":
			if err := json.Unmarshal(val, &f.And); err != nil {
				return fmt.Errorf("AND must be a list of filters: %w", err)
			}
		case "OR":
			if err := json.Unmarshal(val, &f.Or); err != nil {
				return fmt.Errorf("OR must be a list of filters: %w", err)
			}
		case "NOT":
			f.Not = &Filter{}
			if err := json.Unmarshal(val, f.Not); err != nil {
				return fmt.Errorf("NOT must be a filter: %w", err)
			}
		default:
			var cond FieldCondition
			if err := json.Unmarshal(val, &cond); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			if f.Fields == nil {
				f.Fields = map[string]FieldCondition{}
			}
			f.Fields[key] = cond
		}
	}
	return nil
}

// OrderBy is a single-field sort directive.
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// buildCondition translates a filter tree into a parameterized SQL
// condition. Field names are emitted in sorted order so that identical
// filters always produce identical SQL.
func buildCondition(f *Filter) (string, []any, error) {
	var clauses []string
	var args []any

	fields := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, name := range fields {
		column, ok := searchableColumns[name]
		if !ok {
			return "", nil, fmt.Errorf("unknown card field %q", name)
		}
		cond := f.Fields[name]
		switch {
		case cond.Contains != nil:
			clauses = append(clauses, fmt.Sprintf("\"%s\" LIKE ?", column))
			args = append(args, "%"+*cond.Contains+"%")
		case cond.Equals == nil:
			clauses = append(clauses, fmt.Sprintf("\"%s\" IS NULL", column))
		default:
			clauses = append(clauses, fmt.Sprintf("\"%s\" = ?", column))
			args = append(args, cond.Equals)
		}
	}

	if len(f.And) > 0 {
		sub, subArgs, err := buildBranch(f.And, " AND ")
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, sub)
		args = append(args, subArgs...)
	}
	if len(f.Or) > 0 {
		sub, subArgs, err := buildBranch(f.Or, " OR ")
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, sub)
		args = append(args, subArgs...)
	}
	if f.Not != nil {
		sub, subArgs, err := buildCondition(f.Not)
		if err != nil {
			return "", nil, err
		}
		if sub != "" {
			clauses = append(clauses, "NOT ("+sub+")")
			args = append(args, subArgs...)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func buildBranch(filters []Filter, joiner string) (string, []any, error) {
	var parts []string
	var args []any
	for i := range filters {
		sub, subArgs, err := buildCondition(&filters[i])
		if err != nil {
			return "", nil, err
		}
		if sub == "" {
			continue
		}
		parts = append(parts, "("+sub+")")
		args = append(args, subArgs...)
	}
	return "(" + strings.Join(parts, joiner) + ")", args, nil
}

// clampTake bounds a requested result count to [1, maxSearchResults].
// Zero, negative, and missing values fall back to the ceiling.
func clampTake(take int) int {
	if take < 1 || take > maxSearchResults {
		return maxSearchResults
	}
	return take
}

// CardSearchService runs filter-tree searches against the card database.
type CardSearchService struct {
	db *gorm.DB
}

func NewCardSearchService(db *gorm.DB) *CardSearchService {
	return &CardSearchService{db: db}
}

// Search returns at most min(take, 200) cards matching the filter, with 200
// used when take is unset. A nil filter matches everything. Ordering without
// an orderBy directive is whatever the store returns.
func (s *CardSearchService) Search(ctx context.Context, filter *Filter, take int, orderBy *OrderBy) ([]models.Card, error) {
	query := s.db.WithContext(ctx).Model(&models.Card{}).Select(projectionColumns)

	if filter != nil {
		cond, args, err := buildCondition(filter)
		if err != nil {
			return nil, err
		}
		if cond != "" {
			query = query.Where(cond, args...)
		}
	}

	if orderBy != nil && orderBy.Field != "" {
		column, ok := searchableColumns[orderBy.Field]
		if !ok {
			return nil, fmt.Errorf("unknown order field %q", orderBy.Field)
		}
		direction := "ASC"
		if strings.EqualFold(orderBy.Direction, "desc") {
			direction = "DESC"
		}
		query = query.Order(fmt.Sprintf("\"%s\" %s", column, direction))
	}

	var cards []models.Card
	if err := query.Limit(clampTake(take)).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("card search failed: %w", err)
	}

	log.Printf("Card search: %d cards returned", len(cards))
	metrics.CardSearchResults.Observe(float64(len(cards)))
	return cards, nil
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"woodheaven_farms/internal/domain"
)

// ContentService manages the editorial tables behind the public pages.
type ContentService struct {
	records domain.RecordStore
	cache   domain.Cache
	ttl     time.Duration
}

func NewContentService(r domain.RecordStore, c domain.Cache, ttl time.Duration) *ContentService {
	return &ContentService{records: r, cache: c, ttl: ttl}
}

func contentKey(t domain.Table) string { return "content:" + string(t) }

func contentSpec(t domain.Table) (domain.TableSpec, error) {
	if !domain.IsContentTable(t) {
		return domain.TableSpec{}, fmt.Errorf("%w: no content table %q", domain.ErrNotFound, t)
	}
	return domain.LookupTable(t)
}

func (s *ContentService) List(ctx context.Context, table domain.Table) ([]domain.Record, error) {
	spec, err := contentSpec(table)
	if err != nil {
		return nil, err
	}
	return readThrough(ctx, s.cache, s.ttl, contentKey(table), func(ctx context.Context) ([]domain.Record, error) {
		rows, err := s.records.Select(ctx, table, domain.Query{Order: spec.Order})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		if rows == nil {
			rows = []domain.Record{}
		}
		return rows, nil
	})
}

// Save inserts the record when it carries no id and merges it otherwise.
func (s *ContentService) Save(ctx context.Context, table domain.Table, in domain.Record) (domain.Record, error) {
	spec, err := contentSpec(table)
	if err != nil {
		return nil, err
	}
	rec, err := cleanRecord(spec, in)
	if err != nil {
		return nil, err
	}

	var rows []domain.Record
	if _, hasID := rec[spec.Key]; hasID {
		rows, err = s.records.Upsert(ctx, table, []domain.Record{rec})
	} else {
		if table == domain.TableHouseRules {
			if _, ok := rec["sort_order"]; !ok {
				rec["sort_order"] = int64(1)
			}
		}
		rows, err = s.records.Insert(ctx, table, []domain.Record{rec})
	}
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", table, err)
	}
	evict(ctx, s.cache, contentKey(table))
	if len(rows) == 0 {
		return rec, nil
	}
	return rows[0], nil
}

func (s *ContentService) Delete(ctx context.Context, table domain.Table, id string) error {
	if _, err := contentSpec(table); err != nil {
		return err
	}
	n, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, table, []domain.Filter{domain.Eq("id", n)}); err != nil {
		return fmt.Errorf("delete %s %d: %w", table, n, err)
	}
	evict(ctx, s.cache, contentKey(table))
	return nil
}

// cleanRecord drops unknown and store-assigned columns, coerces values to
// their column kind and checks required fields.
func cleanRecord(spec domain.TableSpec, in domain.Record) (domain.Record, error) {
	out := domain.Record{}
	for _, c := range spec.Columns {
		v, present := in[c.Name]
		if c.Name == spec.Key {
			if present && !blankID(v) {
				n, err := toInt(c.Name, v)
				if err != nil {
					return nil, err
				}
				out[c.Name] = n
			}
			continue
		}
		if c.Auto {
			continue
		}
		if !present || v == nil {
			if c.Required {
				return nil, domain.Invalid(c.Name, "is required")
			}
			continue
		}
		switch c.Kind {
		case domain.KindInt:
			n, err := toInt(c.Name, v)
			if err != nil {
				return nil, err
			}
			out[c.Name] = n
		case domain.KindList:
			items, err := toList(c.Name, v)
			if err != nil {
				return nil, err
			}
			out[c.Name] = items
		default:
			str, ok := v.(string)
			if !ok {
				return nil, domain.Invalid(c.Name, "must be text")
			}
			if c.Required && strings.TrimSpace(str) == "" {
				return nil, domain.Invalid(c.Name, "is required")
			}
			out[c.Name] = strings.TrimSpace(str)
		}
	}
	return out, nil
}

func blankID(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case float64:
		return x == 0
	}
	return false
}

func toInt(field string, v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, domain.Invalid(field, "must be a whole number")
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, domain.Invalid(field, "must be a whole number")
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, domain.Invalid(field, "must be a whole number")
		}
		return i, nil
	}
	return 0, domain.Invalid(field, "must be a whole number")
}

// toList accepts a JSON array of strings or a block of text with one item
// per line.
func toList(field string, v any) ([]string, error) {
	var raw []string
	switch x := v.(type) {
	case []string:
		raw = x
	case []any:
		for _, it := range x {
			s, ok := it.(string)
			if !ok {
				return nil, domain.Invalid(field, "must be a list of text")
			}
			raw = append(raw, s)
		}
	case string:
		raw = strings.Split(x, "\n")
	default:
		return nil, domain.Invalid(field, "must be a list of text")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.Invalid("id", "must be a positive integer")
	}
	return n, nil
}

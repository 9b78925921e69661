// Package memory is a process-local RecordStore. It backs mock mode (no
// backend configured) and the service tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"woodheaven_farms/internal/domain"
)

// timeLayout has a fixed fraction width so that timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Store struct {
	mu   sync.RWMutex
	rows map[domain.Table][]domain.Record
	seq  map[domain.Table]int64
	now  func() time.Time
}

func New() *Store {
	return &Store{
		rows: map[domain.Table][]domain.Record{},
		seq:  map[domain.Table]int64{},
		now:  time.Now,
	}
}

// WithClock replaces the clock used for auto timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Select(ctx context.Context, table domain.Table, q domain.Query) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(spec, filterColumns(q.Filters)...); err != nil {
		return nil, err
	}
	for _, o := range q.Order {
		if err := checkColumns(spec, o.Column); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	var out []domain.Record
	for _, r := range s.rows[table] {
		if matches(r, q.Filters) {
			out = append(out, clone(r))
		}
	}
	s.mu.RUnlock()

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	prepared := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		n, err := normalize(spec, r)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, 0, len(prepared))
	for _, r := range prepared {
		if key, ok := r[spec.Key]; ok && s.indexOf(table, spec.Key, key) >= 0 {
			return nil, fmt.Errorf("%w: duplicate %s %v in %s", domain.ErrConflict, spec.Key, key, table)
		}
		s.fillAuto(spec, r)
		s.rows[table] = append(s.rows[table], r)
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	prepared := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		n, err := normalize(spec, r)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, 0, len(prepared))
	for _, r := range prepared {
		key, hasKey := r[spec.Key]
		if i := s.indexOf(table, spec.Key, key); hasKey && i >= 0 {
			existing := s.rows[table][i]
			for k, v := range r {
				existing[k] = v
			}
			out = append(out, clone(existing))
			continue
		}
		s.fillAuto(spec, r)
		s.rows[table] = append(s.rows[table], r)
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table domain.Table, match []domain.Filter, patch domain.Record) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(spec, filterColumns(match)...); err != nil {
		return nil, err
	}
	p, err := normalize(spec, patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Record
	for _, r := range s.rows[table] {
		if !matches(r, match) {
			continue
		}
		for k, v := range p {
			r[k] = v
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, table domain.Table, match []domain.Filter) error {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return err
	}
	if len(match) == 0 {
		return fmt.Errorf("%w: delete without filter", domain.ErrBadRequest)
	}
	if err := checkColumns(spec, filterColumns(match)...); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[table][:0]
	for _, r := range s.rows[table] {
		if !matches(r, match) {
			kept = append(kept, r)
		}
	}
	s.rows[table] = kept
	return nil
}

func (s *Store) indexOf(table domain.Table, key string, v any) int {
	if v == nil {
		return -1
	}
	for i, r := range s.rows[table] {
		if equal(r[key], v) {
			return i
		}
	}
	return -1
}

// fillAuto assigns serial keys and creation timestamps. Caller holds mu.
func (s *Store) fillAuto(spec domain.TableSpec, r domain.Record) {
	for _, c := range spec.Columns {
		if !c.Auto || r[c.Name] != nil {
			continue
		}
		switch c.Kind {
		case domain.KindSerial:
			s.seq[spec.Name]++
			r[c.Name] = float64(s.seq[spec.Name])
		case domain.KindTime:
			r[c.Name] = s.now().UTC().Format(timeLayout)
		}
	}
	// keep the sequence ahead of explicit ids
	if c, ok := spec.Column(spec.Key); ok && c.Kind == domain.KindSerial {
		if n, ok := toInt(r[spec.Key]); ok && n > s.seq[spec.Name] {
			s.seq[spec.Name] = n
		}
	}
}

// normalize rejects unknown columns and reduces values to their JSON form,
// the shape a remote backend hands back.
func normalize(spec domain.TableSpec, r domain.Record) (domain.Record, error) {
	for k := range r {
		if _, ok := spec.Column(k); !ok {
			return nil, fmt.Errorf("%w: column %q does not exist on %s", domain.ErrBadRequest, k, spec.Name)
		}
	}
	out := clone(r)
	for k, v := range out {
		c, _ := spec.Column(k)
		if c.Kind == domain.KindTime {
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					out[k] = t.UTC().Format(timeLayout)
				}
			}
		}
	}
	return out, nil
}

func checkColumns(spec domain.TableSpec, cols ...string) error {
	for _, c := range cols {
		if _, ok := spec.Column(c); !ok {
			return fmt.Errorf("%w: column %q does not exist on %s", domain.ErrBadRequest, c, spec.Name)
		}
	}
	return nil
}

func filterColumns(fs []domain.Filter) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Column
	}
	return out
}

func matches(r domain.Record, fs []domain.Filter) bool {
	for _, f := range fs {
		if f.Fold {
			if r[f.Column] == nil || f.Value == nil ||
				!strings.EqualFold(domain.FormatValue(r[f.Column]), domain.FormatValue(f.Value)) {
				return false
			}
			continue
		}
		if !equal(r[f.Column], f.Value) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return domain.FormatValue(a) == domain.FormatValue(b)
}

func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	sa, sb := domain.FormatValue(a), domain.FormatValue(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func clone(r domain.Record) domain.Record {
	b, err := json.Marshal(r)
	if err != nil {
		out := make(domain.Record, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	var out domain.Record
	_ = json.Unmarshal(b, &out)
	return out
}

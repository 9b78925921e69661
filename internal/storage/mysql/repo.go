// Package mysql implements domain.RecordStore on MySQL for self-hosted
// deployments. The schema lives in migrations/.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"woodheaven_farms/internal/domain"
)

const (
	errDuplicateEntry = 1062
	datetimeLayout    = "2006-01-02 15:04:05.999999999"
)

// DSN returns raw with the options the store depends on forced:
// DATETIME columns scan as time.Time, in UTC.
func DSN(raw string) (string, error) {
	cfg, err := driver.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Repo) Select(ctx context.Context, table domain.Table, q domain.Query) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	return selectRows(ctx, r.db, spec, q)
}

func (r *Repo) Insert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	return r.write(ctx, table, rows, insertSQL)
}

func (r *Repo) Upsert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	return r.write(ctx, table, rows, upsertSQL)
}

// write runs one statement per row inside a transaction and reads each row
// back by key so that defaults and auto columns are returned.
func (r *Repo) write(ctx context.Context, table domain.Table, rows []domain.Record, build func(domain.TableSpec, []string) string) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	keyCol, _ := spec.Column(spec.Key)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		cols, args, err := bindRecord(spec, row)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("%w: empty record for %s", domain.ErrBadRequest, table)
		}
		res, err := tx.ExecContext(ctx, build(spec, cols), args...)
		if err != nil {
			return nil, mapErr(table, err)
		}
		key := row[spec.Key]
		if key == nil && keyCol.Kind == domain.KindSerial {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, err
			}
			key = id
		}
		if key == nil {
			return nil, fmt.Errorf("%w: %s requires %s", domain.ErrBadRequest, table, spec.Key)
		}
		k, err := bindValue(keyCol, key)
		if err != nil {
			return nil, err
		}
		got, err := selectRows(ctx, tx, spec, domain.Query{Filters: []domain.Filter{domain.Eq(spec.Key, k)}, Limit: 1})
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, table domain.Table, match []domain.Filter, patch domain.Record) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	cols, args, err := bindRecord(spec, patch)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: empty patch for %s", domain.ErrBadRequest, table)
	}
	fargs, err := bindFilters(spec, match)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, updateSQL(spec, cols, match), append(args, fargs...)...); err != nil {
		return nil, mapErr(table, err)
	}

	// Rows whose filter column was patched are found under the new value.
	after := make([]domain.Filter, len(match))
	for i, f := range match {
		if v, ok := patch[f.Column]; ok {
			f.Value = v
		}
		after[i] = f
	}
	out, err := selectRows(ctx, tx, spec, domain.Query{Filters: after, Order: spec.Order})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, table domain.Table, match []domain.Filter) error {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return err
	}
	if len(match) == 0 {
		return fmt.Errorf("%w: delete without filter", domain.ErrBadRequest)
	}
	args, err := bindFilters(spec, match)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, deleteSQL(spec, match), args...); err != nil {
		return mapErr(table, err)
	}
	return nil
}

func selectRows(ctx context.Context, db querier, spec domain.TableSpec, q domain.Query) ([]domain.Record, error) {
	args, err := bindFilters(spec, q.Filters)
	if err != nil {
		return nil, err
	}
	for _, o := range q.Order {
		if _, ok := spec.Column(o.Column); !ok {
			return nil, unknownColumn(spec, o.Column)
		}
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, selectSQL(spec, q), args...)
	if err != nil {
		return nil, mapErr(spec.Name, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		vals := make([]any, len(spec.Columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(domain.Record, len(vals))
		for i, c := range spec.Columns {
			v, err := scanValue(c, vals[i])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", spec.Name, c.Name, err)
			}
			rec[c.Name] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// bindRecord returns the record's columns in a stable order with their
// driver arguments.
func bindRecord(spec domain.TableSpec, r domain.Record) ([]string, []any, error) {
	cols := make([]string, 0, len(r))
	for k := range r {
		if _, ok := spec.Column(k); !ok {
			return nil, nil, unknownColumn(spec, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, k := range cols {
		c, _ := spec.Column(k)
		v, err := bindValue(c, r[k])
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	return cols, args, nil
}

func bindFilters(spec domain.TableSpec, fs []domain.Filter) ([]any, error) {
	args := make([]any, len(fs))
	for i, f := range fs {
		c, ok := spec.Column(f.Column)
		if !ok {
			return nil, unknownColumn(spec, f.Column)
		}
		v, err := bindValue(c, f.Value)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// bindValue converts a JSON-shaped value into what the column stores.
func bindValue(c domain.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case domain.KindInt, domain.KindSerial:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, domain.Invalid(c.Name, "must be an integer")
			}
			return i, nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return nil, domain.Invalid(c.Name, "must be an integer")
			}
			return i, nil
		}
		return nil, domain.Invalid(c.Name, "must be an integer")
	case domain.KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			p, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, domain.Invalid(c.Name, "must be an RFC 3339 timestamp")
			}
			return p.UTC(), nil
		}
		return nil, domain.Invalid(c.Name, "must be a timestamp")
	case domain.KindList:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, domain.Invalid(c.Name, "must be a list")
		}
		return string(b), nil
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
}

// scanValue converts a scanned driver value back to its JSON shape.
func scanValue(c domain.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch c.Kind {
	case domain.KindInt, domain.KindSerial:
		if s, ok := v.(string); ok {
			return strconv.ParseInt(s, 10, 64)
		}
		return v, nil
	case domain.KindDate:
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02"), nil
		}
		return v, nil
	case domain.KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(time.RFC3339Nano), nil
		case string:
			// connection opened without parseTime
			pt, err := time.ParseInLocation(datetimeLayout, t, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return pt.Format(time.RFC3339Nano), nil
		}
		return v, nil
	case domain.KindList:
		s, _ := v.(string)
		items := []string{}
		if s != "" {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
	return v, nil
}

func unknownColumn(spec domain.TableSpec, col string) error {
	return fmt.Errorf("%w: column %q does not exist on %s", domain.ErrBadRequest, col, spec.Name)
}

func mapErr(table domain.Table, err error) error {
	var me *driver.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		return fmt.Errorf("%w: %s: %s", domain.ErrConflict, table, me.Message)
	}
	if errors.Is(err, driver.ErrInvalidConn) {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", table, err)
}

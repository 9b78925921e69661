package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"woodheaven_farms/internal/domain"
)

// Records is the PostgREST record API.
type Records struct{ c *Client }

func (c *Client) Records() *Records { return &Records{c: c} }

func (r *Records) Select(ctx context.Context, table domain.Table, q domain.Query) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	v, err := filterValues(spec, q.Filters)
	if err != nil {
		return nil, err
	}
	v.Set("select", "*")
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			if _, ok := spec.Column(o.Column); !ok {
				return nil, unknownColumn(spec, o.Column)
			}
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	var out []domain.Record
	err = r.c.do(ctx, call{
		method:   http.MethodGet,
		path:     restPath(table, v),
		endpoint: "rest:" + string(table),
	}, &out)
	return out, err
}

func (r *Records) Insert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	return r.write(ctx, table, rows, "return=representation", nil)
}

// Upsert merges rows on the table key.
func (r *Records) Upsert(ctx context.Context, table domain.Table, rows []domain.Record) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("on_conflict", spec.Key)
	return r.write(ctx, table, rows, "resolution=merge-duplicates,return=representation", v)
}

func (r *Records) write(ctx context.Context, table domain.Table, rows []domain.Record, prefer string, v url.Values) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for _, row := range rows {
		if err := checkRecord(spec, row); err != nil {
			return nil, err
		}
	}
	cl, err := r.c.jsonCall(http.MethodPost, restPath(table, v), "rest:"+string(table), rows)
	if err != nil {
		return nil, err
	}
	cl.header = http.Header{"Prefer": {prefer}}

	var out []domain.Record
	return out, r.c.do(ctx, cl, &out)
}

func (r *Records) Update(ctx context.Context, table domain.Table, match []domain.Filter, patch domain.Record) ([]domain.Record, error) {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := checkRecord(spec, patch); err != nil {
		return nil, err
	}
	v, err := filterValues(spec, match)
	if err != nil {
		return nil, err
	}
	cl, err := r.c.jsonCall(http.MethodPatch, restPath(table, v), "rest:"+string(table), patch)
	if err != nil {
		return nil, err
	}
	cl.header = http.Header{"Prefer": {"return=representation"}}

	var out []domain.Record
	return out, r.c.do(ctx, cl, &out)
}

func (r *Records) Delete(ctx context.Context, table domain.Table, match []domain.Filter) error {
	spec, err := domain.LookupTable(table)
	if err != nil {
		return err
	}
	if len(match) == 0 {
		return fmt.Errorf("%w: delete without filter", domain.ErrBadRequest)
	}
	v, err := filterValues(spec, match)
	if err != nil {
		return err
	}
	return r.c.do(ctx, call{
		method:   http.MethodDelete,
		path:     restPath(table, v),
		endpoint: "rest:" + string(table),
	}, nil)
}

func restPath(table domain.Table, v url.Values) string {
	p := "/rest/v1/" + url.PathEscape(string(table))
	if len(v) > 0 {
		p += "?" + v.Encode()
	}
	return p
}

// filterValues renders equality filters as col=eq.value.
func filterValues(spec domain.TableSpec, fs []domain.Filter) (url.Values, error) {
	v := url.Values{}
	for _, f := range fs {
		if _, ok := spec.Column(f.Column); !ok {
			return nil, unknownColumn(spec, f.Column)
		}
		if f.Value == nil {
			v.Add(f.Column, "is.null")
			continue
		}
		if f.Fold {
			v.Add(f.Column, "ilike."+likeLiteral(domain.FormatValue(f.Value)))
			continue
		}
		v.Add(f.Column, "eq."+domain.FormatValue(f.Value))
	}
	return v, nil
}

// likeLiteral escapes LIKE wildcards, including PostgREST's '*', so an
// ilike filter never matches more than the value itself.
func likeLiteral(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `\*`)

func checkRecord(spec domain.TableSpec, r domain.Record) error {
	for k := range r {
		if _, ok := spec.Column(k); !ok {
			return unknownColumn(spec, k)
		}
	}
	return nil
}

func unknownColumn(spec domain.TableSpec, col string) error {
	return fmt.Errorf("%w: column %q does not exist on %s", domain.ErrBadRequest, col, spec.Name)
}

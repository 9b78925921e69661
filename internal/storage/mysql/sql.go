package mysql

import (
	"strings"

	"woodheaven_farms/internal/domain"
)

// Identifiers are never taken from callers verbatim: every table and column
// passes through domain.LookupTable / TableSpec.Column first. They are still
// quoted, since `text` and `name` collide with MySQL keywords.
func ident(s string) string { return "`" + s + "`" }

func identList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = ident(c)
	}
	return strings.Join(q, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func where(filters []domain.Filter) string {
	if len(filters) == 0 {
		return ""
	}
	conds := make([]string, len(filters))
	for i, f := range filters {
		if f.Fold {
			conds[i] = "LOWER(" + ident(f.Column) + ") = LOWER(?)"
			continue
		}
		conds[i] = ident(f.Column) + " = ?"
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// selectSQL renders SELECT <all columns> FROM t [WHERE ..] [ORDER BY ..] [LIMIT ?].
func selectSQL(spec domain.TableSpec, q domain.Query) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(identList(spec.ColumnNames()))
	b.WriteString(" FROM ")
	b.WriteString(ident(string(spec.Name)))
	b.WriteString(where(q.Filters))
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = ident(o.Column) + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
	}
	return b.String()
}

func insertSQL(spec domain.TableSpec, cols []string) string {
	return "INSERT INTO " + ident(string(spec.Name)) +
		" (" + identList(cols) + ") VALUES (" + placeholders(len(cols)) + ")"
}

// upsertSQL merges on the primary key: provided columns overwrite, the
// rest keep their stored values.
func upsertSQL(spec domain.TableSpec, cols []string) string {
	var set []string
	for _, c := range cols {
		if c == spec.Key {
			continue
		}
		set = append(set, ident(c)+" = VALUES("+ident(c)+")")
	}
	if len(set) == 0 {
		set = []string{ident(spec.Key) + " = " + ident(spec.Key)}
	}
	return insertSQL(spec, cols) + " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
}

func updateSQL(spec domain.TableSpec, cols []string, filters []domain.Filter) string {
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = ident(c) + " = ?"
	}
	return "UPDATE " + ident(string(spec.Name)) + " SET " + strings.Join(set, ", ") + where(filters)
}

func deleteSQL(spec domain.TableSpec, filters []domain.Filter) string {
	return "DELETE FROM " + ident(string(spec.Name)) + where(filters)
}

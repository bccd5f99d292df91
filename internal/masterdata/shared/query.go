package shared

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// FiltersFromQuery reads page, limit, search and active from the query string.
func FiltersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{Page: page, Limit: limit, Search: strings.TrimSpace(q.Get("search"))}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err == nil {
			filters.IsActive = &active
		}
	}
	return filters.Normalize()
}

// Where accumulates AND-ed conditions with positional arguments.
type Where struct {
	clauses []string
	args    []any
}

// Add appends a condition. Every %s in cond is replaced by the placeholder
// of arg.
func (w *Where) Add(cond string, arg any) {
	w.args = append(w.args, arg)
	placeholder := "$" + strconv.Itoa(len(w.args))
	w.clauses = append(w.clauses, strings.ReplaceAll(cond, "%s", placeholder))
}

// Search adds a case-insensitive match of term against any of columns.
func (w *Where) Search(term string, columns ...string) {
	if term == "" || len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE %s"
	}
	w.Add("("+strings.Join(parts, " OR ")+")", "%"+term+"%")
}

// SQL renders the WHERE clause, or an empty string.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the collected arguments.
func (w *Where) Args() []any {
	return w.args
}

// Paged appends ORDER BY, LIMIT and OFFSET to query and returns the extended
// argument list.
func (w *Where) Paged(query, orderBy string, filters ListFilters) (string, []any) {
	args := append([]any(nil), w.args...)
	query += w.SQL() + " ORDER BY " + orderBy
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return query, args
}

// Page is a paged listing response.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

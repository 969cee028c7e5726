package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Query builds a request against a named collection on the backend's row
// surface. Builder methods return the query for chaining; Get, Single,
// Insert, Update and Delete execute it.
type Query struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	order   string
}

// From starts a query against the named collection.
func (c *Client) From(table string) *Query {
	return &Query{
		client:  c,
		table:   table,
		columns: "*",
		filters: url.Values{},
	}
}

// Select restricts the columns returned by Get or Single.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq filters rows where column equals value. Also scopes Update and Delete.
func (q *Query) Eq(column, value string) *Query {
	q.filters.Set(column, "eq."+value)
	return q
}

// Order sorts the result by the given column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = column + "." + dir
	return q
}

// Get executes the query and decodes the resulting rows into dest.
func (q *Query) Get(ctx context.Context, dest any) error {
	return q.client.do(ctx, http.MethodGet, q.path(), q.query(true), nil, dest)
}

// Single executes the query expecting exactly one row, decoded into dest.
func (q *Query) Single(ctx context.Context, dest any) error {
	values := q.query(true)
	values.Set("limit", "1")

	var rows []jsonRow
	if err := q.client.do(ctx, http.MethodGet, q.path(), values, nil, &rows); err != nil {
		return err
	}
	if len(rows) != 1 {
		return &BackendError{Status: http.StatusNotAcceptable, Code: "PGRST116",
			Message: fmt.Sprintf("expected a single row in %s, got %d", q.table, len(rows))}
	}
	return rows[0].decode(dest)
}

// Insert adds rows to the collection. rows may be a single struct or a
// slice.
func (q *Query) Insert(ctx context.Context, rows any) error {
	return q.client.do(ctx, http.MethodPost, q.path(), q.query(false), rows, nil)
}

// Update patches all rows matching the query's filters.
func (q *Query) Update(ctx context.Context, patch any) error {
	return q.client.do(ctx, http.MethodPatch, q.path(), q.query(false), patch, nil)
}

// Delete removes all rows matching the query's filters.
func (q *Query) Delete(ctx context.Context) error {
	return q.client.do(ctx, http.MethodDelete, q.path(), q.query(false), nil, nil)
}

func (q *Query) path() string {
	return "/rest/v1/" + q.table
}

// query assembles the filter parameters; selection and ordering only apply
// to reads.
func (q *Query) query(read bool) url.Values {
	values := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	if read {
		values.Set("select", q.columns)
		if q.order != "" {
			values.Set("order", q.order)
		}
	}
	return values
}

// jsonRow defers decoding a row until its shape is known.
type jsonRow []byte

func (r *jsonRow) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

func (r jsonRow) decode(dest any) error {
	if err := json.Unmarshal(r, dest); err != nil {
		return fmt.Errorf("decoding row: %w", err)
	}
	return nil
}

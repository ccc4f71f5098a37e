package firebase

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/model"
)

// database maps tables onto top-level Firestore collections. Field names
// are stored in camelCase as they are.
type database struct{ p *Provider }

func docPath(table, id string) string {
	if id == "" {
		return "/" + url.PathEscape(table)
	}
	return "/" + url.PathEscape(table) + "/" + url.PathEscape(id)
}

func (d *database) doc(ctx context.Context, table, id string, req httpclient.Request) (model.Record, error) {
	var doc document
	if err := d.p.client().JSON(ctx, req, &doc); err != nil {
		return nil, httpclient.ToAppError(backend, table, id, err)
	}
	return doc.toRecord(), nil
}

func (d *database) Create(ctx context.Context, table string, data model.Record) (model.Record, error) {
	req := httpclient.Request{
		Method: http.MethodPost,
		Path:   docPath(table, ""),
		Body:   document{Fields: fieldsOf(data)},
	}
	if id := data.ID(); id != "" {
		req.Query = url.Values{"documentId": {id}}
	}
	return d.doc(ctx, table, data.ID(), req)
}

func (d *database) Read(ctx context.Context, table, id string) (model.Record, error) {
	return d.doc(ctx, table, id, httpclient.Request{Method: http.MethodGet, Path: docPath(table, id)})
}

// Update patches only the given fields and fails if the document is missing.
func (d *database) Update(ctx context.Context, table, id string, data model.Record) (model.Record, error) {
	q := url.Values{"currentDocument.exists": {"true"}}
	for _, f := range fieldPaths(data) {
		q.Add("updateMask.fieldPaths", f)
	}
	return d.doc(ctx, table, id, httpclient.Request{
		Method: http.MethodPatch,
		Path:   docPath(table, id),
		Query:  q,
		Body:   document{Fields: fieldsOf(data)},
	})
}

func (d *database) Delete(ctx context.Context, table, id string) error {
	// Firestore deletes are idempotent; check existence to report NOT_FOUND.
	if _, err := d.Read(ctx, table, id); err != nil {
		return err
	}
	_, err := d.p.client().Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: docPath(table, id)})
	return httpclient.ToAppError(backend, table, id, err)
}

type queryResult struct {
	Document *document `json:"document"`
}

// List runs a structured query with equality filters.
func (d *database) List(ctx context.Context, table string, filters cloud.Filters, opts *cloud.ListOptions) ([]model.Record, error) {
	query := map[string]any{"from": []map[string]string{{"collectionId": table}}}
	if where := whereClause(filters); where != nil {
		query["where"] = where
	}
	if opts != nil {
		if opts.OrderBy != "" {
			dir := "ASCENDING"
			if opts.Descending {
				dir = "DESCENDING"
			}
			field := opts.OrderBy
			if field == "id" {
				field = "__name__"
			}
			query["orderBy"] = []map[string]any{{"field": map[string]string{"fieldPath": field}, "direction": dir}}
		}
		if opts.Limit > 0 {
			query["limit"] = opts.Limit
		}
		if opts.Offset > 0 {
			query["offset"] = opts.Offset
		}
	}
	d.p.mu.RLock()
	target := documentsURL(d.p.creds) + ":runQuery"
	d.p.mu.RUnlock()

	var results []queryResult
	err := d.p.client().JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   target,
		Body:   map[string]any{"structuredQuery": query},
	}, &results)
	if err != nil {
		return nil, httpclient.ToAppError(backend, table, "", err)
	}
	rows := make([]model.Record, 0, len(results))
	for _, r := range results {
		if r.Document != nil {
			rows = append(rows, r.Document.toRecord())
		}
	}
	return rows, nil
}

func whereClause(filters cloud.Filters) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	clauses := make([]map[string]any, len(keys))
	for i, k := range keys {
		clauses[i] = map[string]any{"fieldFilter": map[string]any{
			"field": map[string]string{"fieldPath": k},
			"op":    "EQUAL",
			"value": encodeValue(filters[k]),
		}}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return map[string]any{"compositeFilter": map[string]any{"op": "AND", "filters": clauses}}
}

// Search lists the collection and matches term client side, because
// Firestore has no substring queries.
func (d *database) Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error) {
	rows, err := d.List(ctx, table, nil, nil)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows, nil
	}
	out := rows[:0]
	for _, rec := range rows {
		for _, f := range fields {
			if s, ok := rec[f].(string); ok && strings.Contains(strings.ToLower(s), term) {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

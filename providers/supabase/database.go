package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/domain"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/model"
)

// database maps the generic table calls onto PostgREST.
type database struct{ p *Provider }

func (d *database) headers(write bool) map[string]string {
	h := map[string]string{}
	for k, v := range profileHeaders(d.p.creds.schema, write) {
		h[k] = v
	}
	if write {
		h["Prefer"] = "return=representation"
	}
	return h
}

func (d *database) rows(ctx context.Context, table, id string, req httpclient.Request) ([]model.Record, error) {
	var rows []model.Record
	if err := d.p.api().JSON(ctx, req, &rows); err != nil {
		return nil, httpclient.ToAppError(backend, table, id, err)
	}
	return domain.CamelRecords(rows), nil
}

func (d *database) Create(ctx context.Context, table string, data model.Record) (model.Record, error) {
	rows, err := d.rows(ctx, table, data.ID(), httpclient.Request{
		Method:  http.MethodPost,
		Path:    restPath(table),
		Headers: d.headers(true),
		Body:    domain.SnakeRecord(data),
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.ExternalServiceError(backend, fmt.Errorf("insert into %s returned no row", table))
	}
	return rows[0], nil
}

func (d *database) Read(ctx context.Context, table, id string) (model.Record, error) {
	rows, err := d.rows(ctx, table, id, httpclient.Request{
		Method:  http.MethodGet,
		Path:    restPath(table),
		Query:   url.Values{"select": {"*"}, "id": {"eq." + id}},
		Headers: d.headers(false),
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NotFound(table, id)
	}
	return rows[0], nil
}

func (d *database) Update(ctx context.Context, table, id string, data model.Record) (model.Record, error) {
	rows, err := d.rows(ctx, table, id, httpclient.Request{
		Method:  http.MethodPatch,
		Path:    restPath(table),
		Query:   url.Values{"id": {"eq." + id}},
		Headers: d.headers(true),
		Body:    domain.SnakeRecord(data),
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NotFound(table, id)
	}
	return rows[0], nil
}

func (d *database) Delete(ctx context.Context, table, id string) error {
	_, err := d.p.api().Do(ctx, httpclient.Request{
		Method:  http.MethodDelete,
		Path:    restPath(table),
		Query:   url.Values{"id": {"eq." + id}},
		Headers: d.headers(true),
	})
	return httpclient.ToAppError(backend, table, id, err)
}

func (d *database) List(ctx context.Context, table string, filters cloud.Filters, opts *cloud.ListOptions) ([]model.Record, error) {
	q := url.Values{"select": {"*"}}
	for k, v := range filters {
		q.Set(domain.ToSnake(k), "eq."+literal(v))
	}
	if opts != nil {
		if opts.OrderBy != "" {
			dir := "asc"
			if opts.Descending {
				dir = "desc"
			}
			q.Set("order", domain.ToSnake(opts.OrderBy)+"."+dir)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	return d.rows(ctx, table, "", httpclient.Request{
		Method:  http.MethodGet,
		Path:    restPath(table),
		Query:   q,
		Headers: d.headers(false),
	})
}

func (d *database) Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error) {
	if len(fields) == 0 {
		return d.List(ctx, table, nil, nil)
	}
	pattern := "*" + sanitizeTerm(term) + "*"
	conds := make([]string, len(fields))
	for i, f := range fields {
		conds[i] = domain.ToSnake(f) + ".ilike." + pattern
	}
	return d.rows(ctx, table, "", httpclient.Request{
		Method:  http.MethodGet,
		Path:    restPath(table),
		Query:   url.Values{"select": {"*"}, "or": {"(" + strings.Join(conds, ",") + ")"}},
		Headers: d.headers(false),
	})
}

// literal renders a filter value as PostgREST expects it.
func literal(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprint(val)
	}
}

// sanitizeTerm strips the characters that delimit PostgREST or-conditions.
func sanitizeTerm(term string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*':
			return -1
		}
		return r
	}, strings.TrimSpace(term))
}

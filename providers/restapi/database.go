package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/domain"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/model"
)

// database maps tables onto /{table} resources. The API speaks snake_case
// and may name the key _id; both are normalized.
type database struct{ p *Provider }

func resource(table string, id ...string) string {
	p := "/" + url.PathEscape(table)
	for _, part := range id {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// call performs req and decodes the data member of the response envelope
// into out. Bodies without an envelope are decoded as they are.
func (d *database) call(ctx context.Context, table, id string, req httpclient.Request, out any) error {
	resp, err := d.p.api().Do(ctx, req)
	if err != nil {
		return httpclient.ToAppError(backend, table, id, err)
	}
	if out == nil {
		return nil
	}
	if err := unwrap(resp.Body, out); err != nil {
		return errors.ExternalServiceError(backend, fmt.Errorf("decode %s response: %w", table, err))
	}
	return nil
}

func unwrap(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
	}
	return json.Unmarshal(body, out)
}

// normalize converts an API row into a camelCase record keyed by id.
func normalize(rec model.Record) model.Record {
	if rec == nil {
		return nil
	}
	if v, ok := rec["_id"]; ok {
		if _, has := rec["id"]; !has {
			rec["id"] = v
		}
		delete(rec, "_id")
	}
	return domain.CamelRecord(rec)
}

func normalizeAll(rows []model.Record) []model.Record {
	for i := range rows {
		rows[i] = normalize(rows[i])
	}
	return rows
}

func (d *database) one(ctx context.Context, table, id string, req httpclient.Request) (model.Record, error) {
	var rec model.Record
	if err := d.call(ctx, table, id, req, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NotFound(table, id)
	}
	return normalize(rec), nil
}

func (d *database) Create(ctx context.Context, table string, data model.Record) (model.Record, error) {
	return d.one(ctx, table, data.ID(), httpclient.Request{
		Method: http.MethodPost,
		Path:   resource(table),
		Body:   domain.SnakeRecord(data),
	})
}

func (d *database) Read(ctx context.Context, table, id string) (model.Record, error) {
	return d.one(ctx, table, id, httpclient.Request{Method: http.MethodGet, Path: resource(table, id)})
}

func (d *database) Update(ctx context.Context, table, id string, data model.Record) (model.Record, error) {
	return d.one(ctx, table, id, httpclient.Request{
		Method: http.MethodPatch,
		Path:   resource(table, id),
		Body:   domain.SnakeRecord(data),
	})
}

func (d *database) Delete(ctx context.Context, table, id string) error {
	return d.call(ctx, table, id, httpclient.Request{Method: http.MethodDelete, Path: resource(table, id)}, nil)
}

// List passes filters as query parameters next to sort, order, limit
// and offset.
func (d *database) List(ctx context.Context, table string, filters cloud.Filters, opts *cloud.ListOptions) ([]model.Record, error) {
	q := url.Values{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(domain.ToSnake(k), queryValue(filters[k]))
	}
	if opts != nil {
		if opts.OrderBy != "" {
			q.Set("sort", domain.ToSnake(opts.OrderBy))
			order := "asc"
			if opts.Descending {
				order = "desc"
			}
			q.Set("order", order)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var rows []model.Record
	if err := d.call(ctx, table, "", httpclient.Request{Method: http.MethodGet, Path: resource(table), Query: q}, &rows); err != nil {
		return nil, err
	}
	return normalizeAll(rows), nil
}

func (d *database) Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error) {
	snake := make([]string, len(fields))
	for i, f := range fields {
		snake[i] = domain.ToSnake(f)
	}
	var rows []model.Record
	err := d.call(ctx, table, "", httpclient.Request{
		Method: http.MethodGet,
		Path:   resource(table, "search"),
		Query:  url.Values{"q": {term}, "fields": {strings.Join(snake, ",")}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return normalizeAll(rows), nil
}

func queryValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/model"
)

// memDB is an in-memory cloud.Database. Tables listed in broken fail every
// call; ids listed in rejectIDs fail on create.
type memDB struct {
	mu        sync.Mutex
	tables    map[string]map[string]model.Record
	seq       int
	broken    map[string]bool
	rejectIDs map[string]bool
}

func newMemDB() *memDB {
	return &memDB{
		tables:    make(map[string]map[string]model.Record),
		broken:    make(map[string]bool),
		rejectIDs: make(map[string]bool),
	}
}

func (m *memDB) check(table string) error {
	if m.broken[table] {
		return errors.ConnectionFailed("memdb")
	}
	return nil
}

func (m *memDB) Create(_ context.Context, table string, data model.Record) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(table); err != nil {
		return nil, err
	}
	rec := data.Clone()
	id := rec.ID()
	if id == "" {
		m.seq++
		id = fmt.Sprintf("%s-%d", table, m.seq)
		rec["id"] = id
	}
	if m.rejectIDs[id] {
		return nil, errors.InvalidInput("id", "rejected")
	}
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]model.Record)
	}
	if _, exists := m.tables[table][id]; exists {
		return nil, errors.AlreadyExists(table)
	}
	m.tables[table][id] = rec
	return rec.Clone(), nil
}

func (m *memDB) Read(_ context.Context, table, id string) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(table); err != nil {
		return nil, err
	}
	rec, ok := m.tables[table][id]
	if !ok {
		return nil, errors.NotFound(table, id)
	}
	return rec.Clone(), nil
}

func (m *memDB) Update(_ context.Context, table, id string, data model.Record) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(table); err != nil {
		return nil, err
	}
	rec, ok := m.tables[table][id]
	if !ok {
		return nil, errors.NotFound(table, id)
	}
	for k, v := range data {
		rec[k] = v
	}
	return rec.Clone(), nil
}

func (m *memDB) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(table); err != nil {
		return err
	}
	if _, ok := m.tables[table][id]; !ok {
		return errors.NotFound(table, id)
	}
	delete(m.tables[table], id)
	return nil
}

func (m *memDB) List(_ context.Context, table string, filters cloud.Filters, opts *cloud.ListOptions) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(table); err != nil {
		return nil, err
	}
	var out []model.Record
	for _, rec := range m.tables[table] {
		match := true
		for k, v := range filters {
			if fmt.Sprint(rec[k]) != fmt.Sprint(v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, rec.Clone())
		}
	}
	orderBy, desc := "id", false
	if opts != nil && opts.OrderBy != "" {
		orderBy, desc = opts.OrderBy, opts.Descending
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := fmt.Sprint(out[i][orderBy]), fmt.Sprint(out[j][orderBy])
		if desc {
			return a > b
		}
		return a < b
	})
	if opts != nil && opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memDB) Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error) {
	rows, err := m.List(ctx, table, nil, nil)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	var out []model.Record
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

func (m *memDB) put(table string, rec model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]model.Record)
	}
	m.tables[table][rec.ID()] = rec
}

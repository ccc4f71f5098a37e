// Package domain implements the salon marketplace operations on top of a
// generic cloud.Database, so every provider shares the same business rules.
//
// Reads log backend failures and return nil or an empty slice. Writes
// validate their input and return every error.
package domain

import (
	"context"
	"time"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

// Set bundles the domain operations of one provider. Providers embed it to
// gain the domain getters together with ExportData and ImportData.
type Set struct {
	db  cloud.Database
	log *logger.Logger
	now func() time.Time
}

// Option configures a Set.
type Option func(*Set)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Set) { s.now = now }
}

// New creates the domain operations for db.
func New(db cloud.Database, log *logger.Logger, opts ...Option) *Set {
	if log == nil {
		log = logger.Nop()
	}
	s := &Set{db: db, log: log.WithComponent("domain"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Set) Salons() cloud.Salons             { return salons{s} }
func (s *Set) Services() cloud.Services         { return services{s} }
func (s *Set) Appointments() cloud.Appointments { return appointments{s} }
func (s *Set) Reviews() cloud.Reviews           { return reviews{s} }
func (s *Set) News() cloud.News                 { return news{s} }
func (s *Set) Promotions() cloud.Promotions     { return promotions{s} }
func (s *Set) Admin() cloud.Admin               { return admin{s} }
func (s *Set) Profiles() cloud.Profiles         { return profiles{s} }

func (s *Set) timestamp() time.Time { return s.now().UTC() }

// list returns the rows of table, or nil after logging a failure.
func (s *Set) list(ctx context.Context, table string, filters cloud.Filters, opts *cloud.ListOptions) []model.Record {
	rows, err := s.db.List(ctx, table, filters, opts)
	if err != nil {
		s.log.Warn("list failed", logger.Fields(
			logger.FieldTable, table, logger.FieldError, err))
		return nil
	}
	return rows
}

// pageSize stays below PostgREST's default max-rows so a full page is never
// silently capped.
const pageSize = 500

// listAll reads every matching row page by page, ordered by id.
func (s *Set) listAll(ctx context.Context, table string, filters cloud.Filters) ([]model.Record, error) {
	var all []model.Record
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.db.List(ctx, table, filters, &cloud.ListOptions{OrderBy: "id", Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		// A backend that ignores limit returns everything at once.
		if len(rows) != pageSize {
			return all, nil
		}
	}
}

// count is len(listAll), or 0 after logging a failure.
func (s *Set) count(ctx context.Context, table string, filters cloud.Filters) int {
	rows, err := s.listAll(ctx, table, filters)
	if err != nil {
		s.log.Warn("count failed", logger.Fields(logger.FieldTable, table, logger.FieldError, err))
		return 0
	}
	return len(rows)
}

// read returns one row, or nil after logging a failure.
func (s *Set) read(ctx context.Context, table, id string) model.Record {
	if id == "" {
		return nil
	}
	rec, err := s.db.Read(ctx, table, id)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeNotFound) {
			s.log.Warn("read failed", logger.Fields(
				logger.FieldTable, table, logger.FieldRecordID, id, logger.FieldError, err))
		}
		return nil
	}
	return rec
}

func (s *Set) search(ctx context.Context, table, term string, fields []string) []model.Record {
	rows, err := s.db.Search(ctx, table, term, fields)
	if err != nil {
		s.log.Warn("search failed", logger.Fields(
			logger.FieldTable, table, logger.FieldError, err))
		return nil
	}
	return rows
}

// create validates v, converts it and stores it. An empty id is left for
// the backend to assign.
func (s *Set) create(ctx context.Context, table string, v any) (model.Record, error) {
	if err := validation.Validate(v); err != nil {
		return nil, err
	}
	rec, err := model.ToRecord(v)
	if err != nil {
		return nil, errors.InvalidInput("", err.Error())
	}
	if rec.ID() == "" {
		delete(rec, "id")
	}
	if _, ok := rec["createdAt"]; !ok {
		rec["createdAt"] = s.timestamp().Format(time.RFC3339Nano)
	}
	out, err := s.db.Create(ctx, table, rec)
	if err != nil {
		s.log.Error("create failed", logger.Fields(logger.FieldTable, table, logger.FieldError, err))
		return nil, err
	}
	return out, nil
}

func (s *Set) update(ctx context.Context, table, id string, data model.Record, touch bool) (model.Record, error) {
	if id == "" {
		return nil, errors.MissingField("id")
	}
	data = data.Clone()
	delete(data, "id")
	delete(data, "createdAt")
	if touch {
		data["updatedAt"] = s.timestamp().Format(time.RFC3339Nano)
	}
	out, err := s.db.Update(ctx, table, id, data)
	if err != nil {
		s.log.Error("update failed", logger.Fields(
			logger.FieldTable, table, logger.FieldRecordID, id, logger.FieldError, err))
		return nil, err
	}
	return out, nil
}

func (s *Set) delete(ctx context.Context, table, id string) error {
	if id == "" {
		return errors.MissingField("id")
	}
	if err := s.db.Delete(ctx, table, id); err != nil {
		s.log.Error("delete failed", logger.Fields(
			logger.FieldTable, table, logger.FieldRecordID, id, logger.FieldError, err))
		return err
	}
	return nil
}

// typed decodes the result of a write.
func typed[T any](rec model.Record, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	out := model.Decode[T](rec)
	if out == nil {
		return nil, errors.Internal(nil).WithDetail("reason", "backend returned an undecodable record")
	}
	return out, nil
}

func ordered(field string, desc bool) *cloud.ListOptions {
	return &cloud.ListOptions{OrderBy: field, Descending: desc}
}

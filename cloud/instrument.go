package cloud

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/observability"
)

// DatabaseMiddleware decorates a Database.
type DatabaseMiddleware func(Database) Database

// Chain applies middlewares to db. The first middleware is the outermost.
func Chain(db Database, middlewares ...DatabaseMiddleware) Database {
	for i := len(middlewares) - 1; i >= 0; i-- {
		db = middlewares[i](db)
	}
	return db
}

// Instrument wraps a provider's database with tracing and logging.
func Instrument(db Database, backend string, log *logger.Logger) Database {
	return Chain(db, WithTracing(backend), WithLogging(backend, log))
}

// WithLogging returns a DatabaseMiddleware that logs each call with its
// duration. Failed calls log at warn level, except NOT_FOUND reads.
func WithLogging(backend string, log *logger.Logger) DatabaseMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return func(inner Database) Database {
		return &loggingDB{inner: inner, backend: backend, log: log}
	}
}

type loggingDB struct {
	inner   Database
	backend string
	log     *logger.Logger
}

func (l *loggingDB) done(op, table string, start time.Time, err error) {
	fields := logger.Fields(
		logger.FieldProvider, l.backend,
		logger.FieldTable, table,
		logger.FieldOperation, op,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	switch {
	case err == nil:
		l.log.Debug("database call ok", fields)
	case errors.HasCode(err, errors.ErrCodeNotFound):
		l.log.Debug("database record not found", fields)
	default:
		fields[logger.FieldError] = err.Error()
		l.log.Warn("database call failed", fields)
	}
}

func (l *loggingDB) Create(ctx context.Context, table string, data model.Record) (model.Record, error) {
	start := time.Now()
	rec, err := l.inner.Create(ctx, table, data)
	l.done("create", table, start, err)
	return rec, err
}

func (l *loggingDB) Read(ctx context.Context, table, id string) (model.Record, error) {
	start := time.Now()
	rec, err := l.inner.Read(ctx, table, id)
	l.done("read", table, start, err)
	return rec, err
}

func (l *loggingDB) Update(ctx context.Context, table, id string, data model.Record) (model.Record, error) {
	start := time.Now()
	rec, err := l.inner.Update(ctx, table, id, data)
	l.done("update", table, start, err)
	return rec, err
}

func (l *loggingDB) Delete(ctx context.Context, table, id string) error {
	start := time.Now()
	err := l.inner.Delete(ctx, table, id)
	l.done("delete", table, start, err)
	return err
}

func (l *loggingDB) List(ctx context.Context, table string, filters Filters, opts *ListOptions) ([]model.Record, error) {
	start := time.Now()
	rows, err := l.inner.List(ctx, table, filters, opts)
	l.done("list", table, start, err)
	return rows, err
}

func (l *loggingDB) Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error) {
	start := time.Now()
	rows, err := l.inner.Search(ctx, table, term, fields)
	l.done("search", table, start, err)
	return rows, err
}

// WithTracing returns a DatabaseMiddleware that opens a span named
// "{backend}.db.{operation}" around each call.
func WithTracing(backend string) DatabaseMiddleware {
	return func(inner Database) Database {
		return &tracingDB{inner: inner, backend: backend}
	}
}

type tracingDB struct {
	inner   Database
	backend string
}

func (t *tracingDB) start(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, t.backend+".db."+op,
		observability.AttrBackend.String(t.backend),
		observability.AttrTable.String(table),
	)
}

func (t *tracingDB) Create(ctx context.Context, table string, data model.Record) (rec model.Record, err error) {
	ctx, span := t.start(ctx, "create", table)
	defer func() { observability.EndSpan(span, err) }()
	return t.inner.Create(ctx, table, data)
}

func (t *tracingDB) Read(ctx context.Context, table, id string) (rec model.Record, err error) {
	ctx, span := t.start(ctx, "read", table)
	defer func() { observability.EndSpan(span, err) }()
	return t.inner.Read(ctx, table, id)
}

func (t *tracingDB) Update(ctx context.Context, table, id string, data model.Record) (rec model.Record, err error) {
	ctx, span := t.start(ctx, "update", table)
	defer func() { observability.EndSpan(span, err) }()
	return t.inner.Update(ctx, table, id, data)
}

func (t *tracingDB) Delete(ctx context.Context, table, id string) (err error) {
	ctx, span := t.start(ctx, "delete", table)
	defer func() { observability.EndSpan(span, err) }()
	return t.inner.Delete(ctx, table, id)
}

func (t *tracingDB) List(ctx context.Context, table string, filters Filters, opts *ListOptions) (rows []model.Record, err error) {
	ctx, span := t.start(ctx, "list", table)
	defer func() { observability.EndSpan(span, err) }()
	return t.inner.List(ctx, table, filters, opts)
}

func (t *tracingDB) Search(ctx context.Context, table, term string, fields []string) (rows []model.Record, err error) {
	ctx, span := t.start(ctx, "search", table)
	defer func() { observability.EndSpan(span, err) }()
	return t.inner.Search(ctx, table, term, fields)
}

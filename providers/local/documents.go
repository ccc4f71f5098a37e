package local

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/database"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/model"
)

// document stores one record of any table as JSON.
type document struct {
	Collection string            `gorm:"primaryKey;size:64"`
	ID         string            `gorm:"primaryKey;size:128"`
	Data       datatypes.JSONMap `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (document) TableName() string { return "documents" }

func (d document) record() model.Record {
	rec := model.Record(d.Data).Clone()
	rec["id"] = d.ID
	return rec
}

// documents implements cloud.Database over the documents table and
// publishes every write to the change feed.
type documents struct {
	p    *Provider
	db   *database.DB
	feed feed
}

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// field returns the SQL expression reading key from the JSON column. text
// selects a text value for comparisons; otherwise the native JSON value is
// kept so numbers sort numerically.
func (d *documents) field(key string, text bool) clause.Expr {
	if key == "id" {
		return clause.Expr{SQL: "id"}
	}
	if d.db.Driver() == database.DriverPostgres {
		if text {
			return clause.Expr{SQL: "(data->>?)", Vars: []any{key}}
		}
		return clause.Expr{SQL: "(data->?)", Vars: []any{key}}
	}
	return clause.Expr{SQL: "json_extract(data, ?)", Vars: []any{"$." + key}}
}

func (d *documents) find(tx *gorm.DB, table, id string) (*document, error) {
	var doc document
	err := tx.Where("collection = ? AND id = ?", table, id).First(&doc).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound(table, id)
	}
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	return &doc, nil
}

func (d *documents) Create(ctx context.Context, table string, data model.Record) (model.Record, error) {
	rec := data.Clone()
	id := rec.ID()
	if id == "" {
		id = uuid.NewString()
	}
	delete(rec, "id")
	doc := document{Collection: table, ID: id, Data: datatypes.JSONMap(rec)}

	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := d.find(tx, table, id); err == nil {
			return errors.AlreadyExists(table).WithDetail("id", id)
		} else if !errors.HasCode(err, errors.ErrCodeNotFound) {
			return err
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, storeError(table, id, err)
	}
	out := doc.record()
	d.feed.publish(ctx, cloud.Change{Type: cloud.ChangeInsert, Table: table, Record: out})
	return out, nil
}

func (d *documents) Read(ctx context.Context, table, id string) (model.Record, error) {
	doc, err := d.find(d.db.Gorm.WithContext(ctx), table, id)
	if err != nil {
		return nil, err
	}
	return doc.record(), nil
}

// Update merges data into the stored record.
func (d *documents) Update(ctx context.Context, table, id string, data model.Record) (model.Record, error) {
	var old, out model.Record
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		doc, err := d.find(tx, table, id)
		if err != nil {
			return err
		}
		old = doc.record()
		merged := model.Record(doc.Data).Clone()
		for k, v := range data {
			if k != "id" {
				merged[k] = v
			}
		}
		doc.Data = datatypes.JSONMap(merged)
		if err := tx.Save(doc).Error; err != nil {
			return err
		}
		out = doc.record()
		return nil
	})
	if err != nil {
		return nil, storeError(table, id, err)
	}
	d.feed.publish(ctx, cloud.Change{Type: cloud.ChangeUpdate, Table: table, Record: out, Old: old})
	return out, nil
}

func (d *documents) Delete(ctx context.Context, table, id string) error {
	var old model.Record
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		doc, err := d.find(tx, table, id)
		if err != nil {
			return err
		}
		old = doc.record()
		return tx.Where("collection = ? AND id = ?", table, id).Delete(&document{}).Error
	})
	if err != nil {
		return storeError(table, id, err)
	}
	d.feed.publish(ctx, cloud.Change{Type: cloud.ChangeDelete, Table: table, Old: old})
	return nil
}

// List matches filters with JSON equality on the data column.
func (d *documents) List(ctx context.Context, table string, filters cloud.Filters, opts *cloud.ListOptions) ([]model.Record, error) {
	tx := d.db.Gorm.WithContext(ctx).Where("collection = ?", table)
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "id" {
			tx = tx.Where("id = ?", fmt.Sprint(filters[k]))
			continue
		}
		tx = tx.Where(datatypes.JSONQuery("data").Equals(filters[k], k))
	}

	ordered := false
	if opts != nil {
		if opts.OrderBy != "" {
			if !fieldName.MatchString(opts.OrderBy) {
				return nil, errors.InvalidInput("orderBy", "unsupported field name")
			}
			dir := "ASC"
			if opts.Descending {
				dir = "DESC"
			}
			f := d.field(opts.OrderBy, false)
			tx = tx.Order(clause.OrderBy{Expression: clause.Expr{SQL: "? " + dir + ", created_at, id", Vars: []any{f}}})
			ordered = true
		}
		if opts.Limit > 0 {
			tx = tx.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			tx = tx.Offset(opts.Offset)
		}
	}
	if !ordered {
		tx = tx.Order("created_at, id")
	}

	var docs []document
	if err := tx.Find(&docs).Error; err != nil {
		return nil, errors.DatabaseError(err)
	}
	return records(docs), nil
}

// Search matches term case-insensitively against any of fields.
func (d *documents) Search(ctx context.Context, table, term string, fields []string) ([]model.Record, error) {
	tx := d.db.Gorm.WithContext(ctx).Where("collection = ?", table)
	term = strings.ToLower(strings.TrimSpace(term))
	if term != "" && len(fields) > 0 {
		pattern := "%" + escapeLike(term) + "%"
		var parts []string
		var vars []any
		for _, f := range fields {
			if !fieldName.MatchString(f) {
				return nil, errors.InvalidInput("fields", "unsupported field name "+f)
			}
			parts = append(parts, `LOWER(?) LIKE ? ESCAPE '\'`)
			vars = append(vars, d.field(f, true), pattern)
		}
		tx = tx.Where(clause.Expr{SQL: "(" + strings.Join(parts, " OR ") + ")", Vars: vars})
	}
	var docs []document
	if err := tx.Order("created_at, id").Find(&docs).Error; err != nil {
		return nil, errors.DatabaseError(err)
	}
	return records(docs), nil
}

func records(docs []document) []model.Record {
	out := make([]model.Record, len(docs))
	for i, doc := range docs {
		out[i] = doc.record()
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func storeError(table, id string, err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.AlreadyExists(table).WithDetail("id", id)
	}
	return errors.DatabaseError(err)
}

// matches reports whether rec holds every filter value.
func matches(rec model.Record, filters cloud.Filters) bool {
	for k, want := range filters {
		if fmt.Sprint(rec[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

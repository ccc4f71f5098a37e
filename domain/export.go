package domain

import (
	"context"
	"sort"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
)

// ExportData reads every entity table in full, page by page. A table that
// cannot be read is logged and exported as empty.
func (s *Set) ExportData(ctx context.Context) (model.Snapshot, error) {
	snap := make(model.Snapshot, len(model.Tables))
	for _, table := range model.Tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.listAll(ctx, table, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.log.Warn("export skipped table", logger.Fields(logger.FieldTable, table, logger.FieldError, err))
			rows = []model.Record{}
		}
		snap[table] = rows
	}
	s.log.Info("export finished", logger.Fields("records", snap.Count()))
	return snap, nil
}

// ImportData creates the records one at a time, parents first. Failed
// records are logged and reported; only cancellation stops the import.
func (s *Set) ImportData(ctx context.Context, data model.Snapshot) (*cloud.ImportReport, error) {
	report := &cloud.ImportReport{Tables: make(map[string]*cloud.TableImport, len(data))}
	for _, table := range importOrder(data) {
		t := &cloud.TableImport{}
		report.Tables[table] = t
		for _, rec := range data[table] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if _, err := s.db.Create(ctx, table, rec); err != nil {
				s.log.Warn("import failed", logger.Fields(
					logger.FieldTable, table, logger.FieldRecordID, rec.ID(), logger.FieldError, err))
				t.Failures = append(t.Failures, cloud.RecordFailure{ID: rec.ID(), Error: err.Error()})
				continue
			}
			t.Imported++
		}
	}
	return report, nil
}

// importOrder lists the known tables in dependency order followed by any
// others present in data, sorted.
func importOrder(data model.Snapshot) []string {
	order := make([]string, 0, len(data))
	for _, table := range model.Tables {
		if _, ok := data[table]; ok {
			order = append(order, table)
		}
	}
	var extra []string
	for table := range data {
		if !model.KnownTable(table) {
			extra = append(extra, table)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

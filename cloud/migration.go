package cloud

import (
	"context"
	"time"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
)

// TableReport is the migration outcome for one table.
type TableReport struct {
	Exported int             `json:"exported"`
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

// MigrationReport is returned by Migrate.
type MigrationReport struct {
	From       string                  `json:"from"`
	To         string                  `json:"to"`
	Tables     map[string]*TableReport `json:"tables"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
}

// Totals sums the per-table counters.
func (r *MigrationReport) Totals() (exported, imported, skipped, failed int) {
	for _, t := range r.Tables {
		exported += t.Exported
		imported += t.Imported
		skipped += t.Skipped
		failed += len(t.Failures)
	}
	return
}

func (r *MigrationReport) table(name string) *TableReport {
	t, ok := r.Tables[name]
	if !ok {
		t = &TableReport{}
		r.Tables[name] = t
	}
	return t
}

// Migrate copies every record from one provider to another. The export is
// staged and validated first: records of unknown tables, records without an
// id and repeated ids are skipped and reported. The remaining records are
// imported in a single ImportData call. Nothing is rolled back.
func (r *Registry) Migrate(ctx context.Context, from, to Provider) (*MigrationReport, error) {
	exporter, ok := from.(Exporter)
	if !ok {
		return nil, errors.CapabilityMissing(from.Name(), "export")
	}
	importer, ok := to.(Importer)
	if !ok {
		return nil, errors.CapabilityMissing(to.Name(), "import")
	}
	report := &MigrationReport{
		From:      from.Name(),
		To:        to.Name(),
		Tables:    make(map[string]*TableReport),
		StartedAt: time.Now().UTC(),
	}
	log := r.log.WithFields(logger.Fields("from", report.From, "to", report.To))
	log.Info("migration started")

	data, err := exporter.ExportData(ctx)
	if err != nil {
		return nil, err
	}
	staged := stage(data, report)

	imported, err := importer.ImportData(ctx, staged)
	if err != nil {
		return nil, err
	}
	if imported != nil {
		for name, res := range imported.Tables {
			t := report.table(name)
			t.Imported += res.Imported
			t.Failures = append(t.Failures, res.Failures...)
		}
	}
	report.FinishedAt = time.Now().UTC()

	for name, t := range report.Tables {
		r.metrics.Migrated(ctx, name, "imported", t.Imported)
		r.metrics.Migrated(ctx, name, "skipped", t.Skipped)
		r.metrics.Migrated(ctx, name, "failed", len(t.Failures)-t.Skipped)
	}
	exported, n, skipped, failed := report.Totals()
	log.Info("migration finished", logger.Fields(
		"exported", exported, "imported", n, "skipped", skipped, "failed", failed,
		logger.FieldDuration, report.FinishedAt.Sub(report.StartedAt).Milliseconds()))
	return report, nil
}

// stage validates the export and returns the records that may be imported.
func stage(data model.Snapshot, report *MigrationReport) model.Snapshot {
	staged := make(model.Snapshot, len(data))
	for table, rows := range data {
		t := report.table(table)
		t.Exported = len(rows)
		if !model.KnownTable(table) {
			for _, rec := range rows {
				t.skip(rec.ID(), "unknown table "+table)
			}
			continue
		}
		seen := make(map[string]bool, len(rows))
		kept := make([]model.Record, 0, len(rows))
		for _, rec := range rows {
			id := rec.ID()
			switch {
			case id == "":
				t.skip("", "missing id")
			case seen[id]:
				t.skip(id, "duplicate id")
			default:
				seen[id] = true
				kept = append(kept, rec)
			}
		}
		if len(kept) == len(rows) {
			kept = rows
		}
		staged[table] = kept
	}
	return staged
}

func (t *TableReport) skip(id, reason string) {
	t.Skipped++
	t.Failures = append(t.Failures, RecordFailure{ID: id, Error: reason})
}

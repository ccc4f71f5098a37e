package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/glowbook/model"
)

// stubProvider implements Provider with nil sub-interfaces.
type stubProvider struct {
	name      string
	initErr   error
	connected bool
	closed    bool
	creds     map[string]string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Initialize(_ context.Context, creds map[string]string) error {
	if p.initErr != nil {
		return p.initErr
	}
	p.creds = creds
	p.connected = true
	return nil
}

func (p *stubProvider) IsConnected() bool { return p.connected }

func (p *stubProvider) ConnectionStatus() ConnectionStatus {
	if p.connected {
		return ConnectionStatus{Connected: true, Message: "ok"}
	}
	return ConnectionStatus{Message: "offline"}
}

func (p *stubProvider) Close(context.Context) error {
	p.closed = true
	return nil
}

func (p *stubProvider) Auth() Auth                 { return nil }
func (p *stubProvider) Database() Database         { return nil }
func (p *stubProvider) Storage() Storage           { return nil }
func (p *stubProvider) Salons() Salons             { return nil }
func (p *stubProvider) Services() Services         { return nil }
func (p *stubProvider) Appointments() Appointments { return nil }
func (p *stubProvider) Reviews() Reviews           { return nil }
func (p *stubProvider) News() News                 { return nil }
func (p *stubProvider) Promotions() Promotions     { return nil }
func (p *stubProvider) Admin() Admin               { return nil }
func (p *stubProvider) Profiles() Profiles         { return nil }

// dataProvider adds export and import and records the call order.
type dataProvider struct {
	stubProvider
	mu       sync.Mutex
	calls    *[]string
	data     model.Snapshot
	imported []model.Snapshot
	failIDs  map[string]bool
}

func (p *dataProvider) ExportData(context.Context) (model.Snapshot, error) {
	p.record("export:" + p.name)
	return p.data, nil
}

func (p *dataProvider) ImportData(_ context.Context, data model.Snapshot) (*ImportReport, error) {
	p.record("import:" + p.name)
	p.mu.Lock()
	p.imported = append(p.imported, data)
	p.mu.Unlock()
	rep := &ImportReport{Tables: make(map[string]*TableImport)}
	for table, rows := range data {
		t := &TableImport{}
		for _, rec := range rows {
			if p.failIDs[rec.ID()] {
				t.Failures = append(t.Failures, RecordFailure{ID: rec.ID(), Error: "rejected"})
				continue
			}
			t.Imported++
		}
		rep.Tables[table] = t
	}
	return rep, nil
}

func (p *dataProvider) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls != nil {
		*p.calls = append(*p.calls, call)
	}
}

// subscribingProvider supports Subscribe.
type subscribingProvider struct {
	stubProvider
	tables []string
}

func (p *subscribingProvider) Subscribe(_ context.Context, table string, _ Filters, _ func(Change)) (Unsubscribe, error) {
	p.tables = append(p.tables, table)
	return func() {}, nil
}

func factoryOf(p Provider) Factory {
	return func() (Provider, error) { return p, nil }
}

func failingFactory(name string) Factory {
	return func() (Provider, error) {
		return &stubProvider{name: name, initErr: fmt.Errorf("%s unreachable", name)}, nil
	}
}

package cloud

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kbukum/glowbook/model"
)

func TestRegistryAvailable(t *testing.T) {
	orders := [][]string{{"x", "y", "z"}, {"z", "x", "y"}, {"y", "z", "x"}}
	for _, order := range orders {
		r := NewRegistry(nil, nil)
		for _, name := range order {
			r.Register(name, factoryOf(&stubProvider{name: name}))
		}
		r.Register("x", factoryOf(&stubProvider{name: "x"}))
		if got := r.Available(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
			t.Errorf("Available() after %v = %v", order, got)
		}
	}
}

func TestRegistrySetActive(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, nil)
	r.Register("x", factoryOf(&stubProvider{name: "x"}))
	r.Register("y", failingFactory("y"))

	if _, err := r.SetActive(ctx, ProviderConfig{Name: "x", Credentials: map[string]string{}}); err != nil {
		t.Fatalf("SetActive(x) error = %v", err)
	}
	p, err := r.Provider()
	if err != nil || p.Name() != "x" {
		t.Fatalf("Provider() = %v, %v; want x", p, err)
	}

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr error
	}{
		{"unregistered", ProviderConfig{Name: "z"}, ErrProviderNotRegistered},
		{"initialize fails", ProviderConfig{Name: "y"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.SetActive(ctx, tt.cfg)
			if err == nil {
				t.Fatal("SetActive() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("SetActive() error = %v, want %v", err, tt.wantErr)
			}
			p, err := r.Provider()
			if err != nil || p.Name() != "x" {
				t.Errorf("Provider() = %v, %v; want x to stay active", p, err)
			}
		})
	}
}

func TestRegistrySwitchClosesReplaced(t *testing.T) {
	ctx := context.Background()
	x := &stubProvider{name: "x"}
	r := NewRegistry(nil, nil)
	r.Register("x", factoryOf(x))
	r.Register("y", factoryOf(&stubProvider{name: "y"}))
	if _, err := r.SetActive(ctx, ProviderConfig{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Switch(ctx, ProviderConfig{Name: "y"}); err != nil {
		t.Fatal(err)
	}
	if !x.closed {
		t.Error("replaced provider not closed")
	}
	if st := r.Status(); st.Active == nil || st.Active.Name != "y" {
		t.Errorf("Status().Active = %+v, want y", st.Active)
	}
}

func TestRegistryProviderFallback(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name           string
		activeUp       bool
		withFallback   bool
		withActive     bool
		want           string
		wantNoProvider bool
	}{
		{"active connected", true, true, true, "a", false},
		{"active disconnected with fallback", false, true, true, "f", false},
		{"active disconnected without fallback", false, false, true, "a", false},
		{"only fallback", false, true, false, "f", false},
		{"nothing", false, false, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active := &stubProvider{name: "a"}
			r := NewRegistry(nil, nil)
			r.Register("a", factoryOf(active))
			r.Register("f", factoryOf(&stubProvider{name: "f"}))
			if tt.withActive {
				if _, err := r.SetActive(ctx, ProviderConfig{Name: "a"}); err != nil {
					t.Fatal(err)
				}
				active.connected = tt.activeUp
			}
			if tt.withFallback {
				r.SetFallback(ctx, ProviderConfig{Name: "f"})
			}
			p, err := r.Provider()
			if tt.wantNoProvider {
				if !errors.Is(err, ErrNoActiveProvider) {
					t.Fatalf("Provider() error = %v, want no active provider", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.Name() != tt.want {
				t.Errorf("Provider() = %s, want %s", p.Name(), tt.want)
			}
		})
	}
}

func TestRegistrySetFallbackSwallowsErrors(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("bad", failingFactory("bad"))
	r.SetFallback(context.Background(), ProviderConfig{Name: "bad"})
	r.SetFallback(context.Background(), ProviderConfig{Name: "missing"})
	if st := r.Status(); st.Fallback != nil {
		t.Errorf("Status().Fallback = %+v, want nil", st.Fallback)
	}
}

func TestRegistryMigrate(t *testing.T) {
	var calls []string
	data := model.Snapshot{
		model.TableSalons: {
			{"id": "s1", "name": "Glow"},
			{"id": "s2", "name": "Shine"},
		},
		model.TableReviews: {{"id": "r1", "rating": 5}},
	}
	a := &dataProvider{stubProvider: stubProvider{name: "a"}, calls: &calls, data: data}
	b := &dataProvider{stubProvider: stubProvider{name: "b"}, calls: &calls}

	r := NewRegistry(nil, nil)
	report, err := r.Migrate(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if want := []string{"export:a", "import:b"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if len(b.imported) != 1 || !reflect.DeepEqual(b.imported[0], data) {
		t.Errorf("imported = %v, want exactly the exported snapshot", b.imported)
	}
	if exported, imported, skipped, failed := report.Totals(); exported != 3 || imported != 3 || skipped != 0 || failed != 0 {
		t.Errorf("Totals() = %d %d %d %d", exported, imported, skipped, failed)
	}
}

func TestRegistryMigrateValidation(t *testing.T) {
	data := model.Snapshot{
		model.TableSalons: {
			{"id": "s1"},
			{"id": "s1"},
			{"name": "no id"},
			{"id": "s2"},
			{"id": "s3"},
		},
		"bookings": {{"id": "x1"}},
	}
	a := &dataProvider{stubProvider: stubProvider{name: "a"}, data: data}
	b := &dataProvider{stubProvider: stubProvider{name: "b"}, failIDs: map[string]bool{"s3": true}}

	report, err := NewRegistry(nil, nil).Migrate(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	salons := report.Tables[model.TableSalons]
	if salons.Exported != 5 || salons.Imported != 2 || salons.Skipped != 2 || len(salons.Failures) != 3 {
		t.Errorf("salons report = %+v", salons)
	}
	if unknown := report.Tables["bookings"]; unknown.Skipped != 1 || unknown.Imported != 0 {
		t.Errorf("unknown table report = %+v", unknown)
	}
	if _, ok := b.imported[0]["bookings"]; ok {
		t.Error("unknown table was imported")
	}
	if got := len(b.imported[0][model.TableSalons]); got != 3 {
		t.Errorf("staged salons = %d, want 3", got)
	}
}

func TestRegistryMigrateCapabilityMissing(t *testing.T) {
	a := &dataProvider{stubProvider: stubProvider{name: "a"}}
	plain := &stubProvider{name: "plain"}
	r := NewRegistry(nil, nil)
	if _, err := r.Migrate(context.Background(), plain, a); !errors.Is(err, ErrCapabilityMissing) {
		t.Errorf("Migrate(plain, a) error = %v", err)
	}
	if _, err := r.Migrate(context.Background(), a, plain); !errors.Is(err, ErrCapabilityMissing) {
		t.Errorf("Migrate(a, plain) error = %v", err)
	}
}

func TestRegistryEndToEnd(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, nil)
	r.Register("x", factoryOf(&stubProvider{name: "x"}))
	r.Register("y", factoryOf(&stubProvider{name: "y"}))

	if _, err := r.SetActive(ctx, ProviderConfig{Name: "x", Credentials: map[string]string{}}); err != nil {
		t.Fatal(err)
	}
	if p, _ := r.Provider(); p.Name() != "x" {
		t.Fatalf("Provider() = %s, want x", p.Name())
	}
	if _, err := r.SetActive(ctx, ProviderConfig{Name: "z"}); err == nil {
		t.Fatal("SetActive(z) succeeded")
	}
	if p, _ := r.Provider(); p.Name() != "x" {
		t.Errorf("Provider() = %s, want x", p.Name())
	}
}

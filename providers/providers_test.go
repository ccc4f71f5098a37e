package providers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kbukum/glowbook/cloud"
)

func TestFactoriesCoverKnownNames(t *testing.T) {
	f := Factories(nil, nil)
	for _, name := range []string{cloud.NameSupabase, cloud.NameFirebase, cloud.NameREST, cloud.NameLocal} {
		factory, ok := f[name]
		if !ok {
			t.Errorf("no factory for %s", name)
			continue
		}
		p, err := factory()
		if err != nil {
			t.Fatalf("%s factory: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("%s factory built %s", name, p.Name())
		}
		if p.IsConnected() {
			t.Errorf("%s connected before Initialize", name)
		}
	}
}

func TestServiceFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := cloud.Config{
		Priority: []string{cloud.NameSupabase, cloud.NameLocal},
		Providers: map[string]map[string]string{
			// Unreachable host: the candidate fails its access check.
			cloud.NameSupabase: {"url": "http://127.0.0.1:1", "anon_key": "anon"},
			cloud.NameLocal:    {"dsn": filepath.Join(dir, "glowbook.db"), "storage_path": filepath.Join(dir, "files"), "db_log_level": "silent"},
		},
	}
	svc := cloud.NewService(cfg, Source(nil, nil), nil)
	ctx := context.Background()
	if err := svc.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Stop(ctx) })
	if st := svc.ProviderStatus(); st.Current != cloud.NameLocal || !st.Connected {
		t.Errorf("status = %+v", st)
	}
}

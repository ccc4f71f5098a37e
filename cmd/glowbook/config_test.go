package main

import (
	"path/filepath"
	"testing"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/config"
)

func TestLoadConfigFile(t *testing.T) {
	var cfg AppConfig
	env := func() []string {
		return []string{
			"GLOWBOOK_SERVER_PORT=9090",
			"GLOWBOOK_CLOUD_PROVIDERS_LOCAL_DSN=/tmp/override.db",
		}
	}
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile("config.yml"), config.WithEnviron(env)); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != serviceName {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if got := cfg.Cloud.Providers[cloud.NameLocal]["dsn"]; got != "/tmp/override.db" {
		t.Errorf("local dsn = %q", got)
	}
	if len(cfg.Cloud.Priority) == 0 || cfg.Cloud.Priority[len(cfg.Cloud.Priority)-1] != cloud.NameLocal {
		t.Errorf("priority = %v", cfg.Cloud.Priority)
	}
}

func TestValidateRequiresACandidate(t *testing.T) {
	cfg := AppConfig{}
	cfg.Name = serviceName
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without any configured provider")
	}

	cfg.Cloud.Providers = map[string]map[string]string{
		cloud.NameLocal: {"dsn": filepath.Join(t.TempDir(), "glowbook.db")},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestCandidate(t *testing.T) {
	cfg := AppConfig{Cloud: cloud.Config{Providers: map[string]map[string]string{
		cloud.NameLocal: {"dsn": "a.db"},
		"supabase_alt":  {"url": "https://alt.supabase.co", "anon_key": "anon"},
		"firebase":      {"project_id": "demo"},
	}}}

	c, err := cfg.candidate("supabase_alt")
	if err != nil {
		t.Fatal(err)
	}
	if c.Provider.Name != cloud.NameSupabase || c.Provider.Credentials["url"] != "https://alt.supabase.co" {
		t.Errorf("candidate = %+v", c)
	}
	if _, err := cfg.candidate("firebase"); err == nil {
		t.Error("expected error for incomplete credentials")
	}
	if _, err := cfg.candidate("rest"); err == nil {
		t.Error("expected error for unknown label")
	}
}

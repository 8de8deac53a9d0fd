package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestReloader_Current(t *testing.T) {
	cfg := &Config{}
	cfg.Gateway.Port = 9999

	r := NewReloader("", "", cfg)
	got := r.Current()
	if got.Gateway.Port != 9999 {
		t.Errorf("Current().Gateway.Port = %d, want 9999", got.Gateway.Port)
	}
}

func TestReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	dotenvPath := filepath.Join(dir, ".env")
	configPath := filepath.Join(dir, "config.jsonc")

	if err := os.WriteFile(dotenvPath, []byte("RF_LEVEL=info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte(`{"log": {"level": "${{ .Env.RF_LEVEL }}"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RF_LEVEL", "")

	initial := &Config{}
	r := NewReloader(configPath, dotenvPath, initial)

	var callCount atomic.Int32
	var seen atomic.Value
	r.OnReload(func(cfg *Config) {
		callCount.Add(1)
		seen.Store(cfg.Log.Level)
	})

	// .env changes are picked up even though RF_LEVEL is already set
	if err := os.WriteFile(dotenvPath, []byte("RF_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if callCount.Load() != 1 {
		t.Errorf("listener called %d times, want 1", callCount.Load())
	}
	if got := seen.Load(); got != "debug" {
		t.Errorf("listener saw level %v, want debug", got)
	}

	got := r.Current()
	if got == initial {
		t.Error("Current() still returns initial config after reload")
	}
	if got.Log.Level != "debug" {
		t.Errorf("Current().Log.Level = %q, want debug", got.Log.Level)
	}
}

func TestReloader_ReloadFailureKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(configPath, []byte(`{"gateway": `), 0o644); err != nil {
		t.Fatal(err)
	}

	initial := &Config{}
	r := NewReloader(configPath, filepath.Join(dir, ".env"), initial)
	r.OnReload(func(*Config) { t.Error("listener must not run on failed reload") })

	if err := r.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if r.Current() != initial {
		t.Error("failed reload replaced the config")
	}
}

func TestReloader_ReloadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewReloader(filepath.Join(dir, "config.jsonc"), filepath.Join(dir, ".env"), &Config{})

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload with missing files: %v", err)
	}
	if r.Current().Gateway.Port != 18430 {
		t.Errorf("expected defaults after reload, got port %d", r.Current().Gateway.Port)
	}
}

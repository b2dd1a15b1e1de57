package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"talon/pkg/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.URL == "" || cfg.Gateway.AuthMode != "token" {
		t.Errorf("defaults = %+v", cfg.Gateway)
	}
	if !cfg.Log.Enabled {
		t.Error("log not enabled by default")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := config.Default()
	want.Gateway.URL = "wss://gw.example.com:18789"
	want.Gateway.Token = "tk-secret"
	want.Client.DefaultAgent = "main"

	if err := config.Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Gateway.URL != want.Gateway.URL || got.Gateway.Token != want.Gateway.Token {
		t.Errorf("got = %+v", got.Gateway)
	}
	if got.Client.DefaultAgent != "main" {
		t.Errorf("client = %+v", got.Client)
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[gateway\nurl ="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("malformed config loaded without error")
	}
}

func TestDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("TALON_DIR", "/tmp/talon-test")
	dir, err := config.Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if dir != "/tmp/talon-test" {
		t.Errorf("Dir = %q", dir)
	}
}

func TestLoadCronBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	content := `jobs:
  - name: daily-summary
    schedule: "0 9 * * *"
    session: main
    prompt: Summarize yesterday
    enabled: true
  - name: weekly-cleanup
    schedule: "0 3 * * 0"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	batch, err := config.LoadCronBatch(path)
	if err != nil {
		t.Fatalf("LoadCronBatch: %v", err)
	}
	if len(batch.Jobs) != 2 {
		t.Fatalf("jobs = %+v", batch.Jobs)
	}
	if batch.Jobs[0].Name != "daily-summary" || batch.Jobs[0].Schedule != "0 9 * * *" {
		t.Errorf("job[0] = %+v", batch.Jobs[0])
	}
	if !batch.Jobs[0].Enabled || batch.Jobs[1].Enabled {
		t.Errorf("enabled flags = %v %v", batch.Jobs[0].Enabled, batch.Jobs[1].Enabled)
	}
}

func TestLoadCronBatchValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte("jobs:\n  - name: incomplete\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := config.LoadCronBatch(path)
	if err == nil || !strings.Contains(err.Error(), "schedule") {
		t.Errorf("err = %v", err)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.Save(path, config.Default()); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []config.Config
	w, err := config.Watch(path, func(cfg config.Config) {
		mu.Lock()
		got = append(got, cfg)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	updated := config.Default()
	updated.Gateway.URL = "ws://changed:18789"
	if err := config.Save(path, updated); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		var last config.Config
		if n > 0 {
			last = got[n-1]
		}
		mu.Unlock()
		if n > 0 && last.Gateway.URL == "ws://changed:18789" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("reload never observed (loads=%d)", n)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

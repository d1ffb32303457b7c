package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recsync/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
url = "https://sync.example.com/api/"
user_id = "alice"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Server.URL != "https://sync.example.com/api" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Server.URL)
	}
	if cfg.Engine.MaxBatch != 20 {
		t.Fatalf("default max_batch = %d", cfg.Engine.MaxBatch)
	}
	if cfg.Engine.FailureBackoff != 60 {
		t.Fatalf("default failure_backoff = %d", cfg.Engine.FailureBackoff)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("default logging format = %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsMissingServerURL(t *testing.T) {
	path := writeConfig(t, `
[server]
user_id = "alice"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for missing server.url")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			"relative url",
			"[server]\nurl = \"sync.example.com\"\nuser_id = \"a\"\n",
			"server.url",
		},
		{
			"missing user",
			"[server]\nurl = \"https://s.example.com\"\n",
			"server.user_id",
		},
		{
			"zero tick",
			"[server]\nurl = \"https://s.example.com\"\nuser_id = \"a\"\n[engine]\ntick_interval = 0\n",
			"engine.tick_interval",
		},
		{
			"negative lifetime",
			"[server]\nurl = \"https://s.example.com\"\nuser_id = \"a\"\n[engine]\nsession_lifetime = -1\n",
			"engine.session_lifetime",
		},
		{
			"bad format",
			"[server]\nurl = \"https://s.example.com\"\nuser_id = \"a\"\n[logging]\nformat = \"xml\"\n",
			"logging.format",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	// The sample ships an empty user_id, so loading it must fail validation
	// but the TOML itself must parse.
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("sample config should fail validation until user_id is set")
	}
	if !strings.Contains(err.Error(), "server.user_id") {
		t.Fatalf("unexpected error: %v", err)
	}
}

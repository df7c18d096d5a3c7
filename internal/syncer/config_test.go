package syncer

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mediamirror.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileDecodesTOML(t *testing.T) {
	path := writeConfigFile(t, `
media_root = "/mnt/media"
pool = ["https://a.example", "https://b.example"]
sentinel = "每日更新"
selected_paths = ["anime/", "movies/"]
concurrency = 50

[log]
level = "info"
`)

	c := NewConfig()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.MediaRoot != "/mnt/media" {
		t.Errorf("MediaRoot = %q", c.MediaRoot)
	}
	if len(c.Pool) != 2 {
		t.Errorf("Pool = %v", c.Pool)
	}
	if c.Concurrency != 50 {
		t.Errorf("Concurrency = %d, want 50 (TOML should override the default)", c.Concurrency)
	}
}

func TestApplyEnvOverridesTOMLValues(t *testing.T) {
	c := NewConfig()
	c.MediaRoot = "/from/toml"
	c.Concurrency = 10
	c.TLS.InsecureSkipVerify = false

	t.Setenv("MEDIAMIRROR_MEDIA_ROOT", "/from/env")
	t.Setenv("MEDIAMIRROR_CONCURRENCY", "77")
	t.Setenv("MEDIAMIRROR_TLS_INSECURE_SKIP_VERIFY", "true")

	if err := c.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if c.MediaRoot != "/from/env" {
		t.Errorf("MediaRoot = %q, want /from/env", c.MediaRoot)
	}
	if c.Concurrency != 77 {
		t.Errorf("Concurrency = %d, want 77", c.Concurrency)
	}
	if !c.TLS.InsecureSkipVerify {
		t.Error("nested TLS struct should also be overridden by env")
	}
}

func TestCheckRejectsMissingOrInvalidFields(t *testing.T) {
	c := NewConfig()
	if err := c.Check(); err == nil {
		t.Error("expected error: media_root unset")
	}

	c.MediaRoot = "relative/path"
	if err := c.Check(); err == nil {
		t.Error("expected error: media_root not absolute")
	}

	c.MediaRoot = "/mnt/media"
	c.Concurrency = 0
	if err := c.Check(); err == nil {
		t.Error("expected error: concurrency not positive")
	}

	c.Concurrency = 50
	if err := c.Check(); err != nil {
		t.Errorf("expected valid config (Pool empty is allowed, e.g. --url runs), got: %v", err)
	}
}

func TestBuildTLSConfigDefaultsAndRejectsBadVersion(t *testing.T) {
	tls := &TLSConfig{}
	cfg, err := tls.BuildTLSConfig()
	if err != nil {
		t.Fatalf("BuildTLSConfig: %v", err)
	}
	if cfg.InsecureSkipVerify {
		t.Error("zero-valued TLSConfig should not skip verification")
	}

	tls.MinVersion = "1.1"
	if _, err := tls.BuildTLSConfig(); err == nil {
		t.Error("expected error for unsupported min_version")
	}
}

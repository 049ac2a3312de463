package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ada.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if cfg.ListenAddr == "" {
		t.Error("default listen addr must be set")
	}
	if cfg.MaxRequestsPerSecond == 0 || cfg.MaxTotalConcurrent == 0 {
		t.Error("defaults should carry non-zero limits")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
listen_addr: "0.0.0.0:9999"
max_requests_per_second: 5
max_concurrent_per_address: 2
max_total_concurrent: 20
log_level: debug
log_format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9999" {
		t.Errorf("listen_addr = %s", cfg.ListenAddr)
	}
	sc := cfg.ServerConfig()
	if sc.MaxRequestsPerSecond != 5 || sc.MaxConcurrentPerAddr != 2 || sc.MaxTotalConcurrent != 20 {
		t.Errorf("unexpected server config: %+v", sc)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("unexpected logging config: %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `listen_addr: "127.0.0.1:7000"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7000" {
		t.Errorf("listen_addr = %s", cfg.ListenAddr)
	}
	if cfg.MaxRequestsPerSecond != Default().MaxRequestsPerSecond {
		t.Errorf("unset keys should keep defaults, got %d", cfg.MaxRequestsPerSecond)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `listne_addr: "oops"`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected unknown-key rejection, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func TestLoadFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
server:
  http_addr: ":9090"
redis:
  addr: "localhost:6379"
worker:
  local: 8
  rate_per_sec: 2.5
  lease_timeout: "1m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.GRPCAddr != ":8081" {
		t.Errorf("GRPCAddr = %q, значение по умолчанию потеряно", cfg.Server.GRPCAddr)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Worker.Local != 8 || cfg.Worker.RatePerSec != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LeaseTimeout() != time.Minute {
		t.Errorf("LeaseTimeout() = %v", cfg.LeaseTimeout())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MATH_HTTP_ADDR", ":7000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOCAL_WORKERS", "3")
	t.Setenv("DISPATCH_RATE", "10")

	cfg, err := Load(writeConfig(t, "server:\n  http_addr: \":9090\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want env override", cfg.Server.HTTPAddr)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Worker.Local != 3 || cfg.Worker.RatePerSec != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		env     map[string]string
		wantErr bool
	}{
		{"нет файла", func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.yaml") }, nil, false},
		{"пустой путь", func(t *testing.T) string { return "" }, nil, false},
		{"битый yaml", func(t *testing.T) string { return writeConfig(t, "server: [") }, nil, true},
		{"битое число", func(t *testing.T) string { return "" }, map[string]string{"LOCAL_WORKERS": "many"}, true},
		{"битый rate", func(t *testing.T) string { return "" }, map[string]string{"DISPATCH_RATE": "fast"}, true},
		{"битый ttl в окружении", func(t *testing.T) string { return "" }, map[string]string{"JWT_TTL": "abc"}, true},
		{"битая аренда в окружении", func(t *testing.T) string { return "" }, map[string]string{"LEASE_TIMEOUT": "30"}, true},
		{"битый ttl в файле", func(t *testing.T) string { return writeConfig(t, "auth:\n  token_ttl: hour\n") }, nil, true},
		{"корректные длительности", func(t *testing.T) string { return "" }, map[string]string{"JWT_TTL": "2h", "LEASE_TIMEOUT": "45s"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path(t))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Second},
		{"5m", 5 * time.Minute},
		{"garbage", time.Second},
	}
	for _, tt := range tests {
		if got := Duration(tt.raw, time.Second); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `
vault: /var/lib/pgvault
workers: 2
compression: 9
management: "127.0.0.1:6000"
log:
  level: debug
  format: json
servers:
  - name: primary
    host: localhost
    port: 5432
    version: 16
    data: /var/lib/postgres/data
  - name: replica
    host: standby.local
    port: 5433
    version: 15
    data: /var/lib/postgres/standby
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgvault.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault != "/var/lib/pgvault" || cfg.Workers != 2 || cfg.Compression != 9 {
		t.Errorf("unexpected top-level fields: %+v", cfg)
	}
	if cfg.Catalog != filepath.Join("/var/lib/pgvault", "pgvault.db") {
		t.Errorf("catalog default = %q", cfg.Catalog)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}

	srv, err := cfg.Server("replica")
	if err != nil {
		t.Fatalf("Server(replica): %v", err)
	}
	if srv.Version != 15 || srv.Port != 5433 {
		t.Errorf("replica = %+v", srv)
	}

	if _, err := cfg.Server("ghost"); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("Server(ghost) = %v, want ErrServerNotFound", err)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
vault: /backups
servers:
  - name: primary
    version: 17
    data: /data
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.Compression != DefaultCompression {
		t.Errorf("Compression = %d, want %d", cfg.Compression, DefaultCompression)
	}
	if cfg.Management != DefaultManagement {
		t.Errorf("Management = %q, want %q", cfg.Management, DefaultManagement)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no vault", "servers:\n  - name: a\n    version: 16\n    data: /d\n", "vault"},
		{"no servers", "vault: /v\n", "at least one server"},
		{"bad version", "vault: /v\nservers:\n  - name: a\n    version: 12\n    data: /d\n", "version 12"},
		{"no data", "vault: /v\nservers:\n  - name: a\n    version: 16\n", "data directory"},
		{"duplicate name", "vault: /v\nservers:\n  - name: a\n    version: 16\n    data: /d\n  - name: a\n    version: 16\n    data: /d2\n", "duplicate"},
		{"bad compression", "vault: /v\ncompression: 12\nservers:\n  - name: a\n    version: 16\n    data: /d\n", "compression"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

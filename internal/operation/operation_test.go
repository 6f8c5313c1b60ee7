package operation

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pgvault/internal/catalog"
	"pgvault/internal/config"
	"pgvault/internal/vault"
)

type env struct {
	deps Deps
	cat  *catalog.Catalog
	data string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	data := t.TempDir()
	for rel, content := range map[string]string{
		"base/5/100":  "relation",
		"base/5/101":  "another",
		"global/1262": "shared",
	} {
		path := filepath.Join(data, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	base := t.TempDir()
	cat, err := catalog.Open(filepath.Join(base, "pgvault.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	cfg := &config.Config{
		Vault:       base,
		Workers:     2,
		Compression: 6,
		Servers: []config.Server{
			{Name: "primary", Host: "localhost", Port: 5432, Version: 16, Data: data},
		},
	}
	return &env{
		deps: Deps{Config: cfg, Vault: vault.New(base), Catalog: cat, Version: "test"},
		cat:  cat,
		data: data,
	}
}

var elapsedRE = regexp.MustCompile(`^\d{2,}:\d{2}:\d{2}$`)

func TestBackupThenArchive(t *testing.T) {
	e := newEnv(t)

	res := Backup(e.deps, "primary")
	if res.Code != CodeSuccess || res.Err != nil {
		t.Fatalf("Backup: %+v", res)
	}
	if !elapsedRE.MatchString(res.Elapsed) {
		t.Errorf("elapsed = %q", res.Elapsed)
	}
	label := res.Label

	b, err := e.cat.GetBackup("primary", label)
	if err != nil || b == nil || !b.Valid {
		t.Fatalf("catalog backup row: %+v err %v", b, err)
	}

	outDir := t.TempDir()
	res = Archive(e.deps, "primary", vault.Newest, "", outDir)
	if res.Code != CodeSuccess || res.Err != nil {
		t.Fatalf("Archive: %+v", res)
	}
	if res.Label != label {
		t.Errorf("archive label = %q, want %q", res.Label, label)
	}

	gzPath := filepath.Join(outDir, "archive-primary-"+label+".tar.gz")
	if _, err := os.Stat(gzPath); err != nil {
		t.Errorf("archive missing: %v", err)
	}
	// The restored working tree is removed in teardown.
	if _, err := os.Stat(filepath.Join(outDir, "primary-"+label)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("working tree should be gone, stat err = %v", err)
	}

	ops, err := e.cat.ListOperations("primary", 10)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("operations rows = %d, want 2", len(ops))
	}
	for _, op := range ops {
		if op.Status != catalog.StatusSuccess {
			t.Errorf("operation %s/%s status = %s", op.Kind, op.ID, op.Status)
		}
	}
}

type failingRestorer struct{}

func (failingRestorer) Restore(srv *config.Server, backupID, position, directory string) (string, string, error) {
	return "", "", errors.New("restore exploded")
}

func TestArchive_RestoreFailure(t *testing.T) {
	e := newEnv(t)
	e.deps.Restorer = failingRestorer{}

	outDir := t.TempDir()
	res := Archive(e.deps, "primary", "20250825143005", "", outDir)
	if res.Code != CodeFailure || res.Err == nil {
		t.Fatalf("Archive: %+v", res)
	}

	// The failure precedes pipeline construction, so nothing was produced.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir should be empty, has %d entries", len(entries))
	}

	ops, err := e.cat.ListOperations("primary", 10)
	if err != nil || len(ops) != 1 {
		t.Fatalf("ListOperations: %d err %v", len(ops), err)
	}
	if ops[0].Status != catalog.StatusFailed || ops[0].Detail != "restore exploded" {
		t.Errorf("operation row = %+v", ops[0])
	}
}

func TestArchive_UnknownBackup(t *testing.T) {
	e := newEnv(t)

	res := Archive(e.deps, "primary", "29990101000000", "", t.TempDir())
	if res.Code != CodeFailure || !errors.Is(res.Err, vault.ErrBackupNotFound) {
		t.Fatalf("Archive: %+v", res)
	}
}

func TestBackupRestoreVerify(t *testing.T) {
	e := newEnv(t)

	res := Backup(e.deps, "primary")
	if res.Code != CodeSuccess {
		t.Fatalf("Backup: %+v", res)
	}
	label := res.Label

	dir := t.TempDir()
	res = Restore(e.deps, "primary", label, "", dir)
	if res.Code != CodeSuccess || res.Err != nil {
		t.Fatalf("Restore: %+v", res)
	}
	if res.Output != filepath.Join(dir, "primary-"+label) {
		t.Errorf("output = %q", res.Output)
	}

	want := map[string]string{
		"base/5/100":  "relation",
		"base/5/101":  "another",
		"global/1262": "shared",
	}
	got := map[string]string{}
	err := filepath.WalkDir(res.Output, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(res.Output, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk restored tree: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restored tree mismatch (-want +got):\n%s", diff)
	}

	// Pristine backup verifies clean.
	res = Verify(e.deps, "primary", label)
	if res.Code != CodeSuccess {
		t.Fatalf("Verify: %+v", res)
	}

	// Corruption flips the result.
	corrupt := filepath.Join(e.deps.Vault.DataDir("primary", label), "base", "5", "100")
	if err := os.WriteFile(corrupt, []byte("maligned"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	res = Verify(e.deps, "primary", label)
	if res.Code != CodeFailure || res.Err == nil {
		t.Fatalf("Verify after corruption: %+v", res)
	}
}

func TestOperations_UnknownServer(t *testing.T) {
	e := newEnv(t)

	if res := Backup(e.deps, "ghost"); res.Code != CodeFailure || !errors.Is(res.Err, config.ErrServerNotFound) {
		t.Errorf("Backup: %+v", res)
	}
	if res := Archive(e.deps, "ghost", vault.Newest, "", t.TempDir()); res.Code != CodeFailure {
		t.Errorf("Archive: %+v", res)
	}
	if res := Verify(e.deps, "ghost", vault.Newest); res.Code != CodeFailure {
		t.Errorf("Verify: %+v", res)
	}
}

func TestBackup_WithoutCatalog(t *testing.T) {
	e := newEnv(t)
	e.deps.Catalog = nil

	res := Backup(e.deps, "primary")
	if res.Code != CodeSuccess || res.Err != nil {
		t.Fatalf("Backup without catalog: %+v", res)
	}
}

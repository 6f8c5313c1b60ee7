package catalog

import (
	"path/filepath"
	"testing"
)

func TestCatalog_Backups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "pgvault.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	// Started invalid, finished valid — one row per (server, label).
	if err := c.RecordBackup("primary", "20250825143005", 0, "", false); err != nil {
		t.Fatalf("RecordBackup: %v", err)
	}
	if err := c.RecordBackup("primary", "20250825143005", 4096, "00:00:03", true); err != nil {
		t.Fatalf("RecordBackup update: %v", err)
	}
	if err := c.RecordBackup("primary", "20250826143005", 8192, "00:00:05", true); err != nil {
		t.Fatalf("RecordBackup second: %v", err)
	}

	b, err := c.GetBackup("primary", "20250825143005")
	if err != nil || b == nil {
		t.Fatalf("GetBackup: got %+v err %v", b, err)
	}
	if !b.Valid || b.Size != 4096 || b.Elapsed != "00:00:03" {
		t.Errorf("backup row = %+v", b)
	}

	missing, err := c.GetBackup("primary", "29990101000000")
	if err != nil || missing != nil {
		t.Errorf("GetBackup(missing): got %+v err %v", missing, err)
	}

	list, err := c.ListBackups("primary")
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 2 || list[0].Label != "20250825143005" || list[1].Label != "20250826143005" {
		t.Errorf("ListBackups order: %+v", list)
	}

	other, err := c.ListBackups("replica")
	if err != nil || len(other) != 0 {
		t.Errorf("ListBackups(replica): got %d err %v", len(other), err)
	}
}

func TestCatalog_Operations(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "pgvault.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.BeginOperation("op-1", "archive", "primary", "20250825143005"); err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}
	if err := c.FinishOperation("op-1", StatusSuccess, "00:00:09", ""); err != nil {
		t.Fatalf("FinishOperation: %v", err)
	}
	if err := c.BeginOperation("op-2", "restore", "primary", "20250825143005"); err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}
	if err := c.FinishOperation("op-2", StatusFailed, "00:00:01", "backup not found"); err != nil {
		t.Fatalf("FinishOperation: %v", err)
	}

	ops, err := c.ListOperations("primary", 10)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("ListOperations: got %d rows", len(ops))
	}
	byID := map[string]*Operation{}
	for _, op := range ops {
		byID[op.ID] = op
	}
	if op := byID["op-1"]; op == nil || op.Status != StatusSuccess || op.Elapsed != "00:00:09" {
		t.Errorf("op-1 = %+v", op)
	}
	if op := byID["op-2"]; op == nil || op.Status != StatusFailed || op.Detail != "backup not found" {
		t.Errorf("op-2 = %+v", op)
	}

	if err := c.FinishOperation("op-404", StatusFailed, "", "x"); err == nil {
		t.Error("FinishOperation on unknown id should fail")
	}
}

func TestCatalog_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgvault.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.RecordBackup("primary", "20250825143005", 1, "00:00:01", true); err != nil {
		t.Fatalf("RecordBackup: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Second open migrates to the same version and sees the data.
	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()
	b, err := c2.GetBackup("primary", "20250825143005")
	if err != nil || b == nil || !b.Valid {
		t.Fatalf("GetBackup after reopen: got %+v err %v", b, err)
	}
}

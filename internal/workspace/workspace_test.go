package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLayout(t *testing.T) {
	root := t.TempDir()
	ws, err := Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.DBPath != filepath.Join(root, "data", "okrtrack.sqlite") {
		t.Fatalf("DBPath = %q", ws.DBPath)
	}
	if ws.AuditDBPath != filepath.Join(root, "audit", "audit.sqlite") {
		t.Fatalf("AuditDBPath = %q", ws.AuditDBPath)
	}
	if got := ws.ExportPath("acme", "2025-Q3", "okrs.csv"); got != filepath.Join(root, "exports", "acme", "2025-Q3", "okrs.csv") {
		t.Fatalf("ExportPath = %q", got)
	}
}

func TestResolveRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(file); err == nil {
		t.Fatal("expected error for file root")
	}
	if _, err := Resolve("  "); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestEnsureDirs(t *testing.T) {
	ws, err := Resolve(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{ws.SeedDir, ws.DataDir, ws.ExportsDir, ws.AuditDir, ws.LogsDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("missing dir %s: %v", dir, err)
		}
	}
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()
	ws, err := Resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ws.ResolvePath("seed/org.yml")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(root, "seed", "org.yml") {
		t.Fatalf("ResolvePath = %q", got)
	}
	abs := filepath.Join(root, "elsewhere")
	if got, _ := ws.ResolvePath(abs); got != abs {
		t.Fatalf("absolute path changed: %q", got)
	}
	if got, _ := ws.ResolvePath(""); got != "" {
		t.Fatalf("empty path = %q", got)
	}
}

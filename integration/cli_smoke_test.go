package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"okrtrack/integration/harness"
)

func TestInitSmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	runDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "workspace-init")

	res := harness.MustRun(t, binPath, runDir, nil, "init", "--workspace", root)
	if !strings.Contains(res.Stdout, "Initialized workspace") {
		t.Fatalf("unexpected init output:\n%s", res.Stdout)
	}
	for _, path := range []string{
		filepath.Join(root, "seed", "org.yml"),
		filepath.Join(root, "identities.yml"),
		filepath.Join(root, ".env.example"),
		filepath.Join(root, "data"),
		filepath.Join(root, "exports"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing init path %s: %v", path, err)
		}
	}

	// The generated seed must import cleanly.
	res = harness.MustRun(t, binPath, runDir, nil, "import", "--workspace", root)
	if !strings.Contains(res.Stdout, "Imported example: 2 OKRs, 1 check-ins") {
		t.Fatalf("unexpected import output:\n%s", res.Stdout)
	}
	requireAuditEvents(t, filepath.Join(root, "audit", "audit.sqlite"), []string{"workspace_init", "seed_imported"})
}

func TestCLISmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	runDir := t.TempDir()
	ws := t.TempDir()
	harness.CopyFixture(t, "workspace-org", ws)

	res := harness.Run(t, binPath, runDir, nil, "--help")
	if res.Code != 0 || !strings.Contains(res.Stdout+res.Stderr, "OKR tracking for product organizations") {
		t.Fatalf("unexpected help (exit %d)\nstdout:\n%s\nstderr:\n%s", res.Code, res.Stdout, res.Stderr)
	}

	res = harness.MustRun(t, binPath, runDir, nil, "import", "--workspace", ws)
	if !strings.Contains(res.Stdout, "Imported acme: 4 OKRs, 3 check-ins") {
		t.Fatalf("unexpected import output:\n%s", res.Stdout)
	}

	res = harness.MustRun(t, binPath, runDir, nil, "okr", "list", "--workspace", ws, "--quarter", "2025-Q3")
	if !strings.Contains(res.Stdout, "Q3 2025: 4 OKRs") {
		t.Fatalf("missing list header:\n%s", res.Stdout)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) < 2 || !strings.Contains(lines[1], "okr-billing-invoices") {
		t.Fatalf("expected the at-risk OKR first:\n%s", res.Stdout)
	}

	res = harness.MustRun(t, binPath, runDir, nil,
		"okr", "checkin", "--workspace", ws, "--as", "sam",
		"--okr", "okr-setup-guided", "--date", "2025-07-14",
		"--progress", "30", "--confidence", "55", "--reason", "Design review took a week longer",
	)
	if !strings.Contains(res.Stdout, "(55%, Medium)") {
		t.Fatalf("unexpected checkin output:\n%s", res.Stdout)
	}

	res = harness.Run(t, binPath, runDir, nil,
		"okr", "checkin", "--workspace", ws, "--as", "noor",
		"--okr", "okr-setup-guided", "--progress", "30", "--confidence", "90",
	)
	if res.Code == 0 || !strings.Contains(res.Stderr, "not allowed to edit this OKR") {
		t.Fatalf("expected forbidden checkin (exit %d)\nstderr:\n%s", res.Code, res.Stderr)
	}

	res = harness.MustRun(t, binPath, runDir, nil, "okr", "show", "--workspace", ws, "--okr", "okr-setup-guided")
	if !strings.Contains(res.Stdout, "confidence: 55% (Medium, medium), trend down") {
		t.Fatalf("unexpected show output:\n%s", res.Stdout)
	}
	if strings.Contains(res.Stdout, "90%") {
		t.Fatalf("forbidden check-in was persisted:\n%s", res.Stdout)
	}

	res = harness.MustRun(t, binPath, runDir, nil, "due", "--workspace", ws, "--quarter", "2025-Q3", "--as-of", "2025-07-22")
	if !strings.Contains(res.Stdout, "okr-setup-guided") {
		t.Fatalf("expected weekly team OKR to be due:\n%s", res.Stdout)
	}

	harness.MustRun(t, binPath, runDir, nil, "export", "csv", "--workspace", ws, "--quarter", "2025-Q3")
	csvPath := filepath.Join(ws, "exports", "acme", "2025-Q3", "okrs.csv")
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv export: %v", err)
	}
	if got := strings.Count(string(data), "\n") + 1; got != 5 {
		t.Fatalf("expected header and 4 rows, got %d lines:\n%s", got, data)
	}

	res = harness.MustRun(t, binPath, runDir, nil, "export", "narrative", "--workspace", ws, "--quarter", "2025-Q3", "--stdout")
	if !strings.HasPrefix(res.Stdout, "Q3 2025 narrative: acme\n") {
		t.Fatalf("unexpected narrative:\n%s", res.Stdout)
	}

	harness.MustRun(t, binPath, runDir, nil, "export", "xlsx", "--workspace", ws, "--quarter", "2025-Q3")
	if _, err := os.Stat(filepath.Join(ws, "exports", "acme", "2025-Q3", "okrs.xlsx")); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}

	auditPath := filepath.Join(ws, "audit", "audit.sqlite")
	requireAuditEvents(t, auditPath, []string{
		"seed_imported",
		"checkin_added",
		"edit_forbidden",
		"export_written",
	})

	res = harness.MustRun(t, binPath, runDir, nil, "audit", "--workspace", ws, "--limit", "3")
	if !strings.Contains(res.Stdout, "export_written") {
		t.Fatalf("expected latest events in audit output:\n%s", res.Stdout)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"okrtrack/internal/audit"
	"okrtrack/internal/okrstore"
	"okrtrack/internal/workspace"
)

func runInit(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	template := fs.String("template", "minimal", "Workspace template (default: minimal)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *template != "minimal" {
		return errors.Errorf("unknown template: %s", *template)
	}
	if strings.TrimSpace(g.Workspace) == "" {
		return errors.New("--workspace is required")
	}

	root, err := workspace.ResolveRoot(g.Workspace)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return errors.Wrap(err, "create workspace root")
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return err
	}
	if err := ws.EnsureDirs(); err != nil {
		return err
	}

	logger := audit.NewLogger(ws.AuditDBPath)
	var finishErr error
	defer func() {
		payload := map[string]any{
			"workspace": ws.Root,
			"template":  *template,
		}
		if finishErr != nil {
			payload["error"] = finishErr.Error()
		}
		_ = logger.LogEvent("cli", audit.EventWorkspaceInit, payload)
	}()

	files := []struct {
		path     string
		contents string
	}{
		{filepath.Join(ws.SeedDir, "org.yml"), minimalSeedTemplate},
		{ws.IdentitiesPath, minimalIdentitiesTemplate},
		{filepath.Join(ws.Root, ".env.example"), minimalEnvTemplate},
	}
	for _, f := range files {
		if err := writeFileIfMissing(f.path, f.contents); err != nil {
			finishErr = err
			return finishErr
		}
	}

	printf("Initialized workspace: %s\n", ws.Root)
	printf("Next steps:\n")
	printf("  %s import --workspace %s\n", appName, ws.Root)
	printf("  %s okr list --workspace %s --quarter 2025-Q3\n", appName, ws.Root)
	return nil
}

func runImport(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	seedDir := fs.String("seed-dir", "", "Path to seed YAML directory (default: <workspace>/seed)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.ws.SeedDir
	if *seedDir != "" {
		if dir, err = a.ws.ResolvePath(*seedDir); err != nil {
			return errors.Wrap(err, "resolve --seed-dir")
		}
	}

	s, err := okrstore.LoadFromDir(dir)
	if err != nil {
		a.record(audit.EventImport, map[string]any{"seed_dir": dir, "error": err.Error()})
		return err
	}
	if a.orgID != "" && a.orgID != s.OrganizationID {
		return errors.Errorf("seed organization %q does not match --org %q", s.OrganizationID, a.orgID)
	}
	a.orgID = s.OrganizationID

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.Import(context.Background(), s); err != nil {
		a.record(audit.EventImport, map[string]any{"seed_dir": dir, "error": err.Error()})
		return err
	}

	a.record(audit.EventImport, map[string]any{
		"seed_dir":  dir,
		"okrs":      len(s.OKRs()),
		"check_ins": len(s.CheckIns()),
	})
	a.log.WithFields(logrus.Fields{
		"org_id":   s.OrganizationID,
		"seed_dir": dir,
		"okrs":     len(s.OKRs()),
	}).Info("imported seed")
	printf("Imported %s: %d OKRs, %d check-ins\n", s.OrganizationID, len(s.OKRs()), len(s.CheckIns()))
	return nil
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "ensure dir for %s", path)
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

const minimalSeedTemplate = `organization: example
product_areas:
  - id: pa-core
    name: Core Product
domains:
  - id: dom-onboarding
    name: Onboarding
    product_area_id: pa-core
teams:
  - id: team-setup
    name: Setup
    domain_id: dom-onboarding
    pm_name: Example PM
    pm_user_id: pm
    cadence: weekly
okrs:
  - id: okr-core-activation
    level: productArea
    owner_id: pa-core
    quarter: 2025-Q3
    objective: Make new accounts successful in their first week.
    key_results:
      - id: kr-core-activation-1
        text: Week-one activation rate
        baseline: 30
        target: 45
  - id: okr-setup-guided
    level: team
    owner_id: team-setup
    quarter: 2025-Q3
    objective: Ship guided setup.
    parent_okr_id: okr-core-activation
    key_results:
      - id: kr-setup-guided-1
        text: Setup completion rate
        baseline: 50
        target: 80
    check_ins:
      - id: ci-setup-guided-1
        date: 2025-07-07
        progress: 0
        confidence: 70
        note: Initial confidence established at OKR creation
`

const minimalIdentitiesTemplate = `users:
  - user_id: admin
    display_name: Workspace Admin
    role: admin
  - user_id: pm
    display_name: Example PM
    role: member
`

const minimalEnvTemplate = `# okrtrack settings; process environment wins over this file.
OKRTRACK_ORG=example
OKRTRACK_LOG_LEVEL=info
OKRTRACK_LOG_FORMAT=text
OKRTRACK_TIMEZONE=UTC
`

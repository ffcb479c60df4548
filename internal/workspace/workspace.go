package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

// Workspace defines workspace-relative paths for okrtrack operations.
type Workspace struct {
	Root           string
	SeedDir        string
	DataDir        string
	DBPath         string
	ExportsDir     string
	AuditDir       string
	AuditDBPath    string
	IdentitiesPath string
	LogsDir        string
}

// Resolve expands and validates the workspace root, ensuring it exists.
func Resolve(root string) (*Workspace, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(err, "workspace root")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("workspace root is not a directory: %s", abs)
	}
	return newWorkspace(abs), nil
}

// ResolveRoot resolves the workspace root without requiring it to exist.
func ResolveRoot(root string) (string, error) {
	return resolveRoot(root)
}

// EnsureDirs creates the standard workspace directories.
func (w *Workspace) EnsureDirs() error {
	if w == nil {
		return errors.New("workspace is nil")
	}
	dirs := []string{
		w.SeedDir,
		w.DataDir,
		w.ExportsDir,
		w.AuditDir,
		w.LogsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "ensure %s", dir)
		}
	}
	return nil
}

// ExportPath returns the path of an export file for an organization and quarter.
func (w *Workspace) ExportPath(orgID, quarter, name string) string {
	return filepath.Join(w.ExportsDir, orgID, quarter, name)
}

// ResolvePath returns an absolute path, resolving relative paths from the workspace root.
func (w *Workspace) ResolvePath(path string) (string, error) {
	if w == nil {
		return "", errors.New("workspace is nil")
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Abs(filepath.Join(w.Root, expanded))
}

func newWorkspace(root string) *Workspace {
	return &Workspace{
		Root:           root,
		SeedDir:        filepath.Join(root, "seed"),
		DataDir:        filepath.Join(root, "data"),
		DBPath:         filepath.Join(root, "data", "okrtrack.sqlite"),
		ExportsDir:     filepath.Join(root, "exports"),
		AuditDir:       filepath.Join(root, "audit"),
		AuditDBPath:    filepath.Join(root, "audit", "audit.sqlite"),
		IdentitiesPath: filepath.Join(root, "identities.yml"),
		LogsDir:        filepath.Join(root, "logs"),
	}
}

func resolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", errors.New("workspace root is required")
	}
	expanded, err := expandHome(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrap(err, "resolve workspace")
	}
	return abs, nil
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}
	return "", errors.Errorf("unsupported home expansion: %s", path)
}

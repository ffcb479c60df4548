package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
)

// CopyFixture copies integration/fixtures/<name> into dst.
func CopyFixture(t *testing.T, name, dst string) {
	t.Helper()
	src := filepath.Join(RepoRoot(t), "integration", "fixtures", name)
	if err := copyDir(src, dst); err != nil {
		t.Fatalf("copy fixture %s to %s: %v", name, dst, err)
	}
}

func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dstPath, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", dstPath)
		}
	}
	return nil
}

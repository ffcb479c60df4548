package harness

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/go-faster/errors"
)

var (
	buildOnce sync.Once
	buildPath string
	buildErr  error
)

var (
	repoRootOnce sync.Once
	repoRoot     string
	repoRootErr  error
)

// RepoRoot returns the directory holding go.mod.
func RepoRoot(t *testing.T) string {
	t.Helper()
	repoRootOnce.Do(func() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			repoRootErr = errors.New("runtime.Caller failed")
			return
		}
		root := filepath.Dir(filepath.Dir(filepath.Dir(file)))
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
			repoRootErr = errors.Wrap(err, "verify repo root")
			return
		}
		repoRoot = root
	})
	if repoRootErr != nil {
		t.Fatalf("resolve repo root: %v", repoRootErr)
	}
	return repoRoot
}

// BuildBinary compiles cmd/okrtrack once per test run and returns its path.
func BuildBinary(t *testing.T) string {
	t.Helper()
	root := RepoRoot(t)

	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "okrtrack-bin-")
		if err != nil {
			buildErr = errors.Wrap(err, "create temp dir")
			return
		}
		outPath := filepath.Join(dir, "okrtrack")

		cmd := exec.Command("go", "build", "-o", outPath, "./cmd/okrtrack")
		cmd.Dir = root
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			buildErr = errors.Errorf("go build failed: %v\nstderr:\n%s", err, stderr.String())
			return
		}
		buildPath = outPath
	})

	if buildErr != nil {
		t.Fatalf("build okrtrack binary: %v", buildErr)
	}
	return buildPath
}

package harness

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// Result is the outcome of one CLI invocation.
type Result struct {
	Stdout string
	Stderr string
	Code   int
}

// Run executes the CLI in workDir. OKRTRACK_* variables from the test process
// are dropped so the host environment cannot leak into a run; env adds back
// the ones a test needs.
func Run(t *testing.T, binPath, workDir string, env map[string]string, args ...string) Result {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Dir = workDir
	cmd.Env = buildEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code := 0
	if err := cmd.Run(); err != nil {
		ee, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("run %s: %v", binPath, err)
		}
		code = ee.ExitCode()
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Code: code}
}

// MustRun is Run that fails the test on a non-zero exit.
func MustRun(t *testing.T, binPath, workDir string, env map[string]string, args ...string) Result {
	t.Helper()
	res := Run(t, binPath, workDir, env, args...)
	if res.Code != 0 {
		t.Fatalf("okrtrack %s exit code %d\nstdout:\n%s\nstderr:\n%s", strings.Join(args, " "), res.Code, res.Stdout, res.Stderr)
	}
	return res
}

func buildEnv(overrides map[string]string) []string {
	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, "OKRTRACK_") {
			continue
		}
		env = append(env, entry)
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

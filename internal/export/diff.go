package export

import (
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff between two renderings of an export. It is
// empty when nothing changed.
func Diff(previous, current, fromName, toName string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", errors.Wrap(err, "diff export")
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

// DiffAgainstFile diffs current against the contents of path. A missing file
// diffs as empty.
func DiffAgainstFile(path, current, toName string) (string, error) {
	previous, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return Diff(string(previous), current, path, toName)
}

package reminder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okrtrack/internal/workspace"
)

func newTestAgent(t *testing.T) (*Agent, *[][]string) {
	t.Helper()
	ws, err := workspace.Resolve(t.TempDir())
	require.NoError(t, err)
	var calls [][]string
	a := NewAgent(ws, "acme")
	a.HomeDir = t.TempDir()
	a.run = func(name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return nil, nil
	}
	return a, &calls
}

func TestLabelIsStablePerWorkspace(t *testing.T) {
	a, _ := newTestAgent(t)
	b := NewAgent(a.Workspace, "")
	assert.Equal(t, a.Label(), b.Label())
	assert.True(t, strings.HasPrefix(a.Label(), "dev.okrtrack.reminder."))
	assert.Len(t, strings.TrimPrefix(a.Label(), "dev.okrtrack.reminder."), 8)

	other, _ := newTestAgent(t)
	assert.NotEqual(t, a.Label(), other.Label())
}

func TestPlistRunsDueWithNotify(t *testing.T) {
	a, _ := newTestAgent(t)
	plist, err := a.Plist("/usr/local/bin/okrtrack", Schedule{Hour: 8, Minute: 30, Weekdays: []int{1, 3}})
	require.NoError(t, err)

	assert.Contains(t, plist, "<string>/usr/local/bin/okrtrack</string>\n\t\t<string>due</string>\n\t\t<string>--notify</string>")
	assert.Contains(t, plist, "<string>--org</string>\n\t\t<string>acme</string>")
	assert.Equal(t, 2, strings.Count(plist, "<key>Weekday</key>"))
	assert.Contains(t, plist, "<integer>30</integer>")
	assert.Contains(t, plist, filepath.Join(a.Workspace.LogsDir, "reminder.log"))

	daily, err := a.Plist("/usr/local/bin/okrtrack", Schedule{Hour: 9})
	require.NoError(t, err)
	assert.NotContains(t, daily, "<key>Weekday</key>")
}

func TestScheduleValidate(t *testing.T) {
	require.NoError(t, DefaultSchedule.Validate())
	assert.Error(t, Schedule{Hour: 24}.Validate())
	assert.Error(t, Schedule{Minute: 60}.Validate())
	assert.Error(t, Schedule{Weekdays: []int{8}}.Validate())
}

func TestInstallStartUninstall(t *testing.T) {
	a, calls := newTestAgent(t)

	require.ErrorIs(t, a.Start(), ErrNotInstalled)
	require.ErrorIs(t, a.Uninstall(), ErrNotInstalled)

	path, err := a.Install("/usr/local/bin/okrtrack", DefaultSchedule)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.HomeDir, "Library", "LaunchAgents", a.Label()+".plist"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, a.Start())
	require.NoError(t, a.Uninstall())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, [][]string{
		{"launchctl", "load", path},
		{"launchctl", "unload", path},
	}, *calls)
}

func TestStopToleratesUnloadedAgent(t *testing.T) {
	a, _ := newTestAgent(t)
	a.run = func(string, ...string) ([]byte, error) {
		return []byte("Could not find specified service"), errors.New("exit status 113")
	}
	require.NoError(t, a.Stop())

	a.run = func(string, ...string) ([]byte, error) {
		return []byte("Permission denied"), errors.New("exit status 1")
	}
	assert.ErrorContains(t, a.Stop(), "launchctl unload failed")
}

func TestLoaded(t *testing.T) {
	a, _ := newTestAgent(t)
	a.run = func(string, ...string) ([]byte, error) {
		return []byte("-\t0\t" + a.Label() + "\n"), nil
	}
	loaded, err := a.Loaded()
	require.NoError(t, err)
	assert.True(t, loaded)
}

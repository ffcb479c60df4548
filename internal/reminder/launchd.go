// Package reminder installs a macOS LaunchAgent that runs "okrtrack due
// --notify" once a day for a workspace.
package reminder

import (
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"okrtrack/internal/workspace"
)

// ErrNotInstalled is returned when the workspace has no reminder plist.
var ErrNotInstalled = errors.New("reminder not installed")

// Schedule is when the reminder fires, in the machine's local time.
type Schedule struct {
	Hour   int
	Minute int
	// Weekdays limits the reminder to launchd weekdays (0 and 7 are Sunday).
	// Empty means every day.
	Weekdays []int
}

// DefaultSchedule fires at 09:00 on weekdays.
var DefaultSchedule = Schedule{Hour: 9, Minute: 0, Weekdays: []int{1, 2, 3, 4, 5}}

// Validate reports whether the schedule can be written to a plist.
func (s Schedule) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return errors.Errorf("hour %d out of range 0-23", s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return errors.Errorf("minute %d out of range 0-59", s.Minute)
	}
	for _, d := range s.Weekdays {
		if d < 0 || d > 7 {
			return errors.Errorf("weekday %d out of range 0-7", d)
		}
	}
	return nil
}

// Agent manages the LaunchAgent of one workspace.
type Agent struct {
	Workspace *workspace.Workspace
	// Org is passed through to the reminder run when set.
	Org string
	// HomeDir overrides the user's home directory.
	HomeDir string

	run func(name string, args ...string) ([]byte, error)
}

// NewAgent returns an agent for ws that talks to launchctl.
func NewAgent(ws *workspace.Workspace, org string) *Agent {
	return &Agent{Workspace: ws, Org: org}
}

func (a *Agent) exec(name string, args ...string) ([]byte, error) {
	if a.run != nil {
		return a.run(name, args...)
	}
	return exec.Command(name, args...).CombinedOutput()
}

// Label is the LaunchAgent label, stable per workspace root.
func (a *Agent) Label() string {
	h := sha256.Sum256([]byte(a.Workspace.Root))
	return fmt.Sprintf("dev.okrtrack.reminder.%x", h[:4])
}

// PlistPath is where the agent's plist lives.
func (a *Agent) PlistPath() (string, error) {
	home := a.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", errors.Wrap(err, "get home dir")
		}
	}
	return filepath.Join(home, "Library", "LaunchAgents", a.Label()+".plist"), nil
}

// LogPath is where launchd sends the reminder's output.
func (a *Agent) LogPath() string {
	return filepath.Join(a.Workspace.LogsDir, "reminder.log")
}

// Plist renders the LaunchAgent definition.
func (a *Agent) Plist(binaryPath string, sched Schedule) (string, error) {
	if err := sched.Validate(); err != nil {
		return "", err
	}
	bin, err := filepath.Abs(binaryPath)
	if err != nil {
		return "", errors.Wrap(err, "resolve binary path")
	}

	args := []string{bin, "due", "--notify", "--workspace", a.Workspace.Root}
	if a.Org != "" {
		args = append(args, "--org", a.Org)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
`)
	fmt.Fprintf(&b, "\t<key>Label</key>\n\t<string>%s</string>\n", xmlEscape(a.Label()))
	b.WriteString("\t<key>ProgramArguments</key>\n\t<array>\n")
	for _, arg := range args {
		fmt.Fprintf(&b, "\t\t<string>%s</string>\n", xmlEscape(arg))
	}
	b.WriteString("\t</array>\n")
	b.WriteString("\t<key>StartCalendarInterval</key>\n")
	if len(sched.Weekdays) == 0 {
		writeInterval(&b, "\t", sched.Hour, sched.Minute, -1)
	} else {
		b.WriteString("\t<array>\n")
		for _, d := range sched.Weekdays {
			writeInterval(&b, "\t\t", sched.Hour, sched.Minute, d)
		}
		b.WriteString("\t</array>\n")
	}
	fmt.Fprintf(&b, "\t<key>StandardOutPath</key>\n\t<string>%s</string>\n", xmlEscape(a.LogPath()))
	fmt.Fprintf(&b, "\t<key>StandardErrorPath</key>\n\t<string>%s</string>\n", xmlEscape(a.LogPath()))
	b.WriteString("</dict>\n</plist>\n")
	return b.String(), nil
}

func writeInterval(b *strings.Builder, indent string, hour, minute, weekday int) {
	fmt.Fprintf(b, "%s<dict>\n", indent)
	fmt.Fprintf(b, "%s\t<key>Hour</key>\n%s\t<integer>%d</integer>\n", indent, indent, hour)
	fmt.Fprintf(b, "%s\t<key>Minute</key>\n%s\t<integer>%d</integer>\n", indent, indent, minute)
	if weekday >= 0 {
		fmt.Fprintf(b, "%s\t<key>Weekday</key>\n%s\t<integer>%d</integer>\n", indent, indent, weekday)
	}
	fmt.Fprintf(b, "%s</dict>\n", indent)
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// Install writes the plist and returns its path. An existing plist is replaced.
func (a *Agent) Install(binaryPath string, sched Schedule) (string, error) {
	content, err := a.Plist(binaryPath, sched)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.Workspace.LogsDir, 0o755); err != nil {
		return "", errors.Wrap(err, "ensure log dir")
	}
	path, err := a.PlistPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "ensure LaunchAgents dir")
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "write plist")
	}
	return path, nil
}

// Uninstall unloads the agent and removes its plist.
func (a *Agent) Uninstall() error {
	path, err := a.PlistPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.Wrapf(ErrNotInstalled, "%s", path)
	}
	if err := a.Stop(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrap(err, "remove plist")
	}
	return nil
}

// Start loads the agent with launchctl.
func (a *Agent) Start() error {
	path, err := a.PlistPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.Wrapf(ErrNotInstalled, "%s (run 'okrtrack remind install' first)", path)
	}
	if out, err := a.exec("launchctl", "load", path); err != nil {
		return errors.Errorf("launchctl load failed: %v\nOutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Stop unloads the agent. An agent that is not loaded is not an error.
func (a *Agent) Stop() error {
	path, err := a.PlistPath()
	if err != nil {
		return err
	}
	out, err := a.exec("launchctl", "unload", path)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if !strings.Contains(msg, "Could not find specified service") {
			return errors.Errorf("launchctl unload failed: %v\nOutput: %s", err, msg)
		}
	}
	return nil
}

// Loaded reports whether launchd knows about the agent.
func (a *Agent) Loaded() (bool, error) {
	out, err := a.exec("launchctl", "list")
	if err != nil {
		return false, errors.Wrap(err, "launchctl list")
	}
	return strings.Contains(string(out), a.Label()), nil
}

package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-faster/errors"

	"okrtrack/internal/insights"
	"okrtrack/internal/okr"
)

// Notifier sends system notifications.
type Notifier struct {
	Enabled bool

	// run executes the notification command; nil means exec.
	run func(name string, args ...string) error
}

// Send sends a system notification.
// On macOS, uses osascript to display notifications.
// On other platforms, this is a no-op.
func (n *Notifier) Send(title, message string) error {
	if n == nil || !n.Enabled {
		return nil
	}

	if runtime.GOOS != "darwin" && n.run == nil {
		return nil
	}

	return n.sendMacOSNotification(title, message)
}

// sendMacOSNotification uses osascript to display a notification.
func (n *Notifier) sendMacOSNotification(title, message string) error {
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)

	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	run := n.run
	if run == nil {
		run = func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		}
	}
	if err := run("osascript", "-e", script); err != nil {
		return errors.Wrap(err, "send notification")
	}
	return nil
}

// FormatCheckInsDue formats the reminder for OKRs waiting on a check-in.
func FormatCheckInsDue(due []insights.DueCheckIn) (title, message string) {
	if len(due) == 0 {
		return "okrtrack: check-ins up to date", "No check-ins are due."
	}
	overdue := 0
	for _, d := range due {
		if d.DaysOverdue > 0 {
			overdue++
		}
	}
	title = fmt.Sprintf("okrtrack: %d check-in(s) due", len(due))
	first := due[0]
	owner := first.TeamName
	if owner == "" {
		owner = first.OKR.OwnerID
	}
	message = fmt.Sprintf("%s: %s", owner, first.OKR.ObjectiveText)
	if len(due) > 1 {
		message += fmt.Sprintf(" and %d more", len(due)-1)
	}
	if overdue > 0 {
		message += fmt.Sprintf(" (%d overdue)", overdue)
	}
	return title, message
}

// FormatCheckInRecorded formats the notification sent after a check-in. It
// calls out a fall into the at-risk range.
func FormatCheckInRecorded(objective string, ci okr.CheckIn, previous *okr.CheckIn) (title, message string) {
	trend := okr.TrendOf(&ci, previous)
	switch {
	case ci.ConfidenceLabel == okr.LabelLow && (previous == nil || previous.ConfidenceLabel != okr.LabelLow):
		title = "okrtrack: OKR at risk"
	case trend == okr.TrendUp:
		title = "okrtrack: confidence up"
	case trend == okr.TrendDown:
		title = "okrtrack: confidence down"
	default:
		title = "okrtrack: check-in recorded"
	}
	message = fmt.Sprintf("%s: %.0f%% confidence (%s)", objective, ci.Confidence, ci.ConfidenceLabel)
	return title, message
}

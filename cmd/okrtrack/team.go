package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"okrtrack/internal/audit"
	"okrtrack/internal/insights"
	"okrtrack/internal/lifecycle"
	"okrtrack/internal/notify"
	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

func runKR(args []string, g globalFlags) error {
	if isHelp(args) {
		return missingSubcommand("kr")
	}

	switch args[0] {
	case "set":
		return runKRSet(args[1:], g)
	case "attention":
		return runKRAttention(args[1:], g)
	default:
		return unknownSubcommand("kr", args[0])
	}
}

func runKRSet(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("kr set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("kr", "", "Key result id")
	value := fs.String("value", "", "Current value, e.g. 42 or 42%")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" || strings.TrimSpace(*value) == "" {
		return errors.New("--kr and --value are required")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(*value, "%")), 64)
	if err != nil {
		return errors.Errorf("--value %q is not a number", *value)
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		kr, ok := svc.Store.KeyResult(*id)
		if !ok {
			return errors.Errorf("key result %q not found", *id)
		}
		if err := a.authorize(svc.Store, who, kr.OKRID); err != nil {
			return err
		}
		svc.UpdateKeyResultValue(*id, v)
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventKRUpdated, map[string]any{"kr_id": *id, "current_value": v})
	printf("Updated %s to %v\n", *id, v)
	return nil
}

func runKRAttention(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("kr attention", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("kr", "", "Key result id")
	clearFlag := fs.Bool("clear", false, "Clear the flag")
	reason := fs.String("reason", "", "Why the key result needs attention")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--kr is required")
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	needs := !*clearFlag
	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		kr, ok := svc.Store.KeyResult(*id)
		if !ok {
			return errors.Errorf("key result %q not found", *id)
		}
		if err := a.authorize(svc.Store, who, kr.OKRID); err != nil {
			return err
		}
		svc.SetKeyResultAttention(*id, needs, optional(strings.TrimSpace(*reason)))
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventKRUpdated, map[string]any{"kr_id": *id, "needs_attention": needs, "reason": *reason})
	printf("Updated %s: needs attention %t\n", *id, needs)
	return nil
}

func runTeam(args []string, g globalFlags) error {
	if isHelp(args) {
		return missingSubcommand("team")
	}

	switch args[0] {
	case "cadence":
		return runTeamCadence(args[1:], g)
	default:
		return unknownSubcommand("team", args[0])
	}
}

func runTeamCadence(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("team cadence", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	form := CadenceForm{}
	fs.StringVar(&form.TeamID, "team", "", "Team id")
	fs.StringVar(&form.Cadence, "cadence", "", "weekly or biweekly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fields, ok := form.Ok(); !ok {
		return formError("team cadence", fields)
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		team, ok := svc.Store.Team(form.TeamID)
		if !ok {
			return errors.Errorf("team %q not found", form.TeamID)
		}
		if !canManageTeam(team, who) {
			a.record(audit.EventEditForbidden, map[string]any{"team_id": team.ID})
			return errors.Wrapf(errForbidden, "team %s as %s", team.ID, who.UserID)
		}
		svc.UpdateTeamCadence(team.ID, okr.Cadence(form.Cadence))
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventCadence, map[string]any{"team_id": form.TeamID, "cadence": form.Cadence})
	printf("Team %s now checks in %s\n", form.TeamID, form.Cadence)
	return nil
}

// canManageTeam applies the team OKR ownership rule to the team itself.
func canManageTeam(team okr.Team, who okrstore.Identity) bool {
	if who.IsAdmin() {
		return true
	}
	if team.PMUserID != nil {
		return *team.PMUserID == who.UserID
	}
	return team.PMName == who.DisplayName
}

func runDue(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("due", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	quarter := fs.String("quarter", "", "Quarter, e.g. 2025-Q3 (default: current quarter)")
	asOf := fs.String("as-of", "", "Date to check against YYYY-MM-DD (default: today)")
	team := fs.String("team", "", "Only this team")
	sendNotify := fs.Bool("notify", false, "Send a desktop notification")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	today := okr.DateOnly(a.now())
	if *asOf != "" {
		if today, err = okr.ParseDate(*asOf); err != nil {
			return errors.Wrap(err, "parse --as-of")
		}
	}
	q := *quarter
	if q == "" {
		q = okr.QuarterFor(today).String()
	} else if q, err = resolveQuarter(q, a); err != nil {
		return err
	}

	s, err := a.read(context.Background())
	if err != nil {
		return err
	}
	due := insights.DueCheckIns(s, q, today)
	if *team != "" {
		filtered := due[:0]
		for _, d := range due {
			if d.OKR.OwnerID == *team {
				filtered = append(filtered, d)
			}
		}
		due = filtered
	}

	if len(due) == 0 {
		printf("No check-ins due for %s as of %s\n", okr.FormatQuarter(q), today.Format(okr.DateLayout))
	}
	for _, d := range due {
		state := "due today"
		if d.DaysOverdue > 0 {
			state = strconv.Itoa(d.DaysOverdue) + " days overdue"
		}
		if d.LastCheckIn == nil {
			state = "no check-ins yet"
		}
		printf("  %-24s %-12s %-9s %s  %s\n", d.OKR.ID, d.TeamName, d.Cadence, state, d.OKR.ObjectiveText)
	}

	if *sendNotify || a.cfg.Notify {
		n := &notify.Notifier{Enabled: true}
		title, message := notify.FormatCheckInsDue(due)
		if err := n.Send(title, message); err != nil {
			a.log.WithError(err).Warn("notification failed")
		}
	}
	a.log.WithFields(logrus.Fields{"quarter": q, "due": len(due)}).Debug("computed due check-ins")
	return nil
}

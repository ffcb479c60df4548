package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"okrtrack/internal/audit"
	"okrtrack/internal/reminder"
)

func runRemind(args []string, g globalFlags) error {
	if isHelp(args) {
		return missingSubcommand("remind")
	}

	switch args[0] {
	case "install":
		return runRemindInstall(args[1:], g)
	case "uninstall":
		return runRemindUninstall(args[1:], g)
	case "status":
		return runRemindStatus(args[1:], g)
	default:
		return unknownSubcommand("remind", args[0])
	}
}

func runRemindInstall(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("remind install", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	hour := fs.Int("hour", reminder.DefaultSchedule.Hour, "Hour of day 0-23")
	minute := fs.Int("minute", reminder.DefaultSchedule.Minute, "Minute 0-59")
	days := fs.String("days", "weekdays", `"weekdays", "daily" or launchd weekday numbers like "1,3,5"`)
	start := fs.Bool("start", true, "Load the agent after writing it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	weekdays, err := parseWeekdays(*days)
	if err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	bin, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locate okrtrack binary")
	}
	agent := reminder.NewAgent(a.ws, a.orgID)
	path, err := agent.Install(bin, reminder.Schedule{Hour: *hour, Minute: *minute, Weekdays: weekdays})
	if err != nil {
		return err
	}
	if *start {
		if err := agent.Start(); err != nil {
			return err
		}
	}
	a.record(audit.EventReminderInstalled, map[string]any{"plist": path, "hour": *hour, "minute": *minute, "days": *days})
	printf("Installed reminder %s\n  plist: %s\n  log:   %s\n", agent.Label(), path, agent.LogPath())
	return nil
}

func runRemindUninstall(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("remind uninstall", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	agent := reminder.NewAgent(a.ws, a.orgID)
	if err := agent.Uninstall(); err != nil {
		return err
	}
	a.record(audit.EventReminderUninstalled, map[string]any{"label": agent.Label()})
	printf("Removed reminder %s\n", agent.Label())
	return nil
}

func runRemindStatus(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("remind status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	agent := reminder.NewAgent(a.ws, a.orgID)
	path, err := agent.PlistPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		printf("Reminder not installed (%s)\n", agent.Label())
		return nil
	}
	loaded, err := agent.Loaded()
	if err != nil {
		return err
	}
	printf("Reminder %s installed at %s, loaded: %t\n", agent.Label(), path, loaded)
	return nil
}

func parseWeekdays(value string) ([]int, error) {
	switch strings.TrimSpace(value) {
	case "", "weekdays":
		return reminder.DefaultSchedule.Weekdays, nil
	case "daily":
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 || d > 7 {
			return nil, errors.Errorf("--days: invalid weekday %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

package main

import (
	"flag"
	"os"

	"okrtrack/internal/okr"
)

func runAudit(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Number of events to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.audit.Recent(*limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		printf("No audit events\n")
		return nil
	}
	for _, ev := range events {
		printf("%s  %-10s %-22s %s\n", ev.TS.In(a.loc).Format(okr.DateLayout+" 15:04"), ev.Actor, ev.Type, ev.PayloadJSON)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
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

func runOKR(args []string, g globalFlags) error {
	if isHelp(args) {
		return missingSubcommand("okr")
	}

	switch args[0] {
	case "create":
		return runOKRCreate(args[1:], g)
	case "checkin":
		return runOKRCheckIn(args[1:], g)
	case "rollover":
		return runOKRRollover(args[1:], g)
	case "link":
		return runOKRLink(args[1:], g)
	case "jira":
		return runOKRJira(args[1:], g)
	case "close":
		return runOKRClose(args[1:], g)
	case "reopen":
		return runOKRReopen(args[1:], g)
	case "show":
		return runOKRShow(args[1:], g)
	case "list":
		return runOKRList(args[1:], g)
	default:
		return unknownSubcommand("okr", args[0])
	}
}

// keyResultFlags collects repeated --kr "text|target|baseline" values.
type keyResultFlags []KeyResultForm

func (k *keyResultFlags) String() string {
	parts := make([]string, 0, len(*k))
	for _, kr := range *k {
		parts = append(parts, kr.Text)
	}
	return strings.Join(parts, ", ")
}

func (k *keyResultFlags) Set(value string) error {
	parts := strings.Split(value, "|")
	if len(parts) > 3 {
		return errors.Errorf("key result %q: expected text|target|baseline", value)
	}
	kr := KeyResultForm{Text: parts[0]}
	if len(parts) > 1 {
		kr.Target = parts[1]
	}
	if len(parts) > 2 {
		kr.Baseline = parts[2]
	}
	*k = append(*k, kr)
	return nil
}

func runOKRCreate(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	form := CreateOKRForm{}
	var krs keyResultFlags
	fs.StringVar(&form.Level, "level", "team", "OKR level: productArea, domain or team")
	fs.StringVar(&form.OwnerID, "owner", "", "Owning product area, domain or team id")
	fs.StringVar(&form.Quarter, "quarter", "", "Quarter, e.g. 2025-Q3 (default: current quarter)")
	fs.StringVar(&form.Objective, "objective", "", "Objective text")
	fs.StringVar(&form.ParentOKRID, "parent", "", "Parent OKR id")
	fs.Var(&krs, "kr", `Key result as "text|target|baseline" (repeatable)`)
	fs.Float64Var(&form.InitialConfidence, "confidence", 50, "Initial confidence 0-100")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	if strings.TrimSpace(form.Quarter) == "" {
		form.Quarter = okr.QuarterFor(a.now()).String()
	}
	form.KeyResults = krs
	if fields, ok := form.Ok(); !ok {
		return formError("okr create", fields)
	}

	in := lifecycle.CreateOKRInput{
		Level:             okr.Level(form.Level),
		OwnerID:           form.OwnerID,
		Quarter:           form.Quarter,
		ObjectiveText:     form.Objective,
		InitialConfidence: form.InitialConfidence,
	}
	if form.ParentOKRID != "" {
		in.ParentOKRID = okr.Ptr(form.ParentOKRID)
	}
	for _, kr := range form.KeyResults {
		in.KeyResults = append(in.KeyResults, lifecycle.KeyResultDraft{Text: kr.Text, Target: kr.Target, Baseline: kr.Baseline})
	}

	var id string
	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		if !ownerExists(svc.Store, in.Level, in.OwnerID) {
			return errors.Errorf("unknown %s owner %q", in.Level, in.OwnerID)
		}
		if in.ParentOKRID != nil {
			parent, ok := svc.Store.OKR(*in.ParentOKRID)
			if !ok {
				return errors.Errorf("unknown parent OKR %q", *in.ParentOKRID)
			}
			if !okr.ValidParentLevel(parent.Level, in.Level) {
				return errors.Errorf("a %s OKR cannot be the parent of a %s OKR", parent.Level, in.Level)
			}
		}
		id = svc.CreateOKR(in)
		return a.authorize(svc.Store, who, id)
	})
	if err != nil {
		return err
	}

	a.record(audit.EventOKRCreated, map[string]any{
		"okr_id":      id,
		"level":       form.Level,
		"owner_id":    form.OwnerID,
		"quarter":     form.Quarter,
		"key_results": len(form.KeyResults),
	})
	a.log.WithFields(logrus.Fields{"okr_id": id, "quarter": form.Quarter}).Info("okr created")
	printf("Created OKR %s\n", id)
	return nil
}

func ownerExists(s okrstore.Reader, level okr.Level, ownerID string) bool {
	switch level {
	case okr.LevelProductArea:
		_, ok := s.ProductArea(ownerID)
		return ok
	case okr.LevelDomain:
		_, ok := s.Domain(ownerID)
		return ok
	case okr.LevelTeam:
		_, ok := s.Team(ownerID)
		return ok
	}
	return false
}

func runOKRCheckIn(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr checkin", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	form := CheckInForm{}
	fs.StringVar(&form.OKRID, "okr", "", "OKR id")
	fs.StringVar(&form.Date, "date", "", "Check-in date YYYY-MM-DD (default: today)")
	fs.StringVar(&form.Cadence, "cadence", "", "weekly or biweekly (default: team cadence)")
	fs.Float64Var(&form.Progress, "progress", 0, "Progress 0-100")
	fs.Float64Var(&form.Confidence, "confidence", 0, "Confidence 0-100")
	fs.StringVar(&form.ReasonForChange, "reason", "", "Why confidence changed")
	fs.StringVar(&form.Note, "note", "", "Free-form note")
	fs.StringVar(&form.RootCause, "root-cause", "", "Root cause category")
	fs.StringVar(&form.RootCauseNote, "root-cause-note", "", "Root cause detail")
	fs.StringVar(&form.RecoveryLikelihood, "recovery", "", "Recovery likelihood: high, medium or low")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fields, ok := form.Ok(); !ok {
		return formError("okr checkin", fields)
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	in := lifecycle.CheckInInput{
		OKRID:              form.OKRID,
		Cadence:            okr.Cadence(form.Cadence),
		Progress:           form.Progress,
		Confidence:         form.Confidence,
		ReasonForChange:    optional(form.ReasonForChange),
		OptionalNote:       optional(form.Note),
		RootCauseNote:      optional(form.RootCauseNote),
		RecoveryLikelihood: optional(form.RecoveryLikelihood),
		Date:               okr.DateOnly(a.now()),
	}
	if form.Date != "" {
		if in.Date, err = okr.ParseDate(form.Date); err != nil {
			return errors.Wrap(err, "parse --date")
		}
	}
	if form.RootCause != "" {
		rc, _ := okr.ParseRootCause(form.RootCause)
		in.RootCause = &rc
	}

	var id, objective string
	var previous *okr.CheckIn
	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		o, ok := svc.Store.OKR(in.OKRID)
		if !ok {
			return errors.Wrapf(insights.ErrNotFound, "okr %q", in.OKRID)
		}
		if err := a.authorize(svc.Store, who, o.ID); err != nil {
			return err
		}
		objective = o.ObjectiveText
		if last, ok := insights.LatestCheckIn(svc.Store, o.ID); ok {
			previous = &last
		}
		id = svc.AddCheckIn(in)
		return nil
	})
	if err != nil {
		return err
	}

	label := okr.ConfidenceLabelFor(in.Confidence)
	a.record(audit.EventCheckIn, map[string]any{
		"okr_id":     in.OKRID,
		"check_in":   id,
		"confidence": in.Confidence,
		"progress":   in.Progress,
		"label":      string(label),
	})
	a.log.WithFields(logrus.Fields{"okr_id": in.OKRID, "confidence": in.Confidence}).Info("check-in added")

	n := &notify.Notifier{Enabled: a.cfg.Notify}
	title, message := notify.FormatCheckInRecorded(objective, okr.CheckIn{Confidence: in.Confidence, ConfidenceLabel: label}, previous)
	if err := n.Send(title, message); err != nil {
		a.log.WithError(err).Warn("notification failed")
	}
	printf("Recorded check-in %s (%s, %s)\n", id, pctLabel(in.Confidence), label)
	return nil
}

func runOKRRollover(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr rollover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("okr", "", "OKR id to copy into the next quarter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--okr is required")
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	var newID string
	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		if err := a.authorize(svc.Store, who, *id); err != nil {
			return err
		}
		created, ok := svc.RolloverOKR(*id)
		if !ok {
			return errors.Errorf("okr %q could not be rolled over", *id)
		}
		newID = created
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventRollover, map[string]any{"okr_id": *id, "new_okr_id": newID})
	a.log.WithFields(logrus.Fields{"okr_id": *id, "new_okr_id": newID}).Info("okr rolled over")
	printf("Rolled over %s to %s\n", *id, newID)
	return nil
}

func runOKRLink(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr link", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	parent := fs.String("parent", "", "Parent OKR id")
	child := fs.String("child", "", "Child OKR id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*parent) == "" || strings.TrimSpace(*child) == "" {
		return errors.New("--parent and --child are required")
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		if _, ok := svc.Store.OKR(*child); !ok {
			return errors.Wrapf(insights.ErrNotFound, "okr %q", *child)
		}
		if _, ok := svc.Store.OKR(*parent); !ok {
			return errors.Wrapf(insights.ErrNotFound, "okr %q", *parent)
		}
		if err := a.authorize(svc.Store, who, *child); err != nil {
			return err
		}
		return svc.AddOKRLink(*parent, *child)
	})
	if err != nil {
		return err
	}
	a.record(audit.EventLinked, map[string]any{"okr_id": *child, "parent_okr_id": *parent})
	printf("Linked %s under %s\n", *child, *parent)
	return nil
}

func runOKRJira(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr jira", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("okr", "", "OKR id")
	epic := fs.String("epic", "", "Epic key or URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" || strings.TrimSpace(*epic) == "" {
		return errors.New("--okr and --epic are required")
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	var linkID string
	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		if err := a.authorize(svc.Store, who, *id); err != nil {
			return err
		}
		linkID = svc.AddJiraLink(*id, *epic)
		if linkID == "" {
			return errors.Wrapf(insights.ErrNotFound, "okr %q", *id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventJiraLinked, map[string]any{"okr_id": *id, "link_id": linkID, "epic": *epic})
	printf("Linked %s to %s\n", *id, strings.TrimSpace(*epic))
	return nil
}

func runOKRClose(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr close", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	form := CloseForm{}
	fs.StringVar(&form.OKRID, "okr", "", "OKR id")
	fs.Float64Var(&form.FinalValue, "final", 0, "Final value reached")
	fs.StringVar(&form.Achievement, "achievement", "", "achieved, partially_achieved or missed")
	fs.StringVar(&form.Summary, "summary", "", "Closing summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fields, ok := form.Ok(); !ok {
		return formError("okr close", fields)
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		if err := a.authorize(svc.Store, who, form.OKRID); err != nil {
			return err
		}
		if !svc.CloseQuarter(form.OKRID, lifecycle.CloseInput{
			FinalValue:  form.FinalValue,
			Achievement: okr.Achievement(form.Achievement),
			Summary:     form.Summary,
		}) {
			return errors.Wrapf(insights.ErrNotFound, "okr %q", form.OKRID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventClosed, map[string]any{"okr_id": form.OKRID, "achievement": form.Achievement, "final_value": form.FinalValue})
	printf("Closed %s (%s)\n", form.OKRID, form.Achievement)
	return nil
}

func runOKRReopen(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr reopen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("okr", "", "OKR id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--okr is required")
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.mutate(context.Background(), func(svc *lifecycle.Service, who okrstore.Identity) error {
		if err := a.authorize(svc.Store, who, *id); err != nil {
			return err
		}
		if !svc.ReopenQuarter(*id) {
			return errors.Wrapf(insights.ErrNotFound, "okr %q", *id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.record(audit.EventReopened, map[string]any{"okr_id": *id})
	printf("Reopened %s\n", *id)
	return nil
}

func runOKRShow(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("okr", "", "OKR id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("--okr is required")
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.read(context.Background())
	if err != nil {
		return err
	}
	d, err := insights.Details(s, *id)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, describeOKR(d))
	return nil
}

func describeOKR(d insights.OKRWithDetails) string {
	var b strings.Builder
	o := d.OKR
	fmt.Fprintf(&b, "%s  %s\n", o.ID, o.ObjectiveText)
	fmt.Fprintf(&b, "  %s · %s · %s · %s\n", okr.FormatQuarter(o.Quarter), o.Level, d.OwnerName, o.Status)
	if o.ParentOKRID != nil {
		fmt.Fprintf(&b, "  parent: %s\n", *o.ParentOKRID)
	}
	if d.IsOrphaned {
		b.WriteString("  orphaned: no parent OKR\n")
	}
	if o.IsRolledOver && o.RolledOverFrom != nil {
		fmt.Fprintf(&b, "  rolled over from: %s\n", *o.RolledOverFrom)
	}
	if c, ok := d.LatestConfidence(); ok {
		fmt.Fprintf(&b, "  confidence: %s (%s, %s), trend %s\n", pctLabel(c), d.LatestCheckIn.ConfidenceLabel, insights.HealthTierFor(c), d.Trend)
	}
	if qc := o.QuarterClose; qc != nil {
		fmt.Fprintf(&b, "  closed %s: %s, final %v. %s\n", qc.ClosedAt.Format(okr.DateLayout), qc.Achievement, qc.FinalValue, qc.Summary)
	}
	if len(d.KeyResults) > 0 {
		b.WriteString("  key results:\n")
		for _, kr := range d.KeyResults {
			attention := ""
			if kr.NeedsAttention {
				attention = " [needs attention"
				if kr.AttentionReason != nil {
					attention += ": " + *kr.AttentionReason
				}
				attention += "]"
			}
			fmt.Fprintf(&b, "    %s  %s: %v / %v (%s)%s\n", kr.ID, kr.Text, kr.CurrentValue, kr.TargetValue, pctLabel(insights.KeyResultPercent(kr)), attention)
		}
	}
	if len(d.CheckIns) > 0 {
		b.WriteString("  check-ins:\n")
		for _, ci := range d.CheckIns {
			fmt.Fprintf(&b, "    %s  progress %s, confidence %s (%s)", ci.Date.Format(okr.DateLayout), pctLabel(ci.Progress), pctLabel(ci.Confidence), ci.ConfidenceLabel)
			if ci.RootCause != nil {
				fmt.Fprintf(&b, ", root cause %s", *ci.RootCause)
			}
			if ci.ReasonForChange != nil {
				fmt.Fprintf(&b, ": %s", *ci.ReasonForChange)
			}
			b.WriteString("\n")
		}
	}
	for _, link := range d.JiraLinks {
		fmt.Fprintf(&b, "  jira: %s\n", link.EpicIdentifierOrURL)
	}
	if len(d.ChildOKRs) > 0 {
		b.WriteString("  children:\n")
		insights.WalkTree(d.ChildOKRs, func(c insights.OKRWithDetails, depth int) {
			fmt.Fprintf(&b, "    %s%s  %s\n", strings.Repeat("  ", depth), c.OKR.ID, c.OKR.ObjectiveText)
		})
	}
	return b.String()
}

func runOKRList(args []string, g globalFlags) error {
	fs := flag.NewFlagSet("okr list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	quarter := fs.String("quarter", "", "Quarter, e.g. 2025-Q3 (default: current quarter)")
	level := fs.String("level", "", "Only OKRs at this level")
	owner := fs.String("owner", "", "Only OKRs of this owner id")
	tree := fs.Bool("tree", false, "Show the parent/child hierarchy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := resolveQuarter(*quarter, a)
	if err != nil {
		return err
	}
	s, err := a.read(context.Background())
	if err != nil {
		return err
	}

	if *tree {
		nodes, err := insights.Tree(s, q)
		if err != nil {
			return err
		}
		insights.WalkTree(nodes, func(d insights.OKRWithDetails, depth int) {
			printf("%s%s  %s  %s\n", strings.Repeat("  ", depth), d.OKR.ID, confidenceCell(d), d.OKR.ObjectiveText)
		})
		return nil
	}

	filter, err := listFilter(*level, *owner)
	if err != nil {
		return err
	}
	details, err := insights.DetailsForQuarter(s, q, filter)
	if err != nil {
		return err
	}
	insights.SortByUrgency(details)
	summary := insights.Summarize(s, insights.IDs(details))

	printf("%s: %d OKRs, overall confidence %d%%, %d at risk, %d on track\n",
		okr.FormatQuarter(q), summary.Total, summary.OverallConfidence, summary.AtRisk, summary.OnTrack)
	for _, d := range details {
		printf("  %-24s %-6s %-10s %-12s %s\n", d.OKR.ID, confidenceCell(d), d.OKR.Level, d.OwnerName, d.OKR.ObjectiveText)
	}
	return nil
}

func listFilter(level, owner string) (insights.Filter, error) {
	var filters []insights.Filter
	if level != "" {
		l, ok := okr.ParseLevel(level)
		if !ok {
			return nil, errors.Errorf("unknown level %q", level)
		}
		filters = append(filters, insights.ByLevel(l))
	}
	if owner != "" {
		filters = append(filters, insights.ByOwner(owner))
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return func(o okr.OKR) bool {
		for _, f := range filters {
			if !f(o) {
				return false
			}
		}
		return true
	}, nil
}

func resolveQuarter(value string, a *app) (string, error) {
	if strings.TrimSpace(value) == "" {
		return okr.QuarterFor(a.now()).String(), nil
	}
	q, err := okr.ParseQuarter(value)
	if err != nil {
		return "", err
	}
	return q.String(), nil
}

func confidenceCell(d insights.OKRWithDetails) string {
	c, ok := d.LatestConfidence()
	if !ok {
		return "--"
	}
	return pctLabel(c)
}

func pctLabel(v float64) string {
	return fmt.Sprintf("%.0f%%", v)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return okr.Ptr(value)
}

package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"okrtrack/internal/audit"
	"okrtrack/internal/export"
	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

func runExport(args []string, g globalFlags) error {
	if isHelp(args) {
		return missingSubcommand("export")
	}
	format := args[0]
	switch format {
	case "csv", "table", "narrative", "deck", "xlsx", "seed":
	default:
		return unknownSubcommand("export", format)
	}

	fs := flag.NewFlagSet("export "+format, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	quarter := fs.String("quarter", "", "Quarter, e.g. 2025-Q3 (default: current quarter)")
	level := fs.String("level", "", "Only OKRs at this level")
	owner := fs.String("owner", "", "Only OKRs of this owner id")
	scope := fs.String("scope", "", "Scope label shown in narratives and decks (default: organization id)")
	output := fs.String("output", "", "Output path (default: <workspace>/exports/<org>/<quarter>/...)")
	toStdout := fs.Bool("stdout", false, "Print to stdout instead of writing a file")
	if err := fs.Parse(args[1:]); err != nil {
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
	if format == "seed" {
		return exportSeed(a, s, *output)
	}

	filter, err := listFilter(*level, *owner)
	if err != nil {
		return err
	}
	label := *scope
	if label == "" {
		label = s.OrganizationID
	}
	bundle, err := export.NewDeckBundle(s, q, label, filter, a.now())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	name := "okrs"
	switch format {
	case "csv":
		buf.WriteString(export.CSV(bundle.OKRs))
		name += ".csv"
	case "table":
		buf.WriteString(export.Table(bundle.OKRs))
		name += ".md"
	case "narrative":
		buf.WriteString(bundle.Narrative.Text())
		name = "narrative.txt"
	case "deck":
		r := export.MarkdownDeckRenderer{}
		if err := r.Render(&buf, bundle); err != nil {
			return err
		}
		name = "deck" + r.Extension()
	case "xlsx":
		r := export.WorkbookRenderer{}
		if err := r.Render(&buf, bundle); err != nil {
			return err
		}
		name = "okrs" + r.Extension()
	}

	if *toStdout {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}

	path := a.ws.ExportPath(s.OrganizationID, q, name)
	if *output != "" {
		if path, err = a.ws.ResolvePath(*output); err != nil {
			return errors.Wrap(err, "resolve --output")
		}
	}

	// Binary workbooks are not diffed.
	diff := ""
	if format != "xlsx" {
		if diff, err = export.DiffAgainstFile(path, buf.String(), filepath.Join("current", filepath.Base(path))); err != nil {
			return err
		}
	}
	if err := writeExport(path, buf.Bytes()); err != nil {
		return err
	}

	a.record(audit.EventExport, map[string]any{
		"format":  format,
		"quarter": q,
		"path":    path,
		"okrs":    len(bundle.OKRs),
		"changed": diff != "",
	})
	a.log.WithFields(logrus.Fields{
		"org_id":  s.OrganizationID,
		"quarter": q,
		"format":  format,
		"path":    path,
	}).Info("export written")

	printf("Wrote %s (%d OKRs, %s)\n", path, len(bundle.OKRs), okr.FormatQuarter(q))
	if diff != "" {
		printf("%s", diff)
	}
	return nil
}

// exportSeed writes the whole organization back out as a seed document.
func exportSeed(a *app, s *okrstore.Store, output string) error {
	path := filepath.Join(a.ws.ExportsDir, s.OrganizationID, "seed.yml")
	if output != "" {
		var err error
		if path, err = a.ws.ResolvePath(output); err != nil {
			return errors.Wrap(err, "resolve --output")
		}
	}
	diff, err := okrstore.WriteSnapshot(s, path)
	if err != nil {
		return err
	}
	a.record(audit.EventExport, map[string]any{"format": "seed", "path": path, "changed": diff != ""})
	printf("Wrote %s (%d OKRs)\n", path, len(s.OKRs()))
	if diff != "" {
		printf("%s", diff)
	}
	return nil
}

func writeExport(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "ensure export dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp export")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp export")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close temp export")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "replace export")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"okrtrack/internal/audit"
	"okrtrack/internal/config"
	"okrtrack/internal/lifecycle"
	"okrtrack/internal/logging"
	"okrtrack/internal/okrstore"
	"okrtrack/internal/persistence"
	"okrtrack/internal/workspace"
)

var errForbidden = errors.New("not allowed to edit this OKR")

// app carries what every command needs once the workspace is resolved.
type app struct {
	cfg    *config.Config
	ws     *workspace.Workspace
	log    *logrus.Logger
	audit  *audit.Logger
	orgID  string
	userID string
	loc    *time.Location

	logCloser io.Closer
}

func newApp(g globalFlags) (*app, error) {
	cfg, err := config.Load(config.DefaultEnvFiles...)
	if err != nil {
		return nil, err
	}
	root := firstNonEmpty(g.Workspace, cfg.Workspace)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("--workspace is required")
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return nil, err
	}
	if err := ws.EnsureDirs(); err != nil {
		return nil, err
	}
	if cfg.Log.Path != "" {
		if cfg.Log.Path, err = ws.ResolvePath(cfg.Log.Path); err != nil {
			return nil, errors.Wrap(err, "resolve log path")
		}
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return &app{
		cfg:       cfg,
		ws:        ws,
		log:       logger,
		audit:     audit.NewLogger(ws.AuditDBPath),
		orgID:     firstNonEmpty(g.Org, cfg.Org),
		userID:    firstNonEmpty(g.As, cfg.As),
		loc:       loc,
		logCloser: closer,
	}, nil
}

func (a *app) Close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func (a *app) now() time.Time {
	return time.Now().In(a.loc)
}

func (a *app) actor() string {
	if a.userID != "" {
		return a.userID
	}
	return "cli"
}

// record writes an audit event. Audit failures are logged, never fatal.
func (a *app) record(eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	if a.orgID != "" {
		payload["org_id"] = a.orgID
	}
	if err := a.audit.LogEvent(a.actor(), eventType, payload); err != nil {
		a.log.WithError(err).WithField("event", eventType).Warn("audit log failed")
	}
}

func (a *app) openDB() (*persistence.DB, error) {
	return persistence.Open(a.ws.DBPath)
}

// loadStore loads the snapshot of the selected organization. With no
// organization selected, a database holding exactly one is used.
func (a *app) loadStore(ctx context.Context, db *persistence.DB) (*okrstore.Store, error) {
	if a.orgID == "" {
		orgs, err := db.Organizations(ctx)
		if err != nil {
			return nil, err
		}
		switch len(orgs) {
		case 0:
			return nil, errors.Errorf("no organizations imported; run %s import first", appName)
		case 1:
			a.orgID = orgs[0]
		default:
			return nil, errors.Errorf("--org is required (found %s)", strings.Join(orgs, ", "))
		}
	}
	s, err := db.LoadOrganization(ctx, a.orgID)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"org_id": a.orgID,
		"okrs":   len(s.OKRs()),
	}).Debug("loaded organization")
	return s, nil
}

// read opens the database and loads the snapshot for a read-only command.
func (a *app) read(ctx context.Context) (*okrstore.Store, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()
	return a.loadStore(ctx, db)
}

// identity resolves the acting user from the identities file.
func (a *app) identity() (okrstore.Identity, error) {
	if a.userID == "" {
		return okrstore.Identity{}, errors.New("--as is required for changes")
	}
	path := a.ws.IdentitiesPath
	if a.cfg.Identities != "" {
		resolved, err := a.ws.ResolvePath(a.cfg.Identities)
		if err != nil {
			return okrstore.Identity{}, errors.Wrap(err, "resolve identities path")
		}
		path = resolved
	}
	dir, err := okrstore.LoadIdentities(path)
	if err != nil {
		return okrstore.Identity{}, err
	}
	who, ok := dir.Lookup(a.userID)
	if !ok {
		return okrstore.Identity{}, errors.Errorf("unknown user %q in %s", a.userID, path)
	}
	return who, nil
}

// authorize checks that who may edit every listed OKR in s.
func (a *app) authorize(s okrstore.Reader, who okrstore.Identity, okrIDs ...string) error {
	for _, id := range okrIDs {
		if okrstore.CanEditOKR(s, who, id) {
			continue
		}
		a.record(audit.EventEditForbidden, map[string]any{"okr_id": id})
		a.log.WithFields(logrus.Fields{"okr_id": id, "user_id": who.UserID}).Warn("edit forbidden")
		return errors.Wrapf(errForbidden, "%s as %s", id, who.UserID)
	}
	return nil
}

// mutate loads the snapshot, runs fn against a service bound to it and
// persists the recorded changes in one transaction. When fn fails nothing
// is written and the snapshot is dropped.
func (a *app) mutate(ctx context.Context, fn func(svc *lifecycle.Service, who okrstore.Identity) error) error {
	who, err := a.identity()
	if err != nil {
		return err
	}
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	s, err := a.loadStore(ctx, db)
	if err != nil {
		return err
	}
	svc := lifecycle.NewService(s)
	svc.Now = a.now
	if err := fn(svc, who); err != nil {
		return err
	}
	changes := svc.Drain()
	if err := db.Apply(ctx, s, changes); err != nil {
		return errors.Wrap(err, "persist changes")
	}
	a.log.WithFields(logrus.Fields{
		"org_id":  a.orgID,
		"changes": len(changes),
	}).Debug("persisted changes")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}

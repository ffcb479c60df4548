// Package persistence keeps organizations in a SQLite database. It is the
// relational collaborator the in-memory core is loaded from and persisted to.
package persistence

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"

	"okrtrack/internal/lifecycle"
	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// ErrUnknownOrganization is returned when no rows exist for an organization.
var ErrUnknownOrganization = errors.New("unknown organization")

// DB is the SQLite-backed organization store.
type DB struct {
	Path string
	db   *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve db path")
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "ensure db dir")
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	// One connection keeps writes serialized, matching the single-writer core.
	db.SetMaxOpenConns(1)

	d := &DB{Path: absPath, db: db}
	if err := d.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS product_areas (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS domains (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name TEXT NOT NULL,
	product_area_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name TEXT NOT NULL,
	domain_id TEXT NOT NULL,
	pm_name TEXT NOT NULL,
	pm_user_id TEXT,
	cadence TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS okrs (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	level TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	quarter TEXT NOT NULL,
	year INTEGER NOT NULL,
	quarter_num INTEGER NOT NULL,
	objective_text TEXT NOT NULL,
	parent_okr_id TEXT,
	is_rolled_over INTEGER NOT NULL DEFAULT 0,
	rolled_over_from TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	close_final_value REAL,
	close_achievement TEXT,
	close_summary TEXT,
	close_closed_at TEXT
);

CREATE TABLE IF NOT EXISTS key_results (
	id TEXT PRIMARY KEY,
	okr_id TEXT NOT NULL,
	text TEXT NOT NULL,
	target_value REAL NOT NULL,
	current_value REAL NOT NULL,
	baseline REAL NOT NULL,
	needs_attention INTEGER NOT NULL DEFAULT 0,
	attention_reason TEXT
);

CREATE TABLE IF NOT EXISTS check_ins (
	id TEXT PRIMARY KEY,
	okr_id TEXT NOT NULL,
	date TEXT NOT NULL,
	cadence TEXT NOT NULL,
	progress REAL NOT NULL,
	confidence REAL NOT NULL,
	confidence_label TEXT NOT NULL,
	reason_for_change TEXT,
	optional_note TEXT,
	root_cause TEXT,
	root_cause_note TEXT,
	recovery_likelihood TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jira_links (
	id TEXT PRIMARY KEY,
	okr_id TEXT NOT NULL,
	epic_identifier_or_url TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_okrs_org_quarter ON okrs(organization_id, quarter);
CREATE INDEX IF NOT EXISTS idx_key_results_okr ON key_results(okr_id);
CREATE INDEX IF NOT EXISTS idx_check_ins_okr ON check_ins(okr_id);
CREATE INDEX IF NOT EXISTS idx_jira_links_okr ON jira_links(okr_id);
`
	if _, err := d.db.Exec(schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	return nil
}

// Organizations lists the ids of every stored organization.
func (d *DB) Organizations(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id FROM organizations ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "query organizations")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan organization")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadOrganization reads every row of the organization into a new snapshot.
func (d *DB) LoadOrganization(ctx context.Context, orgID string) (*okrstore.Store, error) {
	rows, err := d.Rows(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return rows.ToStore()
}

// Import writes a whole snapshot in one transaction, inserting or replacing
// every row.
func (d *DB) Import(ctx context.Context, s *okrstore.Store) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertOrganization(ctx, tx, s.OrganizationID); err != nil {
			return err
		}
		for _, pa := range s.ProductAreas() {
			if err := upsertProductArea(ctx, tx, s.OrganizationID, pa); err != nil {
				return err
			}
		}
		for _, dom := range s.Domains() {
			if err := upsertDomain(ctx, tx, s.OrganizationID, dom); err != nil {
				return err
			}
		}
		for _, t := range s.Teams() {
			if err := upsertTeam(ctx, tx, s.OrganizationID, t); err != nil {
				return err
			}
		}
		for _, o := range s.OKRs() {
			if err := upsertOKR(ctx, tx, s.OrganizationID, o); err != nil {
				return err
			}
			for _, kr := range s.KeyResultsFor(o.ID) {
				if err := upsertKeyResult(ctx, tx, kr); err != nil {
					return err
				}
			}
			for _, link := range s.JiraLinksFor(o.ID) {
				if err := upsertJiraLink(ctx, tx, link); err != nil {
					return err
				}
			}
		}
		for _, ci := range s.CheckIns() {
			if err := upsertCheckIn(ctx, tx, ci); err != nil {
				return err
			}
		}
		return nil
	})
}

// Apply persists the rows named by changes, reading their current values
// from s. Everything is written in one transaction; on error nothing is
// written and the caller should discard s.
func (d *DB) Apply(ctx context.Context, s *okrstore.Store, changes []lifecycle.Change) error {
	if len(changes) == 0 {
		return nil
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range changes {
			if err := applyChange(ctx, tx, s, c); err != nil {
				return errors.Wrapf(err, "%s %s %s", c.Op, c.Entity, c.ID)
			}
		}
		return nil
	})
}

func applyChange(ctx context.Context, tx *sql.Tx, s *okrstore.Store, c lifecycle.Change) error {
	switch c.Entity {
	case lifecycle.EntityOKR:
		o, ok := s.OKR(c.ID)
		if !ok {
			return errors.New("not in snapshot")
		}
		return upsertOKR(ctx, tx, s.OrganizationID, o)
	case lifecycle.EntityKeyResult:
		kr, ok := s.KeyResult(c.ID)
		if !ok {
			return errors.New("not in snapshot")
		}
		return upsertKeyResult(ctx, tx, kr)
	case lifecycle.EntityCheckIn:
		ci, ok := s.CheckIn(c.ID)
		if !ok {
			return errors.New("not in snapshot")
		}
		return upsertCheckIn(ctx, tx, ci)
	case lifecycle.EntityJiraLink:
		link, ok := s.JiraLink(c.ID)
		if !ok {
			return errors.New("not in snapshot")
		}
		return upsertJiraLink(ctx, tx, link)
	case lifecycle.EntityTeam:
		t, ok := s.Team(c.ID)
		if !ok {
			return errors.New("not in snapshot")
		}
		return upsertTeam(ctx, tx, s.OrganizationID, t)
	}
	return errors.Errorf("unknown entity %q", c.Entity)
}

func (d *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func upsertOrganization(ctx context.Context, tx *sql.Tx, orgID string) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO organizations (id) VALUES (?) ON CONFLICT(id) DO NOTHING", orgID)
	return errors.Wrap(err, "upsert organization")
}

func upsertProductArea(ctx context.Context, tx *sql.Tx, orgID string, pa okr.ProductArea) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO product_areas (id, organization_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, pa.ID, orgID, pa.Name)
	return errors.Wrap(err, "upsert product area")
}

func upsertDomain(ctx context.Context, tx *sql.Tx, orgID string, dom okr.Domain) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO domains (id, organization_id, name, product_area_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, product_area_id = excluded.product_area_id
	`, dom.ID, orgID, dom.Name, dom.ProductAreaID)
	return errors.Wrap(err, "upsert domain")
}

func upsertTeam(ctx context.Context, tx *sql.Tx, orgID string, t okr.Team) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO teams (id, organization_id, name, domain_id, pm_name, pm_user_id, cadence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			domain_id = excluded.domain_id,
			pm_name = excluded.pm_name,
			pm_user_id = excluded.pm_user_id,
			cadence = excluded.cadence
	`, t.ID, orgID, t.Name, t.DomainID, t.PMName, toNull(t.PMUserID), string(t.Cadence))
	return errors.Wrap(err, "upsert team")
}

func upsertOKR(ctx context.Context, tx *sql.Tx, orgID string, o okr.OKR) error {
	var finalValue sql.NullFloat64
	var achievement, summary, closedAt sql.NullString
	if qc := o.QuarterClose; qc != nil {
		finalValue = sql.NullFloat64{Float64: qc.FinalValue, Valid: true}
		achievement = sql.NullString{String: string(qc.Achievement), Valid: true}
		summary = sql.NullString{String: qc.Summary, Valid: true}
		closedAt = sql.NullString{String: formatTimestamp(qc.ClosedAt), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO okrs (
			id, organization_id, level, owner_id, quarter, year, quarter_num, objective_text,
			parent_okr_id, is_rolled_over, rolled_over_from, status,
			close_final_value, close_achievement, close_summary, close_closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			level = excluded.level,
			owner_id = excluded.owner_id,
			quarter = excluded.quarter,
			year = excluded.year,
			quarter_num = excluded.quarter_num,
			objective_text = excluded.objective_text,
			parent_okr_id = excluded.parent_okr_id,
			is_rolled_over = excluded.is_rolled_over,
			rolled_over_from = excluded.rolled_over_from,
			status = excluded.status,
			close_final_value = excluded.close_final_value,
			close_achievement = excluded.close_achievement,
			close_summary = excluded.close_summary,
			close_closed_at = excluded.close_closed_at
	`,
		o.ID, orgID, string(o.Level), o.OwnerID, o.Quarter, o.Year, o.QuarterNum, o.ObjectiveText,
		toNull(o.ParentOKRID), o.IsRolledOver, toNull(o.RolledOverFrom), string(o.Status),
		finalValue, achievement, summary, closedAt,
	)
	return errors.Wrap(err, "upsert okr")
}

func upsertKeyResult(ctx context.Context, tx *sql.Tx, kr okr.KeyResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO key_results (id, okr_id, text, target_value, current_value, baseline, needs_attention, attention_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			target_value = excluded.target_value,
			current_value = excluded.current_value,
			baseline = excluded.baseline,
			needs_attention = excluded.needs_attention,
			attention_reason = excluded.attention_reason
	`, kr.ID, kr.OKRID, kr.Text, kr.TargetValue, kr.CurrentValue, kr.Baseline, kr.NeedsAttention, toNull(kr.AttentionReason))
	return errors.Wrap(err, "upsert key result")
}

// upsertCheckIn never updates an existing row: check-ins are append-only.
func upsertCheckIn(ctx context.Context, tx *sql.Tx, ci okr.CheckIn) error {
	var rootCause sql.NullString
	if ci.RootCause != nil {
		rootCause = sql.NullString{String: string(*ci.RootCause), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO check_ins (
			id, okr_id, date, cadence, progress, confidence, confidence_label,
			reason_for_change, optional_note, root_cause, root_cause_note, recovery_likelihood, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ci.ID, ci.OKRID, ci.Date.Format(okr.DateLayout), string(ci.Cadence), ci.Progress, ci.Confidence, string(ci.ConfidenceLabel),
		toNull(ci.ReasonForChange), toNull(ci.OptionalNote), rootCause, toNull(ci.RootCauseNote), toNull(ci.RecoveryLikelihood),
		formatTimestamp(ci.CreatedAt),
	)
	return errors.Wrap(err, "insert check-in")
}

func upsertJiraLink(ctx context.Context, tx *sql.Tx, link okr.JiraLink) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO jira_links (id, okr_id, epic_identifier_or_url) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET epic_identifier_or_url = excluded.epic_identifier_or_url
	`, link.ID, link.OKRID, link.EpicIdentifierOrURL)
	return errors.Wrap(err, "upsert jira link")
}

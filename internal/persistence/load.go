package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
)

// Rows reads every row belonging to the organization. Rows come back in
// insertion order so the snapshot built from them keeps stable ties.
func (d *DB) Rows(ctx context.Context, orgID string) (Rows, error) {
	out := Rows{OrganizationID: orgID}

	var exists int
	err := d.db.QueryRowContext(ctx, "SELECT 1 FROM organizations WHERE id = ?", orgID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return out, errors.Wrapf(ErrUnknownOrganization, "organization %q", orgID)
	}
	if err != nil {
		return out, errors.Wrap(err, "query organization")
	}

	if err := d.query(ctx, "product areas", `
		SELECT id, name FROM product_areas WHERE organization_id = ? ORDER BY rowid
	`, orgID, func(rows *sql.Rows) error {
		var row ProductAreaRow
		if err := rows.Scan(&row.ID, &row.Name); err != nil {
			return err
		}
		out.ProductAreas = append(out.ProductAreas, row)
		return nil
	}); err != nil {
		return out, err
	}

	if err := d.query(ctx, "domains", `
		SELECT id, name, product_area_id FROM domains WHERE organization_id = ? ORDER BY rowid
	`, orgID, func(rows *sql.Rows) error {
		var row DomainRow
		if err := rows.Scan(&row.ID, &row.Name, &row.ProductAreaID); err != nil {
			return err
		}
		out.Domains = append(out.Domains, row)
		return nil
	}); err != nil {
		return out, err
	}

	if err := d.query(ctx, "teams", `
		SELECT id, name, domain_id, pm_name, pm_user_id, cadence
		FROM teams WHERE organization_id = ? ORDER BY rowid
	`, orgID, func(rows *sql.Rows) error {
		var row TeamRow
		if err := rows.Scan(&row.ID, &row.Name, &row.DomainID, &row.PMName, &row.PMUserID, &row.Cadence); err != nil {
			return err
		}
		out.Teams = append(out.Teams, row)
		return nil
	}); err != nil {
		return out, err
	}

	if err := d.query(ctx, "okrs", `
		SELECT id, level, owner_id, quarter, year, quarter_num, objective_text,
			parent_okr_id, is_rolled_over, rolled_over_from, status,
			close_final_value, close_achievement, close_summary, close_closed_at
		FROM okrs WHERE organization_id = ? ORDER BY rowid
	`, orgID, func(rows *sql.Rows) error {
		var row OKRRow
		if err := rows.Scan(
			&row.ID, &row.Level, &row.OwnerID, &row.Quarter, &row.Year, &row.QuarterNum, &row.ObjectiveText,
			&row.ParentOKRID, &row.IsRolledOver, &row.RolledOverFrom, &row.Status,
			&row.CloseFinalValue, &row.CloseAchievement, &row.CloseSummary, &row.CloseClosedAt,
		); err != nil {
			return err
		}
		out.OKRs = append(out.OKRs, row)
		return nil
	}); err != nil {
		return out, err
	}

	if err := d.query(ctx, "key results", `
		SELECT kr.id, kr.okr_id, kr.text, kr.target_value, kr.current_value, kr.baseline,
			kr.needs_attention, kr.attention_reason
		FROM key_results kr JOIN okrs o ON o.id = kr.okr_id
		WHERE o.organization_id = ? ORDER BY kr.rowid
	`, orgID, func(rows *sql.Rows) error {
		var row KeyResultRow
		if err := rows.Scan(
			&row.ID, &row.OKRID, &row.Text, &row.TargetValue, &row.CurrentValue, &row.Baseline,
			&row.NeedsAttention, &row.AttentionReason,
		); err != nil {
			return err
		}
		out.KeyResults = append(out.KeyResults, row)
		return nil
	}); err != nil {
		return out, err
	}

	if err := d.query(ctx, "check-ins", `
		SELECT ci.id, ci.okr_id, ci.date, ci.cadence, ci.progress, ci.confidence, ci.confidence_label,
			ci.reason_for_change, ci.optional_note, ci.root_cause, ci.root_cause_note,
			ci.recovery_likelihood, ci.created_at
		FROM check_ins ci JOIN okrs o ON o.id = ci.okr_id
		WHERE o.organization_id = ? ORDER BY ci.rowid
	`, orgID, func(rows *sql.Rows) error {
		var row CheckInRow
		if err := rows.Scan(
			&row.ID, &row.OKRID, &row.Date, &row.Cadence, &row.Progress, &row.Confidence, &row.ConfidenceLabel,
			&row.ReasonForChange, &row.OptionalNote, &row.RootCause, &row.RootCauseNote,
			&row.RecoveryLikelihood, &row.CreatedAt,
		); err != nil {
			return err
		}
		out.CheckIns = append(out.CheckIns, row)
		return nil
	}); err != nil {
		return out, err
	}

	if err := d.query(ctx, "jira links", `
		SELECT l.id, l.okr_id, l.epic_identifier_or_url
		FROM jira_links l JOIN okrs o ON o.id = l.okr_id
		WHERE o.organization_id = ? ORDER BY l.rowid
	`, orgID, func(rows *sql.Rows) error {
		var row JiraLinkRow
		if err := rows.Scan(&row.ID, &row.OKRID, &row.EpicIdentifierOrURL); err != nil {
			return err
		}
		out.JiraLinks = append(out.JiraLinks, row)
		return nil
	}); err != nil {
		return out, err
	}

	return out, nil
}

func (d *DB) query(ctx context.Context, what, query string, orgID string, scan func(*sql.Rows) error) error {
	rows, err := d.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return errors.Wrapf(err, "query %s", what)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return errors.Wrapf(err, "scan %s", what)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "iterate %s", what)
	}
	return nil
}

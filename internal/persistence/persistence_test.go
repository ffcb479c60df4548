package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okrtrack/internal/lifecycle"
	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "okrtrack.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func seedStore() *okrstore.Store {
	s := okrstore.New("acme")
	s.PutProductArea(okr.ProductArea{ID: "pa-1", Name: "Growth"})
	s.PutDomain(okr.Domain{ID: "dom-1", Name: "Onboarding", ProductAreaID: "pa-1"})
	s.PutTeam(okr.Team{ID: "team-1", Name: "Alpha", DomainID: "dom-1", PMName: "Dana", PMUserID: okr.Ptr("u-dana"), Cadence: okr.CadenceBiweekly})
	s.PutTeam(okr.Team{ID: "team-2", Name: "Beta", DomainID: "dom-1", PMName: "Lee", Cadence: okr.CadenceWeekly})

	s.PutOKR(okr.OKR{ID: "okr-pa", Level: okr.LevelProductArea, OwnerID: "pa-1", Quarter: "2025-Q3", Year: 2025, QuarterNum: 3, ObjectiveText: "Grow activation", Status: okr.StatusActive})
	s.PutOKR(okr.OKR{
		ID: "okr-team", Level: okr.LevelTeam, OwnerID: "team-1", Quarter: "2025-Q3", Year: 2025, QuarterNum: 3,
		ObjectiveText: "Ship guided setup", ParentOKRID: okr.Ptr("okr-pa"), Status: okr.StatusClosed,
		QuarterClose: &okr.QuarterClose{
			FinalValue: 72, Achievement: okr.AchievementPartiallyAchieved, Summary: "Most of it shipped",
			ClosedAt: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
		},
	})
	s.PutKeyResult(okr.KeyResult{ID: "kr-1", OKRID: "okr-team", Text: "Completion", TargetValue: 80, CurrentValue: 65, Baseline: 50, NeedsAttention: true, AttentionReason: okr.Ptr("slipping")})
	s.AppendCheckIn(okr.CheckIn{
		ID: "ci-2", OKRID: "okr-team", Date: time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC), Cadence: okr.CadenceBiweekly,
		Progress: 20, Confidence: 30, ConfidenceLabel: okr.LabelLow,
		RootCause: okr.Ptr(okr.RootCauseDependency), RootCauseNote: okr.Ptr("blocked on auth"),
		CreatedAt: time.Date(2025, 7, 13, 9, 30, 0, 0, time.UTC),
	})
	s.AppendCheckIn(okr.CheckIn{
		ID: "ci-1", OKRID: "okr-team", Date: time.Date(2025, 7, 6, 0, 0, 0, 0, time.UTC), Cadence: okr.CadenceBiweekly,
		Progress: 10, Confidence: 65, ConfidenceLabel: okr.LabelMedium,
		CreatedAt: time.Date(2025, 7, 6, 9, 30, 0, 0, time.UTC),
	})
	s.PutJiraLink(okr.JiraLink{ID: "link-1", OKRID: "okr-team", EpicIdentifierOrURL: "GROW-12"})
	return s
}

func TestImportAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	want := seedStore()
	require.NoError(t, db.Import(ctx, want))

	got, err := db.LoadOrganization(ctx, "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", got.OrganizationID)
	assert.Equal(t, want.ProductAreas(), got.ProductAreas())
	assert.Equal(t, want.Domains(), got.Domains())
	if diff := cmp.Diff(want.Teams(), got.Teams()); diff != "" {
		t.Fatalf("teams mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.OKRs(), got.OKRs()); diff != "" {
		t.Fatalf("okrs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.KeyResultsFor("okr-team"), got.KeyResultsFor("okr-team")); diff != "" {
		t.Fatalf("key results mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.CheckIns(), got.CheckIns()); diff != "" {
		t.Fatalf("check-ins mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want.JiraLinksFor("okr-team"), got.JiraLinksFor("okr-team"))

	orgs, err := db.Organizations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, orgs)
}

func TestLoadUnknownOrganization(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadOrganization(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUnknownOrganization)
}

func TestLoadRejectsCorruptCheckInDate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Import(ctx, seedStore()))
	_, err := db.db.ExecContext(ctx, "UPDATE check_ins SET date = 'July 13' WHERE id = 'ci-2'")
	require.NoError(t, err)

	_, err = db.LoadOrganization(ctx, "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check-in ci-2")
}

func TestImportIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := seedStore()
	require.NoError(t, db.Import(ctx, s))
	require.NoError(t, db.Import(ctx, s))

	got, err := db.LoadOrganization(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, got.OKRs(), 2)
	assert.Len(t, got.CheckIns(), 2)
}

func TestApplyPersistsRecordedChanges(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Import(ctx, seedStore()))

	loaded, err := db.LoadOrganization(ctx, "acme")
	require.NoError(t, err)

	svc := lifecycle.NewService(loaded)
	svc.Now = func() time.Time { return time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC) }
	id := svc.CreateOKR(lifecycle.CreateOKRInput{
		Level: okr.LevelTeam, OwnerID: "team-2", Quarter: "2025-Q3", ObjectiveText: "Reduce churn",
		KeyResults:        []lifecycle.KeyResultDraft{{Text: "Churn", Target: "3%", Baseline: "5%"}},
		InitialConfidence: 60,
	})
	require.True(t, svc.ReopenQuarter("okr-team"))
	require.True(t, svc.UpdateTeamCadence("team-2", okr.CadenceBiweekly))
	require.NotEmpty(t, svc.AddJiraLink(id, "CHURN-1"))
	require.NoError(t, db.Apply(ctx, loaded, svc.Drain()))

	got, err := db.LoadOrganization(ctx, "acme")
	require.NoError(t, err)

	created, ok := got.OKR(id)
	require.True(t, ok)
	assert.Equal(t, "Reduce churn", created.ObjectiveText)
	assert.Equal(t, 2025, created.Year)
	require.Len(t, got.KeyResultsFor(id), 1)
	assert.Equal(t, 3.0, got.KeyResultsFor(id)[0].TargetValue)
	assert.Equal(t, 5.0, got.KeyResultsFor(id)[0].CurrentValue)
	require.Len(t, got.CheckInsFor(id), 1)
	assert.Equal(t, lifecycle.InitialCheckInNote, okr.Deref(got.CheckInsFor(id)[0].OptionalNote))
	assert.Len(t, got.JiraLinksFor(id), 1)

	reopened, _ := got.OKR("okr-team")
	assert.Equal(t, okr.StatusActive, reopened.Status)
	require.NotNil(t, reopened.QuarterClose)
	assert.Equal(t, okr.AchievementPartiallyAchieved, reopened.QuarterClose.Achievement)

	team, _ := got.Team("team-2")
	assert.Equal(t, okr.CadenceBiweekly, team.Cadence)
}

func TestApplyFailsForMissingEntity(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := seedStore()
	require.NoError(t, db.Import(ctx, s))

	err := db.Apply(ctx, s, []lifecycle.Change{
		{Entity: lifecycle.EntityKeyResult, Op: lifecycle.OpUpdate, ID: "kr-1"},
		{Entity: lifecycle.EntityOKR, Op: lifecycle.OpUpdate, ID: "okr-ghost"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "okr-ghost")
}

func TestApplyNoChanges(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Apply(context.Background(), okrstore.New("acme"), nil))
}

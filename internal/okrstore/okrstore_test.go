package okrstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"okrtrack/internal/okr"
)

const orgSeed = `
organization: acme
product_areas:
  - id: pa-growth
    name: Growth
domains:
  - id: dom-onboarding
    name: Onboarding
    product_area_id: pa-growth
teams:
  - id: team-alpha
    name: Alpha
    domain_id: dom-onboarding
    pm_name: Dana Reyes
    cadence: biweekly
  - id: team-beta
    name: Beta
    domain_id: dom-onboarding
    pm_name: Sam Ortiz
    pm_user_id: u-sam
okrs:
  - id: okr-pa
    level: productArea
    owner_id: pa-growth
    quarter: 2025-Q3
    objective: Grow activation
    key_results:
      - id: kr-pa-1
        text: Activation rate 40%
        target: 40
        baseline: 25
`

const teamSeed = `
organization: acme
okrs:
  - id: okr-alpha
    level: team
    owner_id: team-alpha
    quarter: 2025-Q3
    objective: Ship guided setup
    parent_okr_id: okr-pa
    key_results:
      - id: kr-alpha-1
        text: Setup completion 80%
        target: 80
        current: 55
    check_ins:
      - id: ci-1
        date: 2025-07-07
        progress: 10
        confidence: 70
      - id: ci-2
        date: 2025-07-21
        progress: 30
        confidence: 38
        confidence_label: Medium
        root_cause: dependency
        note: waiting on platform
    jira_links:
      - ONB-12
`

func TestParseAndValidateDocumentValid(t *testing.T) {
	doc, err := ParseAndValidateDocument([]byte(teamSeed), "team.yml")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if doc.Organization != "acme" {
		t.Fatalf("expected organization acme, got %s", doc.Organization)
	}
	if len(doc.OKRs) != 1 || len(doc.KeyResults) != 1 || len(doc.CheckIns) != 2 || len(doc.JiraLinks) != 1 {
		t.Fatalf("unexpected document counts %+v", doc)
	}
	o := doc.OKRs[0]
	if o.Year != 2025 || o.QuarterNum != 3 || o.Status != okr.StatusActive {
		t.Fatalf("unexpected okr %+v", o)
	}
	if doc.CheckIns[0].ConfidenceLabel != okr.LabelMedium {
		t.Fatalf("expected derived label Medium, got %s", doc.CheckIns[0].ConfidenceLabel)
	}
	// Stored labels are kept even when the thresholds would say otherwise.
	if doc.CheckIns[1].ConfidenceLabel != okr.LabelMedium {
		t.Fatalf("expected stored label Medium, got %s", doc.CheckIns[1].ConfidenceLabel)
	}
	if rc := doc.CheckIns[1].RootCause; rc == nil || *rc != okr.RootCauseDependency {
		t.Fatalf("expected dependency root cause, got %v", rc)
	}
	if doc.CheckIns[0].OptionalNote != nil {
		t.Fatalf("expected absent note to stay nil")
	}
}

func TestParseAndValidateDocumentMissingFields(t *testing.T) {
	yml := `
organization: ""
okrs:
  - id: ""
    level: squad
    owner_id: ""
    quarter: 2025-Q7
    objective: ""
    key_results:
      - id: ""
        text: ""
    check_ins:
      - id: ci-x
        date: yesterday
        root_cause: gremlins
`
	_, err := ParseAndValidateDocument([]byte(yml), "bad.yml")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	ves, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	fields := make(map[string]bool)
	for _, ve := range ves {
		fields[ve.Field] = true
	}
	for _, want := range []string{
		"organization",
		"okrs[0].level",
		"okrs[0].quarter",
		"okrs[0].key_results[0].target",
		"okrs[0].check_ins[0].date",
		"okrs[0].check_ins[0].root_cause",
		"okrs[0].check_ins[0].confidence",
	} {
		if !fields[want] {
			t.Fatalf("expected error on %s, got %v", want, ves)
		}
	}
}

func TestParseAndValidateDocumentBadYAML(t *testing.T) {
	_, err := ParseAndValidateDocument([]byte("organization: [unterminated"), "broken.yml")
	ves, ok := err.(ValidationErrors)
	if !ok || len(ves) != 1 || ves[0].Field != "yaml" {
		t.Fatalf("expected a single yaml error, got %v", err)
	}
}

func TestLoadFromDirAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "org.yml"), orgSeed)
	writeFile(t, filepath.Join(dir, "team.yml"), teamSeed)

	store, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if _, ok := store.OKR("okr-pa"); !ok {
		t.Fatalf("expected okr-pa in lookup")
	}
	kr, ok := store.KeyResult("kr-pa-1")
	if !ok || kr.OKRID != "okr-pa" {
		t.Fatalf("expected kr-pa-1 mapped to okr-pa, got %#v", kr)
	}
	if kr.CurrentValue != 25 {
		t.Fatalf("expected current to default to baseline, got %v", kr.CurrentValue)
	}
	team, ok := store.Team("team-beta")
	if !ok || team.Cadence != okr.CadenceWeekly || okr.Deref(team.PMUserID) != "u-sam" {
		t.Fatalf("unexpected team %#v", team)
	}
	children := store.ChildrenOf("okr-pa")
	if len(children) != 1 || children[0].ID != "okr-alpha" {
		t.Fatalf("expected okr-alpha as only child, got %v", children)
	}
	if got := store.CheckInsFor("okr-alpha"); len(got) != 2 || got[0].ID != "ci-1" {
		t.Fatalf("expected check-ins in insertion order, got %v", got)
	}
}

func TestLoadFromDirDuplicateOKR(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "org.yml"), orgSeed)
	writeFile(t, filepath.Join(dir, "team.yml"), teamSeed)
	writeFile(t, filepath.Join(dir, "zz-dup.yml"), strings.Replace(teamSeed, "ci-1", "ci-9", 1))

	_, err := LoadFromDir(dir)
	if err == nil {
		t.Fatalf("expected duplicate okr error")
	}
	if !strings.Contains(err.Error(), `okr id "okr-alpha" already defined`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFromDirUnknownReferences(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "team.yml"), teamSeed)

	_, err := LoadFromDir(dir)
	if err == nil {
		t.Fatalf("expected reference errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, `unknown team owner "team-alpha"`) || !strings.Contains(msg, `unknown parent_okr_id "okr-pa"`) {
		t.Fatalf("unexpected error: %v", msg)
	}
}

func TestLoadFromDirOrganizationMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yml"), orgSeed)
	writeFile(t, filepath.Join(dir, "b.yml"), "organization: globex\n")

	if _, err := LoadFromDir(dir); err == nil || !strings.Contains(err.Error(), "differs") {
		t.Fatalf("expected organization mismatch, got %v", err)
	}
}

func TestCanEditOKR(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "org.yml"), orgSeed)
	writeFile(t, filepath.Join(dir, "team.yml"), teamSeed)
	writeFile(t, filepath.Join(dir, "beta.yml"), `
organization: acme
okrs:
  - id: okr-beta
    level: team
    owner_id: team-beta
    quarter: 2025-Q3
    objective: Reduce churn
    key_results:
      - id: kr-beta-1
        text: Churn under 3%
        target: 3
`)
	store, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	admin := Identity{UserID: "u-admin", DisplayName: "Admin", Role: RoleAdmin}
	dana := Identity{UserID: "u-dana", DisplayName: "Dana Reyes", Role: RoleMember}
	danaLower := Identity{UserID: "u-dana", DisplayName: "dana reyes", Role: RoleMember}
	sam := Identity{UserID: "u-sam", DisplayName: "Samuel O.", Role: RoleMember}
	impostor := Identity{UserID: "u-other", DisplayName: "Sam Ortiz", Role: RoleMember}

	cases := []struct {
		name  string
		who   Identity
		okrID string
		want  bool
	}{
		{"admin team okr", admin, "okr-alpha", true},
		{"admin product area okr", admin, "okr-pa", true},
		{"pm name exact match", dana, "okr-alpha", true},
		{"pm name case differs", danaLower, "okr-alpha", false},
		{"other team", dana, "okr-beta", false},
		{"pm user id wins over name", sam, "okr-beta", true},
		{"name match ignored when user id set", impostor, "okr-beta", false},
		{"product area open to members", dana, "okr-pa", true},
		{"missing okr", dana, "okr-missing", false},
	}
	for _, tc := range cases {
		if got := CanEditOKR(store, tc.who, tc.okrID); got != tc.want {
			t.Fatalf("%s: CanEditOKR = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLoadIdentities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.yml")
	writeFile(t, path, `
users:
  - user_id: u-admin
    display_name: Admin
    role: admin
  - user_id: u-dana
    display_name: " Dana Reyes "
`)
	dir, err := LoadIdentities(path)
	if err != nil {
		t.Fatalf("load identities: %v", err)
	}
	dana, ok := dir.Lookup("u-dana")
	if !ok || dana.DisplayName != "Dana Reyes" || dana.Role != RoleMember {
		t.Fatalf("unexpected identity %#v", dana)
	}
	if _, ok := dir.Lookup("u-nobody"); ok {
		t.Fatalf("expected unknown user to be missing")
	}

	writeFile(t, path, "users:\n  - user_id: u-x\n    role: owner\n")
	if _, err := LoadIdentities(path); err == nil {
		t.Fatalf("expected invalid role error")
	}
}

func TestWriteSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "org.yml"), orgSeed)
	writeFile(t, filepath.Join(dir, "team.yml"), teamSeed)
	store, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	outDir := t.TempDir()
	path := filepath.Join(outDir, "snapshot.yml")
	diff, err := WriteSnapshot(store, path)
	if err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if !strings.Contains(diff, "+organization: acme") {
		t.Fatalf("expected first write to diff against empty file, got %q", diff)
	}

	reloaded, err := LoadFromDir(outDir)
	if err != nil {
		t.Fatalf("reload snapshot: %v", err)
	}
	if len(reloaded.OKRs()) != 2 || len(reloaded.CheckIns()) != 2 {
		t.Fatalf("unexpected reloaded counts")
	}
	ci := reloaded.CheckInsFor("okr-alpha")[1]
	if ci.ConfidenceLabel != okr.LabelMedium || okr.Deref(ci.OptionalNote) != "waiting on platform" {
		t.Fatalf("check-in not preserved: %#v", ci)
	}

	diff, err = WriteSnapshot(reloaded, path)
	if err != nil {
		t.Fatalf("rewrite snapshot: %v", err)
	}
	if diff != "" {
		t.Fatalf("expected no diff on unchanged rewrite, got %q", diff)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New("acme")
	s.PutOKR(okr.OKR{ID: "a", ObjectiveText: "before"})
	s.AppendCheckIn(okr.CheckIn{ID: "ci-a", OKRID: "a", Confidence: 50})

	c := s.Clone()
	c.PutOKR(okr.OKR{ID: "a", ObjectiveText: "after"})
	c.AppendCheckIn(okr.CheckIn{ID: "ci-b", OKRID: "a", Confidence: 60})

	if o, _ := s.OKR("a"); o.ObjectiveText != "before" {
		t.Fatalf("original okr changed: %#v", o)
	}
	if got := len(s.CheckInsFor("a")); got != 1 {
		t.Fatalf("original check-ins changed: %d", got)
	}
	if got := len(c.OKRs()); got != 1 {
		t.Fatalf("expected replace to keep one okr, got %d", got)
	}
}

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

package okrstore

import (
	"okrtrack/internal/okr"
)

// Reader is the read-only view of a snapshot consumed by derivation,
// aggregation and export code.
type Reader interface {
	ProductArea(id string) (okr.ProductArea, bool)
	Domain(id string) (okr.Domain, bool)
	Team(id string) (okr.Team, bool)
	OKR(id string) (okr.OKR, bool)
	OKRs() []okr.OKR
	KeyResultsFor(okrID string) []okr.KeyResult
	CheckInsFor(okrID string) []okr.CheckIn
	JiraLinksFor(okrID string) []okr.JiraLink
}

// Store is the in-memory snapshot of one organization's entities.
//
// It has no locking: a single caller loads it, mutates it and persists the
// result. Every collection keeps insertion order so ties are deterministic.
type Store struct {
	OrganizationID string

	productAreas     map[string]okr.ProductArea
	productAreaOrder []string

	domains     map[string]okr.Domain
	domainOrder []string

	teams     map[string]okr.Team
	teamOrder []string

	okrs     map[string]okr.OKR
	okrOrder []string

	keyResults     map[string]okr.KeyResult
	keyResultOrder []string

	checkIns  []okr.CheckIn
	jiraLinks []okr.JiraLink
}

var _ Reader = (*Store)(nil)

// New returns an empty store for the organization.
func New(organizationID string) *Store {
	return &Store{
		OrganizationID: organizationID,
		productAreas:   make(map[string]okr.ProductArea),
		domains:        make(map[string]okr.Domain),
		teams:          make(map[string]okr.Team),
		okrs:           make(map[string]okr.OKR),
		keyResults:     make(map[string]okr.KeyResult),
	}
}

// ProductArea returns the product area for the given id, if present.
func (s *Store) ProductArea(id string) (okr.ProductArea, bool) {
	if s == nil {
		return okr.ProductArea{}, false
	}
	pa, ok := s.productAreas[id]
	return pa, ok
}

// Domain returns the domain for the given id, if present.
func (s *Store) Domain(id string) (okr.Domain, bool) {
	if s == nil {
		return okr.Domain{}, false
	}
	d, ok := s.domains[id]
	return d, ok
}

// Team returns the team for the given id, if present.
func (s *Store) Team(id string) (okr.Team, bool) {
	if s == nil {
		return okr.Team{}, false
	}
	t, ok := s.teams[id]
	return t, ok
}

// OKR returns the OKR for the given id, if present.
func (s *Store) OKR(id string) (okr.OKR, bool) {
	if s == nil {
		return okr.OKR{}, false
	}
	o, ok := s.okrs[id]
	return o, ok
}

// KeyResult returns the key result for the given id, if present.
func (s *Store) KeyResult(id string) (okr.KeyResult, bool) {
	if s == nil {
		return okr.KeyResult{}, false
	}
	kr, ok := s.keyResults[id]
	return kr, ok
}

// CheckIn returns the check-in for the given id, if present.
func (s *Store) CheckIn(id string) (okr.CheckIn, bool) {
	if s == nil {
		return okr.CheckIn{}, false
	}
	for _, ci := range s.checkIns {
		if ci.ID == id {
			return ci, true
		}
	}
	return okr.CheckIn{}, false
}

// JiraLink returns the external link for the given id, if present.
func (s *Store) JiraLink(id string) (okr.JiraLink, bool) {
	if s == nil {
		return okr.JiraLink{}, false
	}
	for _, link := range s.jiraLinks {
		if link.ID == id {
			return link, true
		}
	}
	return okr.JiraLink{}, false
}

// ProductAreas lists product areas in insertion order.
func (s *Store) ProductAreas() []okr.ProductArea {
	out := make([]okr.ProductArea, 0, len(s.productAreaOrder))
	for _, id := range s.productAreaOrder {
		out = append(out, s.productAreas[id])
	}
	return out
}

// Domains lists domains in insertion order.
func (s *Store) Domains() []okr.Domain {
	out := make([]okr.Domain, 0, len(s.domainOrder))
	for _, id := range s.domainOrder {
		out = append(out, s.domains[id])
	}
	return out
}

// Teams lists teams in insertion order.
func (s *Store) Teams() []okr.Team {
	out := make([]okr.Team, 0, len(s.teamOrder))
	for _, id := range s.teamOrder {
		out = append(out, s.teams[id])
	}
	return out
}

// OKRs lists every OKR in insertion order.
func (s *Store) OKRs() []okr.OKR {
	if s == nil {
		return nil
	}
	out := make([]okr.OKR, 0, len(s.okrOrder))
	for _, id := range s.okrOrder {
		out = append(out, s.okrs[id])
	}
	return out
}

// OKRsForQuarter lists OKRs whose quarter matches.
func (s *Store) OKRsForQuarter(quarter string) []okr.OKR {
	var out []okr.OKR
	for _, o := range s.OKRs() {
		if o.Quarter == quarter {
			out = append(out, o)
		}
	}
	return out
}

// ChildrenOf lists OKRs whose parent is parentID, in insertion order.
func (s *Store) ChildrenOf(parentID string) []okr.OKR {
	var out []okr.OKR
	for _, o := range s.OKRs() {
		if o.ParentOKRID != nil && *o.ParentOKRID == parentID {
			out = append(out, o)
		}
	}
	return out
}

// KeyResultsFor lists the key results of an OKR in insertion order.
func (s *Store) KeyResultsFor(okrID string) []okr.KeyResult {
	if s == nil {
		return nil
	}
	var out []okr.KeyResult
	for _, id := range s.keyResultOrder {
		if kr := s.keyResults[id]; kr.OKRID == okrID {
			out = append(out, kr)
		}
	}
	return out
}

// CheckInsFor lists the check-ins of an OKR in insertion order.
func (s *Store) CheckInsFor(okrID string) []okr.CheckIn {
	if s == nil {
		return nil
	}
	var out []okr.CheckIn
	for _, ci := range s.checkIns {
		if ci.OKRID == okrID {
			out = append(out, ci)
		}
	}
	return out
}

// CheckIns lists every check-in in insertion order.
func (s *Store) CheckIns() []okr.CheckIn {
	return append([]okr.CheckIn(nil), s.checkIns...)
}

// JiraLinksFor lists the external links of an OKR in insertion order.
func (s *Store) JiraLinksFor(okrID string) []okr.JiraLink {
	if s == nil {
		return nil
	}
	var out []okr.JiraLink
	for _, link := range s.jiraLinks {
		if link.OKRID == okrID {
			out = append(out, link)
		}
	}
	return out
}

// PutProductArea inserts or replaces a product area.
func (s *Store) PutProductArea(pa okr.ProductArea) {
	if _, exists := s.productAreas[pa.ID]; !exists {
		s.productAreaOrder = append(s.productAreaOrder, pa.ID)
	}
	s.productAreas[pa.ID] = pa
}

// PutDomain inserts or replaces a domain.
func (s *Store) PutDomain(d okr.Domain) {
	if _, exists := s.domains[d.ID]; !exists {
		s.domainOrder = append(s.domainOrder, d.ID)
	}
	s.domains[d.ID] = d
}

// PutTeam inserts or replaces a team.
func (s *Store) PutTeam(t okr.Team) {
	if _, exists := s.teams[t.ID]; !exists {
		s.teamOrder = append(s.teamOrder, t.ID)
	}
	s.teams[t.ID] = t
}

// PutOKR inserts or replaces an OKR.
func (s *Store) PutOKR(o okr.OKR) {
	if _, exists := s.okrs[o.ID]; !exists {
		s.okrOrder = append(s.okrOrder, o.ID)
	}
	s.okrs[o.ID] = o
}

// PutKeyResult inserts or replaces a key result.
func (s *Store) PutKeyResult(kr okr.KeyResult) {
	if _, exists := s.keyResults[kr.ID]; !exists {
		s.keyResultOrder = append(s.keyResultOrder, kr.ID)
	}
	s.keyResults[kr.ID] = kr
}

// AppendCheckIn appends a check-in. Check-ins are never edited in place.
func (s *Store) AppendCheckIn(ci okr.CheckIn) {
	s.checkIns = append(s.checkIns, ci)
}

// PutJiraLink appends an external link.
func (s *Store) PutJiraLink(link okr.JiraLink) {
	s.jiraLinks = append(s.jiraLinks, link)
}

// Clone returns an independent copy of the snapshot. Callers use it to keep
// a pristine version they can fall back to when persisting a mutation fails.
func (s *Store) Clone() *Store {
	c := New(s.OrganizationID)
	for _, pa := range s.ProductAreas() {
		c.PutProductArea(pa)
	}
	for _, d := range s.Domains() {
		c.PutDomain(d)
	}
	for _, t := range s.Teams() {
		c.PutTeam(t)
	}
	for _, o := range s.OKRs() {
		c.PutOKR(o)
	}
	for _, id := range s.keyResultOrder {
		c.PutKeyResult(s.keyResults[id])
	}
	c.checkIns = append(c.checkIns, s.checkIns...)
	c.jiraLinks = append(c.jiraLinks, s.jiraLinks...)
	return c
}

package okrstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"okrtrack/internal/okr"
)

// LoadFromDir loads and validates all seed YAML files from the provided directory
// into a single store. All documents must describe the same organization.
func LoadFromDir(seedDir string) (*Store, error) {
	if seedDir == "" {
		seedDir = "seed"
	}

	files, err := filepath.Glob(filepath.Join(seedDir, "*.yml"))
	if err != nil {
		return nil, errors.Wrap(err, "scan seed dir")
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no seed YAML files found in %s", seedDir)
	}
	sort.Strings(files)

	var docs []Document
	var vErrs ValidationErrors

	for _, path := range files {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "read %s", path)
		}
		doc, parseErr := ParseAndValidateDocument(data, path)
		if parseErr != nil {
			var ve ValidationErrors
			if errors.As(parseErr, &ve) {
				vErrs = append(vErrs, ve...)
				continue
			}
			return nil, parseErr
		}
		docs = append(docs, doc)
	}

	if len(vErrs) > 0 {
		return nil, vErrs
	}

	return BuildStore(docs)
}

// BuildStore merges validated documents and checks uniqueness and references
// across them.
func BuildStore(docs []Document) (*Store, error) {
	if len(docs) == 0 {
		return nil, errors.New("no seed documents")
	}

	if errs := validateCrossDocumentUniqueness(docs); len(errs) > 0 {
		return nil, errs
	}

	store := New(docs[0].Organization)
	var errs ValidationErrors
	for _, doc := range docs {
		if doc.Organization != store.OrganizationID {
			errs = append(errs, ValidationError{
				File:    doc.Source,
				Field:   "organization",
				Message: fmt.Sprintf("organization %q differs from %q", doc.Organization, store.OrganizationID),
			})
			continue
		}
		for _, pa := range doc.ProductAreas {
			store.PutProductArea(pa)
		}
		for _, d := range doc.Domains {
			store.PutDomain(d)
		}
		for _, t := range doc.Teams {
			store.PutTeam(t)
		}
		for _, o := range doc.OKRs {
			store.PutOKR(o)
		}
		for _, kr := range doc.KeyResults {
			store.PutKeyResult(kr)
		}
		for _, ci := range doc.CheckIns {
			store.AppendCheckIn(ci)
		}
		for _, link := range doc.JiraLinks {
			store.PutJiraLink(link)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if errs := ValidateReferences(store); len(errs) > 0 {
		return nil, errs
	}
	return store, nil
}

func validateCrossDocumentUniqueness(docs []Document) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]string)

	check := func(source, kind, field, id string) {
		if id == "" {
			return
		}
		key := kind + "\x00" + id
		if origin, exists := seen[key]; exists {
			errs = append(errs, ValidationError{
				File:    source,
				Field:   field,
				Message: fmt.Sprintf("%s id %q already defined in %s", kind, id, origin),
			})
			return
		}
		seen[key] = source
	}

	for _, doc := range docs {
		for i, pa := range doc.ProductAreas {
			check(doc.Source, "product area", fmt.Sprintf("product_areas[%d].id", i), pa.ID)
		}
		for i, d := range doc.Domains {
			check(doc.Source, "domain", fmt.Sprintf("domains[%d].id", i), d.ID)
		}
		for i, t := range doc.Teams {
			check(doc.Source, "team", fmt.Sprintf("teams[%d].id", i), t.ID)
		}
		for i, o := range doc.OKRs {
			check(doc.Source, "okr", fmt.Sprintf("okrs[%d].id", i), o.ID)
		}
		for _, kr := range doc.KeyResults {
			check(doc.Source, "key result", "key_results", kr.ID)
		}
		for _, ci := range doc.CheckIns {
			check(doc.Source, "check-in", "check_ins", ci.ID)
		}
	}
	return errs
}

// ValidateReferences checks that every foreign id in the store resolves.
func ValidateReferences(s *Store) ValidationErrors {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{File: s.OrganizationID, Field: field, Message: msg})
	}

	for _, d := range s.Domains() {
		if _, ok := s.ProductArea(d.ProductAreaID); !ok {
			add("domain "+d.ID, fmt.Sprintf("unknown product_area_id %q", d.ProductAreaID))
		}
	}
	for _, t := range s.Teams() {
		if _, ok := s.Domain(t.DomainID); !ok {
			add("team "+t.ID, fmt.Sprintf("unknown domain_id %q", t.DomainID))
		}
	}
	for _, o := range s.OKRs() {
		if !ownerExists(s, o.Level, o.OwnerID) {
			add("okr "+o.ID, fmt.Sprintf("unknown %s owner %q", o.Level, o.OwnerID))
		}
		if o.ParentOKRID != nil {
			if _, ok := s.OKR(*o.ParentOKRID); !ok {
				add("okr "+o.ID, fmt.Sprintf("unknown parent_okr_id %q", *o.ParentOKRID))
			}
		}
	}
	return errs
}

func ownerExists(s *Store, level okr.Level, ownerID string) bool {
	var ok bool
	switch level {
	case okr.LevelProductArea:
		_, ok = s.ProductArea(ownerID)
	case okr.LevelDomain:
		_, ok = s.Domain(ownerID)
	case okr.LevelTeam:
		_, ok = s.Team(ownerID)
	}
	return ok
}

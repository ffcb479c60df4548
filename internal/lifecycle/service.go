// Package lifecycle holds the write path: every operation mutates the
// in-memory store synchronously and records what it touched so the caller
// can persist exactly those rows.
package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// IDGenerator hands out new entity ids.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random v4 UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Entity names a persisted collection.
type Entity string

const (
	EntityOKR       Entity = "okr"
	EntityKeyResult Entity = "key_result"
	EntityCheckIn   Entity = "check_in"
	EntityJiraLink  Entity = "jira_link"
	EntityTeam      Entity = "team"
)

// Op is the kind of write a Change records.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Change records one entity row touched by an operation. The current value
// is read back from the store when the change is persisted.
type Change struct {
	Entity Entity
	Op     Op
	ID     string
}

// Service applies mutations to a store.
//
// It is not safe for concurrent use. Retrying an operation creates new rows;
// nothing is idempotent by id.
type Service struct {
	Store *okrstore.Store
	IDs   IDGenerator
	Now   func() time.Time

	changes []Change
}

// NewService returns a Service using random UUIDs and the wall clock.
func NewService(store *okrstore.Store) *Service {
	return &Service{
		Store: store,
		IDs:   UUIDGenerator{},
		Now:   time.Now,
	}
}

// Drain returns the changes recorded since the last call and resets the log.
func (s *Service) Drain() []Change {
	out := s.changes
	s.changes = nil
	return out
}

func (s *Service) record(entity Entity, op Op, id string) {
	s.changes = append(s.changes, Change{Entity: entity, Op: op, ID: id})
}

func (s *Service) newID() string {
	if s.IDs == nil {
		return uuid.NewString()
	}
	return s.IDs.NewID()
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// cadenceFor returns the cadence of the team owning o, or weekly.
func (s *Service) cadenceFor(o okr.OKR) okr.Cadence {
	if o.Level == okr.LevelTeam {
		if t, ok := s.Store.Team(o.OwnerID); ok && t.Cadence != "" {
			return t.Cadence
		}
	}
	return okr.CadenceWeekly
}

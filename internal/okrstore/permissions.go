package okrstore

import (
	"os"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"okrtrack/internal/okr"
)

// Role is an identity's authorization role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Identity is the current user as supplied by the identity provider.
type Identity struct {
	UserID      string `yaml:"user_id"`
	DisplayName string `yaml:"display_name"`
	Role        Role   `yaml:"role"`
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// IdentityDirectory mirrors identities.yml.
type IdentityDirectory struct {
	Users []Identity `yaml:"users"`
}

// LoadIdentities reads the identities YAML from the provided path.
func LoadIdentities(path string) (*IdentityDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read identities file")
	}
	var dir IdentityDirectory
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return nil, errors.Wrap(err, "parse identities file")
	}
	for i, u := range dir.Users {
		u.UserID = strings.TrimSpace(u.UserID)
		u.DisplayName = strings.TrimSpace(u.DisplayName)
		if u.Role == "" {
			u.Role = RoleMember
		}
		if u.Role != RoleAdmin && u.Role != RoleMember {
			return nil, errors.Errorf("identity %q: invalid role %q", u.UserID, u.Role)
		}
		dir.Users[i] = u
	}
	return &dir, nil
}

// Lookup returns the identity with the given user id.
func (d *IdentityDirectory) Lookup(userID string) (Identity, bool) {
	if d == nil {
		return Identity{}, false
	}
	userID = strings.TrimSpace(userID)
	for _, u := range d.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return Identity{}, false
}

// CanEditOKR reports whether who may edit the OKR.
//
// Admins edit anything. Domain and product area OKRs are currently editable by
// any member. Team OKRs are matched on the team's PM user id when one is set,
// and otherwise on an exact PM name match against the display name.
func CanEditOKR(r Reader, who Identity, okrID string) bool {
	if who.IsAdmin() {
		return true
	}
	o, ok := r.OKR(okrID)
	if !ok {
		return false
	}
	if o.Level != okr.LevelTeam {
		return true
	}
	team, ok := r.Team(o.OwnerID)
	if !ok {
		return false
	}
	if team.PMUserID != nil {
		return who.UserID != "" && *team.PMUserID == who.UserID
	}
	return team.PMName != "" && team.PMName == who.DisplayName
}

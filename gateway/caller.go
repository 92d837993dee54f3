// Package gateway implements the authorization pipeline that runs on every
// authenticated console request, together with the role, reconciliation and
// identity-linking operations that share its view of the remote directory.
package gateway

import (
	"context"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/identity"
)

// Directory is the slice of the remote provider the gateway consumes. The
// concrete implementation lives in the directory package; tests substitute an
// in-memory fake.
type Directory interface {
	GetUser(ctx context.Context, id string) (*directory.Profile, error)
	GetUserByEmail(ctx context.Context, email string) (*directory.Profile, error)
	SearchByEmail(ctx context.Context, email string) ([]directory.Profile, error)
	UpdateUser(ctx context.Context, id string, patch directory.ProfilePatch) (*directory.Profile, error)
	UpdateUserMetadata(ctx context.Context, id string, metadata directory.Metadata) error
	GetRoles(ctx context.Context) ([]directory.Role, error)
	GetUserRoles(ctx context.Context, id string) ([]directory.Role, error)
	AssignRoles(ctx context.Context, id string, roleIDs []string) error
	RemoveRoles(ctx context.Context, id string, roleIDs []string) error
	ReplaceRoles(ctx context.Context, id string, roleIDs []string) error
	LinkIdentities(ctx context.Context, primaryID string, secondary directory.IdentityDescriptor) ([]directory.Identity, error)
	UnlinkIdentity(ctx context.Context, id, provider, secondaryUserID string) error
	SendVerificationEmail(ctx context.Context, id string) error
	Introspect(ctx context.Context, bearer string) (*directory.Introspection, error)
}

// Role names as they appear in the remote catalog.
const (
	RoleSudo      = "sudo"
	RoleOrganizer = "organizer"
	RoleViewer    = "viewer"
)

// Scope strings granted through role membership.
const (
	ScopeSudo         = "sudo"
	ScopeReadTeams    = "read:teams"
	ScopeWriteTeams   = "write:teams"
	ScopeReadOrgs     = "read:organizations"
	ScopeWriteOrgs    = "write:organizations"
	ScopeReadProfile  = "read:profile"
	ScopeWriteProfile = "write:profile"
)

var roleScopes = map[string][]string{
	RoleViewer: {ScopeReadTeams, ScopeReadOrgs, ScopeReadProfile},
	RoleOrganizer: {
		ScopeReadTeams, ScopeReadOrgs, ScopeReadProfile,
		ScopeWriteTeams, ScopeWriteOrgs, ScopeWriteProfile,
	},
	RoleSudo: {
		ScopeReadTeams, ScopeReadOrgs, ScopeReadProfile,
		ScopeWriteTeams, ScopeWriteOrgs, ScopeWriteProfile,
		ScopeSudo,
	},
}

// ScopesForRole returns the fixed scope bundle bound to a catalog role name.
func ScopesForRole(name string) []string {
	return roleScopes[strings.ToLower(name)]
}

// Caller is the identity resolved for the current request. The scope set
// starts from the credential and grows in-memory when the baseline role is
// assigned.
type Caller struct {
	Email    string
	RemoteID string
	Agent    *identity.Agent
	Profile  *directory.Profile
	Decision Decision

	scopes map[string]struct{}
}

func NewCaller(email, remoteID string, scopes []string) *Caller {
	c := &Caller{
		Email:    strings.ToLower(email),
		RemoteID: remoteID,
		scopes:   make(map[string]struct{}, len(scopes)),
	}
	c.Grant(scopes...)
	return c
}

func (c *Caller) Grant(scopes ...string) {
	if c.scopes == nil {
		c.scopes = make(map[string]struct{}, len(scopes))
	}
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			c.scopes[s] = struct{}{}
		}
	}
}

func (c *Caller) HasScope(scope string) bool {
	_, ok := c.scopes[scope]
	return ok
}

// HasAll reports whether the caller's scope set is a superset of the given
// scopes. The check is conjunctive.
func (c *Caller) HasAll(scopes ...string) bool {
	for _, s := range scopes {
		if !c.HasScope(s) {
			return false
		}
	}
	return true
}

func (c *Caller) Scopes() []string {
	out := make([]string, 0, len(c.scopes))
	for s := range c.scopes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

const callerKey = "console_caller"

// CallerFromCtx returns the caller resolved by the gate for this request.
func CallerFromCtx(c *fiber.Ctx) *Caller {
	if v := c.Locals(callerKey); v != nil {
		if caller, ok := v.(*Caller); ok {
			return caller
		}
	}
	return nil
}

package gateway

import (
	"context"
	"sort"
	"strings"

	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/sirupsen/logrus"
)

// RoleAssigner keeps callers at or above the baseline role and carries the
// explicit sudo-gated assign/divest operations.
type RoleAssigner struct {
	Directory Directory
	Logger    *logrus.Logger

	// ViewerRole is the catalog name of the baseline role.
	ViewerRole string
}

// EnsureBaseline makes sure the caller holds every scope implied by the
// viewer role. When the credential already carries them nothing is fetched;
// otherwise the catalog is resolved and exactly one assignment call fires,
// and the viewer scopes are unioned into the caller in memory.
func (ra *RoleAssigner) EnsureBaseline(ctx context.Context, caller *Caller) error {
	viewerScopes := ScopesForRole(ra.viewerRole())
	if caller.HasAll(viewerScopes...) {
		return nil
	}
	roles, err := ra.Directory.GetRoles(ctx)
	if err != nil {
		return err
	}
	viewer, ok := findRoleByName(roles, ra.viewerRole())
	if !ok {
		return apperr.New("missing_baseline_role", 500, "baseline role is absent from the remote catalog")
	}
	if err := ra.Directory.AssignRoles(ctx, caller.RemoteID, []string{viewer.ID}); err != nil {
		return err
	}
	ra.Logger.WithFields(logrus.Fields{
		"email": caller.Email,
		"role":  viewer.Name,
	}).Info("baseline role assigned")
	caller.Grant(viewerScopes...)
	return nil
}

// Assign grants a role to an agent. It reports changed=false when the agent
// already holds the role, which the route translates into an informational
// 200, not an error. The write is always a full-set replacement ordered by
// role name.
func (ra *RoleAssigner) Assign(ctx context.Context, roleID, agentID string) (bool, error) {
	role, current, err := ra.resolve(ctx, roleID, agentID)
	if err != nil {
		return false, err
	}
	for _, r := range current {
		if r.ID == roleID {
			return false, nil
		}
	}
	desired := append(current, *role)
	return true, ra.replace(ctx, agentID, desired)
}

// Divest removes a role from an agent, again via a full-set replacement.
func (ra *RoleAssigner) Divest(ctx context.Context, roleID, agentID string) error {
	_, current, err := ra.resolve(ctx, roleID, agentID)
	if err != nil {
		return err
	}
	var remaining []directory.Role
	found := false
	for _, r := range current {
		if r.ID == roleID {
			found = true
			continue
		}
		remaining = append(remaining, r)
	}
	if !found {
		return apperr.ErrRoleNotAssigned
	}
	return ra.replace(ctx, agentID, remaining)
}

// DivestAll strips every role from an agent, used when offboarding.
func (ra *RoleAssigner) DivestAll(ctx context.Context, agentID string) error {
	current, err := ra.Directory.GetUserRoles(ctx, agentID)
	if err != nil {
		if apperr.Status(err) == 404 {
			return apperr.ErrNoSuchAgent
		}
		return err
	}
	if len(current) == 0 {
		return nil
	}
	ids := make([]string, 0, len(current))
	for _, r := range current {
		ids = append(ids, r.ID)
	}
	return ra.Directory.RemoveRoles(ctx, agentID, ids)
}

// resolve runs the existence checks shared by Assign and Divest: the role
// must be in the catalog and the agent must exist remotely.
func (ra *RoleAssigner) resolve(ctx context.Context, roleID, agentID string) (*directory.Role, []directory.Role, error) {
	catalog, err := ra.Directory.GetRoles(ctx)
	if err != nil {
		return nil, nil, err
	}
	var role *directory.Role
	for i := range catalog {
		if catalog[i].ID == roleID {
			role = &catalog[i]
			break
		}
	}
	if role == nil {
		return nil, nil, apperr.ErrNoSuchRole
	}
	if _, err := ra.Directory.GetUser(ctx, agentID); err != nil {
		if apperr.Status(err) == 404 {
			return nil, nil, apperr.ErrNoSuchAgent
		}
		return nil, nil, err
	}
	current, err := ra.Directory.GetUserRoles(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	return role, current, nil
}

func (ra *RoleAssigner) replace(ctx context.Context, agentID string, roles []directory.Role) error {
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ra.Directory.ReplaceRoles(ctx, agentID, ids)
}

func (ra *RoleAssigner) viewerRole() string {
	if ra.ViewerRole != "" {
		return ra.ViewerRole
	}
	return RoleViewer
}

func findRoleByName(roles []directory.Role, name string) (directory.Role, bool) {
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return directory.Role{}, false
}

package gateway

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
)

func newTestAssigner(t *testing.T) (*RoleAssigner, *fakeDirectory) {
	t.Helper()
	dir := newFakeDirectory()
	dir.catalog = append([]directory.Role(nil), defaultCatalog...)
	return &RoleAssigner{Directory: dir, Logger: quietLogger()}, dir
}

func TestAssignAlreadyHeldRoleIssuesNoWrite(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|a", Email: "a@example.com"})
	dir.userRoles["auth0|a"] = []directory.Role{{ID: "rol_view", Name: "viewer"}}

	changed, err := ra.Assign(context.Background(), "rol_view", "auth0|a")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if changed {
		t.Error("changed = true, want false for an already-held role")
	}
	if dir.replaceCalls != 0 || dir.assignCalls != 0 {
		t.Errorf("replace=%d assign=%d, want zero writes", dir.replaceCalls, dir.assignCalls)
	}
}

func TestAssignReplacesFullSetSortedByName(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|b", Email: "b@example.com"})
	dir.userRoles["auth0|b"] = []directory.Role{{ID: "rol_view", Name: "viewer"}}

	changed, err := ra.Assign(context.Background(), "rol_org", "auth0|b")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !changed {
		t.Fatal("changed = false, want true")
	}
	if dir.replaceCalls != 1 {
		t.Fatalf("replace calls = %d, want 1", dir.replaceCalls)
	}
	// organizer sorts before viewer
	if want := []string{"rol_org", "rol_view"}; !reflect.DeepEqual(dir.lastReplaced, want) {
		t.Errorf("replaced set = %v, want %v", dir.lastReplaced, want)
	}
}

func TestAssignUnknownRole(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|c", Email: "c@example.com"})

	_, err := ra.Assign(context.Background(), "rol_ghost", "auth0|c")
	if !errors.Is(err, apperr.ErrNoSuchRole) {
		t.Errorf("err = %v, want ErrNoSuchRole", err)
	}
}

func TestAssignUnknownAgent(t *testing.T) {
	ra, _ := newTestAssigner(t)
	_, err := ra.Assign(context.Background(), "rol_view", "auth0|missing")
	if !errors.Is(err, apperr.ErrNoSuchAgent) {
		t.Errorf("err = %v, want ErrNoSuchAgent", err)
	}
}

func TestDivestRemovesFromFullSet(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|d", Email: "d@example.com"})
	dir.userRoles["auth0|d"] = []directory.Role{
		{ID: "rol_view", Name: "viewer"},
		{ID: "rol_org", Name: "organizer"},
	}

	if err := ra.Divest(context.Background(), "rol_org", "auth0|d"); err != nil {
		t.Fatalf("divest: %v", err)
	}
	if dir.replaceCalls != 1 {
		t.Fatalf("replace calls = %d, want 1", dir.replaceCalls)
	}
	if want := []string{"rol_view"}; !reflect.DeepEqual(dir.lastReplaced, want) {
		t.Errorf("replaced set = %v, want %v", dir.lastReplaced, want)
	}
}

func TestDivestUnassignedRole(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|e", Email: "e@example.com"})

	err := ra.Divest(context.Background(), "rol_org", "auth0|e")
	if !errors.Is(err, apperr.ErrRoleNotAssigned) {
		t.Errorf("err = %v, want ErrRoleNotAssigned", err)
	}
	if dir.replaceCalls != 0 {
		t.Errorf("replace calls = %d, want 0", dir.replaceCalls)
	}
}

func TestEnsureBaselineGrantsScopesInMemory(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|f", Email: "f@example.com"})

	caller := NewCaller("f@example.com", "auth0|f", nil)
	if err := ra.EnsureBaseline(context.Background(), caller); err != nil {
		t.Fatalf("ensure baseline: %v", err)
	}
	if !caller.HasAll(ScopesForRole(RoleViewer)...) {
		t.Errorf("caller scopes = %v, want viewer bundle", caller.Scopes())
	}
	if dir.assignCalls != 1 {
		t.Errorf("assign calls = %d, want 1", dir.assignCalls)
	}

	// a second pass is a no-op
	if err := ra.EnsureBaseline(context.Background(), caller); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if dir.assignCalls != 1 || dir.getRolesCalls != 1 {
		t.Errorf("assign=%d catalog=%d after second pass, want 1/1", dir.assignCalls, dir.getRolesCalls)
	}
}

func TestDivestAllRemovesEveryRole(t *testing.T) {
	ra, dir := newTestAssigner(t)
	dir.addProfile(directory.Profile{UserID: "auth0|g", Email: "g@example.com"})
	dir.userRoles["auth0|g"] = []directory.Role{
		{ID: "rol_view", Name: "viewer"},
		{ID: "rol_sudo", Name: "sudo"},
	}

	if err := ra.DivestAll(context.Background(), "auth0|g"); err != nil {
		t.Fatalf("divest all: %v", err)
	}
	if dir.removeCalls != 1 {
		t.Errorf("remove calls = %d, want 1", dir.removeCalls)
	}
	if got := dir.userRoles["auth0|g"]; len(got) != 0 {
		t.Errorf("roles left = %+v, want none", got)
	}
}

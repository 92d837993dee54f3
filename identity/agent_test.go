package identity

import (
	"errors"
	"testing"

	"github.com/rosterd/console/directory"
	"gorm.io/gorm"
)

func TestCreateAgentFromProfile(t *testing.T) {
	db := openTestDB(t)
	profile := &directory.Profile{
		UserID:        "auth0|rem1",
		Email:         "Coach@Example.com",
		EmailVerified: true,
		Name:          "Coach Carter",
	}
	agent, err := CreateAgentFromProfile(profile, db)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if agent.Email != "coach@example.com" {
		t.Errorf("email = %q, want lowercased", agent.Email)
	}
	if agent.RemoteID != "auth0|rem1" || agent.Name != "Coach Carter" {
		t.Errorf("agent = %+v, want fields copied from profile", agent)
	}

	loaded, err := GetAgentByEmail("COACH@example.com", db)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	snapshot, err := loaded.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.UserID != profile.UserID || !snapshot.EmailVerified {
		t.Errorf("snapshot = %+v, want the stored profile", snapshot)
	}
}

func TestGetAgentByEmailNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := GetAgentByEmail("nobody@example.com", db)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestRefreshFromProfileFillsEmptyFields(t *testing.T) {
	db := openTestDB(t)
	agent := &Agent{Email: "coach@example.com"}
	if err := db.Create(agent).Error; err != nil {
		t.Fatal(err)
	}

	live := &directory.Profile{UserID: "auth0|rem1", Email: "coach@example.com", Name: "Coach"}
	if err := agent.RefreshFromProfile(live, db); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if agent.Name != "Coach" || agent.RemoteID != "auth0|rem1" {
		t.Errorf("agent = %+v, want empty fields filled from live profile", agent)
	}

	// Locally edited fields survive later refreshes.
	agent.Name = "Head Coach"
	live.Name = "Coach"
	if err := agent.RefreshFromProfile(live, db); err != nil {
		t.Fatal(err)
	}
	if agent.Name != "Head Coach" {
		t.Errorf("name = %q, locally set name was clobbered", agent.Name)
	}
	snapshot, _ := agent.Snapshot()
	if snapshot.Name != "Coach" {
		t.Errorf("snapshot name = %q, want live profile name", snapshot.Name)
	}
}

func TestStructuralComparer(t *testing.T) {
	cmp := StructuralComparer{}
	a := &directory.Profile{UserID: "u1", Email: "x@example.com", UserMetadata: directory.Metadata{
		Teams: []directory.Team{{ID: "T1", Name: "Bandits"}},
	}}
	b := &directory.Profile{UserID: "u1", Email: "x@example.com", UserMetadata: directory.Metadata{
		Teams: []directory.Team{{ID: "T1", Name: "Bandits"}},
	}}
	if !cmp.Equal(a, b) {
		t.Error("structurally equal profiles reported unequal")
	}
	b.UserMetadata.Teams[0].Name = "Bandits FC"
	if cmp.Equal(a, b) {
		t.Error("diverged profiles reported equal")
	}
	if cmp.Equal(a, nil) {
		t.Error("nil live profile reported equal to a snapshot")
	}
	if !cmp.Equal(nil, nil) {
		t.Error("two nils should compare equal")
	}
}

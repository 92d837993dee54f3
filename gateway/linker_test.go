package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
)

func newTestLinker(t *testing.T) (*Linker, *fakeDirectory) {
	t.Helper()
	dir := newFakeDirectory()
	return &Linker{Directory: dir, Logger: quietLogger()}, dir
}

func TestLinkClearsManuallyUnlinkedMarker(t *testing.T) {
	l, dir := newTestLinker(t)
	severed := true
	dir.addProfile(directory.Profile{UserID: "auth0|primary", Email: "p@example.com", EmailVerified: true})
	dir.addProfile(directory.Profile{
		UserID:        "twitter|sec",
		Email:         "p@example.com",
		EmailVerified: true,
		UserMetadata:  directory.Metadata{ManuallyUnlinked: &severed},
	})

	_, err := l.Link(context.Background(), "auth0|primary",
		directory.IdentityDescriptor{Provider: "twitter", UserID: "sec"})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if marker := dir.profiles["twitter|sec"].UserMetadata.ManuallyUnlinked; marker != nil {
		t.Errorf("manually_unlinked = %v, want nil after relink", *marker)
	}
}

func TestFailedLinkLeavesMarkerUntouched(t *testing.T) {
	l, dir := newTestLinker(t)
	severed := true
	dir.addProfile(directory.Profile{
		UserID:       "twitter|sec",
		Email:        "p@example.com",
		UserMetadata: directory.Metadata{ManuallyUnlinked: &severed},
	})
	dir.linkErr = apperr.Remote("identities are already linked")

	_, err := l.Link(context.Background(), "auth0|primary",
		directory.IdentityDescriptor{Provider: "twitter", UserID: "sec"})
	if err == nil {
		t.Fatal("expected link to fail")
	}
	if apperr.Message(err) != "identities are already linked" {
		t.Errorf("message = %q, want provider message verbatim", apperr.Message(err))
	}
	if marker := dir.profiles["twitter|sec"].UserMetadata.ManuallyUnlinked; marker == nil || !*marker {
		t.Error("marker was touched by a failing link")
	}
}

func TestUnlinkSetsManuallyUnlinkedMarker(t *testing.T) {
	l, dir := newTestLinker(t)
	dir.addProfile(directory.Profile{
		UserID:        "auth0|primary",
		Email:         "p@example.com",
		EmailVerified: true,
		Identities:    []directory.Identity{{Provider: "twitter", UserID: "sec"}},
	})
	dir.addProfile(directory.Profile{UserID: "twitter|sec", Email: "p@example.com", EmailVerified: true})

	if err := l.Unlink(context.Background(), "auth0|primary", "twitter", "sec"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	marker := dir.profiles["twitter|sec"].UserMetadata.ManuallyUnlinked
	if marker == nil || !*marker {
		t.Error("manually_unlinked not set after unlink")
	}
	if ids := dir.profiles["auth0|primary"].Identities; len(ids) != 0 {
		t.Errorf("identities = %+v, want none", ids)
	}
}

func TestFailedUnlinkSkipsMetadataWrite(t *testing.T) {
	l, dir := newTestLinker(t)
	dir.addProfile(directory.Profile{UserID: "twitter|sec", Email: "p@example.com"})
	dir.unlinkErr = apperr.Remote("identity is not linked")

	if err := l.Unlink(context.Background(), "auth0|primary", "twitter", "sec"); err == nil {
		t.Fatal("expected unlink to fail")
	}
	if dir.profiles["twitter|sec"].UserMetadata.ManuallyUnlinked != nil {
		t.Error("marker written despite failed unlink")
	}
	if dir.metadataWrites != 0 {
		t.Errorf("metadata writes = %d, want 0", dir.metadataWrites)
	}
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	l, dir := newTestLinker(t)
	dir.addProfile(directory.Profile{UserID: "auth0|primary", Email: "shared@example.com", EmailVerified: true})
	dir.addProfile(directory.Profile{UserID: "twitter|b", Email: "shared@example.com", EmailVerified: true, Name: "B"})
	dir.addProfile(directory.Profile{UserID: "github|a", Email: "shared@example.com", EmailVerified: true, Name: "A"})
	dir.addProfile(directory.Profile{UserID: "fb|unver", Email: "shared@example.com", EmailVerified: false})

	candidates, err := l.Discover(context.Background(), "shared@example.com")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 (self and unverified excluded)", len(candidates))
	}
	for _, c := range candidates {
		if c.UserID == "auth0|primary" {
			t.Error("primary profile included in its own suggestions")
		}
		if !c.EmailVerified {
			t.Error("unverified candidate included")
		}
	}
}

func TestDiscoverUnverifiedPrimary(t *testing.T) {
	l, dir := newTestLinker(t)
	dir.addProfile(directory.Profile{UserID: "auth0|unv", Email: "unv@example.com"})

	_, err := l.Discover(context.Background(), "unv@example.com")
	if !errors.Is(err, apperr.ErrPrimaryUnverified) {
		t.Fatalf("err = %v, want ErrPrimaryUnverified", err)
	}
	if apperr.Status(err) != 400 {
		t.Errorf("status = %d, want 400", apperr.Status(err))
	}
}

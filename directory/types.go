// Package directory implements the client for the remote identity and
// authorization provider. The provider is the system of record for profiles,
// roles and identity links; everything here is read-or-write-through, nothing
// is cached.
package directory

// Profile is the remote provider's view of a principal. Not locally owned;
// the local Agent row only snapshots it.
type Profile struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Name          string     `json:"name,omitempty"`
	Picture       string     `json:"picture,omitempty"`
	Identities    []Identity `json:"identities,omitempty"`
	UserMetadata  Metadata   `json:"user_metadata,omitempty"`
}

// Identity is one external identity attached to a profile.
type Identity struct {
	Provider   string `json:"provider"`
	UserID     string `json:"user_id"`
	Connection string `json:"connection,omitempty"`
	IsSocial   bool   `json:"isSocial,omitempty"`
}

// IdentityDescriptor identifies a secondary account to link into a primary.
type IdentityDescriptor struct {
	Provider string `json:"provider"`
	UserID   string `json:"user_id"`
}

// Metadata is the user_metadata payload the console owns on each remote
// profile. ManuallyUnlinked is tri-state: true records an intentional
// severance, absent/null means the identity may be offered for linking again.
// The remote store treats an explicit null as property removal, so the field
// is a pointer and never omitted.
type Metadata struct {
	Teams              []Team `json:"teams,omitempty"`
	RSVPs              []RSVP `json:"rsvps,omitempty"`
	PendingInvitations []RSVP `json:"pendingInvitations,omitempty"`
	SILLocale          string `json:"silLocale,omitempty"`
	ManuallyUnlinked   *bool  `json:"manually_unlinked"`
}

// Team is a team membership entry in a profile's metadata.
type Team struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// RSVP is a pending team invitation stored in the invitee's own metadata.
// Inviter is only present on invitations pushed directly into a reachable
// account; ledger-delivered invitations do not carry it.
type RSVP struct {
	UUID      string `json:"uuid"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Recipient string `json:"recipient"`
	Inviter   string `json:"inviter,omitempty"`
}

// Role is an entry in the remote role catalog.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Introspection is the identity-info response for a bearer credential.
type Introspection struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Scope         string `json:"scope,omitempty"`
}

// ProfilePatch is a partial profile update; zero fields are left untouched.
type ProfilePatch struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

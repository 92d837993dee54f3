package gateway

import (
	"context"
	"sort"
	"strings"

	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/sirupsen/logrus"
)

// Linker merges and severs secondary external identities into and from a
// primary agent.
type Linker struct {
	Directory Directory
	Logger    *logrus.Logger
}

// secondaryID composes the remote id of a standalone secondary profile.
func secondaryID(provider, userID string) string {
	if strings.Contains(userID, "|") {
		return userID
	}
	return provider + "|" + userID
}

// Link merges a secondary identity into the primary profile. On success any
// manually_unlinked marker on the secondary profile is cleared (written as
// null, which the remote store treats as property removal) so a previously
// severed link can be re-established. On failure the remote error is
// propagated verbatim and no metadata is touched.
func (l *Linker) Link(ctx context.Context, primaryID string, secondary directory.IdentityDescriptor) ([]directory.Identity, error) {
	identities, err := l.Directory.LinkIdentities(ctx, primaryID, secondary)
	if err != nil {
		return nil, err
	}

	secID := secondaryID(secondary.Provider, secondary.UserID)
	profile, err := l.Directory.GetUser(ctx, secID)
	if err != nil {
		return identities, err
	}
	if profile.UserMetadata.ManuallyUnlinked != nil {
		metadata := profile.UserMetadata
		metadata.ManuallyUnlinked = nil
		if err := l.Directory.UpdateUserMetadata(ctx, secID, metadata); err != nil {
			return identities, err
		}
	}
	l.Logger.WithFields(logrus.Fields{
		"primary":   primaryID,
		"secondary": secID,
	}).Info("identities linked")
	return identities, nil
}

// Unlink severs a secondary identity. On success the detached profile is
// marked manually_unlinked so discovery stops offering it; on failure the
// error is propagated and the marker is left untouched.
func (l *Linker) Unlink(ctx context.Context, primaryID, provider, secondaryUserID string) error {
	if err := l.Directory.UnlinkIdentity(ctx, primaryID, provider, secondaryUserID); err != nil {
		return err
	}

	secID := secondaryID(provider, secondaryUserID)
	profile, err := l.Directory.GetUser(ctx, secID)
	if err != nil {
		return err
	}
	metadata := profile.UserMetadata
	severed := true
	metadata.ManuallyUnlinked = &severed
	if err := l.Directory.UpdateUserMetadata(ctx, secID, metadata); err != nil {
		return err
	}
	l.Logger.WithFields(logrus.Fields{
		"primary":   primaryID,
		"secondary": secID,
	}).Info("identity unlinked")
	return nil
}

// Discover lists linkable candidate profiles sharing the primary's email. The
// primary's own profile and unverified candidates are excluded; the rest sort
// by email. An unverified primary short-circuits with a business-rule error,
// not an authentication failure.
func (l *Linker) Discover(ctx context.Context, primaryEmail string) ([]directory.Profile, error) {
	primary, err := l.Directory.GetUserByEmail(ctx, primaryEmail)
	if err != nil {
		return nil, err
	}
	if !primary.EmailVerified {
		return nil, apperr.ErrPrimaryUnverified
	}

	profiles, err := l.Directory.SearchByEmail(ctx, primaryEmail)
	if err != nil {
		return nil, err
	}
	candidates := make([]directory.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.UserID == primary.UserID || !p.EmailVerified {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Email < candidates[j].Email })
	return candidates, nil
}

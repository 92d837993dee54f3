package gateway

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/identity"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reconciler folds every pending ledger update for a recipient into that
// recipient's remote metadata, then deletes the consumed rows. The ledger is
// at-least-once; the fold is keyed by id/uuid so the visible effect is
// at-most-once even when a pass is repeated.
type Reconciler struct {
	Directory Directory
	Db        *gorm.DB
	Locks     Locker
	Logger    *logrus.Logger
}

type teamUpdate struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId,omitempty"`
}

type organizationUpdate struct {
	TeamID string `json:"teamId"`
}

// Reconcile processes all pending updates for one email. Fold-and-write is
// serialized per recipient behind an advisory lock; without it two concurrent
// first contacts from the same agent race their metadata writes and the
// remote store's last write wins non-deterministically.
func (r *Reconciler) Reconcile(ctx context.Context, email string) error {
	email = strings.ToLower(email)
	unlock, err := r.Locks.Acquire(ctx, email)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrInternal, "acquiring reconcile lock")
	}
	defer unlock()

	updates, err := identity.UpdatesFor(email, r.Db)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	profile, err := r.Directory.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	metadata := profile.UserMetadata
	consumed := make([]uint, 0, len(updates))
	// updates arrive newest first; that is the processing order, do not
	// re-sort
	for _, u := range updates {
		r.fold(&metadata, u, email)
		consumed = append(consumed, u.ID)
	}

	if err := r.Directory.UpdateUserMetadata(ctx, profile.UserID, metadata); err != nil {
		// rows stay behind for a later pass
		return err
	}
	if err := identity.DeleteUpdates(email, consumed, r.Db); err != nil {
		return err
	}
	r.Logger.WithFields(logrus.Fields{
		"email": email,
		"count": len(consumed),
	}).Info("ledger updates reconciled")
	return nil
}

func (r *Reconciler) fold(metadata *directory.Metadata, u identity.Update, email string) {
	switch u.Type {
	case identity.UpdateTypeTeam:
		var data teamUpdate
		if err := json.Unmarshal([]byte(u.Data), &data); err != nil {
			r.Logger.WithFields(logrus.Fields{
				"uuid":  u.UUID,
				"error": err.Error(),
			}).Warn("undecodable team update skipped")
			return
		}
		for i := range metadata.Teams {
			if metadata.Teams[i].ID == data.ID {
				metadata.Teams[i].Name = data.Name
				if data.OrganizationID != "" {
					metadata.Teams[i].OrganizationID = data.OrganizationID
				}
				return
			}
		}
		for i := range metadata.RSVPs {
			if metadata.RSVPs[i].UUID == u.UUID {
				metadata.RSVPs[i].Name = data.Name
				return
			}
		}
		metadata.RSVPs = append(metadata.RSVPs, directory.RSVP{
			UUID:      u.UUID,
			Type:      u.Type,
			Name:      data.Name,
			Recipient: email,
		})
	case identity.UpdateTypeOrganization:
		var data organizationUpdate
		if err := json.Unmarshal([]byte(u.Data), &data); err != nil {
			r.Logger.WithFields(logrus.Fields{
				"uuid":  u.UUID,
				"error": err.Error(),
			}).Warn("undecodable organization update skipped")
			return
		}
		for i := range metadata.Teams {
			if metadata.Teams[i].ID == data.TeamID {
				metadata.Teams[i].OrganizationID = u.UUID
				return
			}
		}
		// no matching team synced yet: dropped without effect
		r.Logger.WithFields(logrus.Fields{
			"uuid":    u.UUID,
			"team_id": data.TeamID,
			"email":   email,
		}).Warn("organization update without matching team dropped")
	default:
		r.Logger.WithField("type", u.Type).Warn("unknown update type skipped")
	}
}

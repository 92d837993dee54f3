package console

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/identity"
)

type inviteRequest struct {
	Recipient string `json:"recipient" validate:"required,email"`
	Type      string `json:"type" validate:"required,oneof=team organization"`
	UUID      string `json:"uuid,omitempty"`
	Name      string `json:"name" validate:"required"`
}

// CreateInvite records an invitation for a recipient. A recipient with a
// reachable remote account gets the rsvp pushed straight into their metadata
// in this request; only not-yet-reachable recipients go through the ledger.
// Either way a pending entry lands in the inviter's metadata and the mail
// notification is dispatched without tying its outcome to the response.
func (s *Service) CreateInvite(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req inviteRequest
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "recipient, type and name are required"))
	}
	req.Recipient = strings.ToLower(req.Recipient)
	if req.UUID == "" {
		req.UUID = uuid.NewString()
	}

	ctx := c.UserContext()
	rsvp := directory.RSVP{
		UUID:      req.UUID,
		Type:      req.Type,
		Name:      req.Name,
		Recipient: req.Recipient,
		Inviter:   caller.Email,
	}

	delivered := false
	if recipient, err := s.Directory.GetUserByEmail(ctx, req.Recipient); err == nil {
		// known-recipient fast path: no ledger row
		metadata := recipient.UserMetadata
		if !hasRSVP(metadata.RSVPs, req.UUID) {
			metadata.RSVPs = append(metadata.RSVPs, rsvp)
			if err := s.Directory.UpdateUserMetadata(ctx, recipient.UserID, metadata); err != nil {
				return respondErr(c, err)
			}
		}
		delivered = true
	} else if apperr.Status(err) != http.StatusNotFound {
		return respondErr(c, err)
	}

	if !delivered {
		data, _ := json.Marshal(map[string]string{"id": req.UUID, "name": req.Name})
		if err := identity.PutUpdate(req.UUID, req.Recipient, req.Type, string(data), s.Db); err != nil {
			return respondErr(c, err)
		}
	}

	inviterMeta := caller.Profile.UserMetadata
	if !hasRSVP(inviterMeta.PendingInvitations, req.UUID) {
		inviterMeta.PendingInvitations = append(inviterMeta.PendingInvitations, rsvp)
		if err := s.Directory.UpdateUserMetadata(ctx, caller.RemoteID, inviterMeta); err != nil {
			return respondErr(c, err)
		}
	}

	go s.Mailer.Send(Email{
		To:      req.Recipient,
		Subject: fmt.Sprintf("%s invited you to %s", caller.Email, req.Name),
		Body:    fmt.Sprintf("You have been invited to join %s. Sign in to accept.", req.Name),
	})

	return c.Status(http.StatusCreated).JSON(fiber.Map{"uuid": req.UUID, "delivered": delivered})
}

// RespondInvite accepts or rejects one of the caller's rsvps. The rsvp is
// removed from the invitee and the matching pending entry from the inviter in
// the same logical update; an accepted team invitation becomes a team entry.
func (s *Service) RespondInvite(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	inviteUUID := c.Params("uuid")
	accept := c.Params("action") == "accept"
	if action := c.Params("action"); action != "accept" && action != "reject" {
		return respondErr(c, apperr.New("bad_action", http.StatusBadRequest, "action must be accept or reject"))
	}

	ctx := c.UserContext()
	metadata := caller.Profile.UserMetadata
	var matched *directory.RSVP
	kept := metadata.RSVPs[:0]
	for i := range metadata.RSVPs {
		if metadata.RSVPs[i].UUID == inviteUUID {
			rsvp := metadata.RSVPs[i]
			matched = &rsvp
			continue
		}
		kept = append(kept, metadata.RSVPs[i])
	}
	if matched == nil {
		return respondErr(c, apperr.New("invite_not_found", http.StatusNotFound, "No such invitation"))
	}
	metadata.RSVPs = kept
	if accept && matched.Type == identity.UpdateTypeTeam {
		metadata.Teams = append(metadata.Teams, directory.Team{ID: matched.UUID, Name: matched.Name})
	}
	if err := s.Directory.UpdateUserMetadata(ctx, caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}

	// the inviter side of the same logical update; ledger-delivered rsvps
	// carry no inviter and skip this half
	if matched.Inviter != "" {
		if inviter, err := s.Directory.GetUserByEmail(ctx, matched.Inviter); err == nil {
			inviterMeta := inviter.UserMetadata
			inviterMeta.PendingInvitations = dropRSVP(inviterMeta.PendingInvitations, inviteUUID)
			if err := s.Directory.UpdateUserMetadata(ctx, inviter.UserID, inviterMeta); err != nil {
				return respondErr(c, err)
			}
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"accepted": accept, "uuid": inviteUUID})
}

// WithdrawInvite lets the inviter revoke an invitation before it is
// accepted: the ledger row is deleted directly and the pending entry leaves
// the inviter's metadata.
func (s *Service) WithdrawInvite(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	inviteUUID := c.Params("uuid")
	recipient := strings.ToLower(c.Query("recipient"))
	if recipient == "" {
		return respondErr(c, apperr.New("bad_request", http.StatusBadRequest, "recipient query parameter is required"))
	}

	if err := identity.DeleteUpdateByUUID(inviteUUID, recipient, s.Db); err != nil {
		return respondErr(c, err)
	}
	metadata := caller.Profile.UserMetadata
	metadata.PendingInvitations = dropRSVP(metadata.PendingInvitations, inviteUUID)
	if err := s.Directory.UpdateUserMetadata(c.UserContext(), caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

func hasRSVP(rsvps []directory.RSVP, uuid string) bool {
	for _, r := range rsvps {
		if r.UUID == uuid {
			return true
		}
	}
	return false
}

func dropRSVP(rsvps []directory.RSVP, uuid string) []directory.RSVP {
	kept := rsvps[:0]
	for _, r := range rsvps {
		if r.UUID == uuid {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

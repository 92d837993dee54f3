package console

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/identity"
)

// Teams and organizations are thin wrappers over profile metadata; the
// engineering lives in how changes propagate to members through the ledger.

// GetTeams lists the caller's team memberships.
func (s *Service) GetTeams(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	teams := caller.Profile.UserMetadata.Teams
	if teams == nil {
		teams = []directory.Team{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"teams": teams})
}

type teamRequest struct {
	Name    string   `json:"name" validate:"required"`
	Members []string `json:"members,omitempty"`
}

// CreateTeam adds a team entry to the caller's metadata.
func (s *Service) CreateTeam(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req teamRequest
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "name is required"))
	}
	team := directory.Team{ID: uuid.NewString(), Name: req.Name}
	metadata := caller.Profile.UserMetadata
	metadata.Teams = append(metadata.Teams, team)
	if err := s.Directory.UpdateUserMetadata(c.UserContext(), caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"team": team})
}

// RenameTeam renames the caller's entry and cascades the rename to every
// listed member through the ledger; members pick it up on their next
// authenticated request.
func (s *Service) RenameTeam(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	teamID := c.Params("id")
	var req teamRequest
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "name is required"))
	}

	metadata := caller.Profile.UserMetadata
	var team *directory.Team
	for i := range metadata.Teams {
		if metadata.Teams[i].ID == teamID {
			team = &metadata.Teams[i]
			break
		}
	}
	if team == nil {
		return respondErr(c, apperr.New("team_not_found", http.StatusNotFound, "No such team"))
	}
	team.Name = req.Name
	if err := s.Directory.UpdateUserMetadata(c.UserContext(), caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}

	data, _ := json.Marshal(directory.Team{ID: team.ID, Name: team.Name, OrganizationID: team.OrganizationID})
	for _, member := range req.Members {
		if member == caller.Email {
			continue
		}
		if err := identity.PutUpdate(team.ID, member, identity.UpdateTypeTeam, string(data), s.Db); err != nil {
			return respondErr(c, err)
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"team": team})
}

// DeleteTeam removes the caller's own membership entry.
func (s *Service) DeleteTeam(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	teamID := c.Params("id")
	metadata := caller.Profile.UserMetadata
	kept := metadata.Teams[:0]
	found := false
	for _, t := range metadata.Teams {
		if t.ID == teamID {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return respondErr(c, apperr.New("team_not_found", http.StatusNotFound, "No such team"))
	}
	metadata.Teams = kept
	if err := s.Directory.UpdateUserMetadata(c.UserContext(), caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

type organizationRequest struct {
	Name    string   `json:"name" validate:"required"`
	TeamID  string   `json:"teamId" validate:"required"`
	Members []string `json:"members,omitempty"`
}

// CreateOrganization attaches a new organization to one of the caller's
// teams and propagates the attachment to every listed member via the ledger.
// A member whose team entry has not synced yet drops the update without
// effect.
func (s *Service) CreateOrganization(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req organizationRequest
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "name and teamId are required"))
	}

	metadata := caller.Profile.UserMetadata
	var team *directory.Team
	for i := range metadata.Teams {
		if metadata.Teams[i].ID == req.TeamID {
			team = &metadata.Teams[i]
			break
		}
	}
	if team == nil {
		return respondErr(c, apperr.New("team_not_found", http.StatusNotFound, "No such team"))
	}

	orgID := uuid.NewString()
	team.OrganizationID = orgID
	if err := s.Directory.UpdateUserMetadata(c.UserContext(), caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}

	data, _ := json.Marshal(map[string]string{"teamId": req.TeamID, "name": req.Name})
	for _, member := range req.Members {
		if member == caller.Email {
			continue
		}
		if err := identity.PutUpdate(orgID, member, identity.UpdateTypeOrganization, string(data), s.Db); err != nil {
			return respondErr(c, err)
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"organization": fiber.Map{"id": orgID, "name": req.Name, "teamId": req.TeamID}})
}

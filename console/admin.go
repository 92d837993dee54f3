package console

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
)

type roleRequest struct {
	RoleID  string `json:"role_id" validate:"required"`
	AgentID string `json:"agent_id" validate:"required"`
}

// AssignRole grants a role to an agent. Assigning a role the agent already
// holds is not an error; it reports 200 with an informational message and
// issues no write.
func (s *Service) AssignRole(c *fiber.Ctx) error {
	var req roleRequest
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "role_id and agent_id are required"))
	}
	changed, err := s.Assigner.Assign(c.UserContext(), req.RoleID, req.AgentID)
	if err != nil {
		return respondErr(c, err)
	}
	if !changed {
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Role already assigned"})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

// DivestRole removes a role from an agent.
func (s *Service) DivestRole(c *fiber.Ctx) error {
	var req roleRequest
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "role_id and agent_id are required"))
	}
	if err := s.Assigner.Divest(c.UserContext(), req.RoleID, req.AgentID); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

// OffboardAgent strips every role from an agent.
func (s *Service) OffboardAgent(c *fiber.Ctx) error {
	agentID := c.Params("id")
	if err := s.Assigner.DivestAll(c.UserContext(), agentID); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

// LinkIdentity merges a secondary external identity into the caller's
// profile.
func (s *Service) LinkIdentity(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req directory.IdentityDescriptor
	if err := parseJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, ""))
	}
	if req.Provider == "" || req.UserID == "" {
		return respondErr(c, apperr.New("bad_request", http.StatusBadRequest, "provider and user_id are required"))
	}
	identities, err := s.Linker.Link(c.UserContext(), caller.RemoteID, req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"identities": identities})
}

// UnlinkIdentity severs a linked identity from the caller's profile.
func (s *Service) UnlinkIdentity(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	provider := c.Params("provider")
	secondaryUserID := c.Params("user_id")
	if err := s.Linker.Unlink(c.UserContext(), caller.RemoteID, provider, secondaryUserID); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

// DiscoverIdentities suggests linkable accounts sharing the caller's email.
func (s *Service) DiscoverIdentities(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	candidates, err := s.Linker.Discover(c.UserContext(), caller.Email)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"candidates": candidates})
}

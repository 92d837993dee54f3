package console

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/gateway"
)

// Login exchanges a provider bearer token for a console session cookie. The
// token is introspected remotely; nothing about it is trusted locally.
func (s *Service) Login(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "token is required"))
	}
	info, err := s.Directory.Introspect(c.UserContext(), req.Token)
	if err != nil {
		return respondErr(c, err)
	}
	session, err := s.Auth.GenerateSession(info.Email, info.Subject, splitScope(info.Scope))
	if err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrInternal, ""))
	}
	c.Cookie(&fiber.Cookie{
		Name:     gateway.SessionCookie,
		Value:    session,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{"session": session, "email": info.Email})
}

// Logout clears the session cookie.
func (s *Service) Logout(c *fiber.Ctx) error {
	c.ClearCookie(gateway.SessionCookie)
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

// GetProfile returns the caller's cached agent row plus the live profile
// resolved by the gate. Reachable by unverified callers.
func (s *Service) GetProfile(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"agent":   caller.Agent,
		"profile": caller.Profile,
		"scopes":  caller.Scopes(),
	})
}

// UpdateProfile patches the caller's remote profile and refreshes the local
// cache row with the result.
func (s *Service) UpdateProfile(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var patch directory.ProfilePatch
	if err := parseJSON(c, &patch); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, ""))
	}
	updated, err := s.Directory.UpdateUser(c.UserContext(), caller.RemoteID, patch)
	if err != nil {
		return respondErr(c, err)
	}
	if caller.Agent != nil {
		if patch.Name != "" {
			caller.Agent.Name = patch.Name
		}
		if err := caller.Agent.RefreshFromProfile(updated, s.Db); err != nil {
			return respondErr(c, err)
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"profile": updated})
}

// VerifyEmail asks the provider to resend its verification mail. On the
// unverified allow-list.
func (s *Service) VerifyEmail(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.Directory.SendVerificationEmail(c.UserContext(), caller.RemoteID); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": "ok"})
}

// GetLocale returns the caller's locale plus the catalog.
func (s *Service) GetLocale(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"locale":  caller.Profile.UserMetadata.SILLocale,
		"locales": s.Locales.Locales(),
	})
}

// PutLocale validates the requested locale against the catalog and stores it
// in the caller's remote metadata.
func (s *Service) PutLocale(c *fiber.Ctx) error {
	caller, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req struct {
		Locale string `json:"locale" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondErr(c, apperr.Wrap(err, apperr.ErrBadRequest, "locale is required"))
	}
	locale, ok := s.Locales.Lookup(req.Locale)
	if !ok {
		return respondErr(c, apperr.New("unknown_locale", http.StatusBadRequest, "unknown locale "+req.Locale))
	}
	metadata := caller.Profile.UserMetadata
	metadata.SILLocale = locale.Code
	if err := s.Directory.UpdateUserMetadata(c.UserContext(), caller.RemoteID, metadata); err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"locale": locale})
}

func splitScope(scope string) []string {
	return strings.Fields(scope)
}

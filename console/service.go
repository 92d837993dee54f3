// Package console contains the route handlers of the identity console: the
// self-profile and locale surface, the thin team/organization wrappers, the
// invitation flow and the sudo-gated admin operations. The authorization core
// lives in the gateway package; everything here assumes the gate already ran.
package console

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/gateway"
	"github.com/rosterd/console/identity"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service carries the handlers' dependencies.
type Service struct {
	Db        *gorm.DB
	Logger    *logrus.Logger
	Config    identity.Config
	Directory gateway.Directory
	Auth      *gateway.SessionAuth
	Assigner  *gateway.RoleAssigner
	Linker    *gateway.Linker
	Locales   identity.LocaleCatalog
	Mailer    *Mailer
}

// caller returns the identity the gate resolved for this request.
func caller(c *fiber.Ctx) (*gateway.Caller, error) {
	if caller := gateway.CallerFromCtx(c); caller != nil {
		return caller, nil
	}
	return nil, apperr.ErrUnauthorized
}

func respondErr(c *fiber.Ctx, err error) error {
	return c.Status(apperr.Status(err)).JSON(apperr.Payload(err))
}

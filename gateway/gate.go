package gateway

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rosterd/console/apperr"
	"github.com/rosterd/console/identity"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Gate is the orchestrating entry point of the authorization core. Every
// guarded route runs one pass: identify, baseline role, reconcile, cache
// sync, verification gate, then scope enforcement. The steps run in that
// exact order; each depends on state its predecessor established. Nothing in
// here retries.
type Gate struct {
	Directory  Directory
	Db         *gorm.DB
	Logger     *logrus.Logger
	Auth       *SessionAuth
	Roles      *RoleAssigner
	Reconciler *Reconciler
	Comparer   identity.ProfileComparer
}

var (
	errNoCredential  = errors.New("no credential presented")
	errBadCredential = errors.New("credential rejected")
)

// SessionCookie carries the console's own session token.
const SessionCookie = "console_session"

// Routes an unverified caller may still reach.
type exemptRoute struct {
	method string
	path   string
}

var verifyExempt = []exemptRoute{
	{fiber.MethodGet, "/console/profile"},
	{fiber.MethodPost, "/console/verify_email"},
	{fiber.MethodGet, "/console/locale"},
	{fiber.MethodPut, "/console/locale"},
}

func isVerifyExempt(method, path string) bool {
	for _, r := range verifyExempt {
		if r.method == method && r.path == path {
			return true
		}
	}
	return false
}

// Require builds the middleware guarding a route with a required scope set.
// The check is conjunctive: the caller must hold every scope listed.
func (g *Gate) Require(scopes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		// 1. identify the caller
		caller, err := g.identify(c)
		if err != nil {
			if errors.Is(err, errNoCredential) {
				return c.Redirect("/login", fiber.StatusFound)
			}
			if wantsJSON(c) {
				return c.Status(fiber.StatusUnauthorized).JSON(apperr.Payload(apperr.ErrTokenInvalid))
			}
			return c.Redirect("/login", fiber.StatusFound)
		}

		// 2. baseline role
		if err := g.Roles.EnsureBaseline(ctx, caller); err != nil {
			return fail(c, err)
		}

		// 3. fold pending ledger updates
		if err := g.Reconciler.Reconcile(ctx, caller.Email); err != nil {
			return fail(c, err)
		}

		// 4. local cache sync
		if err := g.syncAgent(c, caller); err != nil {
			return fail(c, err)
		}

		// 5. email-verification gate; superuser does not bypass this
		if !caller.Profile.EmailVerified && !isVerifyExempt(c.Method(), c.Path()) {
			return c.Status(fiber.StatusUnauthorized).JSON(apperr.Payload(apperr.ErrEmailUnverified))
		}

		// 6 & 7. superuser bypass, then conjunctive scope enforcement
		caller.Decision = g.decide(caller, scopes)
		g.Logger.WithFields(logrus.Fields{
			"email":    caller.Email,
			"path":     c.Path(),
			"required": strings.Join(scopes, " "),
			"decision": caller.Decision.String(),
		}).Info("authorization decision")
		if caller.Decision == Deny {
			return c.Status(fiber.StatusForbidden).JSON(apperr.Payload(apperr.ErrInsufficientScope))
		}

		c.Locals(callerKey, caller)
		return c.Next()
	}
}

// identify resolves the caller from the session cookie or, failing that, a
// bearer credential introspected against the remote provider.
func (g *Gate) identify(c *fiber.Ctx) (*Caller, error) {
	if token := c.Cookies(SessionCookie); token != "" {
		claims, err := g.Auth.VerifySession(token)
		if err != nil {
			return nil, errBadCredential
		}
		return NewCaller(claims.Email, claims.RemoteID, claims.Scopes), nil
	}

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, errNoCredential
	}
	bearer := strings.TrimPrefix(header, "Bearer ")
	info, err := g.Directory.Introspect(c.UserContext(), bearer)
	if err != nil {
		return nil, errBadCredential
	}
	return NewCaller(info.Email, info.Subject, strings.Fields(info.Scope)), nil
}

// syncAgent reconciles the local Agent row with the live remote profile: a
// missing row is created from the live profile, a structurally stale snapshot
// is overwritten, and locally-empty fields are filled in.
func (g *Gate) syncAgent(c *fiber.Ctx, caller *Caller) error {
	ctx := c.UserContext()
	live, err := g.Directory.GetUser(ctx, caller.RemoteID)
	if err != nil {
		return err
	}
	caller.Profile = live

	agent, err := identity.GetAgentByEmail(caller.Email, g.Db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		agent, err = identity.CreateAgentFromProfile(live, g.Db)
		if err != nil {
			return err
		}
		caller.Agent = agent
		return nil
	}
	if err != nil {
		return err
	}

	cached, err := agent.Snapshot()
	if err != nil || !g.Comparer.Equal(cached, live) {
		if err := agent.RefreshFromProfile(live, g.Db); err != nil {
			return err
		}
	}
	caller.Agent = agent
	return nil
}

func (g *Gate) decide(caller *Caller, required []string) Decision {
	if (caller.Agent != nil && caller.Agent.IsSuper) || caller.HasScope(ScopeSudo) {
		return AllowViaSuperuser
	}
	if caller.HasAll(required...) {
		return Allow
	}
	return Deny
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
		return true
	}
	return c.Get("X-Requested-With") == "XMLHttpRequest"
}

// fail renders any pipeline error through the shared taxonomy; both access
// paths surface the identical JSON shape.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperr.Status(err)).JSON(apperr.Payload(err))
}

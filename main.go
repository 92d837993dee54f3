package main

import (
	"flag"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rosterd/console/console"
	"github.com/rosterd/console/directory"
	"github.com/rosterd/console/gateway"
	"github.com/rosterd/console/identity"
	"github.com/rosterd/console/utils"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	var cfg identity.Config
	if err := identity.ParseConfig(*configPath, &cfg); err != nil {
		logger.Fatalf("error in parsing config file: %v", err)
	}
	cfg.Defaults()

	db, err := utils.Database(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("error in connecting to db: %v", err)
	}
	if err := db.AutoMigrate(&identity.Agent{}, &identity.Update{}); err != nil {
		logger.Fatalf("error in migrating db: %v", err)
	}

	// the locale table is built here, once, never lazily on first use
	locales, err := identity.LoadLocales()
	if err != nil {
		logger.Fatalf("error in loading locales: %v", err)
	}

	redisClient := utils.GetRedis(cfg.RedisAddr)

	dir := directory.NewClient(directory.Config{
		BaseURL:      cfg.DirectoryURL,
		TokenURL:     cfg.DirectoryTokenURL,
		ClientID:     cfg.DirectoryClientID,
		ClientSecret: cfg.DirectorySecret,
		Audience:     cfg.DirectoryAudience,
		Timeout:      cfg.DirectoryTimeout(),
	}, logger)

	auth := &gateway.SessionAuth{Config: cfg}
	if err := auth.Init(); err != nil {
		logger.Fatalf("error in session auth: %v", err)
	}

	assigner := &gateway.RoleAssigner{Directory: dir, Logger: logger, ViewerRole: cfg.ViewerRole}
	reconciler := &gateway.Reconciler{
		Directory: dir,
		Db:        db,
		Locks:     &gateway.RedisLocker{Client: redisClient},
		Logger:    logger,
	}
	linker := &gateway.Linker{Directory: dir, Logger: logger}
	gate := &gateway.Gate{
		Directory:  dir,
		Db:         db,
		Logger:     logger,
		Auth:       auth,
		Roles:      assigner,
		Reconciler: reconciler,
		Comparer:   identity.StructuralComparer{},
	}

	service := console.Service{
		Db:        db,
		Logger:    logger,
		Config:    cfg,
		Directory: dir,
		Auth:      auth,
		Assigner:  assigner,
		Linker:    linker,
		Locales:   locales,
		Mailer:    &console.Mailer{Config: cfg, Logger: logger},
	}

	app := GetApp(&service, gate)
	logger.Infof("console listening on %s", cfg.Port)
	if err := app.Listen(cfg.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}

// GetApp wires every route to its middleware chain and required scope set.
func GetApp(s *console.Service, gate *gateway.Gate) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(gateway.RequestID())
	app.Use(gateway.RequestLogger(s.Logger, gateway.LogSamplingConfig{Tick: time.Second, After: 500 * time.Millisecond}))
	app.Use(gateway.Instrumentation())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Post("/login", s.Login)
	app.Post("/logout", s.Logout)
	app.Get("/login", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "authenticate against the directory and POST the token here"})
	})

	cons := app.Group("/console")

	// on the unverified-email allow-list
	cons.Get("/profile", gate.Require(), s.GetProfile)
	cons.Post("/verify_email", gate.Require(), s.VerifyEmail)
	cons.Get("/locale", gate.Require(), s.GetLocale)
	cons.Put("/locale", gate.Require(), s.PutLocale)

	cons.Put("/profile", gate.Require(gateway.ScopeWriteProfile), s.UpdateProfile)

	cons.Get("/teams", gate.Require(gateway.ScopeReadTeams), s.GetTeams)
	cons.Post("/teams", gate.Require(gateway.ScopeWriteTeams), s.CreateTeam)
	cons.Put("/teams/:id", gate.Require(gateway.ScopeWriteTeams), s.RenameTeam)
	cons.Delete("/teams/:id", gate.Require(gateway.ScopeWriteTeams), s.DeleteTeam)
	cons.Post("/organizations", gate.Require(gateway.ScopeWriteOrgs), s.CreateOrganization)

	cons.Post("/invites", gate.Require(gateway.ScopeWriteTeams), s.CreateInvite)
	cons.Post("/invites/:uuid/:action", gate.Require(), s.RespondInvite)
	cons.Delete("/invites/:uuid", gate.Require(gateway.ScopeWriteTeams), s.WithdrawInvite)

	cons.Post("/identities", gate.Require(gateway.ScopeWriteProfile), s.LinkIdentity)
	cons.Delete("/identities/:provider/:user_id", gate.Require(gateway.ScopeWriteProfile), s.UnlinkIdentity)
	cons.Get("/identities/suggestions", gate.Require(gateway.ScopeReadProfile), s.DiscoverIdentities)

	admin := cons.Group("/admin", gate.Require(gateway.ScopeSudo))
	admin.Post("/roles", s.AssignRole)
	admin.Delete("/roles", s.DivestRole)
	admin.Delete("/agents/:id/roles", s.OffboardAgent)

	return app
}

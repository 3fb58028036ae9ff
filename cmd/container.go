// Root composition root. Owns shared infrastructure (Postgres, Redis, AWS)
// and wires every module; this is the only file that knows about all of
// them.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/account/accountapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/account/accountinfra"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/account/accountsrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/audit"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/config"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory/directoryapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory/directoryinfra"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory/directorysrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/dispatch"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identityapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identitysrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/providers/entra"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/providers/google"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/providers/magiclink"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/providers/password"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/invitation/invitationapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/invitation/invitationinfra"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/invitation/invitationsrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing/licensingapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing/licensinginfra"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing/licensingsrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/mail"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/notifx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/notifx/notifxconsole"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/notifx/notifxses"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization/orginfra"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization/orgsrv"
)

// Container holds shared infrastructure and the composed modules.
type Container struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client

	Trail  *audit.Trail
	Mailer *mail.Mailer

	Directory   *directorysrv.Service
	Orgs        *orgsrv.Service
	Licensing   *licensingsrv.Service
	Invitations *invitationsrv.Service
	Accounts    *accountsrv.Service
	Resolver    *identitysrv.Resolver

	AuthMiddleware   *identityapi.Middleware
	AccountAPI       *accountapi.Handler
	DirectoryAPI     *directoryapi.Handler
	LicensingAPI     *licensingapi.Handler
	InvitationAPI    *invitationapi.Handler
	PasswordProvider *password.TokenService
}

func NewContainer(cfg *config.Config) *Container {
	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initModules()
	logx.Info("application container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Config.Database.Host,
		c.Config.Database.Port,
		c.Config.Database.User,
		c.Config.Database.Password,
		c.Config.Database.Name,
		c.Config.Database.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logx.Fatalf("failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if err := c.Redis.Ping(context.Background()).Err(); err != nil {
		logx.Fatalf("failed to connect to redis: %v", err)
	}
}

func (c *Container) initModules() {
	c.Trail = audit.NewTrail(audit.NewLogSink())
	c.Mailer = mail.NewMailer(notifx.NewClient(c.emailProvider()), c.Config.Notifx, c.baseURL())

	// Directory and organizations.
	c.Directory = directorysrv.NewService(directoryinfra.NewPostgresStore(c.DB))
	c.Orgs = orgsrv.NewService(orginfra.NewPostgresRepository(c.DB))

	// Identity: one verifier per provider behind the dispatcher. Fallback
	// order for ambiguous tokens is the registration order.
	c.PasswordProvider = password.NewTokenService(c.Config.Providers.Password)
	linkService := magiclink.NewService(c.Config.Providers.MagicLink, c.Redis)
	entraVerifier := entra.NewVerifier(c.Config.Providers.Entra)
	googleVerifier := google.NewVerifier(c.Config.Providers.Google, http.DefaultClient, c.Redis)

	dispatcher := dispatch.New(
		dispatch.Entry{
			Provider:       identity.ProviderPassword,
			Verifier:       c.PasswordProvider,
			IssuerPrefixes: []string{c.Config.Providers.Password.Issuer},
		},
		dispatch.Entry{
			Provider:       identity.ProviderMagicLink,
			Verifier:       linkService,
			IssuerPrefixes: []string{c.Config.Providers.MagicLink.Issuer},
		},
		dispatch.Entry{
			Provider:      identity.ProviderGoogle,
			Verifier:      googleVerifier,
			AcceptsOpaque: true,
			IssuerPrefixes: []string{
				"https://accounts.google.com",
				"accounts.google.com",
			},
		},
		dispatch.Entry{
			Provider:       identity.ProviderEntra,
			Verifier:       entraVerifier,
			IssuerPrefixes: []string{"https://login.microsoftonline.com/", "https://sts.windows.net/"},
		},
	)

	c.Resolver = identitysrv.NewResolver(dispatcher, c.Directory, c.Orgs, c.Config.Directory.SuperAdminDomains)
	c.AuthMiddleware = identityapi.NewMiddleware(c.Resolver)

	// Licensing.
	c.Licensing = licensingsrv.NewService(
		licensinginfra.NewPostgresLicenseRepository(c.DB),
		licensinginfra.NewPostgresUserLicenseRepository(c.DB),
		c.Config.Licensing.AssignMaxRetries,
	)

	// Invitations.
	c.Invitations = invitationsrv.NewService(
		invitationinfra.NewPostgresRepository(c.DB),
		c.Directory,
		c.Licensing,
		c.Mailer,
		0,
	)

	// Accounts.
	c.Accounts = accountsrv.NewService(
		c.Directory,
		c.Orgs,
		c.PasswordProvider,
		accountinfra.NewPostgresRepository(c.DB),
		c.Mailer,
		0,
	)

	// HTTP handlers.
	c.AccountAPI = accountapi.NewHandler(c.Accounts, c.Resolver, c.Directory, linkService,
		c.PasswordProvider, c.Mailer, c.Trail, c.Config.Providers.MagicLink.BaseURL)
	c.DirectoryAPI = directoryapi.NewHandler(c.Directory, c.Trail)
	c.LicensingAPI = licensingapi.NewHandler(c.Licensing, c.Trail)
	c.InvitationAPI = invitationapi.NewHandler(c.Invitations, c.Trail)
}

func (c *Container) emailProvider() notifx.EmailSender {
	switch c.Config.Notifx.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
			awsConfig.WithRegion(c.Config.Notifx.AWSRegion))
		if err != nil {
			logx.Fatalf("unable to load AWS SDK config: %v", err)
		}
		return notifxses.NewProvider(ses.NewFromConfig(awsCfg), c.Config.Notifx.FromAddress)
	default:
		return notifxconsole.NewProvider()
	}
}

func (c *Container) baseURL() string {
	return fmt.Sprintf("http://localhost:%d", c.Config.Server.Port)
}

// StartBackgroundServices launches the periodic seat reconciliation pass
// when an interval is configured.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	interval := c.Config.Licensing.ReconcileInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reconcileAllTenants(ctx)
			}
		}
	}()
	logx.Infof("seat reconciliation runner started (every %s)", interval)
}

func (c *Container) reconcileAllTenants(ctx context.Context) {
	var tenantIDs []string
	if err := c.DB.SelectContext(ctx, &tenantIDs, `SELECT DISTINCT tenant_id FROM licenses`); err != nil {
		logx.WithError(err).Warn("seat reconciliation pass could not list tenants")
		return
	}
	for _, tid := range tenantIDs {
		healed, err := c.Licensing.ReconcileSeatCounts(ctx, kernel.NewTenantID(tid))
		if err != nil {
			logx.WithError(err).WithField("tenant_id", tid).Warn("seat reconciliation failed")
			continue
		}
		if healed > 0 {
			logx.WithFields(logx.Fields{"tenant_id": tid, "healed": healed}).Info("seat reconciliation pass healed licenses")
		}
	}
}

func (c *Container) Cleanup() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("error closing redis: %v", err)
		}
	}
}

// Package accountapi exposes the authentication entry points over HTTP.
package accountapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/account/accountsrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/audit"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory/directorysrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identityapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identitysrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/providers/magiclink"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/providers/password"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/mail"
)

type Handler struct {
	accounts *accountsrv.Service
	resolver *identitysrv.Resolver
	users    *directorysrv.Service
	links    *magiclink.Service
	tokens   *password.TokenService
	mailer   *mail.Mailer
	trail    *audit.Trail
	linkBase string
}

func NewHandler(accounts *accountsrv.Service, resolver *identitysrv.Resolver, users *directorysrv.Service, links *magiclink.Service, tokens *password.TokenService, mailer *mail.Mailer, trail *audit.Trail, linkBase string) *Handler {
	return &Handler{
		accounts: accounts,
		resolver: resolver,
		users:    users,
		links:    links,
		tokens:   tokens,
		mailer:   mailer,
		trail:    trail,
		linkBase: linkBase,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App, mw *identityapi.Middleware) {
	auth := app.Group("/auth")
	auth.Post("/signup", h.signUp)
	auth.Post("/signin", h.signIn)
	auth.Post("/oauth", h.oauth)
	auth.Post("/magic-link/request", h.requestMagicLink)
	auth.Post("/magic-link/redeem", h.redeemMagicLink)
	auth.Get("/verify-email", h.verifyEmail)
	auth.Post("/verify-email/resend", h.resendVerification)
	auth.Get("/me", mw.Authenticate(), h.me)
}

type credentialsRequest struct {
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) signUp(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	tenantID := kernel.NewTenantID(req.TenantID)
	res, err := h.accounts.SignUp(c.UserContext(), tenantID, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventSignUp, tenantID, res.User.ID, map[string]any{
		"email": res.User.Email,
	})
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handler) signIn(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	tenantID := kernel.NewTenantID(req.TenantID)
	res, err := h.accounts.SignIn(c.UserContext(), tenantID, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventSignIn, tenantID, res.User.ID, map[string]any{
		"provider": identity.ProviderPassword.String(),
	})
	return c.JSON(res)
}

type oauthRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// oauth signs a user in (or up) with an external provider's token named
// explicitly in the body.
func (h *Handler) oauth(c *fiber.Ctx) error {
	var req oauthRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	provider, ok := identity.ParseProvider(req.Provider)
	if !ok {
		return errx.New("unknown provider: "+req.Provider, errx.TypeValidation)
	}

	ac, err := h.resolver.ResolveWith(c.UserContext(), provider, req.Token)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventSignIn, ac.TenantID, ac.UserID, map[string]any{
		"provider": provider.String(),
	})
	return c.JSON(ac)
}

type magicLinkRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
}

// requestMagicLink mails a single-use sign-in link. The response is the same
// whether or not the email has an account, so the endpoint cannot be used to
// probe for registered addresses.
func (h *Handler) requestMagicLink(c *fiber.Ctx) error {
	var req magicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	tenantID := kernel.NewTenantID(req.TenantID)
	user, err := h.users.FindByEmail(c.UserContext(), tenantID, req.Email)
	if err == nil && user.CanAuthenticate() {
		token, err := h.links.Issue(c.UserContext(), user.ID, tenantID, user.Email, user.DisplayName)
		if err != nil {
			return err
		}
		h.mailer.SendMagicLinkEmail(c.UserContext(), user.Email, h.linkBase+"?token="+token)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

type redeemRequest struct {
	Token string `json:"token"`
}

// redeemMagicLink consumes a link token and exchanges it for a regular
// access token.
func (h *Handler) redeemMagicLink(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	ac, err := h.resolver.ResolveWith(c.UserContext(), identity.ProviderMagicLink, req.Token)
	if err != nil {
		return err
	}

	access, err := h.tokens.Issue(ac.UserID, ac.TenantID, ac.Email, ac.Name)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventSignIn, ac.TenantID, ac.UserID, map[string]any{
		"provider": identity.ProviderMagicLink.String(),
	})
	return c.JSON(fiber.Map{
		"user":         ac,
		"access_token": access,
	})
}

func (h *Handler) verifyEmail(c *fiber.Ctx) error {
	tenantID := kernel.NewTenantID(c.Query("tenant_id"))
	token := c.Query("token")
	if token == "" {
		return errx.New("missing verification token", errx.TypeValidation)
	}

	res, err := h.accounts.VerifyEmail(c.UserContext(), tenantID, token)
	if err != nil {
		return err
	}
	if res.Verified {
		h.trail.Record(c.UserContext(), audit.EventEmailVerified, tenantID, res.User.ID, nil)
	}
	return c.JSON(res)
}

func (h *Handler) resendVerification(c *fiber.Ctx) error {
	var req magicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	sent, err := h.accounts.ResendVerification(c.UserContext(), kernel.NewTenantID(req.TenantID), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"email_sent": sent})
}

func (h *Handler) me(c *fiber.Ctx) error {
	return c.JSON(identityapi.FromCtx(c))
}

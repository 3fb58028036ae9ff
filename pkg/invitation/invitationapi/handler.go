// Package invitationapi exposes invitation management and redemption over
// HTTP.
package invitationapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/audit"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identityapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/invitation/invitationsrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

type Handler struct {
	invitations *invitationsrv.Service
	trail       *audit.Trail
}

func NewHandler(invitations *invitationsrv.Service, trail *audit.Trail) *Handler {
	return &Handler{invitations: invitations, trail: trail}
}

func (h *Handler) RegisterRoutes(app *fiber.App, mw *identityapi.Middleware) {
	// Redemption endpoints are pre-auth: the redeemer proves identity with
	// the invite token itself plus a provider credential check upstream.
	app.Post("/invitations/accept", h.accept)
	app.Get("/invitations/validate", h.validate)

	admin := app.Group("/api/v1/invitations", mw.Authenticate(), mw.RequireAdmin())
	admin.Post("/", h.create)
	admin.Get("/", h.list)
	admin.Delete("/:token", h.cancel)
}

type createRequest struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	ProductID string `json:"product_id,omitempty"`
}

func (h *Handler) create(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	if ac.OrganizationID == nil {
		return errx.New("inviter has no organization", errx.TypeBusiness)
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	var productID *kernel.ProductID
	if req.ProductID != "" {
		p := kernel.NewProductID(req.ProductID)
		productID = &p
	}

	res, err := h.invitations.Create(c.UserContext(), ac.TenantID, *ac.OrganizationID,
		req.Email, kernel.Role(req.Role), productID, &ac.UserID, ac.Name)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventInviteCreated, ac.TenantID, ac.UserID, map[string]any{
		"email": res.Invite.Email,
	})
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handler) list(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	if ac.OrganizationID == nil {
		return errx.New("caller has no organization", errx.TypeBusiness)
	}

	invites, err := h.invitations.ListByOrganization(c.UserContext(), ac.TenantID, *ac.OrganizationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invitations": invites})
}

type acceptRequest struct {
	TenantID string `json:"tenant_id"`
	Token    string `json:"token"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

func (h *Handler) accept(c *fiber.Ctx) error {
	var req acceptRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	provider, ok := identity.ParseProvider(req.Provider)
	if !ok {
		provider = identity.ProviderPassword
	}

	tenantID := kernel.NewTenantID(req.TenantID)
	res, err := h.invitations.Accept(c.UserContext(), tenantID, req.Token, req.Email, provider)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventInviteAccepted, tenantID, res.User.ID, map[string]any{
		"existing_user": res.ExistingUser,
	})
	return c.JSON(res)
}

func (h *Handler) validate(c *fiber.Ctx) error {
	tenantID := kernel.NewTenantID(c.Query("tenant_id"))
	inv, err := h.invitations.Validate(c.UserContext(), tenantID, c.Query("token"), c.Query("email"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func (h *Handler) cancel(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	if err := h.invitations.Cancel(c.UserContext(), ac.TenantID, c.Params("token")); err != nil {
		return err
	}
	h.trail.Record(c.UserContext(), audit.EventInviteCancelled, ac.TenantID, ac.UserID, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

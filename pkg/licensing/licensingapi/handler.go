// Package licensingapi exposes license and seat management over HTTP.
package licensingapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/audit"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identityapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/licensing/licensingsrv"
)

type Handler struct {
	licenses *licensingsrv.Service
	trail    *audit.Trail
}

func NewHandler(licenses *licensingsrv.Service, trail *audit.Trail) *Handler {
	return &Handler{licenses: licenses, trail: trail}
}

func (h *Handler) RegisterRoutes(app *fiber.App, mw *identityapi.Middleware) {
	g := app.Group("/api/v1/licenses", mw.Authenticate())
	g.Get("/", h.list)
	g.Get("/:id", h.get)
	g.Get("/:id/assignments", mw.RequireAdmin(), h.listAssignments)
	g.Post("/:id/assignments", mw.RequireAdmin(), h.assign)
	g.Delete("/:id/assignments/:userId", mw.RequireAdmin(), h.revoke)

	app.Get("/api/v1/products/:sku/access", mw.Authenticate(), h.checkAccess)
	app.Post("/api/v1/licenses-reconcile", mw.Authenticate(), mw.RequireSuperAdmin(), h.reconcile)
}

func (h *Handler) list(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	licenses, err := h.licenses.List(c.UserContext(), ac.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"licenses": licenses})
}

func (h *Handler) get(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	license, err := h.licenses.Get(c.UserContext(), ac.TenantID, kernel.NewLicenseID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(license)
}

func (h *Handler) listAssignments(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	assignments, err := h.licenses.ListAssignments(c.UserContext(), ac.TenantID, kernel.NewLicenseID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"assignments": assignments})
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) assign(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	if ac.OrganizationID == nil {
		return errx.New("caller has no organization", errx.TypeBusiness)
	}

	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	ul, err := h.licenses.Assign(c.UserContext(), ac.TenantID, *ac.OrganizationID,
		kernel.NewUserID(req.UserID), kernel.NewLicenseID(c.Params("id")), &ac.UserID)
	if err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventSeatAssigned, ac.TenantID, ac.UserID, map[string]any{
		"license_id": ul.LicenseID,
		"user_id":    ul.UserID,
	})
	return c.Status(fiber.StatusCreated).JSON(ul)
}

func (h *Handler) revoke(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	licenseID := kernel.NewLicenseID(c.Params("id"))
	userID := kernel.NewUserID(c.Params("userId"))

	if err := h.licenses.Revoke(c.UserContext(), ac.TenantID, userID, licenseID); err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventSeatRevoked, ac.TenantID, ac.UserID, map[string]any{
		"license_id": licenseID,
		"user_id":    userID,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// checkAccess reports whether the caller holds active access to a product.
func (h *Handler) checkAccess(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	ok, err := h.licenses.HasActiveProductAccess(c.UserContext(), ac.TenantID, ac.UserID, kernel.NewProductID(c.Params("sku")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"has_access": ok})
}

func (h *Handler) reconcile(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	healed, err := h.licenses.ReconcileSeatCounts(c.UserContext(), ac.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"healed": healed})
}

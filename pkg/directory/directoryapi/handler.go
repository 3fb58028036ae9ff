// Package directoryapi exposes directory administration over HTTP.
package directoryapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/audit"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/directory/directorysrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identityapi"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

type Handler struct {
	users *directorysrv.Service
	trail *audit.Trail
}

func NewHandler(users *directorysrv.Service, trail *audit.Trail) *Handler {
	return &Handler{users: users, trail: trail}
}

func (h *Handler) RegisterRoutes(app *fiber.App, mw *identityapi.Middleware) {
	g := app.Group("/api/v1/users", mw.Authenticate(), mw.RequireAdmin())
	g.Get("/", h.listByRole)
	g.Get("/:id", h.get)
	g.Put("/:id/role", mw.RequireSuperAdmin(), h.changeRole)
	g.Delete("/:id", mw.RequireSuperAdmin(), h.delete)
}

// listByRole lists one role shard. Role sharding makes this a single-shard
// read, no filtering.
func (h *Handler) listByRole(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	role := kernel.Role(c.Query("role", string(kernel.RoleUser)))

	users, err := h.users.ListByRole(c.UserContext(), role, ac.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users})
}

func (h *Handler) get(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)
	user, err := h.users.FindBySubjectID(c.UserContext(), ac.TenantID, kernel.NewUserID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) changeRole(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)

	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Wrap(err, "invalid request body", errx.TypeValidation)
	}

	user, err := h.users.FindBySubjectID(c.UserContext(), ac.TenantID, kernel.NewUserID(c.Params("id")))
	if err != nil {
		return err
	}

	fromRole := user.Role
	if err := h.users.ChangeRole(c.UserContext(), user, kernel.Role(req.Role)); err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventRoleChanged, ac.TenantID, ac.UserID, map[string]any{
		"user_id": user.ID,
		"from":    fromRole,
		"to":      user.Role,
	})
	return c.JSON(user)
}

func (h *Handler) delete(c *fiber.Ctx) error {
	ac := identityapi.FromCtx(c)

	user, err := h.users.FindBySubjectID(c.UserContext(), ac.TenantID, kernel.NewUserID(c.Params("id")))
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), user); err != nil {
		return err
	}

	h.trail.Record(c.UserContext(), audit.EventUserDeactivated, ac.TenantID, ac.UserID, map[string]any{
		"user_id": user.ID,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// Package identityapi exposes identity resolution to the HTTP layer: the
// bearer-token middleware and role gates.
package identityapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/identity/identitysrv"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

type Middleware struct {
	resolver *identitysrv.Resolver
}

func NewMiddleware(resolver *identitysrv.Resolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// Authenticate resolves the Authorization header into an AuthContext and
// stores it in request locals. Any provider's credential is accepted; the
// dispatcher picks the verifier.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return identity.ErrUnauthenticated()
		}

		ac, err := m.resolver.Resolve(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(string(kernel.AuthContextKey), ac)
		return c.Next()
	}
}

// RequireAdmin gates a route on an effective role of client admin or above.
func (m *Middleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac := FromCtx(c)
		if ac == nil {
			return identity.ErrUnauthenticated()
		}
		if !ac.IsAdmin() {
			return fiber.NewError(fiber.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}

// RequireSuperAdmin gates a route on the super-admin role.
func (m *Middleware) RequireSuperAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac := FromCtx(c)
		if ac == nil {
			return identity.ErrUnauthenticated()
		}
		if !ac.IsSuperAdmin() {
			return fiber.NewError(fiber.StatusForbidden, "super admin role required")
		}
		return c.Next()
	}
}

// FromCtx returns the authenticated context stored by Authenticate, or nil.
func FromCtx(c *fiber.Ctx) *kernel.AuthContext {
	ac, _ := c.Locals(string(kernel.AuthContextKey)).(*kernel.AuthContext)
	return ac
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

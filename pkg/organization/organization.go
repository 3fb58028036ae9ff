// Package organization holds the tenant-scoped organization entity that owns
// licenses.
package organization

import (
	"net/http"
	"time"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

type Organization struct {
	ID        kernel.OrganizationID `db:"id" json:"id"`
	TenantID  kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	Name      string                `db:"name" json:"name"`
	CreatedAt time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt time.Time             `db:"updated_at" json:"updated_at"`
}

var ErrRegistry = errx.NewRegistry("ORGANIZATION")

var (
	CodeOrganizationNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound,
		"Organization not found")
)

func ErrOrganizationNotFound() *errx.Error { return ErrRegistry.New(CodeOrganizationNotFound) }

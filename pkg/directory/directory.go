// Package directory is the role-sharded user directory. User records are
// partitioned by tenant and physically sharded into three disjoint
// collections, one per canonical role; a user's storage location always
// equals its role field.
package directory

import (
	"net/http"
	"strings"
	"time"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/errx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// Status is a user's lifecycle status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// User is the identity and authorization record. ID is the provider subject
// id when the identity came from an external provider, or a generated id for
// internally created accounts.
type User struct {
	ID             kernel.UserID          `db:"id" json:"id"`
	TenantID       kernel.TenantID        `db:"tenant_id" json:"tenant_id"`
	Email          string                 `db:"email" json:"email"`
	DisplayName    string                 `db:"display_name" json:"display_name"`
	Role           kernel.Role            `db:"role" json:"role"`
	Status         Status                 `db:"status" json:"status"`
	OrganizationID *kernel.OrganizationID `db:"organization_id" json:"organization_id,omitempty"`
	PasswordHash   *string                `db:"password_hash" json:"-"`
	EmailVerified  bool                   `db:"email_verified" json:"email_verified"`
	ProviderRoleID *string                `db:"provider_role_id" json:"provider_role_id,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
}

// CanAuthenticate reports whether the user's status permits sign-in.
func (u *User) CanAuthenticate() bool {
	return u.Status == StatusActive || u.Status == StatusPending
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var ErrRegistry = errx.NewRegistry("DIRECTORY")

var (
	CodeUserNotFound = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound,
		"User not found")
	CodeDuplicateUser = ErrRegistry.Register("DUPLICATE_USER", errx.TypeConflict, http.StatusConflict,
		"A user with this identity already exists")
	CodeInvalidRole = ErrRegistry.Register("INVALID_ROLE", errx.TypeValidation, http.StatusBadRequest,
		"Role is not a canonical backend role")
	CodeUserInactive = ErrRegistry.Register("USER_INACTIVE", errx.TypeAuthorization, http.StatusForbidden,
		"User account is not active")
)

func ErrUserNotFound() *errx.Error  { return ErrRegistry.New(CodeUserNotFound) }
func ErrDuplicateUser() *errx.Error { return ErrRegistry.New(CodeDuplicateUser) }
func ErrInvalidRole() *errx.Error   { return ErrRegistry.New(CodeInvalidRole) }
func ErrUserInactive() *errx.Error  { return ErrRegistry.New(CodeUserInactive) }

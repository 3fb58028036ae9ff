package account

import (
	"context"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

// VerificationTokenRepository defines the contract for verification token
// persistence.
type VerificationTokenRepository interface {
	FindByToken(ctx context.Context, tenantID kernel.TenantID, token string) (*VerificationToken, error)
	Create(ctx context.Context, vt *VerificationToken) error
	Delete(ctx context.Context, tenantID kernel.TenantID, id string) error
	DeleteByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) error
}

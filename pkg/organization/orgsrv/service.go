// Package orgsrv implements organization provisioning.
package orgsrv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/logx"
	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/organization"
)

type Service struct {
	repo organization.Repository
}

func NewService(repo organization.Repository) *Service {
	return &Service{repo: repo}
}

// Get loads one organization.
func (s *Service) Get(ctx context.Context, tenantID kernel.TenantID, id kernel.OrganizationID) (*organization.Organization, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

// EnsureForSignup creates an empty organization for a first client-admin
// sign-up. The name defaults from the admin's email domain when none is
// given.
func (s *Service) EnsureForSignup(ctx context.Context, tenantID kernel.TenantID, name string) (*organization.Organization, error) {
	now := time.Now()
	org := &organization.Organization{
		ID:        kernel.NewOrganizationID(uuid.NewString()),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, org); err != nil {
		return nil, err
	}
	logx.WithFields(logx.Fields{
		"organization_id": org.ID,
		"tenant_id":       tenantID,
	}).Info("auto-provisioned organization for sign-up")
	return org, nil
}

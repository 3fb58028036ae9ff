package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudsecurityweb/echopad-app-sub000/pkg/kernel"
)

func TestDefaultSignupRole(t *testing.T) {
	assert.Equal(t, kernel.RoleClientAdmin, DefaultSignupRole())
}

func TestMapProviderRoles(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  kernel.Role
		ok    bool
	}{
		{"super admin", []string{"SuperAdmin"}, kernel.RoleSuperAdmin, true},
		{"client admin snake case", []string{"client_admin"}, kernel.RoleClientAdmin, true},
		{"legacy user-admin maps down", []string{"User-Admin"}, kernel.RoleUser, true},
		{"case insensitive", []string{"SUPER-ADMIN"}, kernel.RoleSuperAdmin, true},
		{"whitespace tolerated", []string{"  clientadmin "}, kernel.RoleClientAdmin, true},
		{"highest privilege wins", []string{"user", "superadmin", "clientadmin"}, kernel.RoleSuperAdmin, true},
		{"unknown names ignored", []string{"reader", "clientadmin"}, kernel.RoleClientAdmin, true},
		{"nothing recognized", []string{"reader", "billing"}, "", false},
		{"empty assertion", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapProviderRoles(tt.roles)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcile(t *testing.T) {
	stored := &User{
		ID:   kernel.NewUserID("user-1"),
		Role: kernel.RoleUser,
	}

	t.Run("token roles override for the request", func(t *testing.T) {
		effective := Reconcile(stored, []string{"ClientAdmin"})
		assert.Equal(t, kernel.RoleClientAdmin, effective.Role)
		assert.Equal(t, kernel.RoleUser, stored.Role, "the stored record is never written")
	})

	t.Run("silence keeps the stored role", func(t *testing.T) {
		effective := Reconcile(stored, []string{})
		assert.Equal(t, kernel.RoleUser, effective.Role)
	})

	t.Run("unrecognized assertions keep the stored role", func(t *testing.T) {
		effective := Reconcile(stored, []string{"billing-viewer"})
		assert.Equal(t, kernel.RoleUser, effective.Role)
	})
}

func TestCanAuthenticate(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusActive:    true,
		StatusPending:   true,
		StatusInactive:  false,
		StatusSuspended: false,
	} {
		u := &User{Status: status}
		assert.Equal(t, want, u.CanAuthenticate(), "status %s", status)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RolePrincipal, PermCreateMediaBuy))
	assert.False(t, HasPermission(RolePrincipal, PermApproveStep))
	assert.True(t, HasPermission(RoleReviewer, PermApproveStep))
	assert.False(t, HasPermission(RoleReviewer, PermCreateMediaBuy))
	assert.True(t, HasPermission(RoleAdmin, PermApproveStep))
	assert.True(t, HasPermission(RoleAdmin, PermCreateMediaBuy))
	assert.False(t, HasPermission("guest", PermListProducts))
	assert.False(t, IsValidRole("guest"))
}

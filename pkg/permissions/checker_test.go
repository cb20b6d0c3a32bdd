package permissions_test

import (
	"testing"

	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
	"github.com/stretchr/testify/assert"
)

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role       string
		capability string
		allowed    bool
	}{
		{permissions.RoleAdmin, permissions.CapPartyManage, true},
		{permissions.RoleAdmin, permissions.CapTransferCommit, true},
		{permissions.RoleSupplier, permissions.CapItemCreate, true},
		{permissions.RoleSupplier, permissions.CapRequestCreate, false},
		{permissions.RoleManufacturer, permissions.CapRequestCreate, true},
		{permissions.RoleDistributor, permissions.CapItemCreate, false},
		{permissions.RoleDistributor, permissions.CapTransferCommit, true},
		{permissions.RolePharmacy, permissions.CapRequestDecide, false},
		{permissions.RolePharmacy, permissions.CapRequestCreate, true},
		{"", permissions.CapItemRead, false},
		{"unknown", permissions.CapItemRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.capability, func(t *testing.T) {
			assert.Equal(t, tt.allowed, permissions.RoleAllows(tt.role, tt.capability))
		})
	}
}

func TestHasPermissionWildcards(t *testing.T) {
	assert.True(t, permissions.HasPermission([]string{"*"}, "ledger.transfer.commit"))
	assert.True(t, permissions.HasPermission([]string{"ledger.*"}, "ledger.holding.read"))
	assert.False(t, permissions.HasPermission([]string{"ledger.*"}, "party.manage"))
	assert.True(t, permissions.HasPermission(nil, ""))
	assert.False(t, permissions.HasPermission(nil, "ledger.item.read"))
}

func TestHasAnyAndAll(t *testing.T) {
	granted := []string{"ledger.item.read", "ledger.holding.read"}

	assert.True(t, permissions.HasAnyPermission(granted, []string{"party.manage", "ledger.item.read"}))
	assert.False(t, permissions.HasAnyPermission(granted, []string{"party.manage"}))
	assert.True(t, permissions.HasAllPermissions(granted, []string{"ledger.item.read", "ledger.holding.read"}))
	assert.False(t, permissions.HasAllPermissions(granted, []string{"ledger.item.read", "ledger.item.create"}))
}

func TestFilterByPrefix(t *testing.T) {
	perms := permissions.ForRole(permissions.RoleManufacturer)
	ledgerPerms := permissions.FilterByPrefix(perms, "ledger")

	assert.NotEmpty(t, ledgerPerms)
	for _, p := range ledgerPerms {
		assert.Contains(t, p, "ledger.")
	}
}

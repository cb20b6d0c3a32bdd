// Package permissions maps party roles to capabilities and checks
// capability strings with wildcard support.
//
// Capability format:
//   - "*" - full access (all capabilities)
//   - "resource.*" - all actions on a resource (e.g. "ledger.*")
//   - "resource.action" - specific action (e.g. "ledger.transfer.commit")
package permissions

import (
	"strings"
)

// Party roles
const (
	RoleAdmin        = "admin"
	RoleSupplier     = "supplier"
	RoleManufacturer = "manufacturer"
	RoleDistributor  = "distributor"
	RolePharmacy     = "pharmacy"
)

// Capabilities
const (
	CapItemCreate      = "ledger.item.create"
	CapItemRead        = "ledger.item.read"
	CapItemUpdate      = "ledger.item.update"
	CapHoldingRead     = "ledger.holding.read"
	CapTransferPropose = "ledger.transfer.propose"
	CapTransferCommit  = "ledger.transfer.commit"
	CapTransferReject  = "ledger.transfer.reject"
	CapRequestCreate   = "ledger.request.create"
	CapRequestDecide   = "ledger.request.decide"
	CapPartyManage     = "party.manage"
)

// rolePolicy is the single authoritative mapping from role to capabilities.
// Every trading role can move goods it holds; only admin manages parties.
var rolePolicy = map[string][]string{
	RoleAdmin: {"*"},
	RoleSupplier: {
		CapItemCreate, CapItemRead, CapItemUpdate, CapHoldingRead,
		CapTransferPropose, CapTransferCommit, CapTransferReject,
		CapRequestDecide,
	},
	RoleManufacturer: {
		CapItemCreate, CapItemRead, CapItemUpdate, CapHoldingRead,
		CapTransferPropose, CapTransferCommit, CapTransferReject,
		CapRequestCreate, CapRequestDecide,
	},
	RoleDistributor: {
		CapItemRead, CapHoldingRead,
		CapTransferPropose, CapTransferCommit, CapTransferReject,
		CapRequestCreate, CapRequestDecide,
	},
	RolePharmacy: {
		CapItemRead, CapHoldingRead,
		CapTransferPropose, CapTransferCommit, CapTransferReject,
		CapRequestCreate,
	},
}

// ForRole returns the capabilities granted to a role. Unknown roles get none.
func ForRole(role string) []string {
	return rolePolicy[role]
}

// RoleAllows checks whether a role is granted the required capability.
func RoleAllows(role, required string) bool {
	return HasPermission(ForRole(role), required)
}

// HasPermission checks if the granted capabilities include the required one.
// Supports wildcard matching:
//   - "*" matches everything
//   - "ledger.*" matches "ledger.item.read", "ledger.transfer.commit", etc.
//   - Exact match for specific capabilities
func HasPermission(granted []string, required string) bool {
	if required == "" {
		return true // No capability required
	}

	for _, p := range granted {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "ledger.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if any of the required capabilities is granted.
func HasAnyPermission(granted []string, required []string) bool {
	for _, req := range required {
		if HasPermission(granted, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if all of the required capabilities are granted.
func HasAllPermissions(granted []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(granted, req) {
			return false
		}
	}
	return true
}

// FilterByPrefix returns all capabilities that match a given prefix.
// Useful for getting all capabilities in a category (e.g. "ledger").
func FilterByPrefix(perms []string, prefix string) []string {
	var matches []string
	for _, p := range perms {
		if strings.HasPrefix(p, prefix+".") || p == prefix {
			matches = append(matches, p)
		}
	}
	return matches
}

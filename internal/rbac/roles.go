package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin          = "admin"
	RoleSales          = "sales"
	RoleProjectManager = "project_manager"
	RoleTechnician     = "technician"
	RoleSupport        = "support"
	RoleClient         = "client"
)

// Staff are the internal roles allowed to work interactions.
var Staff = []string{RoleSales, RoleProjectManager, RoleTechnician, RoleSupport}

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsExternal reports roles that belong to customers rather than staff.
func IsExternal(role string) bool { return role == RoleClient }

func Valid(role string) bool {
	switch role {
	case RoleAdmin, RoleSales, RoleProjectManager, RoleTechnician, RoleSupport, RoleClient:
		return true
	default:
		return false
	}
}

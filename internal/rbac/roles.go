package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"       // outbound orchestrators: decisions, attempt/circuit reports
	RoleAnalyst    = "analyst"     // read-only reporting
	RoleOperator   = "operator"    // circuit resets, maintenance triggers
	RoleSuperAdmin = "super_admin" // bypasses all role checks
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

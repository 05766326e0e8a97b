package rbac

// Role names stored in profiles.role. Keep these stable.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValidRole(role string) bool { return role == RoleAdmin || role == RoleManager }

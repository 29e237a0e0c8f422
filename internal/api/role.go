// ABOUTME: RBAC Role type with ordered integer constants for permission comparison.
// ABOUTME: parseRole converts a string role name to a Role value.
package api

// Role represents an RBAC permission level. Higher integer values grant more permissions.
type Role int

// Role permission level constants, ordered from least to most privileged.
const (
	RoleMember Role = 1 // standard back-office staff
	RoleAdmin  Role = 2 // org administrator
	RoleOwner  Role = 3 // full control including org settings
)

// parseRole converts a role string from the database to a Role.
// Unknown or empty values map to RoleMember (least privilege).
func parseRole(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	default:
		return RoleMember
	}
}

// String returns the database spelling of the role.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	default:
		return "member"
	}
}

package model

import "fmt"

// Role is the access level of an authenticated user. The set is closed.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAgent   Role = "agent"
	RoleAdmin   Role = "admin"
)

// LandingRoute is the public route every hard redirect lands on.
const LandingRoute = "/"

// ParseRole converts a raw role string into a Role, rejecting values outside
// the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleCitizen, RoleAgent, RoleAdmin:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Identity is the authenticated user's profile as cached by the client.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// FullName returns "Name Surname", trimmed when either part is empty.
func (i Identity) FullName() string {
	switch {
	case i.Name == "":
		return i.Surname
	case i.Surname == "":
		return i.Name
	default:
		return i.Name + " " + i.Surname
	}
}

// Valid reports whether the identity carries the fields every consumer relies on.
func (i Identity) Valid() bool {
	if i.ID == "" {
		return false
	}
	_, err := ParseRole(string(i.Role))
	return err == nil
}

// SameIdentity reports whether a and b carry the same content. Two nil
// identities (logged out) are the same.
func SameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RoleRank classifies an identity into its role. Unknown roles rank as citizen,
// the least privileged level.
func RoleRank(i Identity) Role {
	r, err := ParseRole(string(i.Role))
	if err != nil {
		return RoleCitizen
	}
	return r
}

// HasElevatedAccess is true for back-office roles.
func HasElevatedAccess(r Role) bool {
	return r == RoleAgent || r == RoleAdmin
}

// DashboardRoute returns the dashboard route for the given role.
func DashboardRoute(r Role) string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleAgent:
		return "/agent"
	default:
		return "/citizen"
	}
}

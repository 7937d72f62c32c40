package domain

import "fmt"

// Role is the marketplace role a user acts under. Users themselves are
// owned by the platform; this core only references their id and role.
type Role string

const (
	RoleVA       Role = "va"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleVA, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// ParseRole validates a wire value.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// CounterRoles returns the unread counters a message from the given
// sender increments in a conversation. In an intercepted conversation a
// business message is only visible to the admin desk, so only the admin
// counter moves; the VA counter must stay untouched.
func CounterRoles(sender Role, intercepted bool) []Role {
	if intercepted {
		switch sender {
		case RoleBusiness:
			return []Role{RoleAdmin}
		case RoleVA:
			// replyAsVA output lands in front of the business
			return []Role{RoleBusiness}
		case RoleAdmin:
			return nil
		}
		return nil
	}
	switch sender {
	case RoleVA:
		return []Role{RoleBusiness}
	case RoleBusiness:
		return []Role{RoleVA}
	case RoleAdmin:
		return []Role{RoleVA, RoleBusiness}
	}
	return nil
}

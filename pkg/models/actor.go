package models

import "strings"

// GlobalRole is the portal-wide role of an actor.
type GlobalRole string

const (
	GlobalRoleStaff   GlobalRole = "STAFF"
	GlobalRoleStudent GlobalRole = "STUDENT"
)

// Valid reports whether r is a known global role.
func (r GlobalRole) Valid() bool {
	return r == GlobalRoleStaff || r == GlobalRoleStudent
}

// GroupRole is the role an actor holds inside one club.
type GroupRole string

const (
	GroupRolePresident     GroupRole = "PRESIDENT"
	GroupRoleVicePresident GroupRole = "VICE_PRESIDENT"
	GroupRoleOfficer       GroupRole = "OFFICER"
	GroupRoleMember        GroupRole = "MEMBER"
)

// Valid reports whether r is a known group role.
func (r GroupRole) Valid() bool {
	return r == GroupRoleMember || r.Privileged()
}

// Privileged reports whether the role receives group broadcasts.
func (r GroupRole) Privileged() bool {
	switch r {
	case GroupRolePresident, GroupRoleVicePresident, GroupRoleOfficer:
		return true
	default:
		return false
	}
}

// ActorContext identifies who is performing an operation. It is passed
// explicitly into every service, engine and hub call.
type ActorContext struct {
	ID         string               `json:"id"          validate:"required"`
	Name       string               `json:"name"`
	GlobalRole GlobalRole           `json:"global_role" validate:"required,oneof=STAFF STUDENT"`
	GroupRoles map[string]GroupRole `json:"group_roles,omitempty"`
}

// IsStaff reports whether the actor is a staff reviewer.
func (a ActorContext) IsStaff() bool {
	return a.GlobalRole == GlobalRoleStaff
}

// PrivilegedIn reports whether the actor holds a privileged role in the group.
func (a ActorContext) PrivilegedIn(groupID string) bool {
	role, ok := a.GroupRoles[groupID]

	return ok && role.Privileged()
}

// DisplayName falls back to the id when no name is known.
func (a ActorContext) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}

	return a.ID
}

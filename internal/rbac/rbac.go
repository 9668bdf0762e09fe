package rbac

import (
	"strings"
)

// Role is a member's access tier as stored on the profile.
type Role string

const (
	RoleMember     Role = "member"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Capability is a feature area that navigation and handlers can check.
type Capability string

const (
	CapMemberArea   Capability = "member.area"
	CapModeration   Capability = "moderation.queue"
	CapAdminConsole Capability = "admin.console"
	CapSiteSettings Capability = "admin.settings"
)

// capabilityRoles maps each capability to the roles permitted to access it.
var capabilityRoles = map[Capability]Roles{
	CapMemberArea:   {RoleMember, RoleModerator, RoleAdmin, RoleSuperAdmin},
	CapModeration:   {RoleModerator, RoleAdmin, RoleSuperAdmin},
	CapAdminConsole: {RoleAdmin, RoleSuperAdmin},
	CapSiteSettings: {RoleSuperAdmin},
}

// Roles captures a list of roles and exposes intersection checks.
type Roles []Role

// Has returns true if the provided role exists in the set.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the roles as plain strings.
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// NormaliseRole lowercases and trims a raw role value.
func NormaliseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// NormaliseRoles converts raw role strings into canonical Role values.
func NormaliseRoles(raw []string) Roles {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(raw))
	roles := make(Roles, 0, len(raw))
	for _, val := range raw {
		role := NormaliseRole(val)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// Allowed compares raw against the allow-list case-insensitively. An empty
// allow-list admits nobody.
func Allowed(raw string, allow Roles) bool {
	role := NormaliseRole(raw)
	if role == "" {
		return false
	}
	return NormaliseRoles(allow.Strings()).Has(role)
}

// RolesForCapability returns the configured roles able to access the capability.
func RolesForCapability(cap Capability) Roles {
	if roles, ok := capabilityRoles[cap]; ok {
		return roles
	}
	return nil
}

// HasCapability reports whether role grants access to the capability. An
// empty capability is always granted.
func HasCapability(role string, capability Capability) bool {
	if capability == "" {
		return true
	}
	return Allowed(role, RolesForCapability(capability))
}

package rbac

import "testing"

func TestHasCapabilityMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		role       string
		capability Capability
		want       bool
	}{
		{
			name:       "member enters member area",
			role:       "member",
			capability: CapMemberArea,
			want:       true,
		},
		{
			name:       "member cannot moderate",
			role:       "member",
			capability: CapModeration,
			want:       false,
		},
		{
			name:       "moderator cannot open admin console",
			role:       "moderator",
			capability: CapAdminConsole,
			want:       false,
		},
		{
			name:       "admin opens console",
			role:       "admin",
			capability: CapAdminConsole,
			want:       true,
		},
		{
			name:       "admin cannot edit site settings",
			role:       "admin",
			capability: CapSiteSettings,
			want:       false,
		},
		{
			name:       "super admin edits site settings",
			role:       "super_admin",
			capability: CapSiteSettings,
			want:       true,
		},
		{
			name:       "undefined capability denied",
			role:       "super_admin",
			capability: Capability("made.up"),
			want:       false,
		},
		{
			name:       "empty capability granted",
			role:       "",
			capability: "",
			want:       true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasCapability(tc.role, tc.capability); got != tc.want {
				t.Fatalf("HasCapability(%q, %q) = %v, want %v", tc.role, tc.capability, got, tc.want)
			}
		})
	}
}

func TestAllowedIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	allow := Roles{RoleAdmin, RoleSuperAdmin}
	for _, raw := range []string{"admin", "ADMIN", " Admin ", "Super_Admin"} {
		if !Allowed(raw, allow) {
			t.Fatalf("expected %q to be allowed", raw)
		}
	}
	for _, raw := range []string{"", "moderator", "administrator"} {
		if Allowed(raw, allow) {
			t.Fatalf("expected %q to be denied", raw)
		}
	}
	if Allowed("admin", nil) {
		t.Fatal("empty allow-list must deny")
	}
}

func TestNormaliseRolesDeduplicates(t *testing.T) {
	t.Parallel()

	roles := NormaliseRoles([]string{"Admin", "admin", " ", "MODERATOR"})
	if len(roles) != 2 || roles[0] != RoleAdmin || roles[1] != RoleModerator {
		t.Fatalf("unexpected roles %v", roles)
	}
	if !roles.Has(RoleModerator) || roles.Has(RoleSuperAdmin) {
		t.Fatal("Has mismatch")
	}
}

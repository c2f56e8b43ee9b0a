package session

import "testing"

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		hasToken bool
		want     Role
	}{
		{"default is viewer", "", false, RoleViewer},
		{"explicit host", "host", false, RoleHost},
		{"token implies host", "", true, RoleHost},
		{"both signals", "host", true, RoleHost},
		{"explicit viewer without token", "viewer", false, RoleViewer},
		{"token wins over explicit viewer", "viewer", true, RoleHost},
		{"unknown role falls back to viewer", "moderator", false, RoleViewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRole(tt.explicit, tt.hasToken); got != tt.want {
				t.Errorf("ResolveRole(%q, %v) = %v, want %v", tt.explicit, tt.hasToken, got, tt.want)
			}
		})
	}
}

func TestRoleDisplay(t *testing.T) {
	if got := RoleHost.Display(); got != "Host" {
		t.Errorf("host display = %q", got)
	}
	if got := RoleViewer.Display(); got != "Viewer" {
		t.Errorf("viewer display = %q", got)
	}
}

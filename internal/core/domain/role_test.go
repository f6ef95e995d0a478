package domain

import "testing"

func TestLandingRoute(t *testing.T) {
	cases := []struct {
		user *User
		want string
	}{
		{nil, RouteLogin},
		{&User{Role: RoleAdmin}, RouteAdminDashboard},
		{&User{Role: RoleVendor}, RouteVendorDashboard},
		{&User{Role: RoleServiceProvider}, RouteServiceProviderDashboard},
		{&User{Role: RoleAffiliate}, RouteAffiliateDashboard},
		{&User{Role: "customer"}, RouteAffiliateDashboard},
		{&User{}, RouteAffiliateDashboard},
	}
	for _, tc := range cases {
		if got := LandingRoute(tc.user); got != tc.want {
			t.Fatalf("LandingRoute(%+v) = %s, want %s", tc.user, got, tc.want)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	if got := NormalizeRole("  "); got != RoleAffiliate {
		t.Fatalf("blank role should default to affiliate, got %q", got)
	}
	if got := NormalizeRole(" vendor "); got != RoleVendor {
		t.Fatalf("expected trimmed vendor, got %q", got)
	}
}

func TestAdmits(t *testing.T) {
	cases := []struct {
		path string
		role Role
		want bool
	}{
		{RouteAdminDashboard, RoleAdmin, true},
		{"/admin", RoleAdmin, true},
		{"/admin/logs", RoleVendor, false},
		{"/administrator", RoleVendor, true},
		{RouteVendorDashboard, RoleVendor, true},
		{RouteVendorDashboard, RoleAffiliate, false},
		{RouteAffiliateDashboard, RoleAffiliate, true},
		{RouteAffiliateDashboard, "customer", true},
		{RouteAffiliateDashboard, RoleServiceProvider, false},
		{"/profile", "customer", true},
	}
	for _, tc := range cases {
		if got := Admits(tc.path, tc.role); got != tc.want {
			t.Fatalf("Admits(%s, %s) = %v, want %v", tc.path, tc.role, got, tc.want)
		}
	}
}

// Every role must be admitted to the route it lands on.
func TestLandingRouteIsAdmitted(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleVendor, RoleServiceProvider, RoleAffiliate, "customer", ""} {
		u := &User{Role: role}
		if landing := LandingRoute(u); !Admits(landing, role) {
			t.Fatalf("role %q lands on %s but is not admitted", role, landing)
		}
	}
}

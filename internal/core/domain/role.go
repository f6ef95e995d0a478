package domain

import "strings"

// Role is the server-assigned category of a user.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleVendor          Role = "vendor"
	RoleServiceProvider Role = "service_provider"
	// RoleAffiliate is the backend's generic "user" role.
	RoleAffiliate Role = "user"
)

// Portal routes a session can land on.
const (
	RouteLogin                    = "/login"
	RouteAdminDashboard           = "/admin/dashboard"
	RouteVendorDashboard          = "/vendor/dashboard"
	RouteServiceProviderDashboard = "/service-provider/dashboard"
	RouteAffiliateDashboard       = "/affiliate/dashboard"
)

// NormalizeRole trims s and falls back to the affiliate role when blank.
func NormalizeRole(s string) Role {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleAffiliate
	}
	return Role(s)
}

// Canonical folds roles the portal has no routes for into the affiliate
// role, so landing and access decisions agree on them.
func (r Role) Canonical() Role {
	switch r {
	case RoleAdmin, RoleVendor, RoleServiceProvider:
		return r
	default:
		return RoleAffiliate
	}
}

// routeRoles lists the role-restricted page routes by path prefix. Routes
// not listed admit every signed-in role.
var routeRoles = []struct {
	prefix string
	roles  []Role
}{
	{"/admin", []Role{RoleAdmin}},
	{RouteVendorDashboard, []Role{RoleVendor}},
	{RouteServiceProviderDashboard, []Role{RoleServiceProvider}},
	{RouteAffiliateDashboard, []Role{RoleAffiliate}},
}

// RolesFor returns the roles admitted to path, or nil when any role is.
func RolesFor(path string) []Role {
	for _, r := range routeRoles {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.roles
		}
	}
	return nil
}

// Admits reports whether a user with role may visit path.
func Admits(path string, role Role) bool {
	roles := RolesFor(path)
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role.Canonical() {
			return true
		}
	}
	return false
}

// LandingRoute maps a user to the dashboard it lands on after login.
// A nil user lands on the login page; unknown roles land on the affiliate
// dashboard.
func LandingRoute(u *User) string {
	if u == nil {
		return RouteLogin
	}
	switch u.Role.Canonical() {
	case RoleAdmin:
		return RouteAdminDashboard
	case RoleVendor:
		return RouteVendorDashboard
	case RoleServiceProvider:
		return RouteServiceProviderDashboard
	default:
		return RouteAffiliateDashboard
	}
}

package session

import (
	"slices"

	"github.com/plantitas/plantitas/pkg/shopapi"
)

// Route is a section of the application guarded by role.
type Route string

const (
	RouteShop      Route = "shop"
	RouteInventory Route = "inventory"
	RouteOrders    Route = "orders"
	RouteDashboard Route = "dashboard"
)

// routeRoles lists the roles allowed on each route. Routes not listed, and the dashboard,
// are open to any authenticated user.
var routeRoles = map[Route][]string{
	RouteShop:      {shopapi.RoleVendedor, shopapi.RoleAdmin},
	RouteInventory: {shopapi.RoleBodeguero, shopapi.RoleAdmin},
	RouteOrders:    {shopapi.RoleVendedor, shopapi.RoleAdmin},
}

// Allowed reports whether role may use route. Admin always may. An empty role is allowed,
// leaving the decision to the authentication check.
func Allowed(route Route, role string) bool {
	if role == "" || role == shopapi.RoleAdmin {
		return true
	}
	roles, guarded := routeRoles[route]
	if !guarded {
		return true
	}
	return slices.Contains(roles, role)
}

// Authorize checks the stored session against route without calling the backend.
func (s *Session) Authorize(route Route) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	if !Allowed(route, s.Role()) {
		return ErrForbidden.Msg("your role (" + s.Role() + ") cannot access " + string(route))
	}
	return nil
}

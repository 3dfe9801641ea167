package session

import "strings"

// Route is a top-level destination the UI layer should land on.
type Route string

const (
	RouteLanding Route = "/auth/landingpage"
	RouteLogin   Route = "/auth/login"
	RouteHome    Route = "/main/drawers"
)

// authenticatedArea is the route prefix of the signed-in part of the app.
const authenticatedArea = "/main"

// unauthenticatedRoute picks where a signed-out user lands: users thrown
// out of the authenticated area go straight to login, everyone else to
// the landing page.
func unauthenticatedRoute(currentRoute string) Route {
	if strings.HasPrefix(currentRoute, authenticatedArea) {
		return RouteLogin
	}
	return RouteLanding
}

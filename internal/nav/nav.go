// Package nav defines the app's routes and the navigation capability that
// pages, guards and the session store depend on instead of any concrete
// front-end.
package nav

// Application routes.
const (
	RouteLanding      = "/"
	RouteFeed         = "/home"
	RouteProfileSetup = "/profile-setup"
)

// Navigator swaps the current route. Implementations must be safe to call
// from the UI goroutine only.
type Navigator interface {
	// Replace navigates to route without leaving a history entry.
	Replace(route string)
	// Push navigates to route, keeping the current one in history.
	Push(route string)
}

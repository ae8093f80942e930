// Package guard decides whether a route renders, waits for the session to
// settle, or redirects elsewhere.
package guard

import (
	"fmt"

	"github.com/romato/romato/internal/models"
	"github.com/romato/romato/internal/session"
)

// Well-known routes.
const (
	HomeRoute             = "/"
	LoginRoute            = session.LoginRoute
	SignupRoute           = "/signup"
	AdminRoute            = "/admin"
	PartnerDashboardRoute = "/partner/dashboard"
)

// Status is the session as the guards see it.
type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// StatusOf maps a session snapshot to a guard status. Anything still
// rehydrating is Unknown, so no decision is made before the refresh settles.
func StatusOf(st session.State) Status {
	switch {
	case st.Initializing():
		return StatusUnknown
	case st.Authenticated():
		return StatusAuthenticated
	default:
		return StatusAnonymous
	}
}

// Action is what the caller should do with a route.
type Action int

const (
	// Wait means show a placeholder and do not navigate.
	Wait Action = iota
	Render
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "wait"
	}
}

// Decision is the outcome of evaluating a guard.
type Decision struct {
	Action Action
	Target string
}

// RedirectError carries a redirect decision to callers that cannot navigate.
type RedirectError struct {
	Target string
}

func (e *RedirectError) Error() string {
	if e.Target == LoginRoute {
		return "login required"
	}
	return fmt.Sprintf("not available here, continue at %s", e.Target)
}

// Err returns a *RedirectError for redirect decisions and nil otherwise.
func (d Decision) Err() error {
	if d.Action != Redirect {
		return nil
	}
	return &RedirectError{Target: d.Target}
}

// LandingFor returns where an authenticated user of role belongs.
func LandingFor(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return AdminRoute
	case models.RoleRestaurantManager:
		return PartnerDashboardRoute
	default:
		return HomeRoute
	}
}

// Protected guards pages that need a signed in user.
func Protected(status Status) Decision {
	switch status {
	case StatusAuthenticated:
		return Decision{Action: Render}
	case StatusAnonymous:
		return Decision{Action: Redirect, Target: LoginRoute}
	default:
		return Decision{Action: Wait}
	}
}

// Public guards pages that only make sense for anonymous visitors, such as
// login and signup. Signed in users are sent to their landing page.
func Public(status Status, role models.Role) Decision {
	switch status {
	case StatusAnonymous:
		return Decision{Action: Render}
	case StatusAuthenticated:
		return Decision{Action: Redirect, Target: LandingFor(role)}
	default:
		return Decision{Action: Wait}
	}
}

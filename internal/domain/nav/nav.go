// Package nav maps authentication and role state onto reachable views.
//
// Guards are evaluated on every navigation event, not just on first render:
// role and authentication can change without a reload, and a logout while
// viewing an admin page must redirect immediately. Forbidden destinations
// resolve to silent redirects, never to visible errors.
package nav

import (
	"sync"

	"github.com/gradepredict/console/internal/domain/model"
)

// Destination is one navigable view.
type Destination string

const (
	DestLogin     Destination = "login"
	DestDashboard Destination = "dashboard"
	DestRoster    Destination = "roster-management"
	DestPredict   Destination = "predict"
	DestHistory   Destination = "history"
	DestResult    Destination = "result"
)

// Router resolves destinations against the current session and owns the
// single-slot hand-off channel for the transient prediction result.
type Router struct {
	mu      sync.Mutex
	current Destination
	slot    *model.PredictionResult
}

// New creates a Router positioned at the login view.
func New() *Router {
	return &Router{current: DestLogin}
}

// Resolve returns the destination actually reached when sess attempts to
// navigate to dest. Pure rule table; no state is changed.
func Resolve(dest Destination, sess model.Session) Destination {
	if !sess.Authenticated {
		return DestLogin
	}

	admin := sess.User.IsAdmin()
	switch dest {
	case DestRoster, DestPredict, DestResult:
		return dest
	case DestDashboard, DestHistory:
		if admin {
			return dest
		}
		return DestRoster
	default:
		// Unknown path.
		if admin {
			return DestDashboard
		}
		return DestRoster
	}
}

// AfterLogin returns the one-time post-login destination for a user. This is
// a redirect issued once on login success, not a rule re-evaluated per render.
func AfterLogin(user *model.User) Destination {
	if user.IsAdmin() {
		return DestDashboard
	}
	return DestRoster
}

// Navigate resolves dest, makes the outcome the active view, and drops the
// result slot whenever the result view is not the active destination.
func (r *Router) Navigate(dest Destination, sess model.Session) Destination {
	resolved := Resolve(dest, sess)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = resolved
	if resolved != DestResult {
		r.slot = nil
	}
	return resolved
}

// HandOff stores a freshly produced prediction result and navigates to the
// result view. The result travels only through this slot, never through the
// roster cache or any durable store.
func (r *Router) HandOff(res *model.PredictionResult, sess model.Session) Destination {
	resolved := Resolve(DestResult, sess)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = resolved
	if resolved == DestResult {
		r.slot = res
	} else {
		r.slot = nil
	}
	return resolved
}

// Result returns the handed-off prediction, if any. An empty slot is a
// defined state for the result view, not an error.
func (r *Router) Result() (*model.PredictionResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot, r.slot != nil
}

// Current returns the active destination.
func (r *Router) Current() Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

package portal

import "github.com/tsacademy/academia/core/user"

// Guard actions
const (
	ActionWait     = "wait"
	ActionRedirect = "redirect"
	ActionRender   = "render"
)

// AuthState is the session snapshot the guard evaluates. Loading is true
// until the first auth notification resolves; Identity is nil when
// unauthenticated.
type AuthState struct {
	Identity *user.Identity
	Loading  bool
}

// Decision is the guard's verdict for one route evaluation.
type Decision struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// Evaluate gates a route declaring an allowed-roles set. It is a pure
// function of (state, allowed) and must be re-evaluated on every state
// change, not only on mount:
//   - while the session is loading, wait — never redirect, so an
//     authenticated user is not flashed to the login page;
//   - no identity: redirect to the login entry point (the original
//     destination is not preserved);
//   - identity present but role not in a non-empty allowed set: redirect
//     to the public landing route, distinguishing wrong-role from
//     unauthenticated;
//   - otherwise render. An empty allowed set admits any authenticated user.
func Evaluate(state AuthState, allowed []string) Decision {
	if state.Loading {
		return Decision{Action: ActionWait}
	}
	if state.Identity == nil {
		return Decision{Action: ActionRedirect, Target: LoginPath}
	}
	if len(allowed) > 0 {
		for _, role := range allowed {
			if state.Identity.Role == role {
				return Decision{Action: ActionRender}
			}
		}
		return Decision{Action: ActionRedirect, Target: LandingPath}
	}
	return Decision{Action: ActionRender}
}

// GuardPath evaluates the full navigable surface for a path: public
// routes always render, unmatched paths redirect to the landing route,
// and guarded routes defer to Evaluate.
func GuardPath(state AuthState, path string) Decision {
	allowed, known := RequiredRoles(path)
	if !known {
		return Decision{Action: ActionRedirect, Target: LandingPath}
	}
	if allowed == nil {
		return Decision{Action: ActionRender}
	}
	return Evaluate(state, allowed)
}

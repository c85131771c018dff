package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/tsacademy/academia/core/portal"
	"github.com/tsacademy/academia/core/user"
)

// roleMiddleware gates a route group on the given allowed roles. The
// verdict comes from the same evaluation the portal guard endpoint
// exposes, so the HTTP surface and the navigation surface cannot drift:
// unauthenticated requests get 401, wrong-role requests get 403.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			state := portal.AuthState{}
			if claims, err := getContextClaims(ctx); err == nil {
				state.Identity = claims.identity()
			}

			decision := portal.Evaluate(state, roles)
			switch {
			case decision.Action == portal.ActionRender:
				return next(ctx)
			case decision.Target == portal.LoginPath:
				return errUnauthorized
			default:
				return errHttpForbidden
			}
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

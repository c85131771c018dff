package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/portal"
)

type portalApi struct {
	deps *ServerDeps
}

func registerPortalAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := portalApi{deps: deps}

	pg := g.Group("/portal")
	// guard answers for unauthenticated callers too; auth is optional here
	pg.GET("/guard", api.guard)
	pg.GET("/nav", api.nav, jwt)
}

// guard evaluates the navigable surface for a path on behalf of the
// caller and returns the wait/redirect/render verdict.
func (api *portalApi) guard(ctx echo.Context) error {
	path := ctx.QueryParam("path")
	if path == "" {
		path = portal.LandingPath
	}
	state := api.stateFromRequest(ctx)
	return ctx.JSON(http.StatusOK, portal.GuardPath(state, path))
}

// nav returns the caller's section tree, base path and default tab.
func (api *portalApi) nav(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// an unrecognized role reaching the navigation config is a
	// data-integrity failure: no fallback menu, halt instead
	entries, err := portal.Nav(claims.Role)
	if err != nil {
		return core.NewShutdownError(err.Error())
	}
	basePath, err := portal.BasePath(claims.Role)
	if err != nil {
		return core.NewShutdownError(err.Error())
	}
	defaultTab, err := portal.DefaultTab(claims.Role)
	if err != nil {
		return core.NewShutdownError(err.Error())
	}

	return ctx.JSON(http.StatusOK, NavResponse{
		Role:       claims.Role,
		BasePath:   basePath,
		DefaultTab: defaultTab,
		Entries:    entries,
	})
}

// stateFromRequest rebuilds the caller's auth state from the bearer
// token, if any. Invalid or absent tokens mean unauthenticated, never an
// error: the guard's verdict is the answer.
func (api *portalApi) stateFromRequest(ctx echo.Context) portal.AuthState {
	claims := maybeGetClaims(ctx, api.deps.Conf)
	if claims == nil {
		return portal.AuthState{}
	}
	return portal.AuthState{Identity: claims.identity()}
}

type NavResponse struct {
	Role       string            `json:"role"`
	BasePath   string            `json:"base_path"`
	DefaultTab string            `json:"default_tab"`
	Entries    []portal.NavEntry `json:"entries"`
}

package echoapi

import (
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/user"
)

var errIdtNotFoundInCtx = errors.New("identity object not found in echo.Context")

type userApi struct {
	deps *ServerDeps
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := userApi{deps: deps}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ug.POST("/register", api.create)
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("", api.query, adminMiddleware())
	ag.GET("/count", api.count, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxIdentityOrAdminMiddleware(deps))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

// create enrolls a new identity. Sign-up is open and the caller picks
// their role from the closed set, but admin accounts can only be
// enrolled by an existing admin (or the admin CLI).
func (api *userApi) create(ctx echo.Context) error {
	var data user.NewIdentity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIdentity")
	}
	if err := data.Validate(api.deps.Validate, api.deps.UserSvc); err != nil {
		return err
	}

	if data.Role == user.RoleAdmin {
		clms := maybeGetClaims(ctx, api.deps.Conf)
		if clms == nil || !clms.IsAdmin {
			return errHttpForbidden
		}
	}

	idt, err := api.deps.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering identity")
	}
	return ctx.JSON(http.StatusCreated, idt)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.deps)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.deps.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetIdentityPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetIdentityPassword")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) me(ctx echo.Context) error {
	idt, err := getContextIdentity(ctx, api.deps)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	return ctx.JSON(http.StatusOK, idt)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.Identity{})
	}
	filter.Clean()
	qo := new(QueryOpts)
	qo.Bind(ctx, "created_at", "name")

	idts, err := api.deps.UserSvc.Filter(ctx.Request().Context(), *filter, qo.Opts)
	if err != nil {
		return errors.Wrap(err, "querying identities")
	}
	if idts == nil {
		idts = []user.Identity{}
	}
	return ctx.JSON(http.StatusOK, idts)
}

func (api *userApi) count(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, CountResponse{})
	}
	filter.Clean()

	count, err := api.deps.UserSvc.Count(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "counting identities")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	idt, ok := ctx.Get("object").(user.Identity)
	if !ok {
		return errors.Wrap(errIdtNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, idt)
}

func (api *userApi) update(ctx echo.Context) error {
	idt, ok := ctx.Get("object").(user.Identity)
	if !ok {
		return errors.Wrap(errIdtNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateIdentity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateIdentity")
	}

	ctxIdt, err := getContextIdentity(ctx, api.deps)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	if !ctxIdt.IsAdmin() {
		// `IsActive`, `Email` and `ClassID` can only be changed by admin
		if data.IsActive != nil || data.Email != "" || data.ClassID != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(idt, api.deps.Validate, api.deps.UserSvc); err != nil {
		return err
	}

	idt, err = api.deps.UserSvc.Update(ctx.Request().Context(), idt.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating identity")
	}
	return ctx.JSON(http.StatusOK, idt)
}

func (api *userApi) destroy(ctx echo.Context) error {
	idt, ok := ctx.Get("object").(user.Identity)
	if !ok {
		return errors.Wrap(errIdtNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxIdentity cannot delete themselves
	ctxIdt, err := getContextIdentity(ctx, api.deps)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	if idt.ID == ctxIdt.ID {
		return errHttpForbidden
	}

	if err := api.deps.UserSvc.Delete(ctx.Request().Context(), idt.ID); err != nil {
		return errors.Wrap(err, "deleting identity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxIdentity cannot delete themselves
	ctxIdt, err := getContextIdentity(ctx, api.deps)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxIdt.ID); i < len(query.IDs) {
		if match := query.IDs[i]; ctxIdt.ID == match {
			return errHttpForbidden
		}
	}

	if err := api.deps.UserSvc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting identities")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.deps)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// ctxIdentityOrAdminMiddleware allows access to a detail route only to the
// identity it belongs to or to an admin; anyone else gets a 404, not a
// 403, so ids are not probeable.
func ctxIdentityOrAdminMiddleware(deps *ServerDeps) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxIdt, err := getContextIdentity(ctx, deps)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}

			if ctx.Param("id") == ctxIdt.ID || ctxIdt.IsAdmin() {
				if idt, err := deps.UserSvc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", idt)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding identity by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

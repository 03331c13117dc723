package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/session"
)

type accountApi struct {
	auth     *authenticator
	svc      *account.Service
	validate *validator.Validate
}

func registerAccountAPI(
	e *echo.Echo,
	authed echo.MiddlewareFunc,
	auth *authenticator,
	svc *account.Service,
	validate *validator.Validate,
) {
	api := accountApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	// un-authed endpoints
	e.POST("/register", api.register)
	e.POST("/login", api.login)

	// authed endpoints
	e.POST("/logout", api.logout, authed)
	e.POST("/api/toggle-theme", api.toggleTheme, authed)
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	p, err := api.svc.CreateAccount(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	token, err := api.auth.login(ctx, p)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, Principal: p})
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidCredentials:
			return core.NewValidationError(account.ErrInvalidCredentials)
		case account.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.login(ctx, p)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Principal: p})
}

func (api *accountApi) logout(ctx echo.Context) error {
	if err := api.auth.logout(ctx); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// toggleTheme stores the UI theme on the session; a malformed body is reported as {"success": false}.
func (api *accountApi) toggleTheme(ctx echo.Context) error {
	var data ThemeRequest
	if err := ctx.Bind(&data); err != nil {
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: false})
	}
	if data.Theme == "" {
		data.Theme = session.ThemeLight
	}
	if data.Theme != session.ThemeLight && data.Theme != session.ThemeDark {
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: false})
	}

	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	sess.Theme = data.Theme
	if err = api.auth.sessions.Save(ctx.Request().Context(), sess); err != nil {
		return errors.Wrap(err, "saving session")
	}
	return ctx.JSON(http.StatusOK, ThemeResponse{Success: true, Theme: sess.Theme})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token     string            `json:"token"`
		Principal account.Principal `json:"principal"`
	}

	ThemeRequest struct {
		Theme string `json:"theme"`
	}

	ThemeResponse struct {
		Success bool   `json:"success"`
		Theme   string `json:"theme"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

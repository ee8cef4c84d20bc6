package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/pizzeria/internal/account"
	"github.com/talkincode/pizzeria/internal/webserver"
)

type registerPayload struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type tokenPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profilePayload struct {
	Phone   string `json:"phone" validate:"omitempty,max=15"`
	Address string `json:"address" validate:"omitempty,max=2000"`
}

func registerUserRoutes() {
	webserver.PublicPOST("/user/register", registerUser)
	webserver.PublicPOST("/user/token", obtainToken)
	webserver.ApiGET("/user/profile", getProfile)
	webserver.ApiPUT("/user/profile", updateProfile)
}

func registerUser(c echo.Context) error {
	var payload registerPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse registration", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	u, err := GetAppContext(c).Accounts().Register(c.Request().Context(), account.RegisterInput{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return handleError(c, err)
	}
	return created(c, u)
}

func obtainToken(c echo.Context) error {
	var payload tokenPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse credentials", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	tok, u, err := GetAppContext(c).Accounts().Login(c.Request().Context(), payload.Username, payload.Password)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, map[string]interface{}{
		"access":     tok.Access,
		"expires_at": tok.ExpiresAt,
		"user":       u,
	})
}

func getProfile(c echo.Context) error {
	p, err := GetAppContext(c).Accounts().GetProfile(c.Request().Context(), actor(c))
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, p)
}

func updateProfile(c echo.Context) error {
	var payload profilePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse profile", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	p, err := GetAppContext(c).Accounts().UpdateProfile(c.Request().Context(), actor(c), account.ProfileInput{
		Phone:   payload.Phone,
		Address: payload.Address,
	})
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, p)
}

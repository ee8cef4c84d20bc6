// Package adminapi holds the HTTP handlers. Handlers bind and validate the
// request, call a core service with the authenticated actor and render the
// result in the response envelope.
package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/app"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/webserver"
)

// Init registers every API route on the global web server.
func Init() {
	registerUserRoutes()
	registerMenuItemRoutes()
	registerToppingRoutes()
	registerOrderRoutes()
	registerOrderItemRoutes()
	registerChargeRoutes()
}

func GetAppContext(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

func actor(c echo.Context) *access.Actor {
	return webserver.ActorFromContext(c)
}

// requireCatalog rejects catalog writes from unprivileged actors before the
// request body is read.
func requireCatalog(kind access.Kind, op access.Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := access.Require(actor(c), op, access.On(kind)); err != nil {
				return handleError(c, err)
			}
			return next(c)
		}
	}
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"data": data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, map[string]interface{}{"data": data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":     data,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	body := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	return c.JSON(status, map[string]interface{}{"error": body})
}

// handleError renders an error returned by a core service.
func handleError(c echo.Context, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		var details interface{}
		if ae.Field != "" {
			details = map[string]string{ae.Field: ae.Message}
		}
		return fail(c, apperr.HTTPStatus(err), ae.Code, ae.Message, details)
	}
	zap.L().Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[jsonFieldName(fe.Field())] = validationMessage(fe)
		}
		return fail(c, http.StatusBadRequest, "INVALID_FIELD", "Request validation failed", details)
	}
	return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "email":
		return "enter a valid email address"
	case "url":
		return "enter a valid URL"
	}
	return "invalid value (" + fe.Tag() + ")"
}

// jsonFieldName turns a Go field name such as PriceSmall into price_small.
func jsonFieldName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parsePagination(c echo.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := 20
	for _, key := range []string{"perPage", "pageSize"} {
		if ps, err := strconv.Atoi(c.QueryParam(key)); err == nil && ps > 0 && ps <= 500 {
			pageSize = ps
			break
		}
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return cast.ToInt64E(c.Param(name))
}

// flexID is an id sent either as a JSON string or a JSON number.
type flexID int64

func (id *flexID) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(strings.Trim(string(b), `"`), 10, 64)
	if err != nil || v <= 0 {
		return errors.Errorf("invalid id %s", b)
	}
	*id = flexID(v)
	return nil
}

func idList(ids []flexID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

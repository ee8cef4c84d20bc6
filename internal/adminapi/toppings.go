package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/catalog"
	"github.com/talkincode/pizzeria/internal/webserver"
)

type toppingPayload struct {
	Name  string           `json:"name" validate:"required,min=1,max=100"`
	Price *decimal.Decimal `json:"price" validate:"required"`
}

// registerToppingRoutes registers topping CRUD routes
func registerToppingRoutes() {
	webserver.ApiGET("/toppings", listToppings)
	webserver.ApiGET("/toppings/:id", getTopping)
	webserver.ApiPOST("/toppings", createTopping, requireCatalog(access.Topping, access.OpCreate))
	webserver.ApiPUT("/toppings/:id", updateTopping, requireCatalog(access.Topping, access.OpUpdate))
	webserver.ApiDELETE("/toppings/:id", deleteTopping, requireCatalog(access.Topping, access.OpDelete))
}

func listToppings(c echo.Context) error {
	page, pageSize := parsePagination(c)
	rows, total, err := GetAppContext(c).Catalog().ListToppings(c.Request().Context(), actor(c), catalog.Filter{
		Query:    c.QueryParam("q"),
		Page:     page,
		PageSize: pageSize,
		Sort:     strings.TrimSpace(c.QueryParam("sort")),
		Order:    c.QueryParam("order"),
	})
	if err != nil {
		return handleError(c, err)
	}
	return paged(c, rows, total, page, pageSize)
}

func getTopping(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid topping ID", nil)
	}
	t, err := GetAppContext(c).Catalog().GetTopping(c.Request().Context(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, t)
}

func createTopping(c echo.Context) error {
	var payload toppingPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse topping", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	t, err := GetAppContext(c).Catalog().CreateTopping(c.Request().Context(), actor(c), catalog.ToppingInput{
		Name:  payload.Name,
		Price: *payload.Price,
	})
	if err != nil {
		return handleError(c, err)
	}
	return created(c, t)
}

func updateTopping(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid topping ID", nil)
	}
	var payload toppingPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse topping", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	t, err := GetAppContext(c).Catalog().UpdateTopping(c.Request().Context(), actor(c), id, catalog.ToppingInput{
		Name:  payload.Name,
		Price: *payload.Price,
	})
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, t)
}

func deleteTopping(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid topping ID", nil)
	}
	if err := GetAppContext(c).Catalog().DeleteTopping(c.Request().Context(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

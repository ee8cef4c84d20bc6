package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/catalog"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/webserver"
)

type menuItemPayload struct {
	Name        string           `json:"name" validate:"required,min=1,max=100"`
	PriceSmall  domain.NullMoney `json:"price_small"`
	PriceLarge  domain.NullMoney `json:"price_large"`
	Category    string           `json:"category" validate:"required,oneof=Pizza Breads Deserts"`
	Description string           `json:"description" validate:"omitempty,max=4000"`
	Image       string           `json:"image_url" validate:"omitempty,max=1024"`
}

func (p *menuItemPayload) input() catalog.MenuItemInput {
	return catalog.MenuItemInput{
		Name:        p.Name,
		PriceSmall:  p.PriceSmall,
		PriceLarge:  p.PriceLarge,
		Category:    domain.Category(p.Category),
		Description: p.Description,
		Image:       p.Image,
	}
}

// registerMenuItemRoutes registers menu item CRUD endpoints
func registerMenuItemRoutes() {
	webserver.ApiGET("/menuitems", listMenuItems)
	webserver.ApiGET("/menuitems/:id", getMenuItem)
	webserver.ApiPOST("/menuitems", createMenuItem, requireCatalog(access.MenuItem, access.OpCreate))
	webserver.ApiPUT("/menuitems/:id", updateMenuItem, requireCatalog(access.MenuItem, access.OpUpdate))
	webserver.ApiDELETE("/menuitems/:id", deleteMenuItem, requireCatalog(access.MenuItem, access.OpDelete))
}

func listMenuItems(c echo.Context) error {
	page, pageSize := parsePagination(c)
	rows, total, err := GetAppContext(c).Catalog().ListMenuItems(c.Request().Context(), actor(c), catalog.Filter{
		Query:    c.QueryParam("q"),
		Category: domain.Category(strings.TrimSpace(c.QueryParam("category"))),
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

func getMenuItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid menu item ID", nil)
	}
	m, err := GetAppContext(c).Catalog().GetMenuItem(c.Request().Context(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, m)
}

func createMenuItem(c echo.Context) error {
	var payload menuItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse menu item", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	m, err := GetAppContext(c).Catalog().CreateMenuItem(c.Request().Context(), actor(c), payload.input())
	if err != nil {
		return handleError(c, err)
	}
	return created(c, m)
}

func updateMenuItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid menu item ID", nil)
	}
	var payload menuItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse menu item", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	m, err := GetAppContext(c).Catalog().UpdateMenuItem(c.Request().Context(), actor(c), id, payload.input())
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, m)
}

func deleteMenuItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid menu item ID", nil)
	}
	if err := GetAppContext(c).Catalog().DeleteMenuItem(c.Request().Context(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

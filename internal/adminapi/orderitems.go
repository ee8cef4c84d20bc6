package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/order"
	"github.com/talkincode/pizzeria/internal/webserver"
)

type orderItemPayload struct {
	Order    flexID   `json:"order" validate:"required"`
	Item     flexID   `json:"item" validate:"required"`
	Size     string   `json:"size" validate:"required,oneof=S L"`
	Quantity *int     `json:"quantity" validate:"omitempty,gt=0"`
	Toppings []flexID `json:"toppings"`
}

// Absent fields are left unchanged; a present toppings list replaces the set.
type orderItemUpdatePayload struct {
	Size     *string   `json:"size" validate:"omitempty,oneof=S L"`
	Quantity *int      `json:"quantity" validate:"omitempty,gt=0"`
	Toppings *[]flexID `json:"toppings"`
}

func registerOrderItemRoutes() {
	webserver.ApiGET("/orderitems", listOrderItems)
	webserver.ApiGET("/orderitems/:id", getOrderItem)
	webserver.ApiPOST("/orderitems", createOrderItem)
	webserver.ApiPUT("/orderitems/:id", updateOrderItem)
	webserver.ApiPATCH("/orderitems/:id", updateOrderItem)
	webserver.ApiDELETE("/orderitems/:id", deleteOrderItem)
}

func listOrderItems(c echo.Context) error {
	page, pageSize := parsePagination(c)
	f := order.Filter{Page: page, PageSize: pageSize}
	if v := c.QueryParam("order"); v != "" {
		id, err := cast.ToInt64E(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
		}
		f.OrderID = id
	}
	rows, total, err := GetAppContext(c).Orders().ListItems(c.Request().Context(), actor(c), f)
	if err != nil {
		return handleError(c, err)
	}
	return paged(c, rows, total, page, pageSize)
}

func getOrderItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order item ID", nil)
	}
	item, err := GetAppContext(c).Orders().GetItem(c.Request().Context(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, item)
}

func createOrderItem(c echo.Context) error {
	var payload orderItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order item", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	quantity := 1
	if payload.Quantity != nil {
		quantity = *payload.Quantity
	}

	item, err := GetAppContext(c).Orders().AddItem(c.Request().Context(), actor(c), order.ItemInput{
		OrderID:    int64(payload.Order),
		MenuItemID: int64(payload.Item),
		Size:       domain.Size(payload.Size),
		Quantity:   quantity,
		ToppingIDs: idList(payload.Toppings),
	})
	if err != nil {
		return handleError(c, err)
	}
	return created(c, item)
}

func updateOrderItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order item ID", nil)
	}
	var payload orderItemUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order item", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var patch order.ItemPatch
	if payload.Size != nil {
		size := domain.Size(*payload.Size)
		patch.Size = &size
	}
	patch.Quantity = payload.Quantity
	if payload.Toppings != nil {
		toppings := idList(*payload.Toppings)
		patch.ToppingIDs = &toppings
	}

	item, err := GetAppContext(c).Orders().UpdateItem(c.Request().Context(), actor(c), id, patch)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, item)
}

func deleteOrderItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order item ID", nil)
	}
	if err := GetAppContext(c).Orders().RemoveItem(c.Request().Context(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/order"
	"github.com/talkincode/pizzeria/internal/webserver"
)

// Only the status of an order is client-writable; owner and total are
// assigned by the server.
type orderUpdatePayload struct {
	Status string `json:"status" validate:"required,oneof=Pending Completed"`
}

type orderCompletePayload struct {
	IDs []flexID `json:"ids" validate:"required,min=1"`
}

func registerOrderRoutes() {
	webserver.ApiGET("/orders", listOrders)
	webserver.ApiGET("/orders/:id", getOrder)
	webserver.ApiPOST("/orders", createOrder)
	webserver.ApiPOST("/orders/complete", completeOrders)
	webserver.ApiPUT("/orders/:id", updateOrder)
	webserver.ApiPATCH("/orders/:id", updateOrder)
	webserver.ApiDELETE("/orders/:id", deleteOrder)
}

func listOrders(c echo.Context) error {
	page, pageSize := parsePagination(c)
	rows, total, err := GetAppContext(c).Orders().ListOrders(c.Request().Context(), actor(c), order.Filter{
		Status:   domain.OrderStatus(strings.TrimSpace(c.QueryParam("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, err)
	}
	return paged(c, rows, total, page, pageSize)
}

func getOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	o, err := GetAppContext(c).Orders().GetOrder(c.Request().Context(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, o)
}

// createOrder ignores the request body: a new order is always empty and owned
// by the caller.
func createOrder(c echo.Context) error {
	o, err := GetAppContext(c).Orders().CreateOrder(c.Request().Context(), actor(c))
	if err != nil {
		return handleError(c, err)
	}
	return created(c, o)
}

func updateOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload orderUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	o, err := GetAppContext(c).Orders().UpdateOrder(c.Request().Context(), actor(c), id, domain.OrderStatus(payload.Status))
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, o)
}

func deleteOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	if err := GetAppContext(c).Orders().DeleteOrder(c.Request().Context(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// completeOrders marks the selected orders as completed (staff only).
func completeOrders(c echo.Context) error {
	var payload orderCompletePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order ids", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	n, err := GetAppContext(c).Orders().CompleteOrders(c.Request().Context(), actor(c), idList(payload.IDs))
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, map[string]interface{}{"completed": n})
}

package adminapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/talkincode/pizzeria/internal/payment"
	"github.com/talkincode/pizzeria/internal/webserver"
)

// chargePayload has no user, timestamp, charge id or paid field: those are
// always assigned by the server.
type chargePayload struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"omitempty,max=255"`
	Token       string           `json:"token" validate:"required"`
	ReturnURL   string           `json:"return_url" validate:"omitempty,url"`
}

func registerChargeRoutes() {
	webserver.ApiPOST("/charge", createCharge)
	webserver.ApiGET("/transactions", listTransactions)
	webserver.ApiGET("/transactions/export", exportTransactions)
}

func createCharge(c echo.Context) error {
	var payload chargePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse charge", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	txn, err := GetAppContext(c).Payments().Capture(c.Request().Context(), actor(c), payment.CaptureRequest{
		Amount:      *payload.Amount,
		Description: payload.Description,
		Token:       payload.Token,
		ReturnURL:   payload.ReturnURL,
	})
	if err != nil {
		return handleError(c, err)
	}
	return created(c, txn)
}

func listTransactions(c echo.Context) error {
	page, pageSize := parsePagination(c)
	rows, total, err := GetAppContext(c).Payments().ListTransactions(c.Request().Context(), actor(c), payment.Filter{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, err)
	}
	return paged(c, rows, total, page, pageSize)
}

func exportTransactions(c echo.Context) error {
	var buf bytes.Buffer
	if _, err := GetAppContext(c).Payments().ExportCSV(c.Request().Context(), actor(c), &buf); err != nil {
		return handleError(c, err)
	}
	filename := fmt.Sprintf("transactions-%s.csv", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

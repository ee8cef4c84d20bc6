package payment

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/storetest"
)

type fakeGateway struct {
	charge *Charge
	err    error
	calls  []ChargeRequest
}

func (g *fakeGateway) CreateCharge(_ context.Context, req ChargeRequest) (*Charge, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.charge, nil
}

func countTransactions(t *testing.T, svc *Service) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.db.Model(&domain.Transaction{}).Count(&n).Error)
	return n
}

func TestMinorUnits(t *testing.T) {
	n, err := MinorUnits(decimal.RequireFromString("20.00"))
	require.NoError(t, err)
	assert.EqualValues(t, 2000, n)

	n, err = MinorUnits(decimal.RequireFromString("0.07"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	for _, bad := range []string{"0", "-5.00", "1.005"} {
		_, err := MinorUnits(decimal.RequireFromString(bad))
		assert.True(t, errors.Is(err, apperr.ErrValidation), bad)
	}
}

func TestCaptureSuccess(t *testing.T) {
	db := storetest.Open(t)
	user := storetest.CreateUser(t, db, "alice", false)
	actor := &access.Actor{UserID: user.ID, Username: user.Username}
	gw := &fakeGateway{charge: &Charge{ID: "pi_123", Status: "succeeded"}}
	svc := NewService(db, gw)

	txn, err := svc.Capture(context.Background(), actor, CaptureRequest{
		Amount:    decimal.RequireFromString("20.00"),
		Token:     "pm_card_visa",
		ReturnURL: "https://example.com/done",
	})
	require.NoError(t, err)
	assert.True(t, txn.Paid)
	assert.Equal(t, "20.00", txn.Amount.String())
	assert.Equal(t, "pi_123", txn.StripeChargeID)
	assert.Equal(t, user.ID, txn.UserID)
	assert.Equal(t, defaultDescription, txn.Description)
	assert.False(t, txn.Timestamp.IsZero())

	require.Len(t, gw.calls, 1)
	assert.EqualValues(t, 2000, gw.calls[0].AmountMinor)
	assert.Equal(t, "usd", gw.calls[0].Currency)
	assert.Equal(t, "pm_card_visa", gw.calls[0].Token)

	var stored domain.Transaction
	require.NoError(t, db.First(&stored, txn.ID).Error)
	assert.True(t, stored.Paid)
	assert.Equal(t, "20.00", stored.Amount.String())
}

func TestCaptureRequiresCaptureCountsAsPaid(t *testing.T) {
	db := storetest.Open(t)
	svc := NewService(db, &fakeGateway{charge: &Charge{ID: "pi_9", Status: "requires_capture"}})
	txn, err := svc.Capture(context.Background(), &access.Actor{UserID: 5}, CaptureRequest{
		Amount: decimal.RequireFromString("9.99"), Token: "tok", Description: "Order #5",
	})
	require.NoError(t, err)
	assert.True(t, txn.Paid)
	assert.Equal(t, "Order #5", txn.Description)
}

func TestCaptureDeclined(t *testing.T) {
	db := storetest.Open(t)
	gw := &fakeGateway{err: &ProviderError{Code: "card_declined", Message: "Your card was declined."}}
	svc := NewService(db, gw)

	_, err := svc.Capture(context.Background(), &access.Actor{UserID: 5}, CaptureRequest{
		Amount: decimal.RequireFromString("20.00"), Token: "pm_card_chargeDeclined",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGateway))
	assert.Contains(t, strings.ToLower(err.Error()), "declined")
	assert.Zero(t, countTransactions(t, svc))
}

func TestCaptureUnsettledStatus(t *testing.T) {
	db := storetest.Open(t)
	svc := NewService(db, &fakeGateway{charge: &Charge{ID: "pi_3", Status: "requires_action"}})

	_, err := svc.Capture(context.Background(), &access.Actor{UserID: 5}, CaptureRequest{
		Amount: decimal.RequireFromString("20.00"), Token: "tok",
	})
	assert.True(t, errors.Is(err, apperr.ErrGateway))
	assert.Contains(t, err.Error(), "requires_action")
	assert.Zero(t, countTransactions(t, svc))
}

func TestCaptureValidation(t *testing.T) {
	db := storetest.Open(t)
	gw := &fakeGateway{charge: &Charge{ID: "pi_1", Status: "succeeded"}}
	svc := NewService(db, gw)
	ctx := context.Background()

	_, err := svc.Capture(ctx, nil, CaptureRequest{Amount: decimal.RequireFromString("1.00"), Token: "tok"})
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	_, err = svc.Capture(ctx, &access.Actor{UserID: 5}, CaptureRequest{Amount: decimal.RequireFromString("1.00")})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Capture(ctx, &access.Actor{UserID: 5}, CaptureRequest{Amount: decimal.Zero, Token: "tok"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	assert.Empty(t, gw.calls)
	assert.Zero(t, countTransactions(t, svc))
}

func TestListAndExportTransactions(t *testing.T) {
	db := storetest.Open(t)
	alice := storetest.CreateUser(t, db, "alice", false)
	bob := storetest.CreateUser(t, db, "bob", false)
	svc := NewService(db, &fakeGateway{charge: &Charge{ID: "pi_x", Status: "succeeded"}})
	ctx := context.Background()

	aliceActor := &access.Actor{UserID: alice.ID, Username: alice.Username}
	bobActor := &access.Actor{UserID: bob.ID, Username: bob.Username}
	staff := &access.Actor{UserID: 99, Username: "admin", Privileged: true}
	for _, a := range []*access.Actor{aliceActor, aliceActor, bobActor} {
		_, err := svc.Capture(ctx, a, CaptureRequest{Amount: decimal.RequireFromString("12.50"), Token: "tok"})
		require.NoError(t, err)
	}

	_, total, err := svc.ListTransactions(ctx, aliceActor, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = svc.ListTransactions(ctx, staff, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	var buf bytes.Buffer
	_, err = svc.ExportCSV(ctx, aliceActor, &buf)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	n, err := svc.ExportCSV(ctx, staff, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id,user,amount,timestamp,stripe_charge_id,description,paid", lines[0])
	assert.Contains(t, buf.String(), ",bob,12.50,")
}

func TestFilterNormalize(t *testing.T) {
	cases := []struct {
		in   Filter
		want Filter
	}{
		{Filter{}, Filter{Page: 1, PageSize: 20}},
		{Filter{Page: 3, PageSize: 50}, Filter{Page: 3, PageSize: 50}},
		{Filter{Page: -1, PageSize: 10000}, Filter{Page: 1, PageSize: maxPageSize}},
	}
	for _, c := range cases {
		f := c.in
		f.normalize()
		assert.Equal(t, c.want, f)
	}
}

package catalog

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/storetest"
	"github.com/talkincode/pizzeria/pkg/common"
)

var (
	staff    = &access.Actor{UserID: 1, Username: "admin", Privileged: true}
	customer = &access.Actor{UserID: 2, Username: "alice"}
)

func margarita() MenuItemInput {
	return MenuItemInput{
		Name:       "Margarita",
		PriceSmall: domain.SomeMoney("5.50"),
		PriceLarge: domain.SomeMoney("7.50"),
		Category:   domain.CategoryPizza,
	}
}

func TestMenuItemMutationRequiresPrivilege(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.Open(t))

	_, err := svc.CreateMenuItem(ctx, customer, margarita())
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.CreateMenuItem(ctx, nil, margarita())
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	m, err := svc.CreateMenuItem(ctx, staff, margarita())
	require.NoError(t, err)
	assert.NotZero(t, m.ID)

	_, err = svc.UpdateMenuItem(ctx, customer, m.ID, margarita())
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.True(t, errors.Is(svc.DeleteMenuItem(ctx, customer, m.ID), apperr.ErrForbidden))

	got, err := svc.GetMenuItem(ctx, customer, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Margarita", got.Name)
	small, ok := got.BasePrice(domain.SizeSmall)
	require.True(t, ok)
	assert.Equal(t, "5.50", small.String())
}

func TestMenuItemValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.Open(t))

	in := margarita()
	in.Name = "  "
	_, err := svc.CreateMenuItem(ctx, staff, in)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	in = margarita()
	in.Category = "Soups"
	_, err = svc.CreateMenuItem(ctx, staff, in)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	in = margarita()
	in.PriceSmall = domain.SomeMoney("-1.00")
	_, err = svc.CreateMenuItem(ctx, staff, in)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	in = margarita()
	in.PriceLarge = domain.NullMoney{NullDecimal: decimal.NewNullDecimal(decimal.RequireFromString("7.505"))}
	_, err = svc.CreateMenuItem(ctx, staff, in)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpdateAndDeleteMenuItem(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.Open(t))

	m, err := svc.CreateMenuItem(ctx, staff, margarita())
	require.NoError(t, err)

	in := margarita()
	in.PriceSmall = domain.NullMoney{}
	in.Description = "no small size any more"
	updated, err := svc.UpdateMenuItem(ctx, staff, m.ID, in)
	require.NoError(t, err)
	_, ok := updated.BasePrice(domain.SizeSmall)
	assert.False(t, ok)

	require.NoError(t, svc.DeleteMenuItem(ctx, staff, m.ID))
	_, err = svc.GetMenuItem(ctx, staff, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(svc.DeleteMenuItem(ctx, staff, m.ID), apperr.ErrNotFound))
}

func TestDeleteReferencedCatalogEntries(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	svc := NewService(db)

	user := storetest.CreateUser(t, db, "bob", false)
	pizza := storetest.CreateMenuItem(t, db, "Pepperoni", "6.00", "9.00")
	cheese := storetest.CreateTopping(t, db, "Extra Cheese", "2.00")
	order := storetest.CreateOrder(t, db, user.ID)
	item := domain.OrderItem{
		ID: common.UUIDint64(), OrderID: order.ID, MenuItemID: pizza.ID,
		Size: domain.SizeLarge, Quantity: 1, Toppings: []domain.Topping{*cheese},
	}
	require.NoError(t, db.Omit("Toppings.*").Create(&item).Error)

	err := svc.DeleteMenuItem(ctx, staff, pizza.ID)
	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindConflict, Code: "MENU_ITEM_IN_USE"}))

	err = svc.DeleteTopping(ctx, staff, cheese.ID)
	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindConflict, Code: "TOPPING_IN_USE"}))
}

func TestListMenuItems(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.Open(t))

	for _, in := range []MenuItemInput{
		margarita(),
		{Name: "Garlic Bread", PriceSmall: domain.SomeMoney("3.00"), Category: domain.CategoryBreads},
		{Name: "Tiramisu", PriceSmall: domain.SomeMoney("4.25"), Category: domain.CategoryDeserts},
	} {
		_, err := svc.CreateMenuItem(ctx, staff, in)
		require.NoError(t, err)
	}

	rows, total, err := svc.ListMenuItems(ctx, customer, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "Garlic Bread", rows[0].Name)

	rows, total, err = svc.ListMenuItems(ctx, customer, Filter{Category: domain.CategoryDeserts})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Tiramisu", rows[0].Name)

	rows, _, err = svc.ListMenuItems(ctx, customer, Filter{Query: "MARG"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Margarita", rows[0].Name)

	rows, total, err = svc.ListMenuItems(ctx, customer, Filter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 1)
}

func TestToppingLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.Open(t))

	_, err := svc.CreateTopping(ctx, customer, ToppingInput{Name: "Olives", Price: decimal.RequireFromString("0.35")})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.CreateTopping(ctx, staff, ToppingInput{Name: "Olives", Price: decimal.RequireFromString("-0.35")})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	tp, err := svc.CreateTopping(ctx, staff, ToppingInput{Name: "Olives", Price: decimal.RequireFromString("0.35")})
	require.NoError(t, err)
	assert.Equal(t, "0.35", tp.Price.String())

	tp, err = svc.UpdateTopping(ctx, staff, tp.ID, ToppingInput{Name: "Black Olives", Price: decimal.RequireFromString("0.50")})
	require.NoError(t, err)
	assert.Equal(t, "Black Olives", tp.Name)

	rows, total, err := svc.ListToppings(ctx, customer, Filter{Query: "olive"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "0.50", rows[0].Price.String())

	require.NoError(t, svc.DeleteTopping(ctx, staff, tp.ID))
	_, err = svc.GetTopping(ctx, customer, tp.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateMenuItemKeepsOrderedSizesPriced(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	svc := NewService(db)

	user := storetest.CreateUser(t, db, "bob", false)
	pizza := storetest.CreateMenuItem(t, db, "Margarita", "5.50", "7.50")
	order := storetest.CreateOrder(t, db, user.ID)
	item := domain.OrderItem{
		ID: common.UUIDint64(), OrderID: order.ID, MenuItemID: pizza.ID,
		Size: domain.SizeSmall, Quantity: 2,
	}
	require.NoError(t, db.Create(&item).Error)

	in := margarita()
	in.PriceSmall = domain.NullMoney{}
	_, err := svc.UpdateMenuItem(ctx, staff, pizza.ID, in)
	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindConflict, Code: "MENU_ITEM_SIZE_IN_USE"}), "got %v", err)

	got, err := svc.GetMenuItem(ctx, staff, pizza.ID)
	require.NoError(t, err)
	assert.True(t, got.PriceSmall.Valid)

	// nobody ordered a large one, so that price may go
	in = margarita()
	in.PriceLarge = domain.NullMoney{}
	got, err = svc.UpdateMenuItem(ctx, staff, pizza.ID, in)
	require.NoError(t, err)
	assert.False(t, got.PriceLarge.Valid)

	// repricing an ordered size is allowed
	in.PriceSmall = domain.SomeMoney("6.00")
	got, err = svc.UpdateMenuItem(ctx, staff, pizza.ID, in)
	require.NoError(t, err)
	small, ok := got.BasePrice(domain.SizeSmall)
	require.True(t, ok)
	assert.Equal(t, "6.00", small.String())
}

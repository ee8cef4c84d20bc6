// Package pricing computes line item prices and keeps an order's total_price
// equal to the sum of its line prices.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
)

// LineItemPrice is (base price for size + sum of distinct topping prices) * quantity,
// rounded to cents. A size without a price is a PricingError.
func LineItemPrice(item *domain.MenuItem, size domain.Size, quantity int, toppings []domain.Topping) (domain.Money, error) {
	if item == nil {
		return domain.Money{}, apperr.Validation("item", "menu item is required")
	}
	if !size.Valid() {
		return domain.Money{}, apperr.Validation("size", fmt.Sprintf("%q is not a valid size", size))
	}
	if quantity <= 0 {
		return domain.Money{}, apperr.Validation("quantity", "must be a positive integer")
	}
	base, ok := item.BasePrice(size)
	if !ok {
		return domain.Money{}, apperr.Pricing(fmt.Sprintf("%s has no price for size %s", item.Name, size))
	}

	sum := base.Decimal
	seen := make(map[int64]struct{}, len(toppings))
	for _, t := range toppings {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		sum = sum.Add(t.Price.Decimal)
	}
	return domain.NewMoney(sum.Mul(decimal.NewFromInt(int64(quantity)))), nil
}

// ItemPrice prices a stored line item. MenuItem and Toppings must be loaded.
func ItemPrice(oi *domain.OrderItem) (domain.Money, error) {
	return LineItemPrice(oi.MenuItem, oi.Size, oi.Quantity, oi.Toppings)
}

// OrderTotal sums the line prices of items, 0.00 for none. It fills in
// each item's LinePrice.
func OrderTotal(items []domain.OrderItem) (domain.Money, error) {
	total := decimal.Zero
	for i := range items {
		p, err := ItemPrice(&items[i])
		if err != nil {
			return domain.Money{}, err
		}
		items[i].LinePrice = p
		total = total.Add(p.Decimal)
	}
	return domain.NewMoney(total), nil
}

// LoadItems reads the line items of an order with their menu items and toppings.
func LoadItems(ctx context.Context, db *gorm.DB, orderID int64) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).
		Preload("MenuItem").
		Preload("Toppings").
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, errors.Wrap(err, "load order items")
	}
	return items, nil
}

// Recompute derives the total of orderID from its current line items and
// persists it. Callers pass the transaction handle of the mutation that
// triggered it so the item change and the new total commit together.
func Recompute(ctx context.Context, tx *gorm.DB, orderID int64) (domain.Money, error) {
	items, err := LoadItems(ctx, tx, orderID)
	if err != nil {
		return domain.Money{}, err
	}
	total, err := OrderTotal(items)
	if err != nil {
		return domain.Money{}, err
	}
	res := tx.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"total_price": total,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return domain.Money{}, errors.Wrap(res.Error, "update order total")
	}
	if res.RowsAffected == 0 {
		return domain.Money{}, apperr.NotFound("order")
	}
	return total, nil
}

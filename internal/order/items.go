package order

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/pricing"
	"github.com/talkincode/pizzeria/pkg/common"
)

// ItemInput describes a new line item.
type ItemInput struct {
	OrderID    int64
	MenuItemID int64
	Size       domain.Size
	Quantity   int
	ToppingIDs []int64
}

// ItemPatch is a partial line item update. Nil fields are left unchanged; a
// non-nil ToppingIDs replaces the whole topping set.
type ItemPatch struct {
	Size       *domain.Size
	Quantity   *int
	ToppingIDs *[]int64
}

// AddItem appends a line item to an order the actor owns and recomputes the
// order total in the same transaction.
func (s *Service) AddItem(ctx context.Context, actor *access.Actor, in ItemInput) (*domain.OrderItem, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	var item domain.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, access.OpCreate, access.Owned(access.OrderItem, o.UserID)); err != nil {
			return err
		}
		if !in.Size.Valid() {
			return apperr.Validation("size", fmt.Sprintf("%q is not a valid choice", in.Size))
		}
		if in.Quantity <= 0 {
			return apperr.Validation("quantity", "must be a positive integer")
		}
		menuItem, err := loadMenuItem(tx, in.MenuItemID)
		if err != nil {
			return err
		}
		toppings, err := loadToppings(tx, in.ToppingIDs)
		if err != nil {
			return err
		}
		price, err := pricing.LineItemPrice(menuItem, in.Size, in.Quantity, toppings)
		if err != nil {
			return err
		}

		now := time.Now()
		item = domain.OrderItem{
			ID:         common.UUIDint64(),
			OrderID:    o.ID,
			MenuItemID: menuItem.ID,
			Size:       in.Size,
			Quantity:   in.Quantity,
			Toppings:   toppings,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Omit("MenuItem", "Toppings.*").Create(&item).Error; err != nil {
			return apperr.FromStore(err, "order item")
		}
		item.MenuItem = menuItem
		item.LinePrice = price

		total, err := pricing.Recompute(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		zap.L().Debug("order item added",
			zap.Int64("order_id", o.ID),
			zap.Int64("order_item_id", item.ID),
			zap.String("line_price", price.String()),
			zap.String("total_price", total.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem applies a partial update to a line item of an order the actor
// owns. The new line is priced before anything is written.
func (s *Service) UpdateItem(ctx context.Context, actor *access.Actor, id int64, patch ItemPatch) (*domain.OrderItem, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	var item domain.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return apperr.FromStore(err, "order item")
		}
		o, err := lockOrder(tx, item.OrderID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, access.OpUpdate, access.Owned(access.OrderItem, o.UserID)); err != nil {
			return err
		}
		// reread under the order lock
		if err := tx.Preload("Toppings").First(&item, id).Error; err != nil {
			return apperr.FromStore(err, "order item")
		}
		if item.MenuItem, err = loadMenuItem(tx, item.MenuItemID); err != nil {
			return err
		}

		if patch.Size != nil {
			if !patch.Size.Valid() {
				return apperr.Validation("size", fmt.Sprintf("%q is not a valid choice", *patch.Size))
			}
			item.Size = *patch.Size
		}
		if patch.Quantity != nil {
			if *patch.Quantity <= 0 {
				return apperr.Validation("quantity", "must be a positive integer")
			}
			item.Quantity = *patch.Quantity
		}
		if patch.ToppingIDs != nil {
			toppings, err := loadToppings(tx, *patch.ToppingIDs)
			if err != nil {
				return err
			}
			item.Toppings = toppings
		}
		price, err := pricing.ItemPrice(&item)
		if err != nil {
			return err
		}

		item.UpdatedAt = time.Now()
		err = tx.Model(&domain.OrderItem{ID: item.ID}).Updates(map[string]interface{}{
			"size":       item.Size,
			"quantity":   item.Quantity,
			"updated_at": item.UpdatedAt,
		}).Error
		if err != nil {
			return apperr.FromStore(err, "order item")
		}
		if patch.ToppingIDs != nil {
			if err := replaceToppings(tx, &item); err != nil {
				return err
			}
		}
		item.LinePrice = price

		_, err = pricing.Recompute(ctx, tx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes a line item of an order the actor owns and recomputes
// the order total.
func (s *Service) RemoveItem(ctx context.Context, actor *access.Actor, id int64) error {
	if err := access.Authenticated(actor); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item domain.OrderItem
		if err := tx.First(&item, id).Error; err != nil {
			return apperr.FromStore(err, "order item")
		}
		o, err := lockOrder(tx, item.OrderID)
		if err != nil {
			return err
		}
		if err := access.Require(actor, access.OpDelete, access.Owned(access.OrderItem, o.UserID)); err != nil {
			return err
		}
		if err := tx.Model(&item).Association("Toppings").Clear(); err != nil {
			return apperr.FromStore(err, "order item")
		}
		if err := tx.Delete(&item).Error; err != nil {
			return apperr.FromStore(err, "order item")
		}
		_, err = pricing.Recompute(ctx, tx, o.ID)
		return err
	})
}

// ListItems returns line items visible to actor: all of them for a privileged
// actor, otherwise only those of orders the actor owns.
func (s *Service) ListItems(ctx context.Context, actor *access.Actor, f Filter) ([]domain.OrderItem, int64, error) {
	if err := access.Require(actor, access.OpList, access.On(access.OrderItem)); err != nil {
		return nil, 0, err
	}
	f.normalize()
	q := s.db.WithContext(ctx).Model(&domain.OrderItem{})
	if !actor.Privileged {
		owned := s.db.Model(&domain.Order{}).Select("id").Where("user_id = ?", actor.UserID)
		q = q.Where("order_id IN (?)", owned)
	}
	if f.OrderID != 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "order item")
	}
	var rows []domain.OrderItem
	err := q.Preload("MenuItem").
		Preload("Toppings").
		Order("created_at ASC, id ASC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStore(err, "order item")
	}
	if err := fillLinePrices(rows); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Service) GetItem(ctx context.Context, actor *access.Actor, id int64) (*domain.OrderItem, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	var item domain.OrderItem
	if err := s.db.WithContext(ctx).Preload("MenuItem").Preload("Toppings").First(&item, id).Error; err != nil {
		return nil, apperr.FromStore(err, "order item")
	}
	o, err := loadOrder(s.db.WithContext(ctx), item.OrderID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actor, access.OpRead, access.Owned(access.OrderItem, o.UserID)); err != nil {
		return nil, err
	}
	p, err := pricing.ItemPrice(&item)
	if err != nil {
		return nil, err
	}
	item.LinePrice = p
	return &item, nil
}

func loadOrder(tx *gorm.DB, id int64) (*domain.Order, error) {
	var o domain.Order
	if err := tx.First(&o, id).Error; err != nil {
		return nil, apperr.FromStore(err, "order")
	}
	return &o, nil
}

// lockOrder loads the order with a row lock held until tx ends. Line item
// mutations of one order serialize here, so each Recompute sees the items
// committed before it. SQLite ignores the locking clause.
func lockOrder(tx *gorm.DB, id int64) (*domain.Order, error) {
	return loadOrder(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// loadMenuItem share-locks the row so a concurrent catalog update cannot drop
// the price being used. An unresolvable reference is a validation failure,
// not NotFound.
func loadMenuItem(tx *gorm.DB, id int64) (*domain.MenuItem, error) {
	var m domain.MenuItem
	if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("item", fmt.Sprintf("invalid pk %d - object does not exist", id))
		}
		return nil, apperr.FromStore(err, "menu item")
	}
	return &m, nil
}

// loadToppings resolves a topping id set. Duplicate ids collapse; any unknown
// id fails the whole set.
func loadToppings(tx *gorm.DB, ids []int64) ([]domain.Topping, error) {
	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return []domain.Topping{}, nil
	}
	var toppings []domain.Topping
	if err := tx.Where("id IN ?", uniq).Order("id").Find(&toppings).Error; err != nil {
		return nil, apperr.FromStore(err, "topping")
	}
	if len(toppings) != len(uniq) {
		found := make(map[int64]struct{}, len(toppings))
		for _, t := range toppings {
			found[t.ID] = struct{}{}
		}
		for _, id := range uniq {
			if _, ok := found[id]; !ok {
				return nil, apperr.Validation("toppings", fmt.Sprintf("invalid pk %d - object does not exist", id))
			}
		}
	}
	return toppings, nil
}

func replaceToppings(tx *gorm.DB, item *domain.OrderItem) error {
	if err := tx.Exec("DELETE FROM order_item_toppings WHERE order_item_id = ?", item.ID).Error; err != nil {
		return apperr.FromStore(err, "order item")
	}
	if len(item.Toppings) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(item.Toppings))
	for _, t := range item.Toppings {
		rows = append(rows, map[string]interface{}{"order_item_id": item.ID, "topping_id": t.ID})
	}
	return apperr.FromStore(tx.Table("order_item_toppings").Create(rows).Error, "order item")
}

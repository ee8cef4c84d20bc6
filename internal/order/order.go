// Package order is the order aggregate: orders and their line items. Every
// line item mutation runs in one database transaction together with the
// pricing recompute of the owning order, so a committed order always carries
// total_price equal to the sum of its line prices.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/pricing"
	"github.com/talkincode/pizzeria/pkg/common"
)

const maxPageSize = 500

// Filter narrows order and line item listings.
type Filter struct {
	Status   domain.OrderStatus
	OrderID  int64
	Page     int
	PageSize int
}

func (f *Filter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateOrder opens an empty Pending order owned by actor.
func (s *Service) CreateOrder(ctx context.Context, actor *access.Actor) (*domain.Order, error) {
	if err := access.Require(actor, access.OpCreate, access.On(access.Order)); err != nil {
		return nil, err
	}
	now := time.Now()
	o := domain.Order{
		ID:         common.UUIDint64(),
		UserID:     actor.UserID,
		Status:     domain.OrderPending,
		TotalPrice: domain.NewMoney(decimal.Zero),
		Items:      []domain.OrderItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Omit("Items").Create(&o).Error; err != nil {
		return nil, apperr.FromStore(err, "order")
	}
	zap.L().Info("order created", zap.Int64("order_id", o.ID), zap.Int64("user_id", o.UserID))
	return &o, nil
}

// GetOrder returns the order with its line items. Actors who neither own the
// order nor hold privilege get a Forbidden error.
func (s *Service) GetOrder(ctx context.Context, actor *access.Actor, id int64) (*domain.Order, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	var o domain.Order
	if err := withItems(s.db.WithContext(ctx)).First(&o, id).Error; err != nil {
		return nil, apperr.FromStore(err, "order")
	}
	if err := access.Require(actor, access.OpRead, access.Owned(access.Order, o.UserID)); err != nil {
		return nil, err
	}
	if err := fillLinePrices(o.Items); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns the actor's own orders, or all orders for a privileged actor.
func (s *Service) ListOrders(ctx context.Context, actor *access.Actor, f Filter) ([]domain.Order, int64, error) {
	if err := access.Require(actor, access.OpList, access.On(access.Order)); err != nil {
		return nil, 0, err
	}
	f.normalize()
	q := s.db.WithContext(ctx).Model(&domain.Order{})
	if !actor.Privileged {
		q = q.Where("user_id = ?", actor.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "order")
	}
	var rows []domain.Order
	err := withItems(q).
		Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStore(err, "order")
	}
	for i := range rows {
		if err := fillLinePrices(rows[i].Items); err != nil {
			return nil, 0, err
		}
	}
	return rows, total, nil
}

// UpdateOrder changes the status of an order. The total is derived and never
// written here. Reopening a completed order requires privilege.
func (s *Service) UpdateOrder(ctx context.Context, actor *access.Actor, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("status", fmt.Sprintf("%q is not a valid choice", status))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		if err := tx.First(&o, id).Error; err != nil {
			return apperr.FromStore(err, "order")
		}
		if err := access.Require(actor, access.OpUpdate, access.Owned(access.Order, o.UserID)); err != nil {
			return err
		}
		if o.Status == status {
			return nil
		}
		if o.Status == domain.OrderCompleted && !actor.Privileged {
			return apperr.Forbidden("only staff may reopen a completed order")
		}
		err := tx.Model(&o).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
		return apperr.FromStore(err, "order")
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("order status changed",
		zap.Int64("order_id", id),
		zap.String("status", string(status)),
		zap.String("actor", actor.Username))
	return s.GetOrder(ctx, actor, id)
}

// DeleteOrder removes the order, its line items and their topping links.
func (s *Service) DeleteOrder(ctx context.Context, actor *access.Actor, id int64) error {
	if err := access.Authenticated(actor); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		if err := tx.First(&o, id).Error; err != nil {
			return apperr.FromStore(err, "order")
		}
		if err := access.Require(actor, access.OpDelete, access.Owned(access.Order, o.UserID)); err != nil {
			return err
		}
		itemIDs := tx.Model(&domain.OrderItem{}).Select("id").Where("order_id = ?", id)
		if err := tx.Exec("DELETE FROM order_item_toppings WHERE order_item_id IN (?)", itemIDs).Error; err != nil {
			return apperr.FromStore(err, "order")
		}
		if err := tx.Where("order_id = ?", id).Delete(&domain.OrderItem{}).Error; err != nil {
			return apperr.FromStore(err, "order")
		}
		if err := tx.Delete(&o).Error; err != nil {
			return apperr.FromStore(err, "order")
		}
		zap.L().Info("order deleted", zap.Int64("order_id", id), zap.String("actor", actor.Username))
		return nil
	})
}

// CompleteOrders marks the given Pending orders Completed and returns how
// many rows changed. Unknown or already completed ids are skipped.
func (s *Service) CompleteOrders(ctx context.Context, actor *access.Actor, ids []int64) (int64, error) {
	if err := access.Require(actor, access.OpComplete, access.On(access.Order)); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperr.Validation("ids", "at least one order id is required")
	}
	res := s.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id IN ? AND status = ?", ids, domain.OrderPending).
		Updates(map[string]interface{}{
			"status":     domain.OrderCompleted,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, apperr.FromStore(res.Error, "order")
	}
	zap.L().Info("orders completed",
		zap.Int("requested", len(ids)),
		zap.Int64("completed", res.RowsAffected),
		zap.String("actor", actor.Username))
	return res.RowsAffected, nil
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Items.MenuItem").
		Preload("Items.Toppings")
}

// fillLinePrices sets LinePrice on each item for display.
func fillLinePrices(items []domain.OrderItem) error {
	for i := range items {
		p, err := pricing.ItemPrice(&items[i])
		if err != nil {
			return err
		}
		items[i].LinePrice = p
	}
	return nil
}

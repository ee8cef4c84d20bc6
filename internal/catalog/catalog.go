// Package catalog manages the menu: menu items and toppings. Reads are open to
// every authenticated actor, mutations require administrative privilege.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/pkg/common"
)

const (
	maxNameLen      = 100
	maxMenuPrice    = "9999.99"
	maxToppingPrice = "999.99"
	maxPageSize     = 500
)

// Filter narrows catalog listings. Zero values mean no restriction.
type Filter struct {
	Query    string
	Category domain.Category
	Page     int
	PageSize int
	Sort     string
	Order    string
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
	f.Order = strings.ToUpper(strings.TrimSpace(f.Order))
	if f.Order != "ASC" && f.Order != "DESC" {
		f.Order = "ASC"
	}
}

// MenuItemInput carries the client-writable fields of a menu item.
type MenuItemInput struct {
	Name        string
	PriceSmall  domain.NullMoney
	PriceLarge  domain.NullMoney
	Category    domain.Category
	Description string
	Image       string
}

type ToppingInput struct {
	Name  string
	Price decimal.Decimal
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) ListMenuItems(ctx context.Context, actor *access.Actor, f Filter) ([]domain.MenuItem, int64, error) {
	if err := access.Require(actor, access.OpList, access.On(access.MenuItem)); err != nil {
		return nil, 0, err
	}
	f.normalize()
	sortCol, ok := map[string]string{
		"id":         "id",
		"name":       "name",
		"category":   "category",
		"created_at": "created_at",
	}[f.Sort]
	if !ok {
		sortCol = "name"
	}

	q := nameLike(s.db.WithContext(ctx).Model(&domain.MenuItem{}), f.Query)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "menu item")
	}
	var rows []domain.MenuItem
	err := q.Order(sortCol + " " + f.Order).
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStore(err, "menu item")
	}
	return rows, total, nil
}

func (s *Service) GetMenuItem(ctx context.Context, actor *access.Actor, id int64) (*domain.MenuItem, error) {
	if err := access.Require(actor, access.OpRead, access.On(access.MenuItem)); err != nil {
		return nil, err
	}
	var m domain.MenuItem
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, apperr.FromStore(err, "menu item")
	}
	return &m, nil
}

func (s *Service) CreateMenuItem(ctx context.Context, actor *access.Actor, in MenuItemInput) (*domain.MenuItem, error) {
	if err := access.Require(actor, access.OpCreate, access.On(access.MenuItem)); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	m := domain.MenuItem{ID: common.UUIDint64(), CreatedAt: now, UpdatedAt: now}
	in.apply(&m)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, apperr.FromStore(err, "menu item")
	}
	zap.L().Info("menu item created",
		zap.Int64("menu_item_id", m.ID),
		zap.String("name", m.Name),
		zap.String("actor", actor.Username))
	return &m, nil
}

// UpdateMenuItem replaces the writable fields of a menu item. Existing orders
// keep their totals until one of their line items is next mutated.
func (s *Service) UpdateMenuItem(ctx context.Context, actor *access.Actor, id int64, in MenuItemInput) (*domain.MenuItem, error) {
	if err := access.Require(actor, access.OpUpdate, access.On(access.MenuItem)); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var m domain.MenuItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			return apperr.FromStore(err, "menu item")
		}
		for _, size := range droppedSizes(&m, in) {
			var refs int64
			err := tx.Model(&domain.OrderItem{}).
				Where("menu_item_id = ? AND size = ?", id, size).
				Count(&refs).Error
			if err != nil {
				return apperr.FromStore(err, "menu item")
			}
			if refs > 0 {
				return apperr.Conflict("MENU_ITEM_SIZE_IN_USE",
					fmt.Sprintf("size %s is ordered by %d order items and must keep a price", size, refs))
			}
		}
		in.apply(&m)
		m.UpdatedAt = time.Now()
		return apperr.FromStore(tx.Save(&m).Error, "menu item")
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// droppedSizes lists the sizes priced on m that in leaves unpriced.
func droppedSizes(m *domain.MenuItem, in MenuItemInput) []domain.Size {
	var sizes []domain.Size
	if m.PriceSmall.Valid && !in.PriceSmall.Valid {
		sizes = append(sizes, domain.SizeSmall)
	}
	if m.PriceLarge.Valid && !in.PriceLarge.Valid {
		sizes = append(sizes, domain.SizeLarge)
	}
	return sizes
}

// DeleteMenuItem refuses to remove an item that any order line still references.
func (s *Service) DeleteMenuItem(ctx context.Context, actor *access.Actor, id int64) error {
	if err := access.Require(actor, access.OpDelete, access.On(access.MenuItem)); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&domain.OrderItem{}).Where("menu_item_id = ?", id).Count(&refs).Error; err != nil {
			return apperr.FromStore(err, "menu item")
		}
		if refs > 0 {
			return apperr.Conflict("MENU_ITEM_IN_USE",
				fmt.Sprintf("menu item is referenced by %d order items", refs))
		}
		res := tx.Delete(&domain.MenuItem{}, id)
		if res.Error != nil {
			return apperr.FromStore(res.Error, "menu item")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("menu item")
		}
		zap.L().Info("menu item deleted", zap.Int64("menu_item_id", id), zap.String("actor", actor.Username))
		return nil
	})
}

func (s *Service) ListToppings(ctx context.Context, actor *access.Actor, f Filter) ([]domain.Topping, int64, error) {
	if err := access.Require(actor, access.OpList, access.On(access.Topping)); err != nil {
		return nil, 0, err
	}
	f.normalize()
	sortCol, ok := map[string]string{
		"id":    "id",
		"name":  "name",
		"price": "price",
	}[f.Sort]
	if !ok {
		sortCol = "name"
	}

	q := nameLike(s.db.WithContext(ctx).Model(&domain.Topping{}), f.Query)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "topping")
	}
	var rows []domain.Topping
	err := q.Order(sortCol + " " + f.Order).
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStore(err, "topping")
	}
	return rows, total, nil
}

func (s *Service) GetTopping(ctx context.Context, actor *access.Actor, id int64) (*domain.Topping, error) {
	if err := access.Require(actor, access.OpRead, access.On(access.Topping)); err != nil {
		return nil, err
	}
	var t domain.Topping
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, apperr.FromStore(err, "topping")
	}
	return &t, nil
}

func (s *Service) CreateTopping(ctx context.Context, actor *access.Actor, in ToppingInput) (*domain.Topping, error) {
	if err := access.Require(actor, access.OpCreate, access.On(access.Topping)); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	t := domain.Topping{
		ID:        common.UUIDint64(),
		Name:      strings.TrimSpace(in.Name),
		Price:     domain.NewMoney(in.Price),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, apperr.FromStore(err, "topping")
	}
	zap.L().Info("topping created", zap.Int64("topping_id", t.ID), zap.String("name", t.Name))
	return &t, nil
}

func (s *Service) UpdateTopping(ctx context.Context, actor *access.Actor, id int64, in ToppingInput) (*domain.Topping, error) {
	if err := access.Require(actor, access.OpUpdate, access.On(access.Topping)); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var t domain.Topping
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, apperr.FromStore(err, "topping")
	}
	t.Name = strings.TrimSpace(in.Name)
	t.Price = domain.NewMoney(in.Price)
	t.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return nil, apperr.FromStore(err, "topping")
	}
	return &t, nil
}

func (s *Service) DeleteTopping(ctx context.Context, actor *access.Actor, id int64) error {
	if err := access.Require(actor, access.OpDelete, access.On(access.Topping)); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Table("order_item_toppings").Where("topping_id = ?", id).Count(&refs).Error; err != nil {
			return apperr.FromStore(err, "topping")
		}
		if refs > 0 {
			return apperr.Conflict("TOPPING_IN_USE",
				fmt.Sprintf("topping is attached to %d order items", refs))
		}
		res := tx.Delete(&domain.Topping{}, id)
		if res.Error != nil {
			return apperr.FromStore(res.Error, "topping")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("topping")
		}
		zap.L().Info("topping deleted", zap.Int64("topping_id", id), zap.String("actor", actor.Username))
		return nil
	})
}

func nameLike(db *gorm.DB, q string) *gorm.DB {
	q = strings.TrimSpace(q)
	if q == "" {
		return db
	}
	if strings.EqualFold(db.Dialector.Name(), "postgres") {
		return db.Where("name ILIKE ?", "%"+q+"%")
	}
	return db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
}

func (in *MenuItemInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name", "this field may not be blank")
	}
	if len(in.Name) > maxNameLen {
		return apperr.Validation("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLen))
	}
	if !in.Category.Valid() {
		return apperr.Validation("category", fmt.Sprintf("%q is not a valid choice", in.Category))
	}
	if in.PriceSmall.Valid {
		if err := checkPrice("price_small", in.PriceSmall.Decimal, maxMenuPrice); err != nil {
			return err
		}
	}
	if in.PriceLarge.Valid {
		return checkPrice("price_large", in.PriceLarge.Decimal, maxMenuPrice)
	}
	return nil
}

func (in *MenuItemInput) apply(m *domain.MenuItem) {
	m.Name = in.Name
	m.PriceSmall = in.PriceSmall
	m.PriceLarge = in.PriceLarge
	m.Category = in.Category
	m.Description = strings.TrimSpace(in.Description)
	m.Image = strings.TrimSpace(in.Image)
}

func (in *ToppingInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name", "this field may not be blank")
	}
	if len(in.Name) > maxNameLen {
		return apperr.Validation("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLen))
	}
	return checkPrice("price", in.Price, maxToppingPrice)
}

// checkPrice enforces a non-negative amount with at most two decimal places.
func checkPrice(field string, d decimal.Decimal, max string) error {
	if d.IsNegative() {
		return apperr.Validation(field, "ensure this value is greater than or equal to 0")
	}
	if !d.Equal(d.Round(2)) {
		return apperr.Validation(field, "ensure that there are no more than 2 decimal places")
	}
	if d.GreaterThan(decimal.RequireFromString(max)) {
		return apperr.Validation(field, "ensure this value is less than or equal to "+max)
	}
	return nil
}

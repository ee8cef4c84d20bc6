package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderCompleted OrderStatus = "Completed"
)

func (s OrderStatus) Valid() bool {
	return s == OrderPending || s == OrderCompleted
}

type Size string

const (
	SizeSmall Size = "S"
	SizeLarge Size = "L"
)

func (s Size) Valid() bool {
	return s == SizeSmall || s == SizeLarge
}

// Order owns its line items. TotalPrice is a materialized sum of the line
// prices and is only ever written by the pricing recompute.
type Order struct {
	ID         int64       `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID     int64       `gorm:"index;not null" json:"user,string"`
	Status     OrderStatus `gorm:"size:20;index;not null" json:"status"`
	TotalPrice Money       `gorm:"type:decimal(8,2);not null" json:"total_price"`
	Items      []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt  time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is one line of an order: a menu item at a size and quantity plus
// an optional set of toppings.
type OrderItem struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	OrderID    int64     `gorm:"index;not null" json:"order,string"`
	MenuItemID int64     `gorm:"index;not null" json:"item,string"`
	MenuItem   *MenuItem `gorm:"foreignKey:MenuItemID" json:"-"`
	Size       Size      `gorm:"size:10;not null" json:"size"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	Toppings   []Topping `gorm:"many2many:order_item_toppings" json:"toppings"`
	LinePrice  Money     `gorm:"-" json:"line_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// ToppingIDs returns the ids of the attached toppings
func (oi *OrderItem) ToppingIDs() []int64 {
	ids := make([]int64, 0, len(oi.Toppings))
	for _, t := range oi.Toppings {
		ids = append(ids, t.ID)
	}
	return ids
}

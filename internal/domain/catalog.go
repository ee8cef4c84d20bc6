package domain

import "time"

type Category string

const (
	CategoryPizza   Category = "Pizza"
	CategoryBreads  Category = "Breads"
	CategoryDeserts Category = "Deserts"
)

var Categories = []Category{CategoryPizza, CategoryBreads, CategoryDeserts}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// MenuItem is a sellable catalog entry. A size without a price cannot be ordered.
type MenuItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name        string    `gorm:"size:100;index" json:"name"`
	PriceSmall  NullMoney `gorm:"type:decimal(6,2)" json:"price_small"`
	PriceLarge  NullMoney `gorm:"type:decimal(6,2)" json:"price_large"`
	Category    Category  `gorm:"size:50;index" json:"category"`
	Description string    `gorm:"type:text" json:"description"`
	Image       string    `gorm:"size:1024" json:"image_url"` // relative media path or URL
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (MenuItem) TableName() string {
	return "menu_items"
}

// BasePrice returns the price for size and whether it is set.
func (m *MenuItem) BasePrice(size Size) (Money, bool) {
	switch size {
	case SizeSmall:
		return m.PriceSmall.Money()
	case SizeLarge:
		return m.PriceLarge.Money()
	}
	return Money{}, false
}

type Topping struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name      string    `gorm:"size:100;index" json:"name"`
	Price     Money     `gorm:"type:decimal(5,2);not null" json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Topping) TableName() string {
	return "toppings"
}

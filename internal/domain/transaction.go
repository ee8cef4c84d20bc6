package domain

import "time"

// Transaction records a captured payment. Every field except Amount and
// Description is assigned by the server.
type Transaction struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID         int64     `gorm:"index;not null" json:"user,string"`
	Amount         Money     `gorm:"type:decimal(10,2);not null" json:"amount"`
	Timestamp      time.Time `gorm:"index;not null" json:"timestamp"`
	StripeChargeID string    `gorm:"size:50;index" json:"stripe_charge_id"`
	Description    string    `gorm:"size:255" json:"description"`
	Paid           bool      `gorm:"not null;default:false" json:"paid"`
}

func (Transaction) TableName() string {
	return "transactions"
}

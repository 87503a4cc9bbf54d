package models

import "time"

// Expense represents money spent by a user, optionally filed under a category.
// Amount is stored in minor units (cents).
type Expense struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID  *string   `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `gorm:"not null;index" json:"date"`
}

package models

// CategoryStatus represents whether a category can be picked for new expenses
type CategoryStatus string

const (
	CategoryStatusActive   CategoryStatus = "active"
	CategoryStatusInactive CategoryStatus = "inactive"
)

// Display defaults applied when a category is created without icon or color.
const (
	DefaultCategoryIcon  = "folder"
	DefaultCategoryColor = "#6c757d"
)

// Category represents an expense category. Categories form a per-user tree
// through ParentID; children are looked up by parent, never embedded.
type Category struct {
	Base
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	ParentID    *string        `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"size:500" json:"description"`
	Icon        string         `gorm:"size:50" json:"icon"`
	Color       string         `gorm:"size:7" json:"color"`
	Status      CategoryStatus `gorm:"size:10;not null;default:active" json:"status"`
	CreatedBy   string         `gorm:"type:uuid" json:"created_by"`
	UpdatedBy   string         `gorm:"type:uuid" json:"updated_by"`
}

// IsActive reports whether the category is active.
func (c *Category) IsActive() bool {
	return c.Status == CategoryStatusActive
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

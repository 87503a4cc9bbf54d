package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"budgetly/internal/models"
)

// NewOwnerID returns a fresh owner id.
func NewOwnerID() string {
	return uuid.NewString()
}

// CreateTestCategory inserts an active category directly, bypassing the
// service rules. parentID may be nil for a root.
func CreateTestCategory(t *testing.T, db *gorm.DB, ownerID, name string, parentID *string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID:    ownerID,
		ParentID:  parentID,
		Name:      name,
		Icon:      models.DefaultCategoryIcon,
		Color:     models.DefaultCategoryColor,
		Status:    models.CategoryStatusActive,
		CreatedBy: ownerID,
		UpdatedBy: ownerID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category %q: %v", name, err)
	}
	return category
}

// CreateTestExpense records an expense of the given amount in cents.
func CreateTestExpense(t *testing.T, db *gorm.DB, ownerID, categoryID string, cents int64, date time.Time) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		UserID:      ownerID,
		CategoryID:  &categoryID,
		Amount:      cents,
		Description: "test expense",
		Date:        date,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// ReloadCategory reads a category back from the database, including rows
// soft-deleted by GORM. It returns nil when the row is gone.
func ReloadCategory(t *testing.T, db *gorm.DB, id string) *models.Category {
	t.Helper()

	var category models.Category
	err := db.Unscoped().Where("id = ?", id).Limit(1).Find(&category).Error
	if err != nil {
		t.Fatalf("failed to reload category %s: %v", id, err)
	}
	if category.ID == "" {
		return nil
	}
	return &category
}

package services

import (
	"context"

	"github.com/shopspring/decimal"

	"budgetly/internal/models"
	"budgetly/internal/pagination"
	"budgetly/internal/repository"
)

// CreateCategoryInput holds the fields accepted when creating a category.
type CreateCategoryInput struct {
	Name        string
	ParentID    *string
	Description string
	Icon        string
	Color       string
}

// UpdateCategoryInput holds the display fields that may change in place.
// Nil fields are left untouched.
type UpdateCategoryInput struct {
	Description *string
	Icon        *string
	Color       *string
}

// DeleteState is the terminal state of a delete request.
type DeleteState string

const (
	DeleteStateDeactivated DeleteState = "deactivated"
	DeleteStateDeleted     DeleteState = "deleted"
	DeleteStateFailed      DeleteState = "failed"
)

// DeleteOutcome reports what a delete request did to a category.
type DeleteOutcome struct {
	State  DeleteState `json:"state"`
	Reason string      `json:"reason,omitempty"`
}

// BulkDeleteResult tallies the outcomes of a bulk delete.
type BulkDeleteResult struct {
	DeletedCount     int                      `json:"deleted_count"`
	DeactivatedCount int                      `json:"deactivated_count"`
	FailedCount      int                      `json:"failed_count"`
	Outcomes         map[string]DeleteOutcome `json:"outcomes"`
}

// CategoryServicer defines the contract for the expense category tree.
// Every operation is scoped to the owner passed in.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, ownerID string, input CreateCategoryInput) (*models.Category, error)
	GetCategoryByID(ctx context.Context, ownerID, categoryID string) (*models.Category, error)
	GetUserCategories(ctx context.Context, ownerID string, filter repository.CategoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	RenameCategory(ctx context.Context, ownerID, categoryID, name string) (*models.Category, error)
	MoveCategory(ctx context.Context, ownerID, categoryID string, newParentID *string) (*models.Category, error)
	UpdateCategory(ctx context.Context, ownerID, categoryID string, input UpdateCategoryInput) (*models.Category, error)
	ToggleStatus(ctx context.Context, ownerID, categoryID string) (*models.Category, error)
	DeleteCategory(ctx context.Context, ownerID, categoryID string, cascadeChildren bool) (DeleteOutcome, error)
	BulkDeleteCategories(ctx context.Context, ownerID string, categoryIDs []string, cascadeChildren bool) BulkDeleteResult

	GetAncestors(ctx context.Context, ownerID, categoryID string) ([]models.Category, error)
	GetDescendantIDs(ctx context.Context, ownerID, categoryID string) ([]string, error)
	GetBreadcrumbPath(ctx context.Context, ownerID, categoryID string) ([]string, error)
	BuildTree(ctx context.Context, ownerID string, activeOnly bool) ([]*TreeNode, error)
	FlattenForDropdown(ctx context.Context, ownerID string, excludeID *string, activeOnly bool) ([]DropdownOption, error)
	WidgetProjection(ctx context.Context, ownerID string, activeOnly bool) ([]WidgetNode, error)

	TotalExpense(ctx context.Context, ownerID, categoryID string, rng repository.DateRange, includeChildren bool) (decimal.Decimal, error)
	ExpenseCount(ctx context.Context, ownerID, categoryID string, rng repository.DateRange, includeChildren bool) (int64, error)
	CanDelete(ctx context.Context, ownerID, categoryID string) (bool, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "budgetly/internal/errors"
	"budgetly/internal/logger"
	"budgetly/internal/models"
	"budgetly/internal/pagination"
	"budgetly/internal/repository"
	appvalidator "budgetly/internal/validator"
)

// categoryService manages the per-user expense category tree.
type categoryService struct {
	repo     repository.CategoryRepository
	validate *validator.Validate
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(repo repository.CategoryRepository) CategoryServicer {
	return &categoryService{
		repo:     repo,
		validate: appvalidator.New(),
	}
}

// categoryFields mirrors the user-editable columns for rule checks.
type categoryFields struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=50"`
	Color       string `json:"color" validate:"omitempty,hex_color"`
}

// CreateCategory validates and stores a new category for the owner.
func (s *categoryService) CreateCategory(ctx context.Context, ownerID string, input CreateCategoryInput) (*models.Category, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}

	category := &models.Category{
		UserID:      ownerID,
		ParentID:    normalizeID(input.ParentID),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Icon:        strings.TrimSpace(input.Icon),
		Color:       strings.TrimSpace(input.Color),
		Status:      models.CategoryStatusActive,
	}

	fields := s.checkFields(category)
	fields = append(fields, checkPlacement(ix, "", category.ParentID, category.Name, 0)...)
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	if category.Icon == "" {
		category.Icon = models.DefaultCategoryIcon
	}
	if category.Color == "" {
		category.Color = models.DefaultCategoryColor
		if category.ParentID != nil {
			if parent, ok := ix.get(*category.ParentID); ok && parent.Color != "" {
				category.Color = parent.Color
			}
		}
	}

	if err := s.repo.Save(ctx, ownerID, category); err != nil {
		return nil, storageError(err)
	}
	return category, nil
}

// GetCategoryByID retrieves a category owned by the user.
func (s *categoryService) GetCategoryByID(ctx context.Context, ownerID, categoryID string) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, categoryID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, storageError(err)
	}
	return category, nil
}

// GetUserCategories retrieves a paginated flat list of the owner's categories.
func (s *categoryService) GetUserCategories(ctx context.Context, ownerID string, filter repository.CategoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	categories, total, err := s.repo.Page(ctx, ownerID, filter, page)
	if err != nil {
		return nil, storageError(err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, total)
	return &result, nil
}

// RenameCategory changes the name of a category under its current parent.
func (s *categoryService) RenameCategory(ctx context.Context, ownerID, categoryID, name string) (*models.Category, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	current, ok := ix.get(categoryID)
	if !ok {
		return nil, apperrors.ErrCategoryNotFound
	}

	category := *current
	category.Name = strings.TrimSpace(name)

	fields := s.checkFields(&category)
	if category.Name != "" && ix.siblingNameTaken(category.ParentID, category.Name, category.ID) {
		fields = append(fields, duplicateName())
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	if err := s.repo.Save(ctx, ownerID, &category); err != nil {
		return nil, storageError(err)
	}
	return &category, nil
}

// MoveCategory reparents a category. Its children move along with it and
// keep their relative structure.
func (s *categoryService) MoveCategory(ctx context.Context, ownerID, categoryID string, newParentID *string) (*models.Category, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	current, ok := ix.get(categoryID)
	if !ok {
		return nil, apperrors.ErrCategoryNotFound
	}

	newParentID = normalizeID(newParentID)
	if fields := checkPlacement(ix, current.ID, newParentID, current.Name, ix.height(current.ID)); len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	if parentKey(newParentID) == parentKey(current.ParentID) {
		category := *current
		return &category, nil
	}

	if err := s.repo.UpdateParent(ctx, ownerID, current.ID, newParentID); err != nil {
		return nil, storageError(err)
	}
	return s.GetCategoryByID(ctx, ownerID, current.ID)
}

// UpdateCategory changes the description, icon or color of a category.
func (s *categoryService) UpdateCategory(ctx context.Context, ownerID, categoryID string, input UpdateCategoryInput) (*models.Category, error) {
	category, err := s.GetCategoryByID(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		category.Description = strings.TrimSpace(*input.Description)
	}
	if input.Icon != nil {
		category.Icon = strings.TrimSpace(*input.Icon)
		if category.Icon == "" {
			category.Icon = models.DefaultCategoryIcon
		}
	}
	if input.Color != nil {
		category.Color = strings.TrimSpace(*input.Color)
		if category.Color == "" {
			category.Color = models.DefaultCategoryColor
		}
	}

	if fields := s.checkFields(category); len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	if err := s.repo.Save(ctx, ownerID, category); err != nil {
		return nil, storageError(err)
	}
	return category, nil
}

// ToggleStatus flips a category between active and inactive. Children are
// not affected.
func (s *categoryService) ToggleStatus(ctx context.Context, ownerID, categoryID string) (*models.Category, error) {
	category, err := s.GetCategoryByID(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}

	next := models.CategoryStatusInactive
	if !category.IsActive() {
		next = models.CategoryStatusActive
	}

	if err := s.repo.SetStatus(ctx, ownerID, []string{category.ID}, next); err != nil {
		return nil, storageError(err)
	}
	category.Status = next
	category.UpdatedBy = ownerID
	return category, nil
}

// GetAncestors returns the parent chain of a category, root first.
func (s *categoryService) GetAncestors(ctx context.Context, ownerID, categoryID string) ([]models.Category, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	if _, ok := ix.get(categoryID); !ok {
		return nil, apperrors.ErrCategoryNotFound
	}

	chain := ix.ancestors(categoryID)
	out := make([]models.Category, 0, len(chain))
	for _, c := range chain {
		out = append(out, *c)
	}
	return out, nil
}

// GetDescendantIDs returns the ids of every category below the given one.
func (s *categoryService) GetDescendantIDs(ctx context.Context, ownerID, categoryID string) ([]string, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	if _, ok := ix.get(categoryID); !ok {
		return nil, apperrors.ErrCategoryNotFound
	}
	return ids(ix.descendants(categoryID)), nil
}

// GetBreadcrumbPath returns the names from the root down to the category itself.
func (s *categoryService) GetBreadcrumbPath(ctx context.Context, ownerID, categoryID string) ([]string, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	category, ok := ix.get(categoryID)
	if !ok {
		return nil, apperrors.ErrCategoryNotFound
	}

	chain := ix.ancestors(categoryID)
	path := make([]string, 0, len(chain)+1)
	for _, c := range chain {
		path = append(path, c.Name)
	}
	return append(path, category.Name), nil
}

// BuildTree returns the owner's categories nested under their parents.
// With activeOnly, inactive categories are omitted along with their subtrees.
func (s *categoryService) BuildTree(ctx context.Context, ownerID string, activeOnly bool) ([]*TreeNode, error) {
	filter := repository.CategoryFilter{}
	if activeOnly {
		active := models.CategoryStatusActive
		filter.Status = &active
	}

	ix, err := s.snapshot(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	return buildTree(ix), nil
}

// FlattenForDropdown lists the tree in pre-order with depth-indented labels.
// excludeID and all of its descendants are left out.
func (s *categoryService) FlattenForDropdown(ctx context.Context, ownerID string, excludeID *string, activeOnly bool) ([]DropdownOption, error) {
	tree, err := s.BuildTree(ctx, ownerID, activeOnly)
	if err != nil {
		return nil, err
	}
	return flattenTree(tree, parentKey(normalizeID(excludeID))), nil
}

// WidgetProjection returns the tree shaped for a tree widget.
func (s *categoryService) WidgetProjection(ctx context.Context, ownerID string, activeOnly bool) ([]WidgetNode, error) {
	tree, err := s.BuildTree(ctx, ownerID, activeOnly)
	if err != nil {
		return nil, err
	}
	return widgetNodes(tree, 0), nil
}

// TotalExpense sums the expenses filed under a category, optionally within a
// date range and including every descendant.
func (s *categoryService) TotalExpense(ctx context.Context, ownerID, categoryID string, rng repository.DateRange, includeChildren bool) (decimal.Decimal, error) {
	scope, err := s.scopeIDs(ctx, ownerID, categoryID, includeChildren)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := s.repo.SumExpenses(ctx, scope, rng)
	if err != nil {
		return decimal.Zero, storageError(err)
	}
	return total, nil
}

// ExpenseCount counts the expenses filed under a category, optionally within
// a date range and including every descendant.
func (s *categoryService) ExpenseCount(ctx context.Context, ownerID, categoryID string, rng repository.DateRange, includeChildren bool) (int64, error) {
	scope, err := s.scopeIDs(ctx, ownerID, categoryID, includeChildren)
	if err != nil {
		return 0, err
	}

	count, err := s.repo.CountExpenses(ctx, scope, rng)
	if err != nil {
		return 0, storageError(err)
	}
	return count, nil
}

// CanDelete reports whether neither the category nor any descendant has expenses.
func (s *categoryService) CanDelete(ctx context.Context, ownerID, categoryID string) (bool, error) {
	count, err := s.ExpenseCount(ctx, ownerID, categoryID, repository.DateRange{}, true)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// snapshot loads the owner's categories once and indexes them by parent.
func (s *categoryService) snapshot(ctx context.Context, ownerID string, filter repository.CategoryFilter) (*categoryIndex, error) {
	categories, err := s.repo.FindByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, storageError(err)
	}
	return newCategoryIndex(categories), nil
}

// scopeIDs resolves a category (and optionally its descendants) to ids.
func (s *categoryService) scopeIDs(ctx context.Context, ownerID, categoryID string, includeChildren bool) ([]string, error) {
	if !includeChildren {
		category, err := s.GetCategoryByID(ctx, ownerID, categoryID)
		if err != nil {
			return nil, err
		}
		return []string{category.ID}, nil
	}

	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	if _, ok := ix.get(categoryID); !ok {
		return nil, apperrors.ErrCategoryNotFound
	}
	return append([]string{categoryID}, ids(ix.descendants(categoryID))...), nil
}

func (s *categoryService) checkFields(c *models.Category) []apperrors.FieldError {
	err := s.validate.Struct(categoryFields{
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
	})
	if err == nil {
		return nil
	}
	if fields := appvalidator.FieldErrors(err); fields != nil {
		return fields
	}
	logger.Get().Errorw("category field validation failed unexpectedly", "error", err)
	return []apperrors.FieldError{{Field: "category", Rule: "invalid", Message: err.Error()}}
}

// checkPlacement validates where a category would sit in the tree: the parent
// must exist for the owner, must not be the category or one of its
// descendants, the deepest node of the moved subtree must stay within
// MaxCategoryDepth levels and the name must be free among the new siblings.
// categoryID is empty for categories that do not exist yet.
func checkPlacement(ix *categoryIndex, categoryID string, parentID *string, name string, height int) []apperrors.FieldError {
	var fields []apperrors.FieldError

	parentLevels := 0
	if parentID != nil {
		switch parent, ok := ix.get(*parentID); {
		case !ok:
			fields = append(fields, apperrors.FieldError{
				Field: "parent_id", Rule: apperrors.RuleNotFound, Message: "parent category not found",
			})
		case categoryID != "" && (parent.ID == categoryID || ix.isDescendant(parent.ID, categoryID)):
			fields = append(fields, apperrors.FieldError{
				Field: "parent_id", Rule: apperrors.RuleCycle, Message: "a category cannot be moved under itself or one of its descendants",
			})
		default:
			parentLevels = ix.depth(parent.ID) + 1
		}
	}

	if len(fields) == 0 && parentLevels+1+height > MaxCategoryDepth {
		fields = append(fields, apperrors.FieldError{
			Field:   "parent_id",
			Rule:    apperrors.RuleMaxDepth,
			Message: fmt.Sprintf("categories cannot be nested more than %d levels deep", MaxCategoryDepth),
		})
	}

	if name != "" && ix.siblingNameTaken(parentID, name, categoryID) {
		fields = append(fields, duplicateName())
	}
	return fields
}

func duplicateName() apperrors.FieldError {
	return apperrors.FieldError{
		Field: "name", Rule: apperrors.RuleDuplicate, Message: "a category with this name already exists at this level",
	}
}

// storageError classifies a repository failure. Unique index violations are
// reported like the sibling-name check that should have caught them.
func storageError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.NewValidationError(duplicateName())
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrStorage, err)
}

// normalizeID treats a pointer to an empty string like nil.
func normalizeID(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	return &trimmed
}

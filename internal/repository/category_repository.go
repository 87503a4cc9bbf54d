// Package repository is the persistence gateway for categories and the
// expense aggregates that constrain them. Errors are returned as produced by
// GORM so callers can tell not-found, duplicate-key and storage failures apart.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetly/internal/models"
	"budgetly/internal/pagination"
)

// DateRange bounds expense queries. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// CategoryFilter narrows owner-scoped category queries.
type CategoryFilter struct {
	Status    *models.CategoryStatus
	ParentID  *string
	RootsOnly bool
	Search    string
}

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	FindByID(ctx context.Context, id, ownerID string) (*models.Category, error)
	FindByOwner(ctx context.Context, ownerID string, filter CategoryFilter) ([]models.Category, error)
	FindChildren(ctx context.Context, parentID string) ([]models.Category, error)
	Page(ctx context.Context, ownerID string, filter CategoryFilter, page pagination.PageRequest) ([]models.Category, int64, error)
	Save(ctx context.Context, actorID string, category *models.Category) error
	UpdateParent(ctx context.Context, actorID, id string, parentID *string) error
	SetStatus(ctx context.Context, actorID string, ids []string, status models.CategoryStatus) error
	DeleteRow(ctx context.Context, id string) (bool, error)
	CountExpenses(ctx context.Context, categoryIDs []string, rng DateRange) (int64, error)
	SumExpenses(ctx context.Context, categoryIDs []string, rng DateRange) (decimal.Decimal, error)
	ExpenseCounts(ctx context.Context, categoryIDs []string) (map[string]int64, error)
	RunInTransaction(ctx context.Context, fn func(repo CategoryRepository) error) error
}

// GormCategoryRepository implements CategoryRepository using GORM.
type GormCategoryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCategoryRepository creates a new GormCategoryRepository.
func NewGormCategoryRepository(db *gorm.DB) CategoryRepository {
	return &GormCategoryRepository{db: db, now: time.Now}
}

// FindByID retrieves a category by id, scoped to its owner.
func (r *GormCategoryRepository) FindByID(ctx context.Context, id, ownerID string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByOwner loads every category of an owner that matches the filter,
// ordered by name.
func (r *GormCategoryRepository) FindByOwner(ctx context.Context, ownerID string, filter CategoryFilter) ([]models.Category, error) {
	var categories []models.Category
	err := applyCategoryFilter(r.db.WithContext(ctx).Where("user_id = ?", ownerID), filter).
		Order("name ASC, id ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// FindChildren loads the direct children of a category.
func (r *GormCategoryRepository) FindChildren(ctx context.Context, parentID string) ([]models.Category, error) {
	var children []models.Category
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("name ASC, id ASC").
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

// Page retrieves one page of an owner's categories plus the total count.
func (r *GormCategoryRepository) Page(ctx context.Context, ownerID string, filter CategoryFilter, page pagination.PageRequest) ([]models.Category, int64, error) {
	page.Defaults()

	query := func() *gorm.DB {
		return applyCategoryFilter(r.db.WithContext(ctx).Model(&models.Category{}).Where("user_id = ?", ownerID), filter)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var categories []models.Category
	if err := query().Scopes(pagination.Paginate(page)).
		Order("name ASC, id ASC").
		Find(&categories).Error; err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

// Save stamps audit fields and writes the category. Rows without an id are
// inserted, all others are fully updated.
func (r *GormCategoryRepository) Save(ctx context.Context, actorID string, category *models.Category) error {
	now := r.now()
	category.UpdatedAt = now
	category.UpdatedBy = actorID

	if category.ID == "" {
		category.CreatedAt = now
		category.CreatedBy = actorID
		return r.db.WithContext(ctx).Create(category).Error
	}
	return r.db.WithContext(ctx).Save(category).Error
}

// UpdateParent changes only the parent reference (and audit fields) of a category.
func (r *GormCategoryRepository) UpdateParent(ctx context.Context, actorID, id string, parentID *string) error {
	var parent any
	if parentID != nil {
		parent = *parentID
	}
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"parent_id":  parent,
			"updated_by": actorID,
			"updated_at": r.now(),
		}).Error
}

// SetStatus sets the status of every listed category.
func (r *GormCategoryRepository) SetStatus(ctx context.Context, actorID string, ids []string, status models.CategoryStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":     status,
			"updated_by": actorID,
			"updated_at": r.now(),
		}).Error
}

// DeleteRow permanently removes a category row. It reports whether a row was removed.
func (r *GormCategoryRepository) DeleteRow(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Unscoped().Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountExpenses counts expenses filed under any of the given categories.
func (r *GormCategoryRepository) CountExpenses(ctx context.Context, categoryIDs []string, rng DateRange) (int64, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := applyDateRange(r.db.WithContext(ctx).Model(&models.Expense{}).Where("category_id IN ?", categoryIDs), rng).
		Count(&count).Error
	return count, err
}

// SumExpenses sums expense amounts filed under any of the given categories.
func (r *GormCategoryRepository) SumExpenses(ctx context.Context, categoryIDs []string, rng DateRange) (decimal.Decimal, error) {
	if len(categoryIDs) == 0 {
		return decimal.Zero, nil
	}
	var cents int64
	err := applyDateRange(r.db.WithContext(ctx).Model(&models.Expense{}).Where("category_id IN ?", categoryIDs), rng).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&cents).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(cents, -2), nil
}

// ExpenseCounts returns the number of expenses per category for the given
// categories in a single grouped query. Categories without expenses are absent.
func (r *GormCategoryRepository) ExpenseCounts(ctx context.Context, categoryIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	if len(categoryIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		CategoryID string
		Total      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Expense{}).
		Select("category_id, COUNT(*) AS total").
		Where("category_id IN ?", categoryIDs).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.CategoryID] = row.Total
	}
	return counts, nil
}

// RunInTransaction runs fn against a repository bound to a single database
// transaction. Any error returned by fn rolls the transaction back.
func (r *GormCategoryRepository) RunInTransaction(ctx context.Context, fn func(repo CategoryRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormCategoryRepository{db: tx, now: r.now})
	})
}

func applyCategoryFilter(q *gorm.DB, f CategoryFilter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.RootsOnly {
		q = q.Where("parent_id IS NULL")
	} else if f.ParentID != nil {
		q = q.Where("parent_id = ?", *f.ParentID)
	}
	if f.Search != "" {
		q = q.Where("name LIKE ?", "%"+f.Search+"%")
	}
	return q
}

func applyDateRange(q *gorm.DB, rng DateRange) *gorm.DB {
	if rng.From != nil {
		q = q.Where("date >= ?", *rng.From)
	}
	if rng.To != nil {
		q = q.Where("date <= ?", *rng.To)
	}
	return q
}

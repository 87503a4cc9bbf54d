package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "budgetly/internal/errors"
	"budgetly/internal/logger"
	"budgetly/internal/models"
	"budgetly/internal/repository"
)

// deletePlan is the result of evaluating a delete request: the target, its
// subtree in pre-order and whether expenses block removing rows.
type deletePlan struct {
	index                *categoryIndex
	target               *models.Category
	descendants          []*models.Category
	hasOwnExpenses       bool
	hasBlockedDescendant bool
}

func (p *deletePlan) blocked() bool {
	return p.hasOwnExpenses || p.hasBlockedDescendant
}

// DeleteCategory removes a category when no expense in its subtree refers to
// it and deactivates it otherwise. cascadeChildren decides whether the
// subtree shares the target's fate or, on hard delete, moves up one level.
// A failed outcome is always accompanied by the error that caused it.
func (s *categoryService) DeleteCategory(ctx context.Context, ownerID, categoryID string, cascadeChildren bool) (DeleteOutcome, error) {
	plan, err := s.evaluateDelete(ctx, ownerID, categoryID)
	if err != nil {
		return failedOutcome(err), err
	}

	if plan.blocked() {
		if err := s.softDelete(ctx, ownerID, plan, cascadeChildren); err != nil {
			return failedOutcome(err), err
		}
		return DeleteOutcome{State: DeleteStateDeactivated}, nil
	}

	if err := s.hardDelete(ctx, plan, cascadeChildren); err != nil {
		return failedOutcome(err), err
	}
	return DeleteOutcome{State: DeleteStateDeleted}, nil
}

// BulkDeleteCategories applies DeleteCategory to every id independently and
// tallies the outcomes. A failing id never stops the rest of the batch.
func (s *categoryService) BulkDeleteCategories(ctx context.Context, ownerID string, categoryIDs []string, cascadeChildren bool) BulkDeleteResult {
	result := BulkDeleteResult{Outcomes: make(map[string]DeleteOutcome, len(categoryIDs))}

	for _, id := range categoryIDs {
		outcome, err := s.DeleteCategory(ctx, ownerID, id, cascadeChildren)
		result.Outcomes[id] = outcome

		switch outcome.State {
		case DeleteStateDeleted:
			result.DeletedCount++
		case DeleteStateDeactivated:
			result.DeactivatedCount++
		default:
			result.FailedCount++
			logger.Get().Warnw("bulk category delete item failed",
				"owner_id", ownerID,
				"category_id", id,
				"error", err,
			)
		}
	}
	return result
}

func (s *categoryService) evaluateDelete(ctx context.Context, ownerID, categoryID string) (*deletePlan, error) {
	ix, err := s.snapshot(ctx, ownerID, repository.CategoryFilter{})
	if err != nil {
		return nil, err
	}
	target, ok := ix.get(categoryID)
	if !ok {
		return nil, apperrors.ErrCategoryNotFound
	}

	plan := &deletePlan{
		index:       ix,
		target:      target,
		descendants: ix.descendants(categoryID),
	}

	counts, err := s.repo.ExpenseCounts(ctx, append([]string{target.ID}, ids(plan.descendants)...))
	if err != nil {
		return nil, storageError(err)
	}
	plan.hasOwnExpenses = counts[target.ID] > 0
	for _, d := range plan.descendants {
		if counts[d.ID] > 0 {
			plan.hasBlockedDescendant = true
			break
		}
	}
	return plan, nil
}

// softDelete deactivates the target and, with cascade, its whole subtree in
// a single statement.
func (s *categoryService) softDelete(ctx context.Context, ownerID string, plan *deletePlan, cascade bool) error {
	targets := []string{plan.target.ID}
	if cascade {
		targets = append(targets, ids(plan.descendants)...)
	}
	if err := s.repo.SetStatus(ctx, ownerID, targets, models.CategoryStatusInactive); err != nil {
		return storageError(err)
	}
	return nil
}

// hardDelete removes rows inside one transaction. With cascade the subtree is
// deleted bottom-up; without it the direct children are reattached to the
// target's parent.
func (s *categoryService) hardDelete(ctx context.Context, plan *deletePlan, cascade bool) error {
	target := plan.target
	children := plan.index.childrenOf(target.ID)

	if !cascade {
		var fields []apperrors.FieldError
		for _, child := range children {
			if plan.index.siblingNameTaken(target.ParentID, child.Name, target.ID) {
				fields = append(fields, apperrors.FieldError{
					Field:   "children",
					Rule:    apperrors.RuleDuplicate,
					Message: fmt.Sprintf("child %q would clash with an existing category one level up", child.Name),
				})
			}
		}
		if len(fields) > 0 {
			return apperrors.NewValidationError(fields...)
		}
	}

	err := s.repo.RunInTransaction(ctx, func(repo repository.CategoryRepository) error {
		if cascade {
			for i := len(plan.descendants) - 1; i >= 0; i-- {
				if err := deleteRow(ctx, repo, plan.descendants[i].ID); err != nil {
					return err
				}
			}
			return deleteRow(ctx, repo, target.ID)
		}

		// The target goes first so a child sharing its name can take its place.
		if err := deleteRow(ctx, repo, target.ID); err != nil {
			return err
		}
		for _, child := range children {
			if err := repo.UpdateParent(ctx, target.UserID, child.ID, target.ParentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Get().Errorw("category delete rolled back",
			"owner_id", target.UserID,
			"category_id", target.ID,
			"cascade", cascade,
			"error", err,
		)
		return storageError(err)
	}
	return nil
}

var errRowVanished = errors.New("category row no longer exists")

func deleteRow(ctx context.Context, repo repository.CategoryRepository, id string) error {
	removed, err := repo.DeleteRow(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("delete %s: %w", id, errRowVanished)
	}
	return nil
}

func failedOutcome(err error) DeleteOutcome {
	return DeleteOutcome{State: DeleteStateFailed, Reason: err.Error()}
}

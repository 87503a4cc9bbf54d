package services

import (
	"context"
	"testing"
	"time"

	apperrors "budgetly/internal/errors"
	"budgetly/internal/models"
	"budgetly/internal/testutil"
)

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()
	spent := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("expenses_deactivate_instead_of_delete", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		rent := mustCreate(t, svc, owner, "Rent", nil)
		for i := 0; i < 3; i++ {
			testutil.CreateTestExpense(t, db, owner, rent.ID, 120000, spent)
		}

		outcome, err := svc.DeleteCategory(ctx, owner, rent.ID, false)
		testutil.AssertNoError(t, err)
		if outcome.State != DeleteStateDeactivated {
			t.Fatalf("expected deactivated, got %s", outcome.State)
		}

		row := testutil.ReloadCategory(t, db, rent.ID)
		if row == nil {
			t.Fatal("expected the row to remain")
		}
		if row.Status != models.CategoryStatusInactive {
			t.Errorf("expected inactive, got %s", row.Status)
		}
	})

	t.Run("children_move_up_one_level", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		home := mustCreate(t, svc, owner, "Home", nil)
		temp := mustCreate(t, svc, owner, "Temp", &home.ID)
		child := mustCreate(t, svc, owner, "TempChild", &temp.ID)

		outcome, err := svc.DeleteCategory(ctx, owner, temp.ID, false)
		testutil.AssertNoError(t, err)
		if outcome.State != DeleteStateDeleted {
			t.Fatalf("expected deleted, got %s", outcome.State)
		}

		if testutil.ReloadCategory(t, db, temp.ID) != nil {
			t.Error("expected Temp to be gone")
		}
		row := testutil.ReloadCategory(t, db, child.ID)
		if row == nil || row.ParentID == nil || *row.ParentID != home.ID {
			t.Errorf("expected TempChild under Home, got %+v", row)
		}
	})

	t.Run("children_of_a_root_become_roots", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		temp := mustCreate(t, svc, owner, "Temp", nil)
		child := mustCreate(t, svc, owner, "TempChild", &temp.ID)

		_, err := svc.DeleteCategory(ctx, owner, temp.ID, false)
		testutil.AssertNoError(t, err)

		row := testutil.ReloadCategory(t, db, child.ID)
		if row == nil || row.ParentID != nil {
			t.Errorf("expected TempChild to be a root, got %+v", row)
		}
	})

	t.Run("child_may_take_the_name_of_its_deleted_parent", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		misc := mustCreate(t, svc, owner, "Misc", nil)
		inner := mustCreate(t, svc, owner, "Misc", &misc.ID)

		_, err := svc.DeleteCategory(ctx, owner, misc.ID, false)
		testutil.AssertNoError(t, err)

		row := testutil.ReloadCategory(t, db, inner.ID)
		if row == nil || row.ParentID != nil {
			t.Errorf("expected inner Misc to become a root, got %+v", row)
		}
	})

	t.Run("child_name_clash_fails_without_changes", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		mustCreate(t, svc, owner, "Snacks", nil)
		temp := mustCreate(t, svc, owner, "Temp", nil)
		snacks := mustCreate(t, svc, owner, "Snacks", &temp.ID)

		outcome, err := svc.DeleteCategory(ctx, owner, temp.ID, false)
		testutil.AssertValidationRule(t, err, "children", apperrors.RuleDuplicate)
		if outcome.State != DeleteStateFailed || outcome.Reason == "" {
			t.Errorf("expected failed outcome with reason, got %+v", outcome)
		}

		if testutil.ReloadCategory(t, db, temp.ID) == nil {
			t.Error("expected Temp to remain")
		}
		row := testutil.ReloadCategory(t, db, snacks.ID)
		if row.ParentID == nil || *row.ParentID != temp.ID {
			t.Error("expected nested Snacks to stay under Temp")
		}
	})

	t.Run("cascade_removes_subtree", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		food := mustCreate(t, svc, owner, "Food", nil)
		dining := mustCreate(t, svc, owner, "Dining", &food.ID)
		coffee := mustCreate(t, svc, owner, "Coffee", &dining.ID)

		outcome, err := svc.DeleteCategory(ctx, owner, food.ID, true)
		testutil.AssertNoError(t, err)
		if outcome.State != DeleteStateDeleted {
			t.Fatalf("expected deleted, got %s", outcome.State)
		}
		for _, id := range []string{food.ID, dining.ID, coffee.ID} {
			if testutil.ReloadCategory(t, db, id) != nil {
				t.Errorf("expected %s to be gone", id)
			}
		}
	})

	t.Run("cascade_deactivates_subtree_blocked_by_descendant", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		food := mustCreate(t, svc, owner, "Food", nil)
		dining := mustCreate(t, svc, owner, "Dining", &food.ID)
		coffee := mustCreate(t, svc, owner, "Coffee", &dining.ID)
		testutil.CreateTestExpense(t, db, owner, coffee.ID, 450, spent)

		outcome, err := svc.DeleteCategory(ctx, owner, food.ID, true)
		testutil.AssertNoError(t, err)
		if outcome.State != DeleteStateDeactivated {
			t.Fatalf("expected deactivated, got %s", outcome.State)
		}
		for _, id := range []string{food.ID, dining.ID, coffee.ID} {
			row := testutil.ReloadCategory(t, db, id)
			if row == nil || row.Status != models.CategoryStatusInactive {
				t.Errorf("expected %s to be kept and inactive, got %+v", id, row)
			}
		}
	})

	t.Run("soft_delete_without_cascade_leaves_children_active", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		rent := mustCreate(t, svc, owner, "Rent", nil)
		deposit := mustCreate(t, svc, owner, "Deposit", &rent.ID)
		testutil.CreateTestExpense(t, db, owner, rent.ID, 5000, spent)

		_, err := svc.DeleteCategory(ctx, owner, rent.ID, false)
		testutil.AssertNoError(t, err)

		row := testutil.ReloadCategory(t, db, deposit.ID)
		if row.Status != models.CategoryStatusActive {
			t.Errorf("expected Deposit to stay active, got %s", row.Status)
		}
	})

	t.Run("unknown_id_fails", func(t *testing.T) {
		svc, _, owner := setupCategoryService(t)

		outcome, err := svc.DeleteCategory(ctx, owner, testutil.NewOwnerID(), false)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
		if outcome.State != DeleteStateFailed {
			t.Errorf("expected failed, got %s", outcome.State)
		}
	})

	t.Run("foreign_owner_cannot_delete", func(t *testing.T) {
		svc, db, owner := setupCategoryService(t)
		food := mustCreate(t, svc, owner, "Food", nil)

		_, err := svc.DeleteCategory(ctx, testutil.NewOwnerID(), food.ID, true)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
		if testutil.ReloadCategory(t, db, food.ID) == nil {
			t.Error("expected Food to remain")
		}
	})
}

func TestBulkDeleteCategories(t *testing.T) {
	ctx := context.Background()
	svc, db, owner := setupCategoryService(t)

	a := mustCreate(t, svc, owner, "A", nil)
	mustCreate(t, svc, owner, "A child", &a.ID)
	b := mustCreate(t, svc, owner, "B", nil)
	testutil.CreateTestExpense(t, db, owner, b.ID, 999, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	missing := testutil.NewOwnerID()

	result := svc.BulkDeleteCategories(ctx, owner, []string{a.ID, b.ID, missing}, true)

	if result.DeletedCount != 1 || result.DeactivatedCount != 1 || result.FailedCount != 1 {
		t.Fatalf("expected 1/1/1, got %d/%d/%d", result.DeletedCount, result.DeactivatedCount, result.FailedCount)
	}
	if result.Outcomes[a.ID].State != DeleteStateDeleted {
		t.Errorf("expected A deleted, got %s", result.Outcomes[a.ID].State)
	}
	if result.Outcomes[b.ID].State != DeleteStateDeactivated {
		t.Errorf("expected B deactivated, got %s", result.Outcomes[b.ID].State)
	}
	if o := result.Outcomes[missing]; o.State != DeleteStateFailed || o.Reason == "" {
		t.Errorf("expected missing id to fail with a reason, got %+v", o)
	}
}

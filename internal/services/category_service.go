package services

import (
	"context"
	"fmt"

	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
)

// CreateCategory checks the parent before the caller's role.
func (s *catalogService) CreateCategory(ctx context.Context, input models.CategoryInput, p models.Principal) (*models.Category, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:     input.Name,
		ParentID: input.ParentID,
		AdminID:  p.ID,
		IsActive: true,
	}
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		if input.ParentID != nil {
			if _, err := activeCategory(ctx, r, *input.ParentID, "parent category"); err != nil {
				return err
			}
		}
		if err := s.guard.Authorize(p, CreateCategory, nil).Err("category"); err != nil {
			return err
		}
		if err := r.Categories.Create(ctx, category); err != nil {
			return entityErr(err, "category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category created", zap.Int64("category_id", category.ID), zap.Int64("admin_id", p.ID))
	return category, nil
}

// UpdateCategory applies only the fields present in patch.
func (s *catalogService) UpdateCategory(ctx context.Context, id int64, patch models.CategoryPatch, p models.Principal) (*models.Category, error) {
	var updated *models.Category
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		category, err := r.Categories.LockActive(ctx, id)
		if err != nil {
			return entityErr(err, "category")
		}
		if err := s.guard.Authorize(p, UpdateCategory, category).Err("category"); err != nil {
			return err
		}
		if err := s.validator.Struct(patch); err != nil {
			return err
		}
		if patch.ParentID != nil {
			if err := s.checkParent(ctx, r, id, *patch.ParentID); err != nil {
				return err
			}
		}

		if err := r.Categories.Patch(ctx, id, patch); err != nil {
			return entityErr(err, "category")
		}
		updated, err = r.Categories.GetByID(ctx, id)
		if err != nil {
			return entityErr(err, "category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkParent rejects a missing or inactive parent and any parent that would close a cycle.
func (s *catalogService) checkParent(ctx context.Context, r *repositories.Repos, id, parentID int64) error {
	if parentID == id {
		return common.Validation("parent_id", "category cannot be its own parent")
	}
	// Concurrent re-parents must see each other's committed parent_id during the walk.
	if err := r.Categories.LockHierarchy(ctx); err != nil {
		return fmt.Errorf("lock category hierarchy: %w", err)
	}
	parent, err := activeCategory(ctx, r, parentID, "parent category")
	if err != nil {
		return err
	}

	current := parent
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= maxCategoryDepth {
			return common.Validation("parent_id", "category hierarchy is too deep")
		}
		if *current.ParentID == id {
			return common.Validation("parent_id", "would create a cycle")
		}
		current, err = r.Categories.GetByID(ctx, *current.ParentID)
		if err != nil {
			return entityErr(err, "parent category")
		}
	}
	return nil
}

// DeleteCategory soft-deletes the category only. Products and child categories keep pointing at it.
func (s *catalogService) DeleteCategory(ctx context.Context, id int64, p models.Principal) error {
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		category, err := r.Categories.LockActive(ctx, id)
		if err != nil {
			return entityErr(err, "category")
		}
		if err := s.guard.Authorize(p, DeleteCategory, category).Err("category"); err != nil {
			return err
		}
		if err := r.Categories.Deactivate(ctx, id); err != nil {
			return entityErr(err, "category")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("category deactivated", zap.Int64("category_id", id), zap.Int64("admin_id", p.ID))
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		var err error
		categories, err = r.Categories.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, entityErr(err, "categories")
	}
	return categories, nil
}

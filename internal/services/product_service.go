package services

import (
	"context"
	"errors"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
)

// ListProducts returns one page of active products ordered by id. Total ignores the window.
func (s *catalogService) ListProducts(ctx context.Context, filter models.ProductFilter, page, pageSize int) (*models.ProductPage, error) {
	if filter.MinPrice != nil && *filter.MinPrice < 0 {
		return nil, common.Validation("min_price", "must be >= 0")
	}
	if filter.MaxPrice != nil && *filter.MaxPrice < 0 {
		return nil, common.Validation("max_price", "must be >= 0")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, common.Validation("min_price", "must not be greater than max_price")
	}
	if err := common.ValidatePaginationParams(page, pageSize, MaxPageSize); err != nil {
		return nil, err
	}

	result := &models.ProductPage{Page: page, PageSize: pageSize}
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		var err error
		result.Total, err = r.Products.Count(ctx, filter)
		if err != nil {
			return err
		}
		result.Items, err = r.Products.List(ctx, filter, pageSize, (page-1)*pageSize)
		return err
	})
	if err != nil {
		return nil, entityErr(err, "products")
	}
	return result, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input models.ProductInput, p models.Principal) (*models.Product, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		CategoryID:  input.CategoryID,
		SellerID:    p.ID,
		IsActive:    true,
	}
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		if input.CategoryID != nil {
			if _, err := activeCategory(ctx, r, *input.CategoryID, "category"); err != nil {
				return err
			}
		}
		if err := s.guard.Authorize(p, CreateProduct, nil).Err("product"); err != nil {
			return err
		}
		if err := r.Products.Create(ctx, product); err != nil {
			return entityErr(err, "product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created", zap.Int64("product_id", product.ID), zap.Int64("seller_id", p.ID))
	return product, nil
}

// GetProduct reads through the product cache. Cache failures fall back to the store.
func (s *catalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if cached, err := s.cache.GetProduct(ctx, id); cached != nil {
		return cached, nil
	} else if err != nil {
		s.logger.Warn("product cache read failed", zap.Int64("product_id", id), zap.Error(err))
	}

	// The version must be read before the store so an invalidation in between is detected.
	version, versionErr := s.cache.ProductVersion(ctx, id)
	if versionErr != nil {
		s.logger.Warn("product cache version read failed", zap.Int64("product_id", id), zap.Error(versionErr))
	}

	var product *models.Product
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		var err error
		product, err = r.Products.GetActive(ctx, id)
		return err
	})
	if err != nil {
		return nil, entityErr(err, "product")
	}

	if versionErr != nil {
		return product, nil
	}
	err = s.cache.SetProduct(ctx, product, version, s.cacheTTL)
	switch {
	case errors.Is(err, caching.ErrVersionChanged):
		s.logger.Debug("product changed while caching, skipped", zap.Int64("product_id", id))
	case err != nil:
		s.logger.Warn("failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
	return product, nil
}

// UpdateProduct replaces every mutable field. Fields omitted from input are cleared.
func (s *catalogService) UpdateProduct(ctx context.Context, id int64, input models.ProductInput, p models.Principal) (*models.Product, error) {
	var updated *models.Product
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		product, err := r.Products.LockActive(ctx, id)
		if err != nil {
			return entityErr(err, "product")
		}
		if err := s.guard.Authorize(p, UpdateProduct, product).Err("product"); err != nil {
			return err
		}
		if err := s.validator.Struct(input); err != nil {
			return err
		}
		if input.CategoryID != nil {
			if _, err := activeCategory(ctx, r, *input.CategoryID, "category"); err != nil {
				return err
			}
		}

		if err := r.Products.Replace(ctx, id, input); err != nil {
			return entityErr(err, "product")
		}
		updated, err = r.Products.GetActive(ctx, id)
		if err != nil {
			return entityErr(err, "product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProduct(ctx, id)
	return updated, nil
}

// DeleteProduct soft-deletes the product. Its reviews stay as they are.
func (s *catalogService) DeleteProduct(ctx context.Context, id int64, p models.Principal) error {
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		product, err := r.Products.LockActive(ctx, id)
		if err != nil {
			return entityErr(err, "product")
		}
		if err := s.guard.Authorize(p, DeleteProduct, product).Err("product"); err != nil {
			return err
		}
		if err := r.Products.Deactivate(ctx, id); err != nil {
			return entityErr(err, "product")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateProduct(ctx, id)
	s.logger.Info("product deactivated", zap.Int64("product_id", id), zap.Int64("seller_id", p.ID))
	return nil
}

func (s *catalogService) ListReviewsForProduct(ctx context.Context, id int64) ([]*models.Review, error) {
	var reviews []*models.Review
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Products.GetActive(ctx, id); err != nil {
			return entityErr(err, "product")
		}
		var err error
		reviews, err = r.Reviews.ListActiveByProduct(ctx, id)
		if err != nil {
			return entityErr(err, "reviews")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *catalogService) ListProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	var products []*models.Product
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		if _, err := activeCategory(ctx, r, categoryID, "category"); err != nil {
			return err
		}
		var err error
		products, err = r.Products.ListActiveByCategory(ctx, categoryID)
		if err != nil {
			return entityErr(err, "products")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

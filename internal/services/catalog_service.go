package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
)

const (
	MaxPageSize = 100

	// maxCategoryDepth bounds the ancestor walk done when a category is re-parented.
	maxCategoryDepth = 64
)

// CatalogService owns categories and products.
type CatalogService interface {
	CreateCategory(ctx context.Context, input models.CategoryInput, p models.Principal) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, patch models.CategoryPatch, p models.Principal) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64, p models.Principal) error
	ListCategories(ctx context.Context) ([]*models.Category, error)

	ListProducts(ctx context.Context, filter models.ProductFilter, page, pageSize int) (*models.ProductPage, error)
	CreateProduct(ctx context.Context, input models.ProductInput, p models.Principal) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, input models.ProductInput, p models.Principal) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64, p models.Principal) error
	ListReviewsForProduct(ctx context.Context, id int64) ([]*models.Review, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error)
}

type catalogService struct {
	store     repositories.Store
	guard     Guard
	validator *common.Validator
	cache     caching.CacheService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

func NewCatalogService(store repositories.Store, guard Guard, validator *common.Validator, cache caching.CacheService, cacheTTL time.Duration, logger *zap.Logger) CatalogService {
	return &catalogService{
		store:     store,
		guard:     guard,
		validator: validator,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// entityErr turns a store miss into a NotFoundError for entity. Other errors are wrapped.
func entityErr(err error, entity string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return common.NotFound(entity)
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// activeCategory is the check shared by category parents and product categories.
func activeCategory(ctx context.Context, r *repositories.Repos, id int64, entity string) (*models.Category, error) {
	category, err := r.Categories.GetActive(ctx, id)
	if err != nil {
		return nil, entityErr(err, entity)
	}
	return category, nil
}

func (s *catalogService) invalidateProduct(ctx context.Context, id int64) {
	if err := s.cache.DeleteProduct(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
	}
}

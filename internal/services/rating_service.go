package services

import (
	"context"
	"fmt"

	"marketplace/internal/caching"
	"marketplace/internal/metrics"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
)

// RatingAggregator keeps products.rating equal to the mean of the product's active graded reviews.
type RatingAggregator interface {
	Recompute(ctx context.Context, productID int64) (*float64, error)
	RecomputeAll(ctx context.Context) (int, error)
}

type ratingService struct {
	store   repositories.Store
	cache   caching.CacheService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRatingService(store repositories.Store, cache caching.CacheService, m *metrics.Metrics, logger *zap.Logger) RatingAggregator {
	return &ratingService{store: store, cache: cache, metrics: m, logger: logger}
}

func meanGrade(grades []int) *float64 {
	if len(grades) == 0 {
		return nil
	}
	sum := 0
	for _, g := range grades {
		sum += g
	}
	mean := float64(sum) / float64(len(grades))
	return &mean
}

// Recompute locks the product row, so concurrent recomputes of one product serialize
// and the last to commit sees every committed review.
func (s *ratingService) Recompute(ctx context.Context, productID int64) (*float64, error) {
	var rating *float64
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Products.LockByID(ctx, productID); err != nil {
			return fmt.Errorf("lock product %d: %w", productID, err)
		}
		grades, err := r.Reviews.ActiveGrades(ctx, productID)
		if err != nil {
			return fmt.Errorf("load grades for product %d: %w", productID, err)
		}
		rating = meanGrade(grades)
		return r.Products.SetRating(ctx, productID, rating)
	})
	s.metrics.ObserveRecompute(err)
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.DeleteProduct(ctx, productID); cacheErr != nil {
		s.logger.Warn("failed to invalidate product cache", zap.Int64("product_id", productID), zap.Error(cacheErr))
	}
	return rating, nil
}

// RecomputeAll recomputes every product that has ever been reviewed and returns how many succeeded.
func (s *ratingService) RecomputeAll(ctx context.Context) (int, error) {
	var ids []int64
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		var err error
		ids, err = r.Reviews.ReviewedProductIDs(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list reviewed products: %w", err)
	}

	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.Recompute(ctx, id); err != nil {
			s.logger.Warn("rating recompute failed", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

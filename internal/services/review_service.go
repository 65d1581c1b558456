package services

import (
	"context"

	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
)

type ReviewService interface {
	CreateReview(ctx context.Context, input models.ReviewInput, p models.Principal) (*models.Review, error)
	DeleteReview(ctx context.Context, id int64, p models.Principal) error
	ListReviews(ctx context.Context) ([]*models.Review, error)
}

type reviewService struct {
	store     repositories.Store
	guard     Guard
	validator *common.Validator
	ratings   RatingAggregator
	logger    *zap.Logger
}

func NewReviewService(store repositories.Store, guard Guard, validator *common.Validator, ratings RatingAggregator, logger *zap.Logger) ReviewService {
	return &reviewService{
		store:     store,
		guard:     guard,
		validator: validator,
		ratings:   ratings,
		logger:    logger,
	}
}

// CreateReview stores the review, then recomputes the product rating in a separate transaction.
func (s *reviewService) CreateReview(ctx context.Context, input models.ReviewInput, p models.Principal) (*models.Review, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	review := &models.Review{
		UserID:    p.ID,
		ProductID: *input.ProductID,
		Grade:     input.Grade,
		Comment:   input.Comment,
		IsActive:  true,
	}
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Products.GetActive(ctx, review.ProductID); err != nil {
			return entityErr(err, "product")
		}
		if err := s.guard.Authorize(p, CreateReview, nil).Err("review"); err != nil {
			return err
		}
		if err := r.Reviews.Create(ctx, review); err != nil {
			return entityErr(err, "review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review created",
		zap.Int64("review_id", review.ID),
		zap.Int64("product_id", review.ProductID),
		zap.Int64("user_id", p.ID),
	)
	s.recompute(ctx, review.ProductID)
	return review, nil
}

// DeleteReview is admin-only. Deleting an already inactive review is NotFound.
func (s *reviewService) DeleteReview(ctx context.Context, id int64, p models.Principal) error {
	var productID int64
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		review, err := r.Reviews.LockActive(ctx, id)
		if err != nil {
			return entityErr(err, "review")
		}
		if err := s.guard.Authorize(p, DeleteReview, review).Err("review"); err != nil {
			return err
		}
		if err := r.Reviews.Deactivate(ctx, id); err != nil {
			return entityErr(err, "review")
		}
		productID = review.ProductID
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("review deactivated", zap.Int64("review_id", id), zap.Int64("admin_id", p.ID))
	s.recompute(ctx, productID)
	return nil
}

func (s *reviewService) ListReviews(ctx context.Context) ([]*models.Review, error) {
	var reviews []*models.Review
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		var err error
		reviews, err = r.Reviews.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, entityErr(err, "reviews")
	}
	return reviews, nil
}

// recompute runs after the review commit and never fails the caller.
func (s *reviewService) recompute(ctx context.Context, productID int64) {
	if _, err := s.ratings.Recompute(ctx, productID); err != nil {
		s.logger.Warn("rating recompute failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
	}
}

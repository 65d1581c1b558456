package handlers

import (
	"net/http"

	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/labstack/echo/v4"
)

type ReviewHandlers struct {
	reviews services.ReviewService
}

func NewReviewHandlers(reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews}
}

func (h *ReviewHandlers) ListReviews(c echo.Context) error {
	reviews, err := h.reviews.ListReviews(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandlers) CreateReview(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req models.ReviewInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	review, err := h.reviews.CreateReview(c.Request().Context(), req, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandlers) DeleteReview(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.reviews.DeleteReview(c.Request().Context(), id, p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

package models

import "time"

const (
	MinGrade = 1
	MaxGrade = 5
)

type Review struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ProductID   int64     `json:"product_id" db:"product_id"`
	Grade       *int      `json:"grade" db:"grade"`
	Comment     *string   `json:"comment" db:"comment"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CommentDate time.Time `json:"comment_date" db:"comment_date"`
}

// OwnerID returns the author of the review.
func (r *Review) OwnerID() int64 {
	return r.UserID
}

// ReviewInput is the payload for creating a review. A nil grade makes it comment-only.
type ReviewInput struct {
	ProductID *int64  `json:"product_id" validate:"required,gt=0"`
	Grade     *int    `json:"grade" validate:"omitempty,min=1,max=5"`
	Comment   *string `json:"comment" validate:"omitempty,max=2000"`
}

package repositories

import (
	"context"

	"marketplace/internal/models"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	LockActive(ctx context.Context, id int64) (*models.Review, error)
	Deactivate(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]*models.Review, error)
	ListActiveByProduct(ctx context.Context, productID int64) ([]*models.Review, error)
	ActiveGrades(ctx context.Context, productID int64) ([]int, error)
	ReviewedProductIDs(ctx context.Context) ([]int64, error)
}

type reviewRepo struct {
	db DBTX
}

func NewReviewRepo(db DBTX) ReviewRepository {
	return &reviewRepo{db: db}
}

const reviewColumns = `id, user_id, product_id, grade, comment, is_active, comment_date`

func scanReview(row rowScanner) (*models.Review, error) {
	review := &models.Review{}
	err := row.Scan(&review.ID, &review.UserID, &review.ProductID, &review.Grade, &review.Comment,
		&review.IsActive, &review.CommentDate)
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (r *reviewRepo) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (user_id, product_id, grade, comment, is_active, comment_date)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, comment_date
	`
	return r.db.QueryRow(ctx, query, review.UserID, review.ProductID, review.Grade, review.Comment, review.IsActive).
		Scan(&review.ID, &review.CommentDate)
}

func (r *reviewRepo) LockActive(ctx context.Context, id int64) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1 AND is_active = TRUE FOR UPDATE`
	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	return review, notFound(err)
}

func (r *reviewRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE reviews SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reviewRepo) ListActive(ctx context.Context) ([]*models.Review, error) {
	return r.list(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE is_active = TRUE ORDER BY id ASC`)
}

func (r *reviewRepo) ListActiveByProduct(ctx context.Context, productID int64) ([]*models.Review, error) {
	return r.list(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE product_id = $1 AND is_active = TRUE ORDER BY id ASC`,
		productID)
}

func (r *reviewRepo) list(ctx context.Context, query string, args ...any) ([]*models.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []*models.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// ActiveGrades returns the non-null grades of the product's active reviews.
func (r *reviewRepo) ActiveGrades(ctx context.Context, productID int64) ([]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT grade FROM reviews WHERE product_id = $1 AND is_active = TRUE AND grade IS NOT NULL`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grades := []int{}
	for rows.Next() {
		var grade int
		if err := rows.Scan(&grade); err != nil {
			return nil, err
		}
		grades = append(grades, grade)
	}
	return grades, rows.Err()
}

// ReviewedProductIDs lists every product that has at least one review, active or not.
func (r *reviewRepo) ReviewedProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT product_id FROM reviews ORDER BY product_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

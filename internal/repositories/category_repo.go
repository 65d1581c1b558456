package repositories

import (
	"context"
	"fmt"
	"strings"

	"marketplace/internal/models"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	GetActive(ctx context.Context, id int64) (*models.Category, error)
	LockActive(ctx context.Context, id int64) (*models.Category, error)
	ListActive(ctx context.Context) ([]*models.Category, error)
	Patch(ctx context.Context, id int64, patch models.CategoryPatch) error
	Deactivate(ctx context.Context, id int64) error
	// LockHierarchy serializes re-parenting for the rest of the transaction.
	LockHierarchy(ctx context.Context) error
}

type categoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) CategoryRepository {
	return &categoryRepo{db: db}
}

const categoryColumns = `id, name, parent_id, admin_id, is_active, created_at`

// categoryHierarchyLockKey is the pg_advisory_xact_lock key taken by re-parenting.
const categoryHierarchyLockKey int64 = 0x6361745f74726565

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	category := &models.Category{}
	err := row.Scan(&category.ID, &category.Name, &category.ParentID, &category.AdminID,
		&category.IsActive, &category.CreatedAt)
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepo) Create(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (name, parent_id, admin_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query, category.Name, category.ParentID, category.AdminID, category.IsActive).
		Scan(&category.ID, &category.CreatedAt)
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	category, err := scanCategory(r.db.QueryRow(ctx, query, id))
	return category, notFound(err)
}

func (r *categoryRepo) GetActive(ctx context.Context, id int64) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND is_active = TRUE`
	category, err := scanCategory(r.db.QueryRow(ctx, query, id))
	return category, notFound(err)
}

// LockActive fetches an active category and holds its row lock until the transaction ends.
func (r *categoryRepo) LockActive(ctx context.Context, id int64) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND is_active = TRUE FOR UPDATE`
	category, err := scanCategory(r.db.QueryRow(ctx, query, id))
	return category, notFound(err)
}

func (r *categoryRepo) ListActive(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE is_active = TRUE ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// Patch writes only the fields present in patch.
func (r *categoryRepo) Patch(ctx context.Context, id int64, patch models.CategoryPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	sets := []string{}
	args := []any{}
	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.ParentID != nil {
		args = append(args, *patch.ParentID)
		sets = append(sets, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE categories SET %s WHERE id = $%d AND is_active = TRUE`,
		strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepo) LockHierarchy(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, categoryHierarchyLockKey)
	return err
}

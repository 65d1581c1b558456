package repositories

import (
	"context"
	"fmt"
	"strings"

	"marketplace/internal/models"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetActive(ctx context.Context, id int64) (*models.Product, error)
	LockActive(ctx context.Context, id int64) (*models.Product, error)
	LockByID(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error)
	Count(ctx context.Context, filter models.ProductFilter) (int, error)
	ListActiveByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error)
	Replace(ctx context.Context, id int64, input models.ProductInput) error
	Deactivate(ctx context.Context, id int64) error
	SetRating(ctx context.Context, id int64, rating *float64) error
}

type productRepo struct {
	db DBTX
}

func NewProductRepo(db DBTX) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, name, description, price, stock, image_url, category_id, seller_id, rating, is_active, created_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.Stock,
		&product.ImageURL, &product.CategoryID, &product.SellerID, &product.Rating,
		&product.IsActive, &product.CreatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *productRepo) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, image_url, category_id, seller_id, rating, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, NOW())
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		product.Name, product.Description, product.Price, product.Stock, product.ImageURL,
		product.CategoryID, product.SellerID, product.IsActive,
	).Scan(&product.ID, &product.CreatedAt)
}

func (r *productRepo) GetActive(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active = TRUE`
	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	return product, notFound(err)
}

func (r *productRepo) LockActive(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active = TRUE FOR UPDATE`
	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	return product, notFound(err)
}

// LockByID locks the product row regardless of its active flag. Used by rating recomputation.
func (r *productRepo) LockByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	return product, notFound(err)
}

// productWhere builds the WHERE clause shared by List and Count.
func productWhere(filter models.ProductFilter) (string, []any) {
	conditions := []string{"is_active = TRUE"}
	args := []any{}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.InStock != nil {
		if *filter.InStock {
			conditions = append(conditions, "stock > 0")
		} else {
			conditions = append(conditions, "stock = 0")
		}
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *productRepo) List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	where, args := productWhere(filter)
	args = append(args, limit, offset)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *productRepo) Count(ctx context.Context, filter models.ProductFilter) (int, error) {
	where, args := productWhere(filter)
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total)
	return total, err
}

func (r *productRepo) ListActiveByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category_id = $1 AND is_active = TRUE ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// Replace overwrites every mutable field with input, including the ones left empty.
func (r *productRepo) Replace(ctx context.Context, id int64, input models.ProductInput) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4, image_url = $5, category_id = $6
		WHERE id = $7 AND is_active = TRUE
	`
	tag, err := r.db.Exec(ctx, query,
		input.Name, input.Description, input.Price, input.Stock, input.ImageURL, input.CategoryID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRating stores rating as-is; nil clears it.
func (r *productRepo) SetRating(ctx context.Context, id int64, rating *float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET rating = $1 WHERE id = $2`, rating, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package memory

import (
	"context"
	"sort"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
)

type categoryRepo struct{ tx *txState }

func (r *categoryRepo) Create(_ context.Context, category *models.Category) error {
	category.ID = r.tx.data.id("categories")
	category.CreatedAt = r.tx.now
	r.tx.data.categories[category.ID] = *category
	return nil
}

func (r *categoryRepo) GetByID(_ context.Context, id int64) (*models.Category, error) {
	c, ok := r.tx.data.categories[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *categoryRepo) GetActive(ctx context.Context, id int64) (*models.Category, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (r *categoryRepo) LockActive(ctx context.Context, id int64) (*models.Category, error) {
	return r.GetActive(ctx, id)
}

// LockHierarchy is a no-op: WithTx already holds the store lock.
func (r *categoryRepo) LockHierarchy(context.Context) error {
	return nil
}

func (r *categoryRepo) ListActive(_ context.Context) ([]*models.Category, error) {
	categories := []*models.Category{}
	for _, c := range r.tx.data.categories {
		if c.IsActive {
			c := c
			categories = append(categories, &c)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (r *categoryRepo) Patch(_ context.Context, id int64, patch models.CategoryPatch) error {
	c, ok := r.tx.data.categories[id]
	if !ok || !c.IsActive {
		return repositories.ErrNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.ParentID != nil {
		parentID := *patch.ParentID
		c.ParentID = &parentID
	}
	r.tx.data.categories[id] = c
	return nil
}

func (r *categoryRepo) Deactivate(_ context.Context, id int64) error {
	c, ok := r.tx.data.categories[id]
	if !ok || !c.IsActive {
		return repositories.ErrNotFound
	}
	c.IsActive = false
	r.tx.data.categories[id] = c
	return nil
}

type productRepo struct{ tx *txState }

func (r *productRepo) Create(_ context.Context, product *models.Product) error {
	product.ID = r.tx.data.id("products")
	product.CreatedAt = r.tx.now
	product.Rating = nil
	r.tx.data.products[product.ID] = *product
	return nil
}

func (r *productRepo) GetActive(_ context.Context, id int64) (*models.Product, error) {
	p, ok := r.tx.data.products[id]
	if !ok || !p.IsActive {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r *productRepo) LockActive(ctx context.Context, id int64) (*models.Product, error) {
	return r.GetActive(ctx, id)
}

func (r *productRepo) LockByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := r.tx.data.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func matches(p models.Product, f models.ProductFilter) bool {
	if !p.IsActive {
		return false
	}
	if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.InStock != nil && *f.InStock != (p.Stock > 0) {
		return false
	}
	if f.SellerID != nil && p.SellerID != *f.SellerID {
		return false
	}
	return true
}

func (r *productRepo) filtered(f models.ProductFilter) []*models.Product {
	products := []*models.Product{}
	for _, p := range r.tx.data.products {
		if matches(p, f) {
			p := p
			products = append(products, &p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (r *productRepo) List(_ context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	products := r.filtered(filter)
	if offset >= len(products) {
		return []*models.Product{}, nil
	}
	end := offset + limit
	if end > len(products) {
		end = len(products)
	}
	return products[offset:end], nil
}

func (r *productRepo) Count(_ context.Context, filter models.ProductFilter) (int, error) {
	return len(r.filtered(filter)), nil
}

func (r *productRepo) ListActiveByCategory(_ context.Context, categoryID int64) ([]*models.Product, error) {
	return r.filtered(models.ProductFilter{CategoryID: &categoryID}), nil
}

func (r *productRepo) Replace(_ context.Context, id int64, input models.ProductInput) error {
	p, ok := r.tx.data.products[id]
	if !ok || !p.IsActive {
		return repositories.ErrNotFound
	}
	p.Name = input.Name
	p.Description = input.Description
	p.Price = input.Price
	p.Stock = input.Stock
	p.ImageURL = input.ImageURL
	p.CategoryID = input.CategoryID
	r.tx.data.products[id] = p
	return nil
}

func (r *productRepo) Deactivate(_ context.Context, id int64) error {
	p, ok := r.tx.data.products[id]
	if !ok || !p.IsActive {
		return repositories.ErrNotFound
	}
	p.IsActive = false
	r.tx.data.products[id] = p
	return nil
}

func (r *productRepo) SetRating(_ context.Context, id int64, rating *float64) error {
	p, ok := r.tx.data.products[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Rating = rating
	r.tx.data.products[id] = p
	return nil
}

type reviewRepo struct{ tx *txState }

func (r *reviewRepo) Create(_ context.Context, review *models.Review) error {
	review.ID = r.tx.data.id("reviews")
	review.CommentDate = r.tx.now
	r.tx.data.reviews[review.ID] = *review
	return nil
}

func (r *reviewRepo) LockActive(_ context.Context, id int64) (*models.Review, error) {
	rv, ok := r.tx.data.reviews[id]
	if !ok || !rv.IsActive {
		return nil, repositories.ErrNotFound
	}
	return &rv, nil
}

func (r *reviewRepo) Deactivate(_ context.Context, id int64) error {
	rv, ok := r.tx.data.reviews[id]
	if !ok || !rv.IsActive {
		return repositories.ErrNotFound
	}
	rv.IsActive = false
	r.tx.data.reviews[id] = rv
	return nil
}

func (r *reviewRepo) active(keep func(models.Review) bool) []*models.Review {
	reviews := []*models.Review{}
	for _, rv := range r.tx.data.reviews {
		if rv.IsActive && keep(rv) {
			rv := rv
			reviews = append(reviews, &rv)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].ID < reviews[j].ID })
	return reviews
}

func (r *reviewRepo) ListActive(_ context.Context) ([]*models.Review, error) {
	return r.active(func(models.Review) bool { return true }), nil
}

func (r *reviewRepo) ListActiveByProduct(_ context.Context, productID int64) ([]*models.Review, error) {
	return r.active(func(rv models.Review) bool { return rv.ProductID == productID }), nil
}

func (r *reviewRepo) ActiveGrades(_ context.Context, productID int64) ([]int, error) {
	grades := []int{}
	for _, rv := range r.active(func(rv models.Review) bool { return rv.ProductID == productID }) {
		if rv.Grade != nil {
			grades = append(grades, *rv.Grade)
		}
	}
	return grades, nil
}

func (r *reviewRepo) ReviewedProductIDs(_ context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	ids := []int64{}
	for _, rv := range r.tx.data.reviews {
		if !seen[rv.ProductID] {
			seen[rv.ProductID] = true
			ids = append(ids, rv.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type userRepo struct{ tx *txState }

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range r.tx.data.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.ID = r.tx.data.id("users")
	user.CreatedAt = r.tx.now
	r.tx.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.tx.data.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.tx.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

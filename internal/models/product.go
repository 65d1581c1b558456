package models

import "time"

type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	ImageURL    *string   `json:"image_url" db:"image_url"`
	CategoryID  *int64    `json:"category_id" db:"category_id"`
	SellerID    int64     `json:"seller_id" db:"seller_id"`
	Rating      *float64  `json:"rating" db:"rating"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// OwnerID returns the seller that owns the product.
func (p *Product) OwnerID() int64 {
	return p.SellerID
}

// ProductInput is used for both creation and full replacement of a product.
// Every field is written on update, omitted ones included.
type ProductInput struct {
	Name        string  `json:"name" validate:"required,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	ImageURL    *string `json:"image_url" validate:"omitempty,max=200"`
	CategoryID  *int64  `json:"category_id" validate:"omitempty,gt=0"`
}

// ProductFilter holds the conjunction of listing filters. Active is always implied.
type ProductFilter struct {
	CategoryID *int64   `json:"category_id,omitempty"`
	MinPrice   *float64 `json:"min_price,omitempty"`
	MaxPrice   *float64 `json:"max_price,omitempty"`
	InStock    *bool    `json:"in_stock,omitempty"` // true: stock > 0, false: stock = 0
	SellerID   *int64   `json:"seller_id,omitempty"`
}

// ProductPage is one window of a filtered product listing
type ProductPage struct {
	Items    []*Product `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

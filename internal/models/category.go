package models

import "time"

type Category struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ParentID  *int64    `json:"parent_id" db:"parent_id"`
	AdminID   int64     `json:"admin_id" db:"admin_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OwnerID returns the admin who created the category.
func (c *Category) OwnerID() int64 {
	return c.AdminID
}

// CategoryInput is the payload for creating a category
type CategoryInput struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

// CategoryPatch carries a partial category update. Nil fields are left untouched.
type CategoryPatch struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	ParentID *int64  `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
}

// IsEmpty reports whether the patch would change nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.ParentID == nil
}

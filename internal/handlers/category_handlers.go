package handlers

import (
	"net/http"

	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/labstack/echo/v4"
)

// CategoryHandlers handles category-related HTTP requests
type CategoryHandlers struct {
	catalog services.CatalogService
}

func NewCategoryHandlers(catalog services.CatalogService) *CategoryHandlers {
	return &CategoryHandlers{catalog: catalog}
}

func (h *CategoryHandlers) ListCategories(c echo.Context) error {
	categories, err := h.catalog.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandlers) CreateCategory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req models.CategoryInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.CreateCategory(c.Request().Context(), req, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, category)
}

// UpdateCategory applies a partial update; absent fields are left unchanged.
func (h *CategoryHandlers) UpdateCategory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req models.CategoryPatch
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.Request().Context(), id, req, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (h *CategoryHandlers) DeleteCategory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.catalog.DeleteCategory(c.Request().Context(), id, p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CategoryHandlers) ListCategoryProducts(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	products, err := h.catalog.ListProductsByCategory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

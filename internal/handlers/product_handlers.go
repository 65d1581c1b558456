package handlers

import (
	"net/http"
	"strconv"

	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/labstack/echo/v4"
)

const defaultPageSize = 20

// ProductHandlers handles product-related HTTP requests
type ProductHandlers struct {
	catalog services.CatalogService
}

func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.Validation(name, "must be an integer")
	}
	return v, nil
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, common.Validation(name, "must be an integer")
	}
	return &v, nil
}

func queryFloat(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, common.Validation(name, "must be a number")
	}
	return &v, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, common.Validation(name, "must be true or false")
	}
	return &v, nil
}

func productFilter(c echo.Context) (models.ProductFilter, error) {
	var (
		f   models.ProductFilter
		err error
	)
	if f.CategoryID, err = queryInt64(c, "category_id"); err != nil {
		return f, err
	}
	if f.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		return f, err
	}
	if f.InStock, err = queryBool(c, "in_stock"); err != nil {
		return f, err
	}
	if f.SellerID, err = queryInt64(c, "seller_id"); err != nil {
		return f, err
	}
	return f, nil
}

// ListProducts handles GET /products?category_id=&min_price=&max_price=&in_stock=&seller_id=&page=&page_size=
func (h *ProductHandlers) ListProducts(c echo.Context) error {
	filter, err := productFilter(c)
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil {
		return err
	}

	result, err := h.catalog.ListProducts(c.Request().Context(), filter, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req models.ProductInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.CreateProduct(c.Request().Context(), req, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandlers) GetProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// UpdateProduct replaces the product; omitted fields are reset.
func (h *ProductHandlers) UpdateProduct(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req models.ProductInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.UpdateProduct(c.Request().Context(), id, req, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.catalog.DeleteProduct(c.Request().Context(), id, p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandlers) ListProductReviews(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	reviews, err := h.catalog.ListReviewsForProduct(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviews)
}

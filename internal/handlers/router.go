package handlers

import (
	"marketplace/internal/metrics"
	"marketplace/internal/middleware"
	"marketplace/internal/services"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Catalog services.CatalogService
	Reviews services.ReviewService
	Users   services.UserService
	Health  *HealthHandlers
}

// NewRouter builds the Echo instance with every route and middleware wired.
func NewRouter(svc Services, jwtSecret string, m *metrics.Metrics, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(echoMiddleware.Recover())
	e.Use(middleware.RequestID(logger))
	e.Use(middleware.RequestLogger(logger))
	e.Use(m.Middleware())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	versions := middleware.NewVersionMiddleware()
	e.Use(versions.Resolver())

	e.GET("/health", svc.Health.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	categories := NewCategoryHandlers(svc.Catalog)
	products := NewProductHandlers(svc.Catalog)
	reviews := NewReviewHandlers(svc.Reviews)
	users := NewUserHandlers(svc.Users)

	v1 := e.Group("/v1", versions.VersionHeader("v1"))
	auth := middleware.JWTMiddleware(jwtSecret, svc.Users)

	v1.GET("/categories", categories.ListCategories)
	v1.POST("/categories", categories.CreateCategory, auth)
	v1.PUT("/categories/:id", categories.UpdateCategory, auth)
	v1.DELETE("/categories/:id", categories.DeleteCategory, auth)
	v1.GET("/categories/:id/products", categories.ListCategoryProducts)

	v1.GET("/products", products.ListProducts)
	v1.POST("/products", products.CreateProduct, auth)
	v1.GET("/products/:id", products.GetProduct)
	v1.PUT("/products/:id", products.UpdateProduct, auth)
	v1.DELETE("/products/:id", products.DeleteProduct, auth)
	v1.GET("/products/:id/reviews", products.ListProductReviews)

	v1.GET("/reviews", reviews.ListReviews)
	v1.POST("/reviews", reviews.CreateReview, auth)
	v1.DELETE("/reviews/:id", reviews.DeleteReview, auth)

	v1.POST("/users", users.Register)

	return e
}

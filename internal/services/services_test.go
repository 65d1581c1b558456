package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/repositories/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MockRatingAggregator struct {
	mock.Mock
}

func (m *MockRatingAggregator) Recompute(ctx context.Context, productID int64) (*float64, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*float64), args.Error(1)
}

func (m *MockRatingAggregator) RecomputeAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCacheService) ProductVersion(ctx context.Context, productID int64) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) SetProduct(ctx context.Context, product *models.Product, version int64, ttl time.Duration) error {
	return m.Called(ctx, product, version, ttl).Error(0)
}

func (m *MockCacheService) DeleteProduct(ctx context.Context, productID int64) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func ptr[T any](v T) *T {
	return &v
}

type MarketplaceServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	metrics *metrics.Metrics
	catalog CatalogService
	reviews ReviewService
	ratings RatingAggregator

	admin  models.Principal
	admin2 models.Principal
	seller models.Principal
	other  models.Principal
	buyer  models.Principal
}

func (suite *MarketplaceServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewStore()
	suite.metrics = metrics.New(prometheus.NewRegistry(), "marketplace")

	logger := zap.NewNop()
	validator := common.NewValidator()
	cache := caching.NewNoopCacheService()
	guard := NewGuard()

	suite.ratings = NewRatingService(suite.store, cache, suite.metrics, logger)
	suite.catalog = NewCatalogService(suite.store, guard, validator, cache, time.Minute, logger)
	suite.reviews = NewReviewService(suite.store, guard, validator, suite.ratings, logger)

	suite.admin = models.Principal{ID: 1, Role: models.RoleAdmin, Active: true}
	suite.admin2 = models.Principal{ID: 2, Role: models.RoleAdmin, Active: true}
	suite.seller = models.Principal{ID: 3, Role: models.RoleSeller, Active: true}
	suite.other = models.Principal{ID: 4, Role: models.RoleSeller, Active: true}
	suite.buyer = models.Principal{ID: 5, Role: models.RoleBuyer, Active: true}
}

func TestMarketplaceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceServiceTestSuite))
}

func (suite *MarketplaceServiceTestSuite) newCategory(name string, parentID *int64) *models.Category {
	category, err := suite.catalog.CreateCategory(suite.ctx, models.CategoryInput{Name: name, ParentID: parentID}, suite.admin)
	suite.Require().NoError(err)
	return category
}

func (suite *MarketplaceServiceTestSuite) newProduct(name string, price float64, stock int, categoryID *int64) *models.Product {
	product, err := suite.catalog.CreateProduct(suite.ctx, models.ProductInput{
		Name: name, Price: price, Stock: stock, CategoryID: categoryID,
	}, suite.seller)
	suite.Require().NoError(err)
	return product
}

func (suite *MarketplaceServiceTestSuite) review(productID int64, grade *int) *models.Review {
	review, err := suite.reviews.CreateReview(suite.ctx, models.ReviewInput{ProductID: &productID, Grade: grade}, suite.buyer)
	suite.Require().NoError(err)
	return review
}

func (suite *MarketplaceServiceTestSuite) rating(productID int64) *float64 {
	product, err := suite.catalog.GetProduct(suite.ctx, productID)
	suite.Require().NoError(err)
	return product.Rating
}

// Category operations

func (suite *MarketplaceServiceTestSuite) TestCreateCategory_SetsOwnerAndActive() {
	category := suite.newCategory("Drinks", nil)
	suite.Equal(suite.admin.ID, category.AdminID)
	suite.True(category.IsActive)
	suite.NotZero(category.ID)
}

func (suite *MarketplaceServiceTestSuite) TestCreateCategory_RequiresAdmin() {
	_, err := suite.catalog.CreateCategory(suite.ctx, models.CategoryInput{Name: "Drinks"}, suite.seller)
	suite.ErrorIs(err, common.ErrForbidden)
}

func (suite *MarketplaceServiceTestSuite) TestCreateCategory_ParentCheckedBeforeRole() {
	_, err := suite.catalog.CreateCategory(suite.ctx, models.CategoryInput{Name: "Tea", ParentID: ptr(int64(77))}, suite.seller)
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestCreateCategory_InactiveParent() {
	parent := suite.newCategory("Drinks", nil)
	suite.Require().NoError(suite.catalog.DeleteCategory(suite.ctx, parent.ID, suite.admin))

	_, err := suite.catalog.CreateCategory(suite.ctx, models.CategoryInput{Name: "Tea", ParentID: &parent.ID}, suite.admin)
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestCreateCategory_EmptyName() {
	_, err := suite.catalog.CreateCategory(suite.ctx, models.CategoryInput{Name: ""}, suite.admin)
	var verr *common.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Equal("name", verr.Field)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateCategory_NameOnlyKeepsParent() {
	parent := suite.newCategory("Drinks", nil)
	child := suite.newCategory("Tea", &parent.ID)

	updated, err := suite.catalog.UpdateCategory(suite.ctx, child.ID, models.CategoryPatch{Name: ptr("Green tea")}, suite.admin)
	suite.Require().NoError(err)
	suite.Equal("Green tea", updated.Name)
	suite.Require().NotNil(updated.ParentID)
	suite.Equal(parent.ID, *updated.ParentID)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateCategory_NonOwnerLooksLikeMissing() {
	category := suite.newCategory("Drinks", nil)

	_, ownerErr := suite.catalog.UpdateCategory(suite.ctx, category.ID, models.CategoryPatch{Name: ptr("x")}, suite.admin2)
	_, missingErr := suite.catalog.UpdateCategory(suite.ctx, 999, models.CategoryPatch{Name: ptr("x")}, suite.admin2)

	suite.ErrorIs(ownerErr, common.ErrNotFound)
	suite.Equal(missingErr.Error(), ownerErr.Error())
}

func (suite *MarketplaceServiceTestSuite) TestUpdateCategory_RejectsCycles() {
	root := suite.newCategory("Root", nil)
	mid := suite.newCategory("Mid", &root.ID)
	leaf := suite.newCategory("Leaf", &mid.ID)

	_, err := suite.catalog.UpdateCategory(suite.ctx, root.ID, models.CategoryPatch{ParentID: &leaf.ID}, suite.admin)
	suite.ErrorIs(err, common.ErrValidation)

	_, err = suite.catalog.UpdateCategory(suite.ctx, root.ID, models.CategoryPatch{ParentID: &root.ID}, suite.admin)
	suite.ErrorIs(err, common.ErrValidation)

	categories, err := suite.catalog.ListCategories(suite.ctx)
	suite.Require().NoError(err)
	suite.Nil(categories[0].ParentID)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateCategory_ConcurrentSwapLeavesNoCycle() {
	a := suite.newCategory("A", nil)
	b := suite.newCategory("B", nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		wg.Add(1)
		go func(i int, id, parentID int64) {
			defer wg.Done()
			_, errs[i] = suite.catalog.UpdateCategory(suite.ctx, id, models.CategoryPatch{ParentID: &parentID}, suite.admin)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			suite.ErrorIs(err, common.ErrValidation)
			failed++
		}
	}
	suite.Equal(1, failed)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateCategory_Reparent() {
	a := suite.newCategory("A", nil)
	b := suite.newCategory("B", nil)

	updated, err := suite.catalog.UpdateCategory(suite.ctx, b.ID, models.CategoryPatch{ParentID: &a.ID}, suite.admin)
	suite.Require().NoError(err)
	suite.Equal(a.ID, *updated.ParentID)
	suite.Equal("B", updated.Name)
}

func (suite *MarketplaceServiceTestSuite) TestDeleteCategory_LeavesProductsAndReviews() {
	category := suite.newCategory("Drinks", nil)
	product := suite.newProduct("Kettle", 20, 1, &category.ID)
	suite.review(product.ID, ptr(4))

	suite.Require().NoError(suite.catalog.DeleteCategory(suite.ctx, category.ID, suite.admin))

	got, err := suite.catalog.GetProduct(suite.ctx, product.ID)
	suite.Require().NoError(err)
	suite.True(got.IsActive)
	suite.Equal(category.ID, *got.CategoryID)

	reviews, err := suite.catalog.ListReviewsForProduct(suite.ctx, product.ID)
	suite.Require().NoError(err)
	suite.Len(reviews, 1)

	_, err = suite.catalog.ListProductsByCategory(suite.ctx, category.ID)
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestDeleteCategory_Twice() {
	category := suite.newCategory("Drinks", nil)
	suite.Require().NoError(suite.catalog.DeleteCategory(suite.ctx, category.ID, suite.admin))
	suite.ErrorIs(suite.catalog.DeleteCategory(suite.ctx, category.ID, suite.admin), common.ErrNotFound)
}

// Product operations

func (suite *MarketplaceServiceTestSuite) TestListProducts_MinAboveMax() {
	_, err := suite.catalog.ListProducts(suite.ctx, models.ProductFilter{MinPrice: ptr(10.0), MaxPrice: ptr(5.0)}, 1, 20)
	var verr *common.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Equal("min_price", verr.Field)
}

func (suite *MarketplaceServiceTestSuite) TestListProducts_NegativePrice() {
	var verr *common.ValidationError
	_, err := suite.catalog.ListProducts(suite.ctx, models.ProductFilter{MinPrice: ptr(-1.0)}, 1, 20)
	suite.Require().ErrorAs(err, &verr)
	suite.Equal("min_price", verr.Field)

	_, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{MaxPrice: ptr(-0.5)}, 1, 20)
	suite.Require().ErrorAs(err, &verr)
	suite.Equal("max_price", verr.Field)

	_, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{MinPrice: ptr(0.0), MaxPrice: ptr(0.0)}, 1, 20)
	suite.NoError(err)
}

func (suite *MarketplaceServiceTestSuite) TestListProducts_PageBounds() {
	_, err := suite.catalog.ListProducts(suite.ctx, models.ProductFilter{}, 0, 20)
	suite.ErrorIs(err, common.ErrValidation)
	_, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{}, 1, 101)
	suite.ErrorIs(err, common.ErrValidation)
	_, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{}, 1, 0)
	suite.ErrorIs(err, common.ErrValidation)
}

func (suite *MarketplaceServiceTestSuite) TestListProducts_SecondPage() {
	var ids []int64
	for i := 0; i < 25; i++ {
		ids = append(ids, suite.newProduct("Product", float64(i), 1, nil).ID)
	}

	page, err := suite.catalog.ListProducts(suite.ctx, models.ProductFilter{}, 2, 20)
	suite.Require().NoError(err)
	suite.Equal(25, page.Total)
	suite.Require().Len(page.Items, 5)
	suite.Equal(ids[20], page.Items[0].ID)
	suite.Equal(ids[24], page.Items[4].ID)

	page, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{}, 3, 20)
	suite.Require().NoError(err)
	suite.Equal(25, page.Total)
	suite.Empty(page.Items)
}

func (suite *MarketplaceServiceTestSuite) TestListProducts_Filters() {
	category := suite.newCategory("Drinks", nil)
	suite.newProduct("Cheap tea", 3, 0, &category.ID)
	inRange := suite.newProduct("Good tea", 12, 4, &category.ID)
	suite.newProduct("Rare tea", 90, 1, &category.ID)
	suite.newProduct("Loose kettle", 12, 4, nil)
	deleted := suite.newProduct("Gone", 12, 4, &category.ID)
	suite.Require().NoError(suite.catalog.DeleteProduct(suite.ctx, deleted.ID, suite.seller))

	page, err := suite.catalog.ListProducts(suite.ctx, models.ProductFilter{
		CategoryID: &category.ID, MinPrice: ptr(5.0), MaxPrice: ptr(50.0), InStock: ptr(true),
	}, 1, 10)
	suite.Require().NoError(err)
	suite.Equal(1, page.Total)
	suite.Require().Len(page.Items, 1)
	suite.Equal(inRange.ID, page.Items[0].ID)

	page, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{InStock: ptr(false)}, 1, 10)
	suite.Require().NoError(err)
	suite.Equal(1, page.Total)

	page, err = suite.catalog.ListProducts(suite.ctx, models.ProductFilter{SellerID: &suite.other.ID}, 1, 10)
	suite.Require().NoError(err)
	suite.Equal(0, page.Total)
}

func (suite *MarketplaceServiceTestSuite) TestCreateProduct_RequiresSeller() {
	_, err := suite.catalog.CreateProduct(suite.ctx, models.ProductInput{Name: "Kettle", Price: 1}, suite.buyer)
	suite.ErrorIs(err, common.ErrForbidden)
}

func (suite *MarketplaceServiceTestSuite) TestCreateProduct_Validation() {
	_, err := suite.catalog.CreateProduct(suite.ctx, models.ProductInput{Name: "Kettle", Price: -1}, suite.seller)
	suite.ErrorIs(err, common.ErrValidation)

	_, err = suite.catalog.CreateProduct(suite.ctx, models.ProductInput{Name: "Kettle", Stock: -1}, suite.seller)
	suite.ErrorIs(err, common.ErrValidation)

	_, err = suite.catalog.CreateProduct(suite.ctx, models.ProductInput{Name: "Kettle", CategoryID: ptr(int64(404))}, suite.seller)
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestCreateProduct_StartsUnrated() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	suite.Nil(product.Rating)
	suite.Equal(suite.seller.ID, product.SellerID)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateProduct_ReplacesEveryField() {
	category := suite.newCategory("Drinks", nil)
	created, err := suite.catalog.CreateProduct(suite.ctx, models.ProductInput{
		Name: "Kettle", Description: ptr("steel"), Price: 20, Stock: 3,
		ImageURL: ptr("http://img/1"), CategoryID: &category.ID,
	}, suite.seller)
	suite.Require().NoError(err)

	updated, err := suite.catalog.UpdateProduct(suite.ctx, created.ID, models.ProductInput{Name: "Teapot", Price: 9}, suite.seller)
	suite.Require().NoError(err)
	suite.Equal("Teapot", updated.Name)
	suite.Equal(9.0, updated.Price)
	suite.Equal(0, updated.Stock)
	suite.Nil(updated.Description)
	suite.Nil(updated.ImageURL)
	suite.Nil(updated.CategoryID)
	suite.Equal(created.SellerID, updated.SellerID)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateProduct_NonOwnerLooksLikeMissing() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	input := models.ProductInput{Name: "Stolen", Price: 1}

	_, ownerErr := suite.catalog.UpdateProduct(suite.ctx, product.ID, input, suite.other)
	_, missingErr := suite.catalog.UpdateProduct(suite.ctx, 999, input, suite.other)

	suite.ErrorIs(ownerErr, common.ErrNotFound)
	suite.Equal(missingErr.Error(), ownerErr.Error())

	got, err := suite.catalog.GetProduct(suite.ctx, product.ID)
	suite.Require().NoError(err)
	suite.Equal("Kettle", got.Name)
}

func (suite *MarketplaceServiceTestSuite) TestUpdateProduct_InvalidInputAfterOwnership() {
	product := suite.newProduct("Kettle", 20, 1, nil)

	_, err := suite.catalog.UpdateProduct(suite.ctx, product.ID, models.ProductInput{Name: "x"}, suite.seller)
	suite.ErrorIs(err, common.ErrValidation)

	_, err = suite.catalog.UpdateProduct(suite.ctx, product.ID, models.ProductInput{Name: "x"}, suite.other)
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestDeleteProduct_KeepsReviews() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	suite.review(product.ID, ptr(5))

	suite.Require().NoError(suite.catalog.DeleteProduct(suite.ctx, product.ID, suite.seller))

	_, err := suite.catalog.GetProduct(suite.ctx, product.ID)
	suite.ErrorIs(err, common.ErrNotFound)

	reviews, err := suite.reviews.ListReviews(suite.ctx)
	suite.Require().NoError(err)
	suite.Len(reviews, 1)
}

// Reviews and ratings

func (suite *MarketplaceServiceTestSuite) TestRating_TracksActiveGrades() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	suite.Nil(suite.rating(product.ID))

	r4 := suite.review(product.ID, ptr(4))
	suite.Equal(4.0, *suite.rating(product.ID))

	suite.review(product.ID, ptr(5))
	suite.Equal(4.5, *suite.rating(product.ID))

	suite.review(product.ID, nil)
	suite.Equal(4.5, *suite.rating(product.ID))

	suite.Require().NoError(suite.reviews.DeleteReview(suite.ctx, r4.ID, suite.admin))
	suite.Equal(5.0, *suite.rating(product.ID))
}

func (suite *MarketplaceServiceTestSuite) TestRating_ConcurrentReviewWrites() {
	product := suite.newProduct("Kettle", 20, 1, nil)

	const writers = 24
	seeded := make([]*models.Review, writers/2)
	for i := range seeded {
		seeded[i] = suite.review(product.ID, ptr(i%5+1))
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				errs <- suite.reviews.DeleteReview(suite.ctx, seeded[i/2].ID, suite.admin)
				return
			}
			var grade *int
			if i%3 != 0 {
				grade = ptr((i*7)%5 + 1)
			}
			_, err := suite.reviews.CreateReview(suite.ctx, models.ReviewInput{ProductID: &product.ID, Grade: grade}, suite.buyer)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		suite.Require().NoError(err)
	}

	active, err := suite.catalog.ListReviewsForProduct(suite.ctx, product.ID)
	suite.Require().NoError(err)
	var grades []int
	for _, r := range active {
		if r.Grade != nil {
			grades = append(grades, *r.Grade)
		}
	}

	want := meanGrade(grades)
	got := suite.rating(product.ID)
	suite.Require().NotNil(want)
	suite.Require().NotNil(got)
	suite.InDelta(*want, *got, 1e-9)
}

func (suite *MarketplaceServiceTestSuite) TestRating_ClearedWhenLastGradeRemoved() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	review := suite.review(product.ID, ptr(3))

	suite.Require().NoError(suite.reviews.DeleteReview(suite.ctx, review.ID, suite.admin))
	suite.Nil(suite.rating(product.ID))
}

func (suite *MarketplaceServiceTestSuite) TestRecompute_Idempotent() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	suite.review(product.ID, ptr(2))
	suite.review(product.ID, ptr(3))

	first, err := suite.ratings.Recompute(suite.ctx, product.ID)
	suite.Require().NoError(err)
	second, err := suite.ratings.Recompute(suite.ctx, product.ID)
	suite.Require().NoError(err)
	suite.Equal(2.5, *first)
	suite.Equal(*first, *second)
}

func (suite *MarketplaceServiceTestSuite) TestRecomputeAll_CoversInactiveProducts() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	suite.review(product.ID, ptr(4))
	suite.Require().NoError(suite.catalog.DeleteProduct(suite.ctx, product.ID, suite.seller))

	done, err := suite.ratings.RecomputeAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, done)
}

func (suite *MarketplaceServiceTestSuite) TestCreateReview_SellerForbidden() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	_, err := suite.reviews.CreateReview(suite.ctx, models.ReviewInput{ProductID: &product.ID, Grade: ptr(5)}, suite.seller)
	suite.ErrorIs(err, common.ErrForbidden)
}

func (suite *MarketplaceServiceTestSuite) TestCreateReview_InactiveProduct() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	suite.Require().NoError(suite.catalog.DeleteProduct(suite.ctx, product.ID, suite.seller))

	_, err := suite.reviews.CreateReview(suite.ctx, models.ReviewInput{ProductID: &product.ID, Grade: ptr(5)}, suite.buyer)
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestCreateReview_Validation() {
	product := suite.newProduct("Kettle", 20, 1, nil)

	_, err := suite.reviews.CreateReview(suite.ctx, models.ReviewInput{ProductID: &product.ID, Grade: ptr(6)}, suite.buyer)
	suite.ErrorIs(err, common.ErrValidation)

	_, err = suite.reviews.CreateReview(suite.ctx, models.ReviewInput{Grade: ptr(3)}, suite.buyer)
	var verr *common.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Equal("product_id", verr.Field)
}

func (suite *MarketplaceServiceTestSuite) TestDeleteReview_Twice() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	review := suite.review(product.ID, ptr(5))

	suite.Require().NoError(suite.reviews.DeleteReview(suite.ctx, review.ID, suite.admin))
	suite.ErrorIs(suite.reviews.DeleteReview(suite.ctx, review.ID, suite.admin), common.ErrNotFound)
}

func (suite *MarketplaceServiceTestSuite) TestDeleteReview_AdminOnly() {
	product := suite.newProduct("Kettle", 20, 1, nil)
	review := suite.review(product.ID, ptr(5))

	suite.ErrorIs(suite.reviews.DeleteReview(suite.ctx, review.ID, suite.buyer), common.ErrForbidden)
	suite.Equal(5.0, *suite.rating(product.ID))
}

func TestCreateReview_RecomputeFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	validator := common.NewValidator()
	logger := zap.NewNop()
	guard := NewGuard()

	catalog := NewCatalogService(store, guard, validator, caching.NewNoopCacheService(), time.Minute, logger)
	product, err := catalog.CreateProduct(ctx, models.ProductInput{Name: "Kettle", Price: 1},
		models.Principal{ID: 3, Role: models.RoleSeller, Active: true})
	if err != nil {
		t.Fatal(err)
	}

	ratings := new(MockRatingAggregator)
	ratings.On("Recompute", mock.Anything, product.ID).Return(nil, errors.New("lock timeout"))
	reviews := NewReviewService(store, guard, validator, ratings, logger)

	review, err := reviews.CreateReview(ctx, models.ReviewInput{ProductID: &product.ID, Grade: ptr(4)},
		models.Principal{ID: 5, Role: models.RoleBuyer, Active: true})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if review.ID == 0 {
		t.Fatal("expected review id")
	}
	ratings.AssertExpectations(t)
}

func TestGetProduct_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	cache := new(MockCacheService)
	cached := &models.Product{ID: 7, Name: "Cached", IsActive: true}
	cache.On("GetProduct", mock.Anything, int64(7)).Return(cached, nil)

	catalog := NewCatalogService(memory.NewStore(), NewGuard(), common.NewValidator(), cache, time.Minute, zap.NewNop())
	product, err := catalog.GetProduct(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if product != cached {
		t.Fatalf("expected cached product, got %+v", product)
	}
	cache.AssertNotCalled(t, "SetProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetProduct_CacheErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cache := new(MockCacheService)

	catalog := NewCatalogService(store, NewGuard(), common.NewValidator(), cache, time.Minute, zap.NewNop())
	cache.On("DeleteProduct", mock.Anything, mock.Anything).Return(nil).Maybe()

	seller := models.Principal{ID: 3, Role: models.RoleSeller, Active: true}
	created, err := catalog.CreateProduct(ctx, models.ProductInput{Name: "Kettle", Price: 1}, seller)
	if err != nil {
		t.Fatal(err)
	}

	cache.On("GetProduct", mock.Anything, created.ID).Return(nil, errors.New("connection refused"))
	cache.On("ProductVersion", mock.Anything, created.ID).Return(int64(3), nil)
	cache.On("SetProduct", mock.Anything, mock.AnythingOfType("*models.Product"), int64(3), time.Minute).Return(nil)

	product, err := catalog.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if product.Name != "Kettle" {
		t.Fatalf("unexpected product %+v", product)
	}
	cache.AssertExpectations(t)
}

// versionedCache is an in-process CacheService with the same conditional-write contract
// as the redis one. beforeSet runs between the caller's store read and the write.
type versionedCache struct {
	mu        sync.Mutex
	products  map[int64]models.Product
	versions  map[int64]int64
	beforeSet func(p *models.Product)
}

func newVersionedCache() *versionedCache {
	return &versionedCache{products: map[int64]models.Product{}, versions: map[int64]int64{}}
}

func (c *versionedCache) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *versionedCache) ProductVersion(_ context.Context, id int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id], nil
}

func (c *versionedCache) SetProduct(_ context.Context, p *models.Product, version int64, _ time.Duration) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook(p)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[p.ID] != version {
		return caching.ErrVersionChanged
	}
	c.products[p.ID] = *p
	return nil
}

func (c *versionedCache) DeleteProduct(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	delete(c.products, id)
	return nil
}

func (c *versionedCache) Ping(context.Context) error { return nil }

func TestGetProduct_DeleteDuringCacheFillIsNotServed(t *testing.T) {
	ctx := context.Background()
	cache := newVersionedCache()
	catalog := NewCatalogService(memory.NewStore(), NewGuard(), common.NewValidator(), cache, time.Minute, zap.NewNop())
	seller := models.Principal{ID: 3, Role: models.RoleSeller, Active: true}

	product, err := catalog.CreateProduct(ctx, models.ProductInput{Name: "Kettle", Price: 1}, seller)
	if err != nil {
		t.Fatal(err)
	}

	cache.beforeSet = func(p *models.Product) {
		if err := catalog.DeleteProduct(ctx, p.ID, seller); err != nil {
			t.Errorf("delete: %v", err)
		}
	}
	if _, err := catalog.GetProduct(ctx, product.ID); err != nil {
		t.Fatal(err)
	}

	_, err = catalog.GetProduct(ctx, product.ID)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("deleted product served from cache: err=%v", err)
	}
}

func TestGetProduct_UpdateDuringCacheFillKeepsFreshCopy(t *testing.T) {
	ctx := context.Background()
	cache := newVersionedCache()
	catalog := NewCatalogService(memory.NewStore(), NewGuard(), common.NewValidator(), cache, time.Minute, zap.NewNop())
	seller := models.Principal{ID: 3, Role: models.RoleSeller, Active: true}

	product, err := catalog.CreateProduct(ctx, models.ProductInput{Name: "Kettle", Price: 1}, seller)
	if err != nil {
		t.Fatal(err)
	}

	cache.beforeSet = func(p *models.Product) {
		if _, err := catalog.UpdateProduct(ctx, p.ID, models.ProductInput{Name: "Teapot", Price: 2}, seller); err != nil {
			t.Errorf("update: %v", err)
		}
	}
	if _, err := catalog.GetProduct(ctx, product.ID); err != nil {
		t.Fatal(err)
	}

	got, err := catalog.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Teapot" || got.Price != 2 {
		t.Fatalf("stale product served: %+v", got)
	}
}

package webapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/amirasaad/storefront/infra/surface"
	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/config"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/response"
	"github.com/amirasaad/storefront/pkg/testutils"
	"github.com/amirasaad/storefront/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const adminID = "1"

type WebAPITestSuite struct {
	suite.Suite
	env   *testutils.Env
	store *app.App
	app   *fiber.App
	admin string
	buyer string
}

func TestWebAPITestSuite(t *testing.T) {
	suite.Run(t, new(WebAPITestSuite))
}

func (s *WebAPITestSuite) SetupTest() {
	s.T().Setenv("APP_ENV", "test")
	s.T().Setenv("JWT_SECRET", "test-secret")
	s.T().Setenv("STORE_ADMIN_IDS", adminID)
	s.T().Setenv("RATE_LIMIT_CLICKS_PER_SECOND", "0")
	s.T().Setenv("RATE_LIMIT_MAX_REQUESTS", "1000")
	cfg, err := config.Load()
	s.Require().NoError(err)

	s.env = testutils.NewEnv(s.T())
	s.store = app.New(&config.Deps{
		Uow:     s.env.UoW,
		Cache:   s.env.Cache,
		Locks:   s.env.Locks,
		Surface: surface.NewMemory(),
		Bus:     s.env.Bus,
		Logger:  s.env.Logger,
		Config:  cfg,
	})
	s.app = webapi.SetupApp(s.store)

	s.admin, err = webapi.NewToken(cfg.Jwt, adminID)
	s.Require().NoError(err)
	s.buyer, err = webapi.NewToken(cfg.Jwt, "42")
	s.Require().NoError(err)
}

func (s *WebAPITestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.store.Stop(ctx))
}

func (s *WebAPITestSuite) call(method, path, body, token string) (*http.Response, response.Response[any]) {
	resp := testutils.MakeRequest(s.app, method, path, body, token)
	var env response.Response[any]
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	_ = resp.Body.Close()
	return resp, env
}

func (s *WebAPITestSuite) seedProduct() {
	resp, env := s.call("POST", "/api/admin/products", `{"code":"BUAH","name":"Buah","price":10,"category":"Seeds"}`, s.admin)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode, env.Message)
	resp, env = s.call("POST", "/api/admin/products/BUAH/stock", `{"content":"A\nB\nC"}`, s.admin)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Message)
	s.store.WaitRefreshes()
}

func (s *WebAPITestSuite) TestRequiresToken() {
	resp, env := s.call("GET", "/api/users/me", "", "")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("Unauthorized", env.Error)

	resp, _ = s.call("GET", "/api/users/me", "", "not-a-token")
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *WebAPITestSuite) TestRegisterAndMe() {
	resp, env := s.call("GET", "/api/users/me", "", s.buyer)
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	s.Equal("NotRegistered", env.Error)

	resp, env = s.call("POST", "/api/users/register", `{"handle":"Fdy"}`, s.buyer)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode, env.Message)

	resp, env = s.call("POST", "/api/users/register", `{"handle":"Fdy"}`, s.admin)
	s.Equal(fiber.StatusConflict, resp.StatusCode)
	s.Equal("HandleExists", env.Error)

	resp, env = s.call("GET", "/api/users/me", "", s.buyer)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	me := env.Data.(map[string]any)
	s.Equal("Fdy", me["handle"])
	s.Equal("0 WL", me["formatted"])
}

func (s *WebAPITestSuite) TestRegisterValidatesBody() {
	resp, env := s.call("POST", "/api/users/register", `{"handle":"x"}`, s.buyer)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("ValidationFailed", env.Error)

	resp, env = s.call("POST", "/api/users/register", `{`, s.buyer)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("InvalidRequest", env.Error)
}

func (s *WebAPITestSuite) TestAdminRoutesRequirePermission() {
	resp, env := s.call("PUT", "/api/admin/maintenance", `{"enabled":true}`, s.buyer)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
	s.Equal("PermissionDenied", env.Error)
}

func (s *WebAPITestSuite) TestDepositPurchaseHistory() {
	s.seedProduct()
	_, env := s.call("POST", "/api/users/register", `{"handle":"Fdy"}`, s.buyer)
	s.Require().True(env.Success, env.Message)

	resp, env := s.call("POST", "/api/admin/deposits", `{"platform_user_id":"42","dl":1}`, s.admin)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Message)

	resp, env = s.call("POST", "/api/purchases", `{"product_code":"BUAH","quantity":2}`, s.buyer)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Message)
	res := env.Data.(map[string]any)
	s.Equal([]any{"A", "B"}, res["content"])
	s.EqualValues(20, res["total_paid"])

	resp, env = s.call("POST", "/api/purchases", `{"product_code":"BUAH","quantity":5}`, s.buyer)
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)
	s.Equal("OutOfStock", env.Error)

	resp, env = s.call("GET", "/api/products/BUAH", "", s.buyer)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	s.EqualValues(1, env.Data.(map[string]any)["stock"])

	resp, env = s.call("GET", "/api/history?limit=5", "", s.buyer)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	s.Len(env.Data.([]any), 2)

	resp, env = s.call("GET", "/api/products/NOPE", "", s.buyer)
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	s.Equal("ProductNotFound", env.Error)
}

func (s *WebAPITestSuite) TestWithdrawalShortfall() {
	_, env := s.call("POST", "/api/users/register", `{"handle":"Fdy"}`, s.buyer)
	s.Require().True(env.Success)

	resp, env := s.call("POST", "/api/admin/withdrawals", `{"platform_user_id":"42","wl":5}`, s.admin)
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)
	s.Equal("InsufficientBalance", env.Error)
}

func (s *WebAPITestSuite) TestMaintenanceBlocksPurchases() {
	s.seedProduct()
	_, env := s.call("POST", "/api/users/register", `{"handle":"Fdy"}`, s.buyer)
	s.Require().True(env.Success)

	resp, env := s.call("PUT", "/api/admin/maintenance", `{"enabled":true}`, s.admin)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Message)

	resp, env = s.call("POST", "/api/purchases", `{"product_code":"BUAH","quantity":1}`, s.buyer)
	s.Equal(fiber.StatusServiceUnavailable, resp.StatusCode)
	s.Equal("MaintenanceMode", env.Error)

	_, env = s.call("GET", "/api/admin/logs", "", s.admin)
	s.Require().True(env.Success)
	s.NotEmpty(env.Data)
}

func (s *WebAPITestSuite) TestInteractionsAndDonations() {
	_, env := s.call("POST", "/api/interactions", `{"control":"register","handle":"Fdy"}`, s.buyer)
	s.Require().True(env.Success, env.Message)
	s.Equal("Your GrowID is now Fdy.", env.Message)

	_, env = s.call("POST", "/api/donations", `{"text":"GrowID: Fdy\nDeposit: 3 World Lock"}`, s.admin)
	s.Require().True(env.Success)
	reply := env.Data.(map[string]any)
	s.Equal(true, reply["handled"])

	_, env = s.call("POST", "/api/interactions", `{"control":"balance"}`, s.buyer)
	s.Require().True(env.Success)
	s.Equal("Balance of Fdy: 3 WL", env.Message)

	resp, env := s.call("POST", "/api/interactions", `{"control":"dance"}`, s.buyer)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("ValidationFailed", env.Error)
}

func (s *WebAPITestSuite) TestInteractionBuyQuantity() {
	s.seedProduct()
	_, env := s.call("POST", "/api/interactions", `{"control":"register","handle":"Fdy"}`, s.buyer)
	s.Require().True(env.Success, env.Message)
	_, env = s.call("POST", "/api/admin/deposits", `{"platform_user_id":"42","dl":1}`, s.admin)
	s.Require().True(env.Success, env.Message)

	_, env = s.call("POST", "/api/interactions", `{"control":"buy","product_code":"BUAH","quantity":0}`, s.buyer)
	s.False(env.Success)
	s.Equal("InvalidAmount", env.Error)

	_, env = s.call("POST", "/api/interactions", `{"control":"buy","product_code":"BUAH"}`, s.buyer)
	s.Require().True(env.Success, env.Message)
	s.EqualValues(1, env.Data.(map[string]any)["quantity"])
}

func (s *WebAPITestSuite) TestWorldInfo() {
	_, env := s.call("POST", "/api/interactions", `{"control":"world"}`, s.buyer)
	s.Require().True(env.Success)
	s.Equal("World information has not been set yet.", env.Message)

	resp, env := s.call("PUT", "/api/admin/world", `{"world":"BUYWORLD","owner":"Fdy","bot_name":"StoreBot"}`, s.admin)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Message)

	_, env = s.call("POST", "/api/interactions", `{"control":"world"}`, s.buyer)
	s.Equal("World: BUYWORLD | Owner: Fdy | Bot: StoreBot", env.Message)
}

func (s *WebAPITestSuite) TestHealthAndDisplay() {
	s.Require().NoError(s.store.Start(s.env.Ctx))

	resp, env := s.call("GET", "/api/health", "", "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	report := env.Data.(map[string]any)
	s.Equal(true, report["display"].(map[string]any)["healthy"])

	resp, env = s.call("GET", "/api/display", "", "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	s.Len(env.Data.([]any), 1)
}

func (s *WebAPITestSuite) TestDeleteStock() {
	s.seedProduct()
	lines, err := s.store.ProductService.GetAvailableStock(s.env.Ctx, "BUAH", 1)
	s.Require().NoError(err)
	s.Require().Len(lines, 1)

	resp, env := s.call("DELETE", "/api/admin/products/BUAH/stock", fmt.Sprintf(`{"ids":[%d]}`, lines[0].ID), s.admin)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Message)
	s.EqualValues(1, env.Data.(map[string]any)["deleted"])

	count, err := s.store.ProductService.GetStockCount(s.env.Ctx, "BUAH")
	s.Require().NoError(err)
	s.Equal(int64(2), count)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusOK, webapi.StatusFor(nil))
	assert.Equal(t, fiber.StatusNotFound, webapi.StatusFor(fmt.Errorf("lookup: %w", domain.ErrNotRegistered)))
	assert.Equal(t, fiber.StatusUnprocessableEntity, webapi.StatusFor(&domain.ShortfallError{Have: "0 WL", Need: "5 WL"}))
	assert.Equal(t, fiber.StatusServiceUnavailable, webapi.StatusFor(domain.ErrLockFailed))
	assert.Equal(t, fiber.StatusInternalServerError, webapi.StatusFor(fmt.Errorf("boom")))
}

package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"shop-service/config"
	"shop-service/controllers"
	"shop-service/models"
	aws_pkg "shop-service/pkg/aws"
	"shop-service/repository"
	"shop-service/routes"
	"shop-service/services"
	"shop-service/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const adminKey = "secret-admin"

type stubProvider struct{}

func (stubProvider) CreateCheckoutSession(_ context.Context, _ models.PaymentSessionRequest) (*models.PaymentSession, error) {
	return &models.PaymentSession{ID: "cs_test_1"}, nil
}

func (stubProvider) GetSession(_ context.Context, id string) (*models.PaymentSession, error) {
	return &models.PaymentSession{ID: id}, nil
}

func setupRouter(t *testing.T, cfg *config.Config, catalog ...models.Product) *gin.Engine {
	t.Helper()
	return setupRouterWithImages(t, cfg, nil, catalog...)
}

func setupRouterWithImages(t *testing.T, cfg *config.Config, images aws_pkg.ImagePresigner, catalog ...models.Product) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	carts := repository.NewMemoryCartRepository()
	products := repository.NewMemoryProductRepository(catalog...)

	cartSvc := services.NewCartService(carts, logger)
	productSvc := services.NewProductService(products, nil, logger)
	checkoutSvc := services.NewCheckoutService(cfg, carts, products, stubProvider{}, logger)

	r := gin.New()
	tmpl, err := web.Templates()
	require.NoError(t, err)
	r.SetHTMLTemplate(tmpl)

	routes.RegisterRoutes(r, routes.Controllers{
		Ajax:     controllers.NewAjaxController(cartSvc, logger),
		Checkout: controllers.NewCheckoutController(checkoutSvc, cartSvc, logger),
		Shop:     controllers.NewShopController(productSvc, cartSvc, "gbp", logger),
		Products: controllers.NewProductController(productSvc, logger),
		Images:   controllers.NewImageController(productSvc, images, logger),
		Webhook:  controllers.NewWebhookController(nil, logger),
	}, routes.Options{SessionCookie: "shop_session", AdminAPIKey: adminKey})
	return r
}

func defaultConfig() *config.Config {
	return &config.Config{
		BaseURL:              "http://shop.test",
		Currency:             "gbp",
		StripeSecretKey:      "sk_test",
		StripePublishableKey: "pk_test",
		VerifyPayment:        true,
	}
}

// client keeps the session cookie between requests.
type client struct {
	t      *testing.T
	r      *gin.Engine
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "shop_session" {
			c.cookie = ck
		}
	}
	return w
}

func (c *client) ajax(values url.Values) (*httptest.ResponseRecorder, models.Response) {
	req := httptest.NewRequest(http.MethodPost, "/ajax", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := c.do(req)
	var resp models.Response
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestAjax_AddToCartSetsSessionAndReturnsCart(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}

	w, resp := c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"5"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"5": float64(1)}, resp.Data)
	require.NotNil(t, c.cookie)

	_, resp = c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"5"}})
	assert.Equal(t, map[string]interface{}{"5": float64(2)}, resp.Data)
}

func TestAjax_UpdateAndRemove(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}

	c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"5"}})
	_, resp := c.ajax(url.Values{"action": {"update_cart_quantity"}, "product_id": {"5"}, "quantity": {"0"}})
	assert.Equal(t, map[string]interface{}{"5": float64(1)}, resp.Data)

	_, resp = c.ajax(url.Values{"action": {"update_cart_quantity"}, "product_id": {"5"}, "quantity": {"4"}})
	assert.Equal(t, map[string]interface{}{"5": float64(4)}, resp.Data)

	_, resp = c.ajax(url.Values{"action": {"remove_from_cart"}, "product_id": {"5"}})
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{}, resp.Data)
}

func TestAjax_MalformedProductIDIsNoop(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}

	_, resp := c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"abc"}})
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{}, resp.Data)
}

func TestAjax_UnknownAction(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}

	w, resp := c.ajax(url.Values{"action": {"delete_everything"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestAjax_ClearCart(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}

	c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"5"}})
	_, resp := c.ajax(url.Values{"action": {"clear_cart"}})
	assert.True(t, resp.Success)

	_, resp = c.ajax(url.Values{"action": {"get_cart_count"}})
	assert.Equal(t, map[string]interface{}{}, resp.Data)
}

func TestCheckoutJSON_Shortfall(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig(), models.Product{ID: 1, Title: "Mug", Price: 10, Stock: 2})}
	for i := 0; i < 3; i++ {
		c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"1"}})
	}

	w := c.do(httptest.NewRequest(http.MethodGet, "/checkout.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                `json:"success"`
		Data    models.CheckoutView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Errors, 1)
	assert.Equal(t, 2, body.Data.Errors[0].Available)
	assert.Nil(t, body.Data.Session)
}

func TestCheckoutPage_RendersCartAndPayButton(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig(), models.Product{ID: 1, Title: "Mug", Price: 10, Stock: 5})}
	c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"1"}})

	w := c.do(httptest.NewRequest(http.MethodGet, "/checkout", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Mug")
	assert.Contains(t, body, "£10.00")
	assert.Contains(t, body, "🛒 Cart (<span class=\"cart-count\">1</span>)")
	assert.Contains(t, body, `data-session-id="cs_test_1"`)
}

func TestCheckoutPage_EmptyCart(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}

	w := c.do(httptest.NewRequest(http.MethodGet, "/checkout", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Your cart is empty.")
}

func TestCheckoutPage_MissingStripeKeys(t *testing.T) {
	cfg := defaultConfig()
	cfg.StripeSecretKey = ""
	c := &client{t: t, r: setupRouter(t, cfg)}

	w := c.do(httptest.NewRequest(http.MethodGet, "/checkout", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Checkout Error")
	assert.Contains(t, w.Body.String(), "Stripe configuration is missing")
}

func TestCheckoutClear_Redirects(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig())}
	c.ajax(url.Values{"action": {"add_to_cart"}, "product_id": {"1"}})

	w := c.do(httptest.NewRequest(http.MethodPost, "/checkout/clear", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/checkout", w.Header().Get("Location"))

	_, resp := c.ajax(url.Values{"action": {"get_cart_count"}})
	assert.Equal(t, map[string]interface{}{}, resp.Data)
}

func TestShopProductPage(t *testing.T) {
	c := &client{t: t, r: setupRouter(t, defaultConfig(), models.Product{ID: 3, Title: "Poster", Price: 4.5, Stock: 1})}

	w := c.do(httptest.NewRequest(http.MethodGet, "/shop/3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-product-id="3"`)

	w = c.do(httptest.NewRequest(http.MethodGet, "/shop/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminProducts_RequiresKey(t *testing.T) {
	r := setupRouter(t, defaultConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/products", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminProducts_CreateAndUpdate(t *testing.T) {
	r := setupRouter(t, defaultConfig())

	body, _ := json.Marshal(models.CreateProductRequest{Title: "Mug", Price: 10, Stock: 3})
	req := httptest.NewRequest(http.MethodPost, "/admin/products", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", adminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, uint(1), created.ID)

	req = httptest.NewRequest(http.MethodPut, "/admin/products/1", strings.NewReader(`{"stock": 9, "sold_out": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", adminKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 9, updated.Stock)
	assert.True(t, updated.SoldOut)
}

func TestAdminProducts_RejectsNegativePrice(t *testing.T) {
	r := setupRouter(t, defaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(`{"title": "Mug", "price": -1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", adminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_NotConfigured(t *testing.T) {
	r := setupRouter(t, defaultConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func webhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	stripeSvc := services.NewStripeService("sk_test", "whsec_test", zap.NewNop())
	r := gin.New()
	r.POST("/stripe/webhook", controllers.NewWebhookController(stripeSvc, zap.NewNop()).Stripe)
	return r
}

func postWebhook(r *gin.Engine, payload, secret string) *httptest.ResponseRecorder {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: secret})
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_SignedEventsAreAccepted(t *testing.T) {
	r := webhookRouter()
	events := map[string]string{
		"checkout completed": `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"visitor-1","payment_status":"paid","amount_total":2000}}}`,
		"unhandled type":     `{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`,
	}
	for name, payload := range events {
		t.Run(name, func(t *testing.T) {
			w := postWebhook(r, payload, "whsec_test")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
		})
	}
}

func TestWebhook_BadSignatureIsRejected(t *testing.T) {
	r := webhookRouter()

	w := postWebhook(r, `{"id":"evt_1","object":"event","type":"checkout.session.completed"}`, "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeImages struct {
	key         string
	contentType string
	expires     time.Duration
	err         error
}

func (f *fakeImages) PresignImageUpload(_ context.Context, key, contentType string, expires time.Duration) (*aws_pkg.PresignedUpload, error) {
	f.key, f.contentType, f.expires = key, contentType, expires
	if f.err != nil {
		return nil, f.err
	}
	return &aws_pkg.PresignedUpload{
		URL:     "https://shop-images.s3.test/" + key + "?X-Amz-Signature=abc",
		Method:  http.MethodPut,
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

func (f *fakeImages) PublicURL(key string) string {
	return "https://cdn.shop.test/" + key
}

func adminRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", adminKey)
	return req
}

func TestAdminProductImage_PresignAndAttach(t *testing.T) {
	images := &fakeImages{}
	r := setupRouterWithImages(t, defaultConfig(), images, models.Product{ID: 7, Title: "Mug", Price: 10, Stock: 2})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPost, "/admin/products/7/image?content_type=image/png&expires=99999", ""))
	require.Equal(t, http.StatusOK, w.Code)

	var presign struct {
		UploadURL string            `json:"upload_url"`
		Method    string            `json:"method"`
		Headers   map[string]string `json:"headers"`
		Key       string            `json:"key"`
		PublicURL string            `json:"public_url"`
		ExpiresIn int               `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &presign))
	assert.Regexp(t, `^products/7/[0-9a-f-]{36}\.png$`, presign.Key)
	assert.Equal(t, images.key, presign.Key)
	assert.Equal(t, "image/png", images.contentType)
	assert.Equal(t, time.Hour, images.expires)
	assert.Equal(t, 3600, presign.ExpiresIn)
	assert.Equal(t, http.MethodPut, presign.Method)
	assert.Equal(t, "image/png", presign.Headers["Content-Type"])
	assert.Equal(t, "https://cdn.shop.test/"+presign.Key, presign.PublicURL)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPut, "/admin/products/7", `{"image_url": "`+presign.PublicURL+`"}`))
	require.Equal(t, http.StatusOK, w.Code)

	c := &client{t: t, r: r}
	page := c.do(httptest.NewRequest(http.MethodGet, "/shop/7", nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `src="`+presign.PublicURL+`"`)

	list := c.do(httptest.NewRequest(http.MethodGet, "/shop", nil))
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `src="`+presign.PublicURL+`"`)
}

func TestAdminProductImage_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		images aws_pkg.ImagePresigner
		target string
		status int
	}{
		{"not configured", nil, "/admin/products/7/image", http.StatusServiceUnavailable},
		{"bad id", &fakeImages{}, "/admin/products/abc/image", http.StatusBadRequest},
		{"unsupported type", &fakeImages{}, "/admin/products/7/image?content_type=application/pdf", http.StatusBadRequest},
		{"unknown product", &fakeImages{}, "/admin/products/99/image", http.StatusNotFound},
		{"presign failure", &fakeImages{err: errors.New("no credentials")}, "/admin/products/7/image", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithImages(t, defaultConfig(), tc.images, models.Product{ID: 7, Title: "Mug", Price: 10, Stock: 2})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, adminRequest(http.MethodPost, tc.target, ""))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestAdminProducts_RejectsInvalidImageURL(t *testing.T) {
	r := setupRouter(t, defaultConfig(), models.Product{ID: 7, Title: "Mug", Price: 10, Stock: 2})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, adminRequest(http.MethodPut, "/admin/products/7", `{"image_url": "not a url"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/ecomkit/storefront/internal/sessionkit"
)

func newCartTestRouter(t *testing.T) (*gin.Engine, string, sessionkit.ServerConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := sessionkit.ServerConfig{
		AccessTokenSecret:  []byte("access-secret-for-tests"),
		RefreshTokenSecret: []byte("refresh-secret-for-tests"),
		TokenIssuer:        "storefront",
		AccessCookieName:   "accessToken",
		RefreshCookieName:  "refreshToken",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         7 * 24 * time.Hour,
		SameSiteMode:       http.SameSiteStrictMode,
	}
	codec, codecErr := sessionkit.NewTokenCodec(config, nil)
	if codecErr != nil {
		t.Fatalf("building codec failed: %v", codecErr)
	}
	accessToken, _, mintErr := codec.Mint("u1", sessionkit.KindAccess)
	if mintErr != nil {
		t.Fatalf("mint failed: %v", mintErr)
	}

	router := gin.New()
	MountCartRoutes(router, config, codec, NewMemoryCartStore(), zaptest.NewLogger(t))
	return router, accessToken, config
}

func cartRequest(router *gin.Engine, method string, path string, body string, accessToken string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		request.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeCart(t *testing.T, recorder *httptest.ResponseRecorder) ([]CartItem, float64) {
	t.Helper()
	var payload struct {
		Items      []CartItem `json:"items"`
		TotalPrice float64    `json:"total_price"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding cart failed: %v", err)
	}
	return payload.Items, payload.TotalPrice
}

func TestCartRoutesRequireAccessToken(t *testing.T) {
	t.Parallel()

	router, _, _ := newCartTestRouter(t)
	recorder := cartRequest(router, http.MethodGet, "/api/cart", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without access cookie, got %d", recorder.Code)
	}
}

func TestCartRoutesFlow(t *testing.T) {
	t.Parallel()

	router, accessToken, _ := newCartTestRouter(t)

	recorder := cartRequest(router, http.MethodGet, "/api/cart", "", accessToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 listing empty cart, got %d", recorder.Code)
	}
	items, total := decodeCart(t, recorder)
	if len(items) != 0 || total != 0 {
		t.Fatalf("expected empty cart, got %d items total %v", len(items), total)
	}

	recorder = cartRequest(router, http.MethodPost, "/api/cart/add", `{"product_id":"p1","title":"Mug","price":9.5,"quantity":2}`, accessToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 from add, got %d", recorder.Code)
	}
	items, total = decodeCart(t, recorder)
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("unexpected cart after add: %+v", items)
	}
	if total != 19 {
		t.Fatalf("expected total 19, got %v", total)
	}

	recorder = cartRequest(router, http.MethodPost, "/api/cart/add", `{"title":"no id"}`, accessToken)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing product id, got %d", recorder.Code)
	}

	recorder = cartRequest(router, http.MethodPost, "/api/cart/update-quantity", `{"product_id":"missing","quantity":3}`, accessToken)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown line, got %d", recorder.Code)
	}

	recorder = cartRequest(router, http.MethodPost, "/api/cart/update-quantity", `{"product_id":"p1","quantity":5}`, accessToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 updating quantity, got %d", recorder.Code)
	}
	items, _ = decodeCart(t, recorder)
	if items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", items[0].Quantity)
	}

	recorder = cartRequest(router, http.MethodPost, "/api/cart/remove", `{}`, accessToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 clearing cart, got %d", recorder.Code)
	}
	items, _ = decodeCart(t, recorder)
	if len(items) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", items)
	}
}

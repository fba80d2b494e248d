package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/equipment-lending/internal/config"
	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/policy"
	"github.com/iliyamo/equipment-lending/internal/utils"
)

const secret = "test-secret"

func newServer() *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTAuth(secret))
	g.GET("/whoami", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
	})
	g.POST("/approve", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		Authorize(policy.ActionApprove))
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := newServer()

	rec := do(t, e, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	rec = do(t, e, http.MethodGet, "/whoami", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodGet, "/whoami", token(t, 9, "JANITOR"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown role")

	rec = do(t, e, http.MethodGet, "/whoami", token(t, 9, "STAFF"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":9,"role":"STAFF"}`, rec.Body.String())
}

func TestAuthorize(t *testing.T) {
	e := newServer()

	rec := do(t, e, http.MethodPost, "/approve", token(t, 1, string(model.RoleStudent)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodPost, "/approve", token(t, 2, string(model.RoleStaff)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/items")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:anon:route:GET /v1/items", buildRateKey(cfg, c))

	SetIdentity(c, 5, model.RoleStudent)
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.7:user:5:route:GET /v1/items", buildRateKey(cfg, c))
}

func TestCacheKeyIgnoresMethodByDefault(t *testing.T) {
	e := echo.New()
	mk := func(method, target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(method, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/items")
		return c
	}
	cfg := config.CacheConfig{Prefix: "cache"}

	a := cacheKeyFrom(cfg, mk(http.MethodGet, "/v1/items?category=Lab"))
	b := cacheKeyFrom(cfg, mk(http.MethodHead, "/v1/items?category=Lab"))
	other := cacheKeyFrom(cfg, mk(http.MethodGet, "/v1/items?category=Music"))
	assert.True(t, strings.HasPrefix(a, "cache:"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)

	cfg.KeyStrategy = "method_route_query"
	assert.NotEqual(t, cacheKeyFrom(cfg, mk(http.MethodGet, "/v1/items")), cacheKeyFrom(cfg, mk(http.MethodHead, "/v1/items")))
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, err := cw.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = cw.Write([]byte("defg"))
	require.NoError(t, err)

	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdefg", rec.Body.String())
	assert.True(t, cw.overflow)
	assert.False(t, cw.cacheable(), "truncated bodies are never cached")

	exact := &captureWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, limit: 4}
	_, err = exact.Write([]byte("ab"))
	require.NoError(t, err)
	_, err = exact.Write([]byte("cd"))
	require.NoError(t, err)
	_, err = exact.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, "abcd", exact.buf.String())
	assert.True(t, exact.cacheable(), "a body that exactly fits is complete")

	unlimited := &captureWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusNotFound}
	_, err = unlimited.Write([]byte("missing"))
	require.NoError(t, err)
	assert.Equal(t, "missing", unlimited.buf.String())
	assert.False(t, unlimited.cacheable())
}

func TestRedisMiddlewaresDisabledWithoutClient(t *testing.T) {
	e := echo.New()
	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/x", h,
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		InvalidateCache(config.CacheConfig{Enabled: true}, nil, nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/shop_payments/pkg/authclient"
	"github.com/Skotchmaster/shop_payments/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("mw-secret")

func signed(t *testing.T, sub, role string, ttl time.Duration) string {
	t.Helper()
	claims := tokens.AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec, c, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func TestRequireAuthBearer(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed(t, "user-1", "user", time.Minute))

	rec, c, err := run(t, m.RequireAuth, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", c.Get("user_id"))
	assert.Equal(t, "user", c.Get("role"))
}

func TestRequireAuthMissingAndInvalid(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	_, _, err := run(t, m.RequireAuth, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed(t, "user-1", "user", -time.Minute))
	_, _, err = run(t, m.RequireAuth, req)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRequireAdmin(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: signed(t, "user-1", "user", time.Minute)})
	_, _, err := run(t, m.RequireAdmin, req)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: signed(t, "admin-1", "admin", time.Minute)})
	_, _, err = run(t, m.RequireAdmin, req)
	assert.NoError(t, err)
}

func TestExpiredCookieIsRefreshed(t *testing.T) {
	fresh := signed(t, "user-7", "user", time.Minute)
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authclient.RefreshResponse{
			AccessToken:  fresh,
			RefreshToken: "r-2",
			AccessExp:    time.Now().Add(time.Minute).Unix(),
			RefreshExp:   time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer authSrv.Close()

	m := NewAutoRefreshMiddleware(secret, authclient.NewClient(authSrv.URL))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: signed(t, "user-7", "user", -time.Minute)})
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "r-1"})

	rec, c, err := run(t, m.RequireAuth, req)
	require.NoError(t, err)
	assert.Equal(t, "user-7", c.Get("user_id"))

	var names []string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
	}
	assert.ElementsMatch(t, []string{accessCookieName, refreshCookieName}, names)
}

func TestRefreshFailureModes(t *testing.T) {
	status := http.StatusUnauthorized
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer authSrv.Close()

	m := NewAutoRefreshMiddleware(secret, authclient.NewClient(authSrv.URL))
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: accessCookieName, Value: signed(t, "user-7", "user", -time.Minute)})
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "r-1"})
		return req
	}

	rec, _, err := run(t, m.RequireAuth, newReq())
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	assert.Len(t, rec.Result().Cookies(), 2)

	status = http.StatusBadGateway
	rec, _, err = run(t, m.RequireAuth, newReq())
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
	assert.Empty(t, rec.Result().Cookies())
}

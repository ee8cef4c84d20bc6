package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/pizzeria/config"
	"github.com/talkincode/pizzeria/internal/app"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/storetest"
)

func setupServer(t *testing.T) *app.Application {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "webserver-test"
	a := app.NewApplication(cfg)
	a.OverrideDB(storetest.Open(t))
	Init(a)
	ApiGET("/whoami", func(c echo.Context) error {
		actor := ActorFromContext(c)
		return c.JSON(http.StatusOK, map[string]interface{}{"user": actor.Username, "staff": actor.Privileged})
	})
	return a
}

func do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Echo().ServeHTTP(rec, req)
	return rec
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	setupServer(t)

	rec := do(httptest.NewRequest(http.MethodGet, ApiPrefix+"/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")

	req := httptest.NewRequest(http.MethodGet, ApiPrefix+"/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, do(req).Code)
}

func whoami(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, ApiPrefix+"/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return do(req)
}

func TestProtectedRouteResolvesActor(t *testing.T) {
	a := setupServer(t)
	u := storetest.CreateUser(t, a.DB(), "alice", true)
	tok, err := a.Tokens().Issue(u)
	require.NoError(t, err)

	rec := whoami(tok.Access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"user":"alice","staff":true}`, rec.Body.String())
}

func TestActorFollowsStoredAccount(t *testing.T) {
	a := setupServer(t)
	u := storetest.CreateUser(t, a.DB(), "alice", true)
	tok, err := a.Tokens().Issue(u)
	require.NoError(t, err)

	// staff rights revoked after the token was issued
	require.NoError(t, a.DB().Model(&domain.User{}).Where("id = ?", u.ID).Update("is_staff", false).Error)
	rec := whoami(tok.Access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"user":"alice","staff":false}`, rec.Body.String())

	require.NoError(t, a.DB().Delete(&domain.User{}, u.ID).Error)
	rec = whoami(tok.Access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "no longer exists")

	ghost, err := a.Tokens().Issue(&domain.User{ID: 42, Username: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, whoami(ghost.Access).Code)
}

func TestHealthMetricsAndUnknownRoute(t *testing.T) {
	setupServer(t)

	assert.Equal(t, http.StatusOK, do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	rec := do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

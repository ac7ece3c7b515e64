package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/auth"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/auth/authtest"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/config"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/bunx"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/migrations"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/repository"
	drinksvc "github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/drink"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/validation"
)

var managerPermissions = []string{
	PermissionGetDrinksDetail,
	PermissionPostDrinks,
	PermissionPatchDrinks,
	PermissionDeleteDrinks,
}

type testAPI struct {
	issuer  *authtest.Issuer
	handler http.Handler
}

// newTestAPI wires the full stack: in-memory SQLite with migrations, the
// drink service, and a verifier trusting a local issuer via discovery.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	_, err = migrations.Up(context.Background(), db)
	require.NoError(t, err)

	issuer := authtest.NewIssuer(t)
	verifier, _, err := auth.NewVerifierFromConfig(config.AuthConfig{
		Issuer:        issuer.URL(),
		Audience:      issuer.Audience,
		Algorithms:    []string{"RS256"},
		JWKSCacheTTL:  time.Minute,
		UnknownKidTTL: time.Minute,
		HTTPTimeout:   2 * time.Second,
	})
	require.NoError(t, err)

	v, err := validation.NewSchemaValidator(4)
	require.NoError(t, err)

	router, err := NewRouter(RouterOptions{
		DrinkService: drinksvc.NewService(repository.NewBunDrinkRepository(db)),
		Validator:    v,
		Verifier:     verifier,
	})
	require.NoError(t, err)

	return &testAPI{issuer: issuer, handler: router}
}

func (a *testAPI) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *testAPI) manager(t *testing.T) string {
	return a.issuer.Token(t, authtest.WithPermissions(managerPermissions...))
}

func (a *testAPI) barista(t *testing.T) string {
	return a.issuer.Token(t, authtest.WithPermissions(PermissionGetDrinksDetail))
}

func assertEnvelope(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"success":false,"error":%d,"message":%q}`, status, message), w.Body.String())
}

func TestRouter_PublicList(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/drinks", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":1,"title":"water","recipe":[{"color":"blue","parts":1}]}]}`, w.Body.String())
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

type stubPinger struct{ err error }

func (p *stubPinger) PingContext(context.Context) error { return p.err }

func TestRouter_HealthAndMiddlewareOptions(t *testing.T) {
	iss := authtest.NewIssuer(t)
	verifier, err := auth.NewVerifier(auth.NewKeySet(auth.NewHTTPKeySource(iss.JWKSURL(), nil), time.Minute), iss.URL(), iss.Audience)
	require.NoError(t, err)
	v, err := validation.NewSchemaValidator(2)
	require.NoError(t, err)

	pinger := &stubPinger{}
	tagged := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Coffee-Shop", "open")
			next.ServeHTTP(w, r)
		})
	}

	router, err := NewRouter(RouterOptions{
		DrinkService:  &mockDrinkService{listFunc: func(context.Context) ([]models.Drink, error) { return nil, nil }},
		Validator:     v,
		Verifier:      verifier,
		Middleware:    []func(http.Handler) http.Handler{tagged, nil},
		HealthHandler: PingHealthHandler(pinger),
	})
	require.NoError(t, err)

	w := serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "open", w.Header().Get("X-Coffee-Shop"))

	pinger.err = errors.New("connection refused")
	w = serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())

	w = serve(router, http.MethodGet, "/drinks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", w.Header().Get("X-Coffee-Shop"))
}

func TestRouter_DetailRequiresPermission(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/drinks-detail", api.barista(t), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":1,"title":"water","recipe":[{"color":"blue","name":"water","parts":1}]}]}`, w.Body.String())

	noDetail := api.issuer.Token(t, authtest.WithPermissions(PermissionPostDrinks))
	w = api.do(t, http.MethodGet, "/drinks-detail", noDetail, "")
	assertEnvelope(t, w, http.StatusUnauthorized, "unauthorized")

	noClaim := api.issuer.Token(t, authtest.WithoutPermissions())
	w = api.do(t, http.MethodGet, "/drinks-detail", noClaim, "")
	assertEnvelope(t, w, http.StatusUnauthorized, "permissions_claim_missing")
}

func TestRouter_ProtectedRoutesRejectBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	good := api.manager(t)

	routes := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/drinks-detail", ""},
		{http.MethodPost, "/drinks", `{"title":"Mocha","recipe":[]}`},
		{http.MethodPatch, "/drinks/1", `{"title":"Mocha"}`},
		{http.MethodDelete, "/drinks/1", ""},
	}

	credentials := []struct {
		name    string
		header  string
		message string
	}{
		{"no header", "", "authorization_header_missing"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "authorization_header_missing"},
		{"bearer without token", "Bearer ", "authorization_header_missing"},
		{"garbage token", "Bearer not-a-jwt", "invalid_header"},
		{"tampered token", "Bearer " + good[:len(good)-4] + "AAAA", "invalid_signature"},
		{"expired token", "Bearer " + api.issuer.Token(t,
			authtest.WithPermissions(managerPermissions...),
			authtest.ExpiresAt(time.Now().Add(-time.Minute)),
		), "token_expired"},
		{"wrong audience", "Bearer " + api.issuer.Token(t,
			authtest.WithPermissions(managerPermissions...),
			authtest.WithClaim("aud", "another-api"),
		), "invalid_claims"},
		{"unknown key", "Bearer " + api.issuer.Token(t,
			authtest.WithPermissions(managerPermissions...),
			authtest.WithKeyID("retired-key"),
		), "invalid_key_id"},
	}

	for _, route := range routes {
		for _, cred := range credentials {
			t.Run(route.method+" "+route.target+" "+cred.name, func(t *testing.T) {
				var req *http.Request
				if route.body == "" {
					req = httptest.NewRequest(route.method, route.target, nil)
				} else {
					req = httptest.NewRequest(route.method, route.target, strings.NewReader(route.body))
				}
				if cred.header != "" {
					req.Header.Set("Authorization", cred.header)
				}
				w := httptest.NewRecorder()
				api.handler.ServeHTTP(w, req)

				assertEnvelope(t, w, http.StatusUnauthorized, cred.message)
			})
		}
	}

	// Nothing was changed by the rejected requests.
	w := api.do(t, http.MethodGet, "/drinks", "", "")
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":1,"title":"water","recipe":[{"color":"blue","parts":1}]}]}`, w.Body.String())
}

func TestRouter_KeySetUnavailable(t *testing.T) {
	api := newTestAPI(t)
	token := api.manager(t)

	api.issuer.SetFailing(true)
	w := api.do(t, http.MethodGet, "/drinks-detail", token, "")
	assertEnvelope(t, w, http.StatusUnauthorized, "key_set_unavailable")
}

func TestRouter_PermissionPerRoute(t *testing.T) {
	api := newTestAPI(t)

	// A detail-only token cannot mutate.
	token := api.barista(t)
	assertEnvelope(t, api.do(t, http.MethodPost, "/drinks", token, `{"title":"Mocha","recipe":[]}`), http.StatusUnauthorized, "unauthorized")
	assertEnvelope(t, api.do(t, http.MethodPatch, "/drinks/1", token, `{"title":"Mocha"}`), http.StatusUnauthorized, "unauthorized")
	assertEnvelope(t, api.do(t, http.MethodDelete, "/drinks/1", token, ""), http.StatusUnauthorized, "unauthorized")

	// Each mutation needs exactly its own permission.
	createOnly := api.issuer.Token(t, authtest.WithPermissions(PermissionPostDrinks))
	w := api.do(t, http.MethodPost, "/drinks", createOnly, `{"title":"Mocha","recipe":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assertEnvelope(t, api.do(t, http.MethodDelete, "/drinks/1", createOnly, ""), http.StatusUnauthorized, "unauthorized")
}

func TestRouter_DrinkLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.manager(t)

	// Create
	w := api.do(t, http.MethodPost, "/drinks", token, `{"title":"Water","recipe":[{"color":"blue","name":"water","parts":1}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":2,"title":"Water","recipe":[{"color":"blue","name":"water","parts":1}]}]}`, w.Body.String())

	// Detail list includes the long form
	w = api.do(t, http.MethodGet, "/drinks-detail", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `{"id":2,"title":"Water","recipe":[{"color":"blue","name":"water","parts":1}]}`)

	// Public list includes the short form without names
	w = api.do(t, http.MethodGet, "/drinks", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `{"id":2,"title":"Water","recipe":[{"color":"blue","parts":1}]}`)
	assert.NotContains(t, w.Body.String(), `"name"`)

	// Patch only the title; the recipe is kept
	w = api.do(t, http.MethodPatch, "/drinks/2", token, `{"title":"Sparkling Water"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":2,"title":"Sparkling Water","recipe":[{"color":"blue","name":"water","parts":1}]}]}`, w.Body.String())

	// Patch the recipe with a single ingredient object
	w = api.do(t, http.MethodPatch, "/drinks/2", token, `{"recipe":{"color":"clear","name":"soda","parts":2}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":2,"title":"Sparkling Water","recipe":[{"color":"clear","name":"soda","parts":2}]}]}`, w.Body.String())

	// Delete, then it is gone
	w = api.do(t, http.MethodDelete, "/drinks/2", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deleted":2}`, w.Body.String())

	w = api.do(t, http.MethodGet, "/drinks", "", "")
	assert.NotContains(t, w.Body.String(), `"id":2`)

	// Deleting again is a not-found, not a success
	assertEnvelope(t, api.do(t, http.MethodDelete, "/drinks/2", token, ""), http.StatusNotFound, "resource not found")
}

func TestRouter_Failures(t *testing.T) {
	api := newTestAPI(t)
	token := api.manager(t)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		status  int
		message string
	}{
		{"patch unknown id", http.MethodPatch, "/drinks/999", `{"title":"Ghost"}`, http.StatusNotFound, "resource not found"},
		{"patch unknown id with bad body", http.MethodPatch, "/drinks/999", `{"title":""}`, http.StatusNotFound, "resource not found"},
		{"patch unknown id without body", http.MethodPatch, "/drinks/999", "", http.StatusNotFound, "resource not found"},
		{"patch non numeric id", http.MethodPatch, "/drinks/abc", `{"title":"Ghost"}`, http.StatusNotFound, "resource not found"},
		{"delete unknown id", http.MethodDelete, "/drinks/999", "", http.StatusNotFound, "resource not found"},
		{"create without body", http.MethodPost, "/drinks", "", http.StatusNotFound, "resource not found"},
		{"create without recipe", http.MethodPost, "/drinks", `{"title":"Mocha"}`, http.StatusNotFound, "resource not found"},
		{"create duplicate title", http.MethodPost, "/drinks", `{"title":"water","recipe":[]}`, http.StatusUnprocessableEntity, "unprocessable"},
		{"rename onto existing title", http.MethodPatch, "/drinks/1", `{"title":"water"}`, http.StatusOK, ""},
		{"unknown route", http.MethodGet, "/coffee", "", http.StatusNotFound, "resource not found"},
		{"wrong method", http.MethodPut, "/drinks", "", http.StatusMethodNotAllowed, "method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.target, token, tt.body)
			if tt.message == "" {
				assert.Equal(t, tt.status, w.Code)
				return
			}
			assertEnvelope(t, w, tt.status, tt.message)
		})
	}
}

func TestRouter_UpdateDuplicateTitle(t *testing.T) {
	api := newTestAPI(t)
	token := api.manager(t)

	w := api.do(t, http.MethodPost, "/drinks", token, `{"title":"Mocha","recipe":[]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPatch, "/drinks/2", token, `{"title":"water"}`)
	assertEnvelope(t, w, http.StatusUnprocessableEntity, "unprocessable")
}

func TestRouter_MultibyteTitles(t *testing.T) {
	api := newTestAPI(t)
	token := api.manager(t)

	title := strings.Repeat("é", 41)
	w := api.do(t, http.MethodPost, "/drinks", token, fmt.Sprintf(`{"title":%q,"recipe":[]}`, title))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), title)

	renamed := strings.Repeat("ü", 80)
	w = api.do(t, http.MethodPatch, "/drinks/2", token, fmt.Sprintf(`{"title":%q}`, renamed))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), renamed)

	// 81 characters fails the schema before reaching storage.
	w = api.do(t, http.MethodPatch, "/drinks/2", token, fmt.Sprintf(`{"title":%q}`, renamed+"ü"))
	assertEnvelope(t, w, http.StatusNotFound, "resource not found")
}

func TestRouter_CORS(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/drinks", nil)
	req.Header.Set("Origin", "http://localhost:8100")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestNewRouter_RequiresCollaborators(t *testing.T) {
	v, err := validation.NewSchemaValidator(1)
	require.NoError(t, err)

	_, err = NewRouter(RouterOptions{Validator: v})
	assert.Error(t, err)

	_, err = NewRouter(RouterOptions{DrinkService: &mockDrinkService{}})
	assert.Error(t, err)

	_, err = NewRouter(RouterOptions{DrinkService: &mockDrinkService{}, Validator: v})
	assert.Error(t, err, "verifier is required")
}

package server

import (
	"bytes"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/dataapi"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtest"
	"github.com/looplj/todohub/internal/server/api"
	"github.com/looplj/todohub/internal/server/biz"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	*Server

	services *biz.Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := xtest.NewDB(t)
	cfg := biz.AuthConfig{Secret: "test-secret", BaseURL: "http://todohub.test"}
	services := biz.NewServicesForTest(client, cfg)

	srv := New(Config{Name: "todohub-test", Debug: true, RequestTimeout: time.Minute})
	SetupRoutes(srv, Handlers{
		Auth: api.NewAuthHandlers(api.AuthHandlersParams{
			Config:         cfg,
			AuthService:    services.Auth,
			SessionService: services.Session,
			UserService:    services.User,
		}),
		Organization: api.NewOrganizationHandlers(api.OrganizationHandlersParams{OrganizationService: services.Organization}),
		Admin:        api.NewAdminHandlers(api.AdminHandlersParams{AdminService: services.Admin}),
		System:       api.NewSystemHandlers(api.SystemHandlersParams{SystemService: services.System}),
		Model:        api.NewModelHandlers(api.ModelHandlersParams{Engine: dataapi.NewEngine(client)}),
	}, Services{
		SessionService: services.Session,
		Resolver:       NewContextResolver(services.Session, services.Organization),
	})

	return &testServer{Server: srv, services: services}
}

// do sends a json request, authenticated with a bearer token when token is not empty.
func (s *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())

	return v
}

func modelURL(path string, args string) string {
	if args == "" {
		return "/api/model/" + path
	}

	return "/api/model/" + path + "?q=" + url.QueryEscape(args)
}

type rowsResponse struct {
	Data []map[string]any `json:"data"`
}

type rowResponse struct {
	Data map[string]any `json:"data"`
}

func (s *testServer) signUp(t *testing.T, name, email string) api.SignInResponse {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/auth/sign-up/email", "", biz.SignUpInput{
		Name:     name,
		Email:    email,
		Password: testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[api.SignInResponse](t, w)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, resp.Token, w.Header().Get(api.HeaderAuthToken))

	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[api.HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Build.Version)
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)

	alice := s.signUp(t, "Alice", "alice@example.com")

	t.Run("session from bearer and cookie", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/auth/get-session", alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, alice.User.ID, decode[objects.SessionWithUser](t, w).User.ID)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/get-session", nil)
		req.AddCookie(&http.Cookie{Name: biz.SessionCookieName, Value: alice.Token})

		cw := httptest.NewRecorder()
		s.ServeHTTP(cw, req)
		require.Equal(t, http.StatusOK, cw.Code)
		assert.Equal(t, alice.User.ID, decode[objects.SessionWithUser](t, cw).User.ID)

		w = s.do(t, http.MethodGet, "/api/auth/get-session", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "null", w.Body.String())
	})

	t.Run("sign in", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/sign-in/email", "", biz.SignInInput{Email: "alice@example.com", Password: "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(t, http.MethodPost, "/api/auth/sign-in/email", "", biz.SignInInput{Email: "alice@example.com", Password: testPassword})
		require.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, biz.SessionCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		w = s.do(t, http.MethodGet, "/api/auth/list-sessions", alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]objects.Session](t, w), 2)
	})

	t.Run("duplicate sign up", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/sign-up/email", "", biz.SignUpInput{Email: "alice@example.com", Password: testPassword})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = s.do(t, http.MethodPost, "/api/auth/sign-up/email", "", "not an object")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("verify email", func(t *testing.T) {
		msg, ok := s.services.Mails.Last("alice@example.com")
		require.True(t, ok)

		match := regexp.MustCompile(`href="([^"]+)"`).FindStringSubmatch(msg.HTML)
		require.Len(t, match, 2)

		link, err := url.Parse(html.UnescapeString(match[1]))
		require.NoError(t, err)

		w := s.do(t, http.MethodGet, link.RequestURI(), "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do(t, http.MethodGet, "/api/auth/verify-email?token=garbage", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, http.MethodGet, "/api/auth/verify-email?token=garbage&callbackURL=%2Fdashboard", "", nil)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard?error=INVALID_TOKEN", w.Header().Get("Location"))

		// Foreign callbacks are ignored.
		w = s.do(t, http.MethodGet, "/api/auth/verify-email?token=garbage&callbackURL=https%3A%2F%2Fevil.test", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("session required", func(t *testing.T) {
		for _, target := range []string{"/api/auth/list-sessions", "/api/auth/organization/list", "/api/auth/admin/list-users"} {
			w := s.do(t, http.MethodGet, target, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		}
	})

	t.Run("admin endpoints need the admin role", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/auth/admin/list-users", alice.Token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("sign out", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/sign-out", alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodGet, "/api/auth/get-session", alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "null", w.Body.String())
	})
}

func TestModelRoutes(t *testing.T) {
	s := newTestServer(t)

	alice := s.signUp(t, "Alice", "alice@example.com")
	bob := s.signUp(t, "Bob", "bob@example.com")

	t.Run("anonymous", func(t *testing.T) {
		w := s.do(t, http.MethodGet, modelURL("todoList/findMany", ""), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"data":[]}`, w.Body.String())

		w = s.do(t, http.MethodPost, modelURL("todoList/create", ""), "", map[string]any{"data": map[string]any{"name": "x"}})
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dataapi.ReasonAccessPolicyViolation, decode[objects.ErrorResponse](t, w).Error.Reason)
	})

	w := s.do(t, http.MethodPost, modelURL("todoList/create", ""), alice.Token, map[string]any{"data": map[string]any{"name": "Alice private"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	private := decode[rowResponse](t, w).Data
	assert.Equal(t, alice.User.ID, private["ownerId"])
	assert.Nil(t, private["organizationId"])

	w = s.do(t, http.MethodPost, "/api/auth/organization/create", alice.Token, biz.CreateOrganizationInput{Name: "Acme", Slug: "acme"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	org := decode[objects.FullOrganization](t, w)

	w = s.do(t, http.MethodPost, modelURL("todoList/create", ""), alice.Token, map[string]any{"data": map[string]any{"name": "Roadmap"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	shared := decode[rowResponse](t, w).Data
	assert.Equal(t, org.ID, shared["organizationId"])

	w = s.do(t, http.MethodPost, "/api/auth/organization/invite-member", alice.Token, map[string]any{"email": "bob@example.com", "role": objects.RoleMember})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	invitation := decode[objects.Invitation](t, w)

	w = s.do(t, http.MethodPost, "/api/auth/organization/accept-invitation", bob.Token, map[string]any{"invitationId": invitation.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("member sees the organization lists only", func(t *testing.T) {
		w := s.do(t, http.MethodGet, modelURL("todoList/findMany", `{"orderBy":{"createdAt":"asc"}}`), bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		rows := decode[rowsResponse](t, w).Data
		require.Len(t, rows, 1)
		assert.Equal(t, shared["id"], rows[0]["id"])

		w = s.do(t, http.MethodGet, modelURL("todoList/count", ""), bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"data":1}`, w.Body.String())
	})

	t.Run("member cannot write lists of others", func(t *testing.T) {
		w := s.do(t, http.MethodPut, modelURL("todoList/update", ""), bob.Token, map[string]any{
			"where": map[string]any{"id": shared["id"]},
			"data":  map[string]any{"name": "hijacked"},
		})
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dataapi.ReasonAccessPolicyViolation, decode[objects.ErrorResponse](t, w).Error.Reason)

		w = s.do(t, http.MethodDelete, modelURL("todoList/delete", `{"where":{"id":"`+private["id"].(string)+`"}}`), bob.Token, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dataapi.ReasonResourceNotFound, decode[objects.ErrorResponse](t, w).Error.Reason)
	})

	t.Run("todos follow their list", func(t *testing.T) {
		w := s.do(t, http.MethodPost, modelURL("todo/create", ""), alice.Token, map[string]any{
			"data": map[string]any{"title": "Ship it", "listId": shared["id"]},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		todo := decode[rowResponse](t, w).Data

		w = s.do(t, http.MethodPatch, modelURL("todo/update", ""), alice.Token, map[string]any{
			"where": map[string]any{"id": todo["id"]},
			"data":  map[string]any{"done": true},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, true, decode[rowResponse](t, w).Data["done"])

		w = s.do(t, http.MethodGet, modelURL("todo/findFirst", `{"where":{"listId":"`+shared["id"].(string)+`"}}`), bob.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, todo["id"], decode[rowResponse](t, w).Data["id"])

		w = s.do(t, http.MethodPost, modelURL("todo/create", ""), bob.Token, map[string]any{
			"data": map[string]any{"title": "Sneaky", "listId": shared["id"]},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("clearing the active organization narrows the scope", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/organization/set-active", alice.Token, map[string]any{"organizationId": nil})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do(t, http.MethodGet, modelURL("todoList/findMany", ""), alice.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		rows := decode[rowsResponse](t, w).Data
		require.Len(t, rows, 1)
		assert.Equal(t, private["id"], rows[0]["id"])
	})

	t.Run("bad requests", func(t *testing.T) {
		w := s.do(t, http.MethodGet, modelURL("user/findMany", ""), alice.Token, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dataapi.ReasonInvalidRequest, decode[objects.ErrorResponse](t, w).Error.Reason)

		w = s.do(t, http.MethodPost, modelURL("todoList/findMany", ""), alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, http.MethodGet, modelURL("todoList/findMany", `{"take":-1}`), alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, http.MethodPost, modelURL("todoList/create", ""), alice.Token,
			map[string]any{"data": map[string]any{"name": strings.Repeat("x", 1<<20)}})
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "Request body too large", decode[objects.ErrorResponse](t, w).Error.Message)
	})
}

func TestServer_RunAndShutdown(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0, Name: "todohub-test", Debug: true})
	srv.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	assert.Empty(t, srv.Addr())
	require.NoError(t, srv.Shutdown(t.Context()))

	done := make(chan error, 1)

	go func() { done <- srv.Run() }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(t.Context()))
	require.NoError(t, <-done)
}

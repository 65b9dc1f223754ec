package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/token"
)

// --- ルーター統合テスト用モック ---

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockAccessVerifier struct {
	verifyAccessFn func(tokenString string) (*token.Claims, error)
}

func (m *mockAccessVerifier) VerifyAccess(tokenString string) (*token.Claims, error) {
	if m.verifyAccessFn != nil {
		return m.verifyAccessFn(tokenString)
	}
	return nil, errors.New("invalid token")
}

type mockUserFinder struct {
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
}

func (m *mockUserFinder) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

type mockTodoFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Todo, error)
}

func (m *mockTodoFinder) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockDenialRecorder struct {
	denials []string
}

func (m *mockDenialRecorder) RecordAuthzDenial(gate string) {
	m.denials = append(m.denials, gate)
}

// newTestRouter は検証可能なトークン"valid-token"でtaro_123として
// 認証されるルーターを構成する。
func newTestRouter(deps *RouterDeps) http.Handler {
	if deps.HealthChecker == nil {
		deps.HealthChecker = &mockHealthChecker{}
	}
	if deps.AccessVerifier == nil {
		deps.AccessVerifier = &mockAccessVerifier{
			verifyAccessFn: func(tokenString string) (*token.Claims, error) {
				if tokenString != "valid-token" {
					return nil, errors.New("invalid token")
				}
				return &token.Claims{
					RegisteredClaims: jwt.RegisteredClaims{Subject: "user-id-1"},
					Username:         "taro_123",
					Email:            "taro@example.com",
				}, nil
			},
		}
	}
	if deps.CredentialReader == nil {
		deps.CredentialReader = middleware.NewCredentialReader(testHandlerSecret)
	}
	if deps.UserFinder == nil {
		deps.UserFinder = &mockUserFinder{
			findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
				if username == "taro_123" {
					return testUser(), nil
				}
				return nil, nil
			},
		}
	}
	if deps.TodoFinder == nil {
		deps.TodoFinder = &mockTodoFinder{}
	}
	if deps.DenialRecorder == nil {
		deps.DenialRecorder = &mockDenialRecorder{}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.SyncService == nil {
		deps.SyncService = &mockSyncService{}
	}
	if deps.TodoService == nil {
		deps.TodoService = &mockTodoService{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.CookieConfig.Secret == nil {
		deps.CookieConfig = testCookieConfig()
	}
	return NewRouter(deps)
}

// authedRequest は認証済みリクエストを生成する（CSRFトークン込み）。
func authedRequest(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.Header.Set(middleware.AuthorizationHeader, "Bearer valid-token")
	r.AddCookie(&http.Cookie{Name: middleware.CSRFTokenCookie, Value: "csrf-token-1"})
	r.Header.Set(middleware.CSRFTokenHeader, "csrf-token-1")
	return r
}

func TestRouter_Healthz_ReturnsOK(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_Healthz_DatabaseDown_Returns503(t *testing.T) {
	router := newTestRouter(&RouterDeps{
		HealthChecker: &mockHealthChecker{
			pingFn: func(ctx context.Context) error {
				return errors.New("connection refused")
			},
		},
	})

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_Metrics_ExposesPrometheusFormat(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "todoman_test_total",
		Help: "test counter",
	})
	registry.MustRegister(counter)
	counter.Inc()

	router := newTestRouter(&RouterDeps{MetricsGatherer: registry})

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "todoman_test_total 1") {
		t.Errorf("metrics output should contain the registered counter, got:\n%s", w.Body.String())
	}
}

func TestRouter_AuthRoutes_DoNotRequireAccessToken(t *testing.T) {
	refreshed := false
	router := newTestRouter(&RouterDeps{
		AuthService: &mockAuthService{
			refreshFn: func(ctx context.Context, presented string) (*model.TokenPair, error) {
				refreshed = true
				return &model.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
			},
		},
	})

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !refreshed {
		t.Error("refresh handler should be reachable without an access token")
	}
}

func TestRouter_CSRFTokenEndpoint_IssuesToken(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	r := httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_Sync_RequiresAccessToken(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	r := httptest.NewRequest(http.MethodGet, "/auth/sync", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_ProtectedRoute_WithoutToken_Returns401(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	r := httptest.NewRequest(http.MethodGet, "/api/taro_123/todos", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_ProtectedRoute_WithValidToken_Passes(t *testing.T) {
	listed := false
	router := newTestRouter(&RouterDeps{
		TodoService: &mockTodoService{
			listFn: func(ctx context.Context, owner string, pendingOnly bool) ([]*model.Todo, error) {
				listed = true
				if owner != "taro_123" {
					t.Errorf("owner = %q, want %q", owner, "taro_123")
				}
				return []*model.Todo{}, nil
			},
		},
	})

	r := authedRequest(http.MethodGet, "/api/taro_123/todos")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !listed {
		t.Error("list handler should be reached through the middleware chain")
	}
}

func TestRouter_ProtectedRoute_OtherUsersScope_Returns401(t *testing.T) {
	// taro_123として認証し、hanakoのスコープにアクセスする
	recorder := &mockDenialRecorder{}
	router := newTestRouter(&RouterDeps{
		UserFinder: &mockUserFinder{
			findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
				return &model.User{ID: "user-id-2", Username: "hanako"}, nil
			},
		},
		DenialRecorder: recorder,
	})

	r := authedRequest(http.MethodGet, "/api/hanako/todos")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if len(recorder.denials) != 1 || recorder.denials[0] != "user_exists" {
		t.Errorf("denials = %v, want [user_exists]", recorder.denials)
	}
}

func TestRouter_UnsafeMethod_WithoutCSRFToken_Returns401(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	r := httptest.NewRequest(http.MethodPost, "/api/taro_123/todos", nil)
	r.Header.Set(middleware.AuthorizationHeader, "Bearer valid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_TodoMutation_ChecksOwnership(t *testing.T) {
	recorder := &mockDenialRecorder{}
	router := newTestRouter(&RouterDeps{
		TodoFinder: &mockTodoFinder{
			findByIDFn: func(ctx context.Context, id string) (*model.Todo, error) {
				return &model.Todo{ID: id, Owner: "hanako"}, nil
			},
		},
		DenialRecorder: recorder,
	})

	r := authedRequest(http.MethodDelete, "/api/taro_123/todos/todo-id-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if len(recorder.denials) == 0 || recorder.denials[len(recorder.denials)-1] != "todo_owner" {
		t.Errorf("denials = %v, want todo_owner recorded", recorder.denials)
	}
}

func TestRouter_SecurityHeaders_PresentOnAllResponses(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

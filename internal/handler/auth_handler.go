package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/user"
	"github.com/hitoshi/todoman/internal/validation"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, in validation.SignUpInput) (*auth.Result, error)
	SignIn(ctx context.Context, in validation.SignInInput) (*auth.Result, error)
	SignInWithGoogle(ctx context.Context, idToken string) (*auth.Result, error)
	Refresh(ctx context.Context, presented string) (*model.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// SyncServiceInterface は同期エンドポイントが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	Sync(ctx context.Context, userID string) (*user.SyncResult, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	syncSvc SyncServiceInterface
	creds   *middleware.CredentialReader
	cookies CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	syncSvc SyncServiceInterface,
	creds *middleware.CredentialReader,
	cookies CookieConfig,
) *AuthHandler {
	return &AuthHandler{
		service: service,
		syncSvc: syncSvc,
		creds:   creds,
		cookies: cookies,
	}
}

type signUpRequest struct {
	FirstName string `json:"firstName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SignUp は新規ユーザーを登録する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError(map[string]string{
			"body": "Request body must be valid JSON!",
		}))
		return
	}

	result, err := h.service.SignUp(r.Context(), validation.SignUpInput{
		FirstName: req.FirstName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	setTokenCookies(w, result.Tokens, h.cookies)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Successfully signed up!",
		"user":         toUserPayload(result.User),
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

type signInRequest struct {
	UserIdentifier string `json:"userIdentifier"`
	Password       string `json:"password"`
}

// SignIn はローカル認証情報でサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError(map[string]string{
			"body": "Request body must be valid JSON!",
		}))
		return
	}

	result, err := h.service.SignIn(r.Context(), validation.SignInInput{
		UserIdentifier: req.UserIdentifier,
		Password:       req.Password,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	setTokenCookies(w, result.Tokens, h.cookies)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Successfully signed in!",
		"user":         toUserPayload(result.User),
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

type googleSignInRequest struct {
	IDToken string `json:"idToken"`
}

// SignInWithGoogle はGoogle発行のIDトークンでサインインする。
// 未登録のemailの場合はユーザーを新規作成し201を返す。
// POST /auth/google
func (h *AuthHandler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError(map[string]string{
			"body": "Request body must be valid JSON!",
		}))
		return
	}

	result, err := h.service.SignInWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}

	setTokenCookies(w, result.Tokens, h.cookies)
	writeJSON(w, status, map[string]interface{}{
		"message":      "Successfully signed in!",
		"user":         toUserPayload(result.User),
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh は提示されたリフレッシュトークンを新しいペアと交換する。
// トークンは署名付きCookie → 平文Cookie → ヘッダー → ボディの順で読み取る。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := h.readRefreshToken(r)

	pair, err := h.service.Refresh(r.Context(), presented)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	setTokenCookies(w, pair, h.cookies)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Tokens refreshed!",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// SignOut は提示されたリフレッシュトークンを失効させ、Cookieをクリアする。
// トークンが無い場合もサインアウト済みとして成功する（冪等）。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	presented := h.readRefreshToken(r)

	if err := h.service.SignOut(r.Context(), presented); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	clearTokenCookies(w, h.cookies)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Successfully signed out!",
	})
}

// Sync は認証済みユーザーのプロフィールと未完了タスクを返す。
// GET /auth/sync （アクセストークンミドルウェア必須）
func (h *AuthHandler) Sync(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewAuthorizationError())
		return
	}

	result, err := h.syncSvc.Sync(r.Context(), identity.UserID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Synced!",
		"user":    toUserPayload(result.User),
		"todos":   toTodoPayloads(result.Todos),
	})
}

// readRefreshToken は3チャネル（署名付きCookie → 平文Cookie → ヘッダー）に
// 加え、最後のフォールバックとしてリクエストボディからトークンを読み取る。
func (h *AuthHandler) readRefreshToken(r *http.Request) string {
	if token := h.creds.Read(r, middleware.RefreshTokenCookie, middleware.RefreshTokenHeader); token != "" {
		return token
	}

	if r.Body == nil {
		return ""
	}
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

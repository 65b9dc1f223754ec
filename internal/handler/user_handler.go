package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, username string) (*model.User, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Profile はユーザープロフィールを返す。
// 前段のguardゲートがアクティングユーザー自身であることを検証済みのため、
// APIキーを含む完全なプロフィールを返して良い。
// GET /api/{username}/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.Profile(r.Context(), username)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile fetched!",
		"user":    toUserPayload(user),
	})
}

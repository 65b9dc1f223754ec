package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/todo"
)

// TodoServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	Create(ctx context.Context, owner string, in todo.CreateInput) (*model.Todo, error)
	Update(ctx context.Context, todoID string, in todo.UpdateInput) (*model.Todo, error)
	Delete(ctx context.Context, todoID string) error
	List(ctx context.Context, owner string, pendingOnly bool) ([]*model.Todo, error)
}

// TodoHandler はタスク管理のHTTPハンドラー。
// 所有権の検証は前段のguardゲートが行うため、ここでは行わない。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{service: service}
}

type createTodoRequest struct {
	Name    string    `json:"name"`
	DueDate time.Time `json:"dueDate"`
}

// Create はタスクを作成する。
// POST /api/{username}/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError(map[string]string{
			"body": "Request body must be valid JSON!",
		}))
		return
	}

	owner := chi.URLParam(r, "username")
	created, err := h.service.Create(r.Context(), owner, todo.CreateInput{
		Name:    req.Name,
		DueDate: req.DueDate,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Todo created!",
		"todo":    toTodoPayload(created),
	})
}

// List はタスク一覧を返す。?filter=pending で未完了のみに絞り込める。
// GET /api/{username}/todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "username")
	pendingOnly := r.URL.Query().Get("filter") == "pending"

	todos, err := h.service.List(r.Context(), owner, pendingOnly)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Todos fetched!",
		"todos":   toTodoPayloads(todos),
	})
}

type updateTodoRequest struct {
	Name      *string    `json:"name"`
	DueDate   *time.Time `json:"dueDate"`
	Completed *bool      `json:"completed"`
}

// Update はタスクを部分更新する。
// PATCH /api/{username}/todos/{todoID}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError(map[string]string{
			"body": "Request body must be valid JSON!",
		}))
		return
	}

	todoID := chi.URLParam(r, "todoID")
	updated, err := h.service.Update(r.Context(), todoID, todo.UpdateInput{
		Name:      req.Name,
		DueDate:   req.DueDate,
		Completed: req.Completed,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Todo updated!",
		"todo":    toTodoPayload(updated),
	})
}

// Delete はタスクを削除する。
// DELETE /api/{username}/todos/{todoID}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	todoID := chi.URLParam(r, "todoID")

	if err := h.service.Delete(r.Context(), todoID); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Todo deleted!",
	})
}

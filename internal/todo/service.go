// Package todo はタスク管理のドメインロジックを提供する。
//
// 所有権の検証はこの層の責務ではなく、前段のguardゲートが行う。
// ここに到達したリクエストは所有権検査を通過している。
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// Sanitizer はユーザー入力のサニタイズインターフェース。
// security.InputSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はタスク管理のサービス層。
type Service struct {
	todos     repository.TodoRepository
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(todos repository.TodoRepository, sanitizer Sanitizer) *Service {
	return &Service{
		todos:     todos,
		sanitizer: sanitizer,
	}
}

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Name    string
	DueDate time.Time
}

// UpdateInput はタスク更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name      *string
	DueDate   *time.Time
	Completed *bool
}

// Create は認証済みユーザー自身のタスクを作成する。
func (s *Service) Create(ctx context.Context, owner string, in CreateInput) (*model.Todo, error) {
	name := s.sanitizer.Sanitize(in.Name)
	if name == "" {
		return nil, model.NewValidationError(map[string]string{
			"name": "Todo name is required!",
		})
	}

	now := time.Now()
	todo := &model.Todo{
		ID:        uuid.New().String(),
		Owner:     owner,
		Name:      name,
		DueDate:   in.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	slog.Info("todo created",
		slog.String("todo_id", todo.ID),
		slog.String("owner", owner),
	)
	return todo, nil
}

// Update は既存タスクを部分更新する。
// 所有権はguardゲートで検証済みのため、ここでは存在確認のみ行う。
func (s *Service) Update(ctx context.Context, todoID string, in UpdateInput) (*model.Todo, error) {
	todo, err := s.todos.FindByID(ctx, todoID)
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewAuthorizationError()
	}

	if in.Name != nil {
		name := s.sanitizer.Sanitize(*in.Name)
		if name == "" {
			return nil, model.NewValidationError(map[string]string{
				"name": "Todo name is required!",
			})
		}
		todo.Name = name
	}
	if in.DueDate != nil {
		todo.DueDate = *in.DueDate
	}
	if in.Completed != nil {
		todo.Completed = *in.Completed
	}

	if err := s.todos.Update(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	return todo, nil
}

// Delete は指定IDのタスクを削除する。
func (s *Service) Delete(ctx context.Context, todoID string) error {
	if err := s.todos.DeleteByID(ctx, todoID); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return nil
}

// List は所有者のタスク一覧を返す。pendingOnlyがtrueの場合は未完了のみ。
func (s *Service) List(ctx context.Context, owner string, pendingOnly bool) ([]*model.Todo, error) {
	var todos []*model.Todo
	var err error
	if pendingOnly {
		todos, err = s.todos.ListPendingByOwner(ctx, owner)
	} else {
		todos, err = s.todos.ListByOwner(ctx, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

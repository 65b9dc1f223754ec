// Package user はユーザープロフィールのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// Service はプロフィール取得と同期のサービス層。
type Service struct {
	users repository.UserRepository
	todos repository.TodoRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, todos repository.TodoRepository) *Service {
	return &Service{
		users: users,
		todos: todos,
	}
}

// SyncResult はSyncの結果。プロフィールと未完了タスクをまとめて返す。
type SyncResult struct {
	User  *model.User
	Todos []*model.Todo
}

// Sync は認証済みユーザーのプロフィールと未完了タスクを取得する。
// クライアント起動時の状態復元に使用される。
func (s *Service) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	todos, err := s.todos.ListPendingByOwner(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending todos: %w", err)
	}

	return &SyncResult{User: user, Todos: todos}, nil
}

// Profile は指定usernameのユーザープロフィールを取得する。
func (s *Service) Profile(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

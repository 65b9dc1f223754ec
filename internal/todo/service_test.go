package todo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// mockTodoRepo はTodoRepositoryのモック実装。
type mockTodoRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Todo, error)
	createFn             func(ctx context.Context, todo *model.Todo) error
	updateFn             func(ctx context.Context, todo *model.Todo) error
	deleteByIDFn         func(ctx context.Context, id string) error
	listByOwnerFn        func(ctx context.Context, owner string) ([]*model.Todo, error)
	listPendingByOwnerFn func(ctx context.Context, owner string) ([]*model.Todo, error)
}

func (m *mockTodoRepo) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	if m.createFn != nil {
		return m.createFn(ctx, todo)
	}
	return nil
}

func (m *mockTodoRepo) Update(ctx context.Context, todo *model.Todo) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, todo)
	}
	return nil
}

func (m *mockTodoRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockTodoRepo) ListByOwner(ctx context.Context, owner string) ([]*model.Todo, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, owner)
	}
	return nil, nil
}

func (m *mockTodoRepo) ListPendingByOwner(ctx context.Context, owner string) ([]*model.Todo, error) {
	if m.listPendingByOwnerFn != nil {
		return m.listPendingByOwnerFn(ctx, owner)
	}
	return nil, nil
}

// compile-time interface check
var _ repository.TodoRepository = (*mockTodoRepo)(nil)

// stripSanitizer はHTMLタグ風の文字列を取り除く簡易サニタイザー。
type stripSanitizer struct{}

func (stripSanitizer) Sanitize(raw string) string {
	out := raw
	for {
		start := strings.Index(out, "<")
		end := strings.Index(out, ">")
		if start < 0 || end < start {
			return strings.TrimSpace(out)
		}
		out = out[:start] + out[end+1:]
	}
}

func testDueDate() time.Time {
	return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
}

func TestCreate_PersistsTodoWithGeneratedID(t *testing.T) {
	var created *model.Todo
	repo := &mockTodoRepo{
		createFn: func(ctx context.Context, todo *model.Todo) error {
			created = todo
			return nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	todo, err := svc.Create(context.Background(), "taro_123", CreateInput{
		Name:    "Buy milk",
		DueDate: testDueDate(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created == nil {
		t.Fatal("todo should be persisted")
	}
	if todo.ID == "" {
		t.Error("todo.ID should be generated")
	}
	if todo.Owner != "taro_123" {
		t.Errorf("todo.Owner = %q, want %q", todo.Owner, "taro_123")
	}
	if todo.Completed {
		t.Error("todo.Completed should default to false")
	}
	if todo.CreatedAt.IsZero() || todo.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestCreate_SanitizesName(t *testing.T) {
	repo := &mockTodoRepo{}
	svc := NewService(repo, stripSanitizer{})

	todo, err := svc.Create(context.Background(), "taro_123", CreateInput{
		Name:    "<script>alert(1)</script>Buy milk",
		DueDate: testDueDate(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if strings.Contains(todo.Name, "<") {
		t.Errorf("todo.Name = %q, markup should be stripped", todo.Name)
	}
}

func TestCreate_EmptyNameAfterSanitize_ReturnsValidationError(t *testing.T) {
	repo := &mockTodoRepo{
		createFn: func(ctx context.Context, todo *model.Todo) error {
			t.Error("Create should not reach the repository for an empty name")
			return nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	tests := []string{"", "   ", "<b></b>"}
	for _, name := range tests {
		_, err := svc.Create(context.Background(), "taro_123", CreateInput{
			Name:    name,
			DueDate: testDueDate(),
		})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
			t.Errorf("Create(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestUpdate_AppliesPartialChanges(t *testing.T) {
	stored := &model.Todo{
		ID:      "todo-id-1",
		Owner:   "taro_123",
		Name:    "Buy milk",
		DueDate: testDueDate(),
	}
	var updated *model.Todo
	repo := &mockTodoRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Todo, error) {
			return stored, nil
		},
		updateFn: func(ctx context.Context, todo *model.Todo) error {
			updated = todo
			return nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	completed := true
	result, err := svc.Update(context.Background(), "todo-id-1", UpdateInput{
		Completed: &completed,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if !result.Completed {
		t.Error("todo.Completed should be updated to true")
	}
	// 省略されたフィールドは変更されない
	if result.Name != "Buy milk" {
		t.Errorf("todo.Name = %q, should be unchanged", result.Name)
	}
	if !result.DueDate.Equal(testDueDate()) {
		t.Error("todo.DueDate should be unchanged")
	}
	if updated == nil {
		t.Error("update should reach the repository")
	}
}

func TestUpdate_SanitizesNewName(t *testing.T) {
	repo := &mockTodoRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Todo, error) {
			return &model.Todo{ID: id, Owner: "taro_123", Name: "Buy milk"}, nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	name := "<i>Buy bread</i>"
	result, err := svc.Update(context.Background(), "todo-id-1", UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if result.Name != "Buy bread" {
		t.Errorf("todo.Name = %q, want %q", result.Name, "Buy bread")
	}
}

func TestUpdate_MissingTodo_ReturnsAuthorizationError(t *testing.T) {
	// 存在しないタスクの更新は404ではなく認可エラーで応答し、
	// タスクIDの存在有無を漏らさない。
	svc := NewService(&mockTodoRepo{}, stripSanitizer{})

	_, err := svc.Update(context.Background(), "missing-id", UpdateInput{})
	if err == nil {
		t.Fatal("Update should fail for a missing todo")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUnauthorized)
	}
}

func TestDelete_DelegatesToRepository(t *testing.T) {
	var deleted string
	repo := &mockTodoRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	if err := svc.Delete(context.Background(), "todo-id-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != "todo-id-1" {
		t.Errorf("deleted id = %q, want %q", deleted, "todo-id-1")
	}
}

func TestDelete_RepositoryError_Propagates(t *testing.T) {
	repo := &mockTodoRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			return errors.New("pq: connection refused")
		},
	}
	svc := NewService(repo, stripSanitizer{})

	if err := svc.Delete(context.Background(), "todo-id-1"); err == nil {
		t.Error("Delete should propagate repository errors")
	}
}

func TestList_AllTodos(t *testing.T) {
	repo := &mockTodoRepo{
		listByOwnerFn: func(ctx context.Context, owner string) ([]*model.Todo, error) {
			return []*model.Todo{
				{ID: "todo-id-1", Completed: true},
				{ID: "todo-id-2", Completed: false},
			}, nil
		},
		listPendingByOwnerFn: func(ctx context.Context, owner string) ([]*model.Todo, error) {
			t.Error("pending list should not be used without the filter")
			return nil, nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	todos, err := svc.List(context.Background(), "taro_123", false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(todos) != 2 {
		t.Errorf("todos length = %d, want 2", len(todos))
	}
}

func TestList_PendingOnly(t *testing.T) {
	repo := &mockTodoRepo{
		listByOwnerFn: func(ctx context.Context, owner string) ([]*model.Todo, error) {
			t.Error("full list should not be used with the pending filter")
			return nil, nil
		},
		listPendingByOwnerFn: func(ctx context.Context, owner string) ([]*model.Todo, error) {
			return []*model.Todo{{ID: "todo-id-2", Completed: false}}, nil
		},
	}
	svc := NewService(repo, stripSanitizer{})

	todos, err := svc.List(context.Background(), "taro_123", true)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(todos) != 1 {
		t.Errorf("todos length = %d, want 1", len(todos))
	}
}

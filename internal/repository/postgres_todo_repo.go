package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresTodoRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

const todoColumns = `id, owner, name, due_date, completed, created_at, updated_at`

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	todo := &model.Todo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`,
		id,
	).Scan(&todo.ID, &todo.Owner, &todo.Name, &todo.DueDate, &todo.Completed, &todo.CreatedAt, &todo.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}

	return todo, nil
}

// Create はタスクを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, owner, name, due_date, completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		todo.ID, todo.Owner, todo.Name, todo.DueDate, todo.Completed, todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// Update はタスクの内容を更新する。
func (r *PostgresTodoRepo) Update(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE todos
		 SET name = $2, due_date = $3, completed = $4, updated_at = now()
		 WHERE id = $1`,
		todo.ID, todo.Name, todo.DueDate, todo.Completed,
	)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのタスクを削除する。
func (r *PostgresTodoRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return nil
}

// ListByOwner は所有者のタスク一覧を作成日時の昇順で返す。
func (r *PostgresTodoRepo) ListByOwner(ctx context.Context, owner string) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE owner = $1 ORDER BY created_at ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	return scanTodos(rows)
}

// ListPendingByOwner は所有者の未完了タスク一覧を期日の昇順で返す。
func (r *PostgresTodoRepo) ListPendingByOwner(ctx context.Context, owner string) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos
		 WHERE owner = $1 AND completed = false
		 ORDER BY due_date ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending todos: %w", err)
	}
	defer rows.Close()

	return scanTodos(rows)
}

// scanTodos は結果セットをmodel.Todoのスライスに読み取る。
func scanTodos(rows *sql.Rows) ([]*model.Todo, error) {
	var todos []*model.Todo
	for rows.Next() {
		todo := &model.Todo{}
		if err := rows.Scan(&todo.ID, &todo.Owner, &todo.Name, &todo.DueDate, &todo.Completed, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)

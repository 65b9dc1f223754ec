// Package guard はリソース所有権に基づく認可ゲートを提供する。
//
// 各ゲートは変更系ハンドラーの前段に置かれ、検査を通過した場合のみ
// 後続の処理を呼び出す。どちらかのゲートが失敗した場合、変更処理は
// 一切実行されない。
package guard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

// UserFinder はユーザー存在確認に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// TodoFinder はタスク所有権確認に必要なインターフェース。
// repository.TodoRepositoryの部分集合として定義する。
type TodoFinder interface {
	FindByID(ctx context.Context, id string) (*model.Todo, error)
}

// DenialRecorder は認可拒否のメトリクス収集インターフェース。
type DenialRecorder interface {
	RecordAuthzDenial(gate string)
}

// RequireUserExists は /{username}/... にスコープされたルートに対し、
// そのusernameを持つユーザーが存在し、かつ認証済みのアクティングユーザー
// 自身であることを検証するゲートを返す。
// どちらの検査も失敗時は401を返し、存在有無の情報を漏らさない。
func RequireUserExists(users UserFinder, recorder DenialRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := chi.URLParam(r, "username")

			actor, err := middleware.IdentityFromContext(r.Context())
			if err != nil || actor.Username != username {
				deny(w, recorder, "user_exists")
				return
			}

			user, err := users.FindByUsername(r.Context(), username)
			if err != nil {
				slog.Error("failed to find resource owner",
					slog.String("error", err.Error()),
				)
				middleware.WriteInternalServerError(w)
				return
			}
			if user == nil {
				deny(w, recorder, "user_exists")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTodoOwner は /{username}/todos/{todoID} にスコープされたルートに対し、
// 対象タスクの保存済み所有者がパスのusernameと一致することを検証するゲートを返す。
// タスクが存在しない場合も認可失敗として扱い、404による存在情報の
// 漏洩を避ける。
func RequireTodoOwner(todos TodoFinder, recorder DenialRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := chi.URLParam(r, "username")
			todoID := chi.URLParam(r, "todoID")

			todo, err := todos.FindByID(r.Context(), todoID)
			if err != nil {
				slog.Error("failed to find todo for ownership check",
					slog.String("error", err.Error()),
				)
				middleware.WriteInternalServerError(w)
				return
			}
			if todo == nil || todo.Owner != username {
				deny(w, recorder, "todo_owner")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// deny は認可失敗レスポンスを書き込み、メトリクスを記録する。
func deny(w http.ResponseWriter, recorder DenialRecorder, gate string) {
	if recorder != nil {
		recorder.RecordAuthzDenial(gate)
	}
	middleware.WriteError(w, model.NewAuthorizationError())
}

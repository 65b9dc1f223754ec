// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/todoman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// リフレッシュトークン許可リストの操作もユーザードキュメントの
// 一部としてここに属する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername は指定usernameのユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsernameOrEmail はusernameまたはemailに一致するユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error)

	// Create はユーザーを作成する。RefreshTokensは初期許可リストとして保存される。
	Create(ctx context.Context, user *model.User) error

	// AppendRefreshToken はユーザーの許可リストにトークンを追記する。
	AppendRefreshToken(ctx context.Context, userID, token string) error

	// RemoveRefreshToken は許可リストから一致するトークンだけを取り除く。
	// 存在しないトークンの削除はエラーにならない（冪等）。
	RemoveRefreshToken(ctx context.Context, userID, token string) error

	// RotateRefreshToken は許可リストからoldを取り除きnewTokenを追記する。
	// 単一のアトミックな更新として適用され、oldが許可リストに存在しない場合は
	// 何も変更せずfalseを返す。これにより並行するローテーションの片方だけが成功する。
	RotateRefreshToken(ctx context.Context, userID, old, newToken string) (bool, error)
}

// SocialIdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type SocialIdentityRepository interface {
	// FindByProviderAndSubject はproviderとprovider_subject_idで紐付けを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndSubject(ctx context.Context, provider, subjectID string) (*model.SocialIdentity, error)

	// Create は紐付けを作成する。(provider, provider_subject_id)の一意性は
	// データベース制約で保証される。
	Create(ctx context.Context, identity *model.SocialIdentity) error
}

// TodoRepository はタスクデータの永続化インターフェース。
type TodoRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Todo, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// Update はタスクの内容を更新する。
	Update(ctx context.Context, todo *model.Todo) error

	// DeleteByID は指定IDのタスクを削除する。
	DeleteByID(ctx context.Context, id string) error

	// ListByOwner は所有者のタスク一覧を作成日時の昇順で返す。
	ListByOwner(ctx context.Context, owner string) ([]*model.Todo, error)

	// ListPendingByOwner は所有者の未完了タスク一覧を期日の昇順で返す。
	ListPendingByOwner(ctx context.Context, owner string) ([]*model.Todo, error)
}

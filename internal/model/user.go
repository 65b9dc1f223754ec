// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// RefreshTokensは現在有効なリフレッシュトークンの許可リストで、
// 複数デバイスからの同時セッションを表現する。
type User struct {
	ID              string
	FirstName       string
	Username        string
	Email           string
	PasswordHash    string // 空文字列の場合はローカルパスワード未設定
	IsUsernameSet   bool
	Verified        bool
	APIKey          string
	RefreshTokens   []string
	ProfileImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPasswordSet はローカルパスワードが設定済みかどうかを返す。
// falseのユーザーは連携済みのソーシャルIDでのみ認証できる。
func (u *User) IsPasswordSet() bool {
	return u.PasswordHash != ""
}

// SocialIdentity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderSubjectID)の組は一意で、ちょうど1人のユーザーに属する。
// 1人のユーザーはプロバイダーごとに1つのSocialIdentityを持てる。
type SocialIdentity struct {
	ID                string
	UserID            string
	Provider          string // "google" 等
	ProviderSubjectID string
	CreatedAt         time.Time
}

// Todo はユーザーが所有するタスクを表す。
// Ownerは所有者のusernameで、所有者以外は変更できない。
type Todo struct {
	ID        string
	Owner     string
	Name      string
	DueDate   time.Time
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenPair はアクセストークンとリフレッシュトークンの組を表す。
// アクセストークンは短命・ステートレスで、リフレッシュトークンは
// 所有ユーザーの許可リストに含まれている間のみ有効。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

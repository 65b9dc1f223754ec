// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにアクティングユーザーの
// 識別情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// Identity は検証済みアクセストークンから解決されたアクティングユーザー。
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// AccessVerifier はアクセストークンの検証に必要なインターフェース。
// token.Serviceの部分集合として定義する。
type AccessVerifier interface {
	VerifyAccess(tokenString string) (*token.Claims, error)
}

// NewAccessTokenMiddleware は署名付きCookie → 平文Cookie → Authorizationヘッダー
// の優先順位でアクセストークンを読み取り、検証するミドルウェアを返す。
// 検証はステートレス（署名と有効期限のみ）で、データベースを参照しない。
// 解決されたアクティングユーザーをリクエストコンテキストに注入する。
// 未認証リクエストには401を返す。
func NewAccessTokenMiddleware(verifier AccessVerifier, creds *CredentialReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := creds.Read(r, AccessTokenCookie, AuthorizationHeader)
			if tokenString == "" {
				WriteError(w, model.NewAuthorizationError())
				return
			}

			claims, err := verifier.VerifyAccess(tokenString)
			if err != nil {
				WriteError(w, model.NewAuthorizationError())
				return
			}

			identity := Identity{
				UserID:   claims.Subject,
				Username: claims.Username,
				Email:    claims.Email,
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext はリクエストコンテキストからアクティングユーザーを取得する。
// アクセストークンミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストにアクティングユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

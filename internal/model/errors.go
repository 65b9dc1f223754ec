// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
	"sort"
)

// APIError は統一エラーフォーマットを表す。
// クライアントに返すキュレーション済みメッセージとHTTPステータスを保持し、
// 内部詳細は含めない。
type APIError struct {
	Code     string   // エラーコード
	Status   int      // HTTPステータスコード
	Message  string   // クライアント向けメッセージ
	Messages []string // 複数フィールドのバリデーション失敗時のみ設定
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeBadCredentials      = "BAD_CREDENTIALS"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeRefreshTokenInvalid = "REFRESH_TOKEN_INVALID"
)

// NewValidationError はフィールド別のバリデーション失敗を集約したエラーを生成する。
// fieldsはフィールド名→メッセージのマッピングで、少なくとも1件を含むこと。
// Messagesはフィールド名順に整列され、レスポンスを決定的にする。
func NewValidationError(fields map[string]string) *APIError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	messages := make([]string, 0, len(fields))
	for _, name := range names {
		messages = append(messages, fields[name])
	}

	return &APIError{
		Code:     ErrCodeValidationFailed,
		Status:   http.StatusBadRequest,
		Message:  messages[0],
		Messages: messages,
	}
}

// NewAlreadyExistsError はusernameまたはemailの一意性違反エラーを生成する。
// どのフィールドが衝突したかをメッセージで報告する。
func NewAlreadyExistsError(field string) *APIError {
	return &APIError{
		Code:    ErrCodeAlreadyExists,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("User with the given %s already exists!", field),
	}
}

// NewUserNotFoundError はユーザー検索ミス時のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeUserNotFound,
		Status:  http.StatusNotFound,
		Message: "User not found with the given username or email!",
	}
}

// NewBadCredentialsError は認証情報不一致エラーを生成する。
// usernameとpasswordのどちらが誤っていたかを特定できないよう、
// 意図的に汎用的なメッセージを返す。
func NewBadCredentialsError() *APIError {
	return &APIError{
		Code:    ErrCodeBadCredentials,
		Status:  http.StatusBadRequest,
		Message: "Wrong username or password!",
	}
}

// NewAuthorizationError は所有権またはセッション有効性の検証失敗エラーを生成する。
func NewAuthorizationError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Message: "You are not authorized to perform this action!",
	}
}

// NewRefreshTokenError はリフレッシュトークンの検証失敗エラーを生成する。
// 期限切れ・偽造・ローテーション済み・失効済みのすべてを同一メッセージで扱う。
func NewRefreshTokenError() *APIError {
	return &APIError{
		Code:    ErrCodeRefreshTokenInvalid,
		Status:  http.StatusUnauthorized,
		Message: "Invalid or expired refresh token. Please sign in again.",
	}
}

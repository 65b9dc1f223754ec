package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// messagesは複数フィールドのバリデーション失敗時のみ設定される。
type ErrorResponseBody struct {
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

// WriteError は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteError(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Message:  apiErr.Message,
		Messages: apiErr.Messages,
	})
}

// WriteServiceError はサービス層から返されたエラーを単一の伝播点として処理する。
// 型付きドメインエラーはそのステータスで返し、予期しない障害は詳細を
// ログにのみ記録して一般的な500レスポンスを返す。
func WriteServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteError(w, apiErr)
		return
	}

	slog.Error("unexpected service error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Message: "Something went wrong. Please try again later.",
	})
}

// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

// userPayload はユーザープロフィールのレスポンス表現。
// パスワードハッシュとリフレッシュトークン許可リストは含めない。
type userPayload struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	IsUsernameSet   bool   `json:"isUsernameSet"`
	IsPasswordSet   bool   `json:"isPasswordSet"`
	Verified        bool   `json:"verified"`
	ProfileImageURL string `json:"profileImageURL,omitempty"`
	APIKey          string `json:"apiKey,omitempty"`
}

// todoPayload はタスクのレスポンス表現。
type todoPayload struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	DueDate   time.Time `json:"dueDate"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserPayload(user *model.User) userPayload {
	return userPayload{
		ID:              user.ID,
		FirstName:       user.FirstName,
		Username:        user.Username,
		Email:           user.Email,
		IsUsernameSet:   user.IsUsernameSet,
		IsPasswordSet:   user.IsPasswordSet(),
		Verified:        user.Verified,
		ProfileImageURL: user.ProfileImageURL,
		APIKey:          user.APIKey,
	}
}

func toTodoPayload(todo *model.Todo) todoPayload {
	return todoPayload{
		ID:        todo.ID,
		Owner:     todo.Owner,
		Name:      todo.Name,
		DueDate:   todo.DueDate,
		Completed: todo.Completed,
		CreatedAt: todo.CreatedAt,
		UpdatedAt: todo.UpdatedAt,
	}
}

func toTodoPayloads(todos []*model.Todo) []todoPayload {
	payloads := make([]todoPayload, 0, len(todos))
	for _, todo := range todos {
		payloads = append(payloads, toTodoPayload(todo))
	}
	return payloads
}

// writeJSON は成功レスポンスを書き込む。bodyには必ずmessageキーを含めること。
func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// CookieConfig はトークンCookieの設定。
type CookieConfig struct {
	Domain        string
	Secure        bool
	Secret        []byte // Cookie署名用のHMAC鍵
	AccessMaxAge  int    // 秒
	RefreshMaxAge int    // 秒
}

// setTokenCookies はトークンペアを署名付きCookieとして設定する。
// APIクライアントはCookieを無視してレスポンスボディのトークンを使用できる。
func setTokenCookies(w http.ResponseWriter, pair *model.TokenPair, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    middleware.SignCookieValue(config.Secret, pair.AccessToken),
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.AccessMaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	// リフレッシュとサインアウトはCSRFミドルウェアの外にあるため、
	// クロスサイトPOSTによる強制ローテーション/失効を防ぐには
	// リフレッシュCookie自体がクロスサイト送信されないことが必要。
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    middleware.SignCookieValue(config.Secret, pair.RefreshToken),
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.RefreshMaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearTokenCookies はトークンCookieをクリアする。
// サインアウト時にトークンの有無にかかわらず呼ばれる。
func clearTokenCookies(w http.ResponseWriter, config CookieConfig) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   config.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   config.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

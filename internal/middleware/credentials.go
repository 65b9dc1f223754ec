package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// 認証情報を運ぶCookieとヘッダーの名前。
// ブラウザはCookie、APIクライアントはヘッダー/ボディを使用する。
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	CSRFTokenCookie    = "csrfToken"

	AuthorizationHeader = "Authorization"
	RefreshTokenHeader  = "X-Refresh-Token"
	CSRFTokenHeader     = "X-CSRF-Token"
)

// CredentialReader は署名付きCookie、平文Cookie、ヘッダーの3チャネルから
// 認証情報を読み取る。読み取り優先順位は署名付きCookie → 平文Cookie →
// ヘッダー（リクエストボディはハンドラー側で最後のフォールバックとして扱う）。
type CredentialReader struct {
	secret []byte
}

// NewCredentialReader はCredentialReaderを生成する。
// secretはCookie署名の検証に使用するHMAC鍵。
func NewCredentialReader(secret []byte) *CredentialReader {
	return &CredentialReader{secret: secret}
}

// Read は指定されたCookie/ヘッダーから認証情報を読み取る。
// Cookie値が署名付き形式の場合は署名を検証し、検証に失敗した値は
// 無視する。平文Cookieはそのまま使用する。どちらもない場合は
// ヘッダーの値を返す。見つからない場合は空文字列。
func (c *CredentialReader) Read(r *http.Request, cookieName, headerName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		if value, ok := VerifyCookieValue(c.secret, cookie.Value); ok {
			return value
		}
		if !isSignedForm(cookie.Value) {
			return cookie.Value
		}
		// 署名付き形式なのに検証に失敗した値は改ざんとみなして捨てる
	}

	if headerName == AuthorizationHeader {
		return bearerToken(r.Header.Get(AuthorizationHeader))
	}
	return r.Header.Get(headerName)
}

// signedPrefix は署名付きCookie値の形式マーカー。
// 値は "s:<value>.<base64url(hmac-sha256)>" の形を取る。
const signedPrefix = "s:"

// SignCookieValue は値にHMAC-SHA256署名を付与した署名付き形式を返す。
func SignCookieValue(secret []byte, value string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(value))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signedPrefix + value + "." + sig
}

// VerifyCookieValue は署名付き形式の値を検証し、元の値を返す。
// 署名付き形式でない値、または署名が一致しない値にはfalseを返す。
func VerifyCookieValue(secret []byte, signed string) (string, bool) {
	if !isSignedForm(signed) {
		return "", false
	}
	body := strings.TrimPrefix(signed, signedPrefix)
	dot := strings.LastIndex(body, ".")
	if dot <= 0 {
		return "", false
	}
	value := body[:dot]
	expected := SignCookieValue(secret, value)
	if !hmac.Equal([]byte(expected), []byte(signed)) {
		return "", false
	}
	return value, true
}

func isSignedForm(value string) bool {
	return strings.HasPrefix(value, signedPrefix)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

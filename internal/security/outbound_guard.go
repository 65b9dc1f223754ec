// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuardService は外部サービスへのHTTP呼び出しを保護するインターフェース。
// IdPのトークン検証エンドポイントのURLは設定で差し替え可能なため、
// 誤設定や悪意ある設定値による内部ネットワークへの到達を防ぐ。
type OutboundGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	// DNS再バインディング攻撃への対策も有効化される。
	NewSafeClient(timeout time.Duration) *http.Client
}

// allowedSchemes は外部呼び出しで許可されるURLスキーム。
var allowedSchemes = []string{"https"}

// outboundGuard はOutboundGuardServiceの実装。
type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardServiceの新しいインスタンスを生成する。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
// IdPへの呼び出しはhttpsの443番ポートのみ許可する。
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// compile-time interface check
var _ OutboundGuardService = (*outboundGuard)(nil)

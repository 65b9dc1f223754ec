package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewOutboundGuard はOutboundGuardの生成をテストする。
func TestNewOutboundGuard(t *testing.T) {
	guard := NewOutboundGuard()
	if guard == nil {
		t.Fatal("NewOutboundGuard() returned nil")
	}
}

// TestNewSafeClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewOutboundGuard()
	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewOutboundGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewOutboundGuard()
	client := guard.NewSafeClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewOutboundGuard()
	client := guard.NewSafeClient(5 * time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestNewSafeClientBlocksPlainHTTP はhttpスキームがブロックされることをテストする。
// IdPのトークン検証エンドポイントはhttpsのみ許可する。
func TestNewSafeClientBlocksPlainHTTP(t *testing.T) {
	guard := NewOutboundGuard()
	client := guard.NewSafeClient(5 * time.Second)

	_, err := client.Get("http://example.com/")
	if err == nil {
		t.Fatal("expected error for http scheme request, got nil")
	}
}

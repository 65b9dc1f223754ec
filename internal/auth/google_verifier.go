package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifierConfig はGoogle IDトークン検証の設定。
type GoogleVerifierConfig struct {
	// ClientID は検証対象のaudience。トークンのaudクレームと一致すること。
	ClientID string

	// TokenInfoURL はテスト用にオーバーライド可能な検証エンドポイント。
	TokenInfoURL string

	// Client は検証リクエストに使用するHTTPクライアント。
	// 本番ではsecurity.OutboundGuardServiceが生成するSSRF防止付き
	// クライアントを渡す。タイムアウトはクライアント側で設定済みであること。
	Client *http.Client
}

// GoogleVerifier はGoogleのtokeninfoエンドポイントによるIDトークン検証を提供する。
// 検証はIdP側で行われ、ここでは結果のaudience照合のみを行う。
type GoogleVerifier struct {
	config GoogleVerifierConfig
}

// NewGoogleVerifier はGoogleVerifierを生成する。
func NewGoogleVerifier(config GoogleVerifierConfig) *GoogleVerifier {
	if config.TokenInfoURL == "" {
		config.TokenInfoURL = defaultGoogleTokenInfoURL
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 5 * time.Second}
	}
	return &GoogleVerifier{config: config}
}

// googleTokenInfo はtokeninfoエンドポイントのレスポンス。
type googleTokenInfo struct {
	Aud     string `json:"aud"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Verify はIDトークンをGoogleのtokeninfoエンドポイントで検証する。
// 署名・有効期限の検証はエンドポイント側で行われ、無効なトークンには
// 200以外が返る。audが期待するClient IDと一致しない場合も失敗する。
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*VerifiedIdentity, error) {
	endpoint := v.config.TokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokeninfo request: %w", err)
	}

	resp, err := v.config.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokeninfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token verification failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info googleTokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse tokeninfo response: %w", err)
	}

	if info.Aud != v.config.ClientID {
		return nil, fmt.Errorf("token audience mismatch: %s", info.Aud)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in tokeninfo response")
	}
	if info.Email == "" {
		return nil, fmt.Errorf("empty email in tokeninfo response")
	}

	return &VerifiedIdentity{
		SubjectID:  info.Sub,
		Email:      info.Email,
		Name:       info.Name,
		PictureURL: info.Picture,
		Provider:   "google",
	}, nil
}

// compile-time interface check
var _ IdentityVerifier = (*GoogleVerifier)(nil)

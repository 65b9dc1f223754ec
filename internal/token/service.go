// Package token はアクセス/リフレッシュトークンの発行・検証・ローテーションを提供する。
//
// アクセストークンは短命・ステートレスで、検証はサーバー状態を参照しない。
// リフレッシュトークンは所有ユーザーの許可リストへの所属がサーバー側で
// 検査される。この非対称性により、リクエストごとの検証は安価なまま、
// 長命な認証情報だけを失効可能にしている。
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// Purpose はトークン発行の契機を表す。署名アルゴリズムとクレームは
// 契機によらず同一で、メトリクス等の帳簿付けにのみ使用する。
type Purpose string

const (
	// PurposeSignUp はサインアップ時の新規セッション発行を示す。
	PurposeSignUp Purpose = "signup"
	// PurposeSignIn はサインイン時の新規セッション発行を示す。
	PurposeSignIn Purpose = "signin"
)

// Claims はアクセス/リフレッシュトークンに埋め込むクレームセット。
// Subjectにはユーザー IDを格納する。
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Config はトークンサービスの設定。
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	APIKeySecret  []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Service はトークンの発行・検証・ローテーションを提供する。
// 永続状態は持たず、リフレッシュトークン許可リストの読み書きは
// UserRepositoryを通じてのみ行う。
type Service struct {
	userRepo repository.UserRepository
	config   Config
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config Config) *Service {
	return &Service{
		userRepo: userRepo,
		config:   config,
		now:      time.Now,
	}
}

// Issue はユーザーの新しいトークンペアを発行する。
// 発行したリフレッシュトークンの許可リストへの登録は呼び出し側の責務
// （サインアップでは初期リストに含めて保存、サインインでは追記）。
func (s *Service) Issue(user *model.User, purpose Purpose) (*model.TokenPair, error) {
	access, err := s.sign(user, s.config.AccessSecret, s.config.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := s.sign(user, s.config.RefreshSecret, s.config.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate は提示されたリフレッシュトークンを検証し、新しいペアと交換する。
// 以下のいずれかの場合はmodel.NewRefreshTokenError()で失敗する:
//   - 署名または有効期限の検証に失敗した
//   - デコードされたユーザーが存在しない
//   - トークンが許可リストに存在しない（ローテーション済みトークンの
//     リプレイ、またはサインアウトによる失効を検出）
//
// 成功時は提示トークンの除去と新トークンの追記が単一のアトミックな
// 更新として適用される。
func (s *Service) Rotate(ctx context.Context, presented string) (*model.TokenPair, error) {
	claims, err := s.verify(presented, s.config.RefreshSecret)
	if err != nil {
		return nil, model.NewRefreshTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find token owner: %w", err)
	}
	if user == nil {
		return nil, model.NewRefreshTokenError()
	}

	pair, err := s.Issue(user, PurposeSignIn)
	if err != nil {
		return nil, err
	}

	rotated, err := s.userRepo.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !rotated {
		return nil, model.NewRefreshTokenError()
	}

	return pair, nil
}

// Revoke は許可リストから一致するトークンだけを取り除く。
// 存在しないトークンの失効は何もしない（冪等）。
func (s *Service) Revoke(ctx context.Context, userID, refreshToken string) error {
	if err := s.userRepo.RemoveRefreshToken(ctx, userID, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// VerifyAccess はアクセストークンの署名と有効期限を検証し、クレームを返す。
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.config.AccessSecret)
}

// Owner はリフレッシュトークンの所有ユーザーIDを返す。
// 署名は検証するが有効期限は検査しない。期限切れトークンによる
// サインアウトを成立させるための入口で、この結果で認可してはならない。
func (s *Service) Owner(tokenString string) (string, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.config.RefreshSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to decode refresh token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("refresh token has no subject")
	}
	return claims.Subject, nil
}

// MintAPIKey はユーザーのAPIキーを発行する。
// 有効期限を持たない不透明な署名付きトークンで、サインアップ時に1回だけ発行する。
func (s *Service) MintAPIKey(user *model.User) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			Issuer:   s.config.Issuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
		Username: user.Username,
		Email:    user.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.APIKeySecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign api key: %w", err)
	}
	return signed, nil
}

// sign は指定された秘密鍵とTTLでクレームを署名する。
// iat/expは秒精度のため、jtiがないと同一秒内の発行が同一トークンになる。
// 許可リストに重複が入るとarray_removeが両方を除去し、別セッションの
// トークンまで巻き添えで失効するため、jtiで発行ごとの一意性を保証する。
func (s *Service) sign(user *model.User, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: user.Username,
		Email:    user.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// verify は署名と有効期限を検証し、クレームを返す。
func (s *Service) verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

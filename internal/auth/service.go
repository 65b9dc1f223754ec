// Package auth はサインアップ、サインイン（ローカル/OAuth）、サインアウト、
// トークンリフレッシュを統括する認証コントローラーを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
	"github.com/hitoshi/todoman/internal/token"
	"github.com/hitoshi/todoman/internal/validation"
)

// VerifiedIdentity はIdPによる検証を通過した外部IDの属性を表す。
type VerifiedIdentity struct {
	SubjectID  string
	Email      string
	Name       string
	PictureURL string
	Provider   string // "google" 等
}

// IdentityVerifier は外部IdPが発行したIDトークンの検証インターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type IdentityVerifier interface {
	// Verify はIDトークンをプロバイダーの検証サービスで検証し、
	// 検証済みのID属性を返す。
	Verify(ctx context.Context, idToken string) (*VerifiedIdentity, error)
}

// TokenService は認証コントローラーが必要とするトークン操作のインターフェース。
type TokenService interface {
	Issue(user *model.User, purpose token.Purpose) (*model.TokenPair, error)
	Rotate(ctx context.Context, presented string) (*model.TokenPair, error)
	Revoke(ctx context.Context, userID, refreshToken string) error
	Owner(tokenString string) (string, error)
	MintAPIKey(user *model.User) (string, error)
}

// Sanitizer はユーザー入力のサニタイズインターフェース。
// security.InputSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MetricsCollector は認証イベントのメトリクス収集インターフェース。
type MetricsCollector interface {
	RecordSignUp()
	RecordSignIn(method string)
	RecordSignInFailure(reason string)
	RecordRefreshRotation()
	RecordRefreshRejection()
	RecordSignOut()
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	socials   repository.SocialIdentityRepository
	tokens    TokenService
	verifier  IdentityVerifier
	sanitizer Sanitizer
	metrics   MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	socials repository.SocialIdentityRepository,
	tokens TokenService,
	verifier IdentityVerifier,
	sanitizer Sanitizer,
	metrics MetricsCollector,
) *Service {
	return &Service{
		users:     users,
		socials:   socials,
		tokens:    tokens,
		verifier:  verifier,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// Result は認証操作の成功結果。
type Result struct {
	User   *model.User
	Tokens *model.TokenPair
	// Created はこの操作で新規ユーザーが作成されたことを示す。
	// ハンドラーは201/200の使い分けに使用する。
	Created bool
}

// SignUp は新規ユーザーを登録し、最初のセッションを発行する。
// 処理順序: 入力検証 → 一意性チェック → トークン発行 →
// リフレッシュトークンを初期許可リストに含めてユーザーを永続化。
func (s *Service) SignUp(ctx context.Context, in validation.SignUpInput) (*Result, error) {
	if fields := validation.ValidateSignUp(in); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username uniqueness: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyExistsError("username")
	}

	existing, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyExistsError("email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:            uuid.New().String(),
		FirstName:     s.sanitizer.Sanitize(in.FirstName),
		Username:      username,
		Email:         email,
		PasswordHash:  string(hash),
		IsUsernameSet: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	apiKey, err := s.tokens.MintAPIKey(user)
	if err != nil {
		return nil, fmt.Errorf("failed to mint api key: %w", err)
	}
	user.APIKey = apiKey

	pair, err := s.tokens.Issue(user, token.PurposeSignUp)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	user.RefreshTokens = []string{pair.RefreshToken}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordSignUp()
	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &Result{User: user, Tokens: pair, Created: true}, nil
}

// SignIn はローカル認証情報でサインインし、新しいセッションを発行する。
// パスワード不一致時のメッセージはどのフィールドが誤っていたかを
// 明かさない（ユーザー名/パスワードのオラクル化を防ぐ）。
func (s *Service) SignIn(ctx context.Context, in validation.SignInInput) (*Result, error) {
	if fields := validation.ValidateSignIn(in); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, strings.TrimSpace(in.UserIdentifier))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordSignInFailure("user_not_found")
		return nil, model.NewUserNotFoundError()
	}

	// ローカルパスワード未設定のユーザーはソーシャルIDでのみ認証できる。
	// 不一致と同じ汎用メッセージで扱う。
	if !user.IsPasswordSet() {
		s.metrics.RecordSignInFailure("password_not_set")
		return nil, model.NewBadCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.metrics.RecordSignInFailure("wrong_password")
		return nil, model.NewBadCredentialsError()
	}

	pair, err := s.tokens.Issue(user, token.PurposeSignIn)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	if err := s.users.AppendRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to append refresh token: %w", err)
	}

	s.metrics.RecordSignIn("local")
	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("method", "local"),
	)

	return &Result{User: user, Tokens: pair}, nil
}

// SignInWithGoogle はIdP発行のIDトークンを検証してサインインする。
// 検証済みemailに一致するユーザーがいない場合はパスワードなしの
// ユーザーとソーシャルID紐付けを新規作成する。ユーザーは存在するが
// このプロバイダーとの紐付けがない場合は紐付けだけを作成する
// （存在チェックによる冪等なupsert）。
func (s *Service) SignInWithGoogle(ctx context.Context, idToken string) (*Result, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, model.NewValidationError(map[string]string{
			"idToken": "ID token is required!",
		})
	}

	verified, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		// 検証失敗は再試行せず終端の認証失敗として扱う。
		s.metrics.RecordSignInFailure("oauth_verify_failed")
		slog.Warn("oauth token verification failed", slog.String("error", err.Error()))
		return nil, model.NewAuthorizationError()
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(verified.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	created := false
	if user == nil {
		user, err = s.createSocialUser(ctx, verified)
		if err != nil {
			return nil, err
		}
		created = true
	} else {
		if err := s.ensureSocialLink(ctx, user, verified); err != nil {
			return nil, err
		}
	}

	pair, err := s.tokens.Issue(user, token.PurposeSignIn)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	if err := s.users.AppendRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to append refresh token: %w", err)
	}
	user.RefreshTokens = append(user.RefreshTokens, pair.RefreshToken)

	s.metrics.RecordSignIn("google")
	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("method", "google"),
		slog.Bool("created", created),
	)

	return &Result{User: user, Tokens: pair, Created: created}, nil
}

// Refresh は提示されたリフレッシュトークンを新しいペアと交換する。
// 古いトークンは許可リストから取り除かれ、同じトークンの再提示は失敗する。
func (s *Service) Refresh(ctx context.Context, presented string) (*model.TokenPair, error) {
	if presented == "" {
		s.metrics.RecordRefreshRejection()
		return nil, model.NewRefreshTokenError()
	}

	pair, err := s.tokens.Rotate(ctx, presented)
	if err != nil {
		if apiErr, ok := err.(*model.APIError); ok && apiErr.Code == model.ErrCodeRefreshTokenInvalid {
			s.metrics.RecordRefreshRejection()
		}
		return nil, err
	}

	s.metrics.RecordRefreshRotation()
	return pair, nil
}

// SignOut は提示されたリフレッシュトークンを失効させる。
// トークンが提示されない場合はサインアウト済みとして成功する（冪等）。
// 期限切れトークンのサインアウトも成立させるため、所有者の特定は
// 有効期限を検査せずに行う。デコード自体に失敗するトークンは
// 失効対象が存在しないためそのまま成功する。
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	userID, err := s.tokens.Owner(refreshToken)
	if err != nil {
		slog.Warn("sign-out with undecodable refresh token", slog.String("error", err.Error()))
		return nil
	}

	if err := s.tokens.Revoke(ctx, userID, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	s.metrics.RecordSignOut()
	slog.Info("user signed out", slog.String("user_id", userID))
	return nil
}

// createSocialUser は検証済みの外部IDから新規ユーザーと紐付けを作成する。
// usernameはemailのローカル部から生成した仮の値で、IsUsernameSet=falseで
// 永続化する。ローカルパスワードは持たない。
func (s *Service) createSocialUser(ctx context.Context, verified *VerifiedIdentity) (*model.User, error) {
	now := time.Now()
	user := &model.User{
		ID:              uuid.New().String(),
		FirstName:       s.sanitizer.Sanitize(verified.Name),
		Username:        provisionalUsername(verified.Email),
		Email:           strings.ToLower(verified.Email),
		IsUsernameSet:   false,
		Verified:        true, // IdPがemailの所有を検証済み
		ProfileImageURL: verified.PictureURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	apiKey, err := s.tokens.MintAPIKey(user)
	if err != nil {
		return nil, fmt.Errorf("failed to mint api key: %w", err)
	}
	user.APIKey = apiKey

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create social user: %w", err)
	}

	identity := &model.SocialIdentity{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		Provider:          verified.Provider,
		ProviderSubjectID: verified.SubjectID,
		CreatedAt:         now,
	}
	if err := s.socials.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to create social identity: %w", err)
	}

	slog.Info("new user created via oauth",
		slog.String("user_id", user.ID),
		slog.String("provider", verified.Provider),
	)

	return user, nil
}

// ensureSocialLink はユーザーとプロバイダーの紐付けがなければ作成する。
// 既に存在する場合は何もしない。
func (s *Service) ensureSocialLink(ctx context.Context, user *model.User, verified *VerifiedIdentity) error {
	existing, err := s.socials.FindByProviderAndSubject(ctx, verified.Provider, verified.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to find social identity: %w", err)
	}
	if existing != nil {
		return nil
	}

	identity := &model.SocialIdentity{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		Provider:          verified.Provider,
		ProviderSubjectID: verified.SubjectID,
		CreatedAt:         time.Now(),
	}
	if err := s.socials.Create(ctx, identity); err != nil {
		return fmt.Errorf("failed to create social identity: %w", err)
	}

	slog.Info("social identity linked",
		slog.String("user_id", user.ID),
		slog.String("provider", verified.Provider),
	)
	return nil
}

// provisionalUsername はemailのローカル部から仮のusernameを生成する。
// 衝突回避のためランダムな接尾辞を付ける。ユーザーは後から正式な
// usernameを設定できる（IsUsernameSet=false）。
func provisionalUsername(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	cleaned := make([]rune, 0, len(local))
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			cleaned = append(cleaned, r)
		}
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return string(cleaned) + "_" + suffix
}

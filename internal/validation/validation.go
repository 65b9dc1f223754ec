// Package validation は認証入力の純粋なバリデーション関数を提供する。
// 各関数は副作用を持たず、失敗したフィールド名→メッセージのマッピングを返す。
// マッピングに含まれないフィールドは検証を通過している。
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
	passwordMinLength = 6
)

// usernamePattern は英数字とアンダースコアのみを許可する。
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// emailPattern はRFC準拠の完全な検証ではなく、実用上十分な形式チェックを行う。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignUpInput はサインアップ時の生入力。
type SignUpInput struct {
	FirstName string
	Username  string
	Email     string
	Password  string
}

// SignInInput はサインイン時の生入力。
type SignInInput struct {
	UserIdentifier string // usernameまたはemail
	Password       string
}

// ValidateSignUp はサインアップ入力を検証する。
// 空のマッピングはすべてのフィールドが有効であることを示す。
func ValidateSignUp(in SignUpInput) map[string]string {
	fields := make(map[string]string)

	if msg := validateFirstName(in.FirstName); msg != "" {
		fields["firstName"] = msg
	}
	if msg := ValidateUsername(in.Username); msg != "" {
		fields["username"] = msg
	}
	if msg := validateEmail(in.Email); msg != "" {
		fields["email"] = msg
	}
	if msg := validatePassword(in.Password); msg != "" {
		fields["password"] = msg
	}

	return fields
}

// ValidateSignIn はサインイン入力を検証する。
// 識別子がusernameかemailかの判別は行わず、存在チェックのみ。
func ValidateSignIn(in SignInInput) map[string]string {
	fields := make(map[string]string)

	if strings.TrimSpace(in.UserIdentifier) == "" {
		fields["userIdentifier"] = "Username or email is required!"
	}
	if in.Password == "" {
		fields["password"] = "Password is required!"
	}

	return fields
}

// ValidateUsername はusernameの形式と長さを検証する。
// 有効な場合は空文字列を返す。
func ValidateUsername(username string) string {
	if strings.TrimSpace(username) == "" {
		return "Username is required!"
	}
	length := utf8.RuneCountInString(username)
	if length < usernameMinLength || length > usernameMaxLength {
		return "Username must be between 3 and 30 characters long!"
	}
	if !usernamePattern.MatchString(username) {
		return "Username may only contain letters, numbers and underscores!"
	}
	return ""
}

func validateFirstName(firstName string) string {
	if strings.TrimSpace(firstName) == "" {
		return "First name is required!"
	}
	return ""
}

func validateEmail(email string) string {
	if strings.TrimSpace(email) == "" {
		return "Email is required!"
	}
	if !emailPattern.MatchString(email) {
		return "Email must be a valid email address!"
	}
	return ""
}

func validatePassword(password string) string {
	if password == "" {
		return "Password is required!"
	}
	if utf8.RuneCountInString(password) < passwordMinLength {
		return "Password must be at least 6 characters long!"
	}
	return ""
}

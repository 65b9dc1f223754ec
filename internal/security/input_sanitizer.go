// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はユーザーが入力した表示用テキスト
// （タスク名、名前等）をサニタイズし、保存値がそのままレンダリング
// された場合のXSSリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyを使用し、HTMLを一切許可しない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService はテキスト入力のサニタイズ機能のインターフェースを定義する。
// タスク名とプロフィール系フィールドの保存前に使用される。
type InputSanitizerService interface {
	// Sanitize は入力テキストからすべてのHTMLタグを除去し、
	// 前後の空白を取り除いたプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去する。タスク名はリッチテキスト
// ではないため、許可リストは空で良い。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからすべてのHTMLタグを除去する。
// bluemondayはタグ除去後の残存テキストをエンティティ化するため、
// 表示用のプレーンテキストに戻してから返す。
func (s *inputSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// compile-time interface check
var _ InputSanitizerService = (*inputSanitizer)(nil)

// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer はユーザーが入力した表示名からHTMLを除去する。
// メッセージはHTMLパースモードで送信されるため、名前に含まれるタグが
// そのまま解釈されることを防ぐ。bluemondayのStrictPolicyを使用する。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNameLength は表示名の最大文字数（rune単位）。
const MaxNameLength = 64

// NameSanitizer は表示名のサニタイズ機能のインターフェースを定義する。
type NameSanitizer interface {
	// Clean は表示名から全てのタグと制御文字を除去し、前後の空白を取り除いた
	// プレーンテキストを返す。MaxNameLengthを超える部分は切り捨てる。
	// 出力はHTMLエスケープされていないため、表示時にエスケープすること。
	Clean(raw string) string
}

// nameSanitizer はNameSanitizerの実装。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean は表示名をプレーンテキストに正規化する。
func (s *nameSanitizer) Clean(raw string) string {
	// StrictPolicyはタグを除去し、残ったテキストをエスケープするので元に戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")

	if runes := []rune(text); len(runes) > MaxNameLength {
		text = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return text
}

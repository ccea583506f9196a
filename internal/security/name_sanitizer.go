// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer はIdPから受け取った表示名を保存前にプレーンテキストへ変換する。
// bluemondayのStrictPolicyで全てのタグを除去し、空白を正規化する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameRunes は保存する表示名の最大文字数。
const MaxDisplayNameRunes = 100

// markupReplacer はエンティティ復元後に残った山括弧を取り除く。
var markupReplacer = strings.NewReplacer("<", "", ">", "")

// NameSanitizer は表示名のサニタイズを行う。
// bluemondayのポリシーはスレッドセーフなので複数リクエストから共有できる。
type NameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerを生成する。
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名からHTMLを除去し、プレーンテキストとして返す。
//   - タグは全て除去（script等は中身ごと除去される）
//   - エンティティは復元し、山括弧は除去
//   - 連続する空白・改行は半角スペース1つにまとめる
//   - MaxDisplayNameRunes 文字で切り詰める
func (s *NameSanitizer) Sanitize(name string) string {
	if name == "" {
		return ""
	}

	cleaned := s.policy.Sanitize(name)
	cleaned = markupReplacer.Replace(html.UnescapeString(cleaned))
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if utf8.RuneCountInString(cleaned) > MaxDisplayNameRunes {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:MaxDisplayNameRunes]))
	}
	return cleaned
}

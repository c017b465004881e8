// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は医薬品の名称や用途などユーザー入力のテキストから
// HTMLタグを除去し、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト入力のサニタイズ機能のインターフェース。
type TextSanitizerService interface {
	// Sanitize はHTMLタグを全て除去し、前後の空白を取り除いたテキストを返す。
	// script, styleタグは中身ごと除去される。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなため共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicy（許可タグなし）を用いたサニタイザを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// bluemondayがエスケープした実体参照は元の文字に戻す（応答はJSONで返すため）。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

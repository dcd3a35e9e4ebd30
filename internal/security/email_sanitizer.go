package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// EmailSanitizer は請求書メール送信時に利用者が入力した本文と件名をサニタイズする。
// プロバイダーはメール本文をHTMLとしてそのまま送信するため、転送前に無害化する。
type EmailSanitizer struct {
	body    *bluemonday.Policy
	subject *bluemonday.Policy
}

// NewEmailSanitizer はEmailSanitizerを生成する。
//   - 本文: p, br, ul, ol, li, strong, em, a(href) のみ許可。画像やスタイルは除去する
//   - リンク: https と mailto のみ許可
//   - 件名: すべてのタグを除去する
func NewEmailSanitizer() *EmailSanitizer {
	body := bluemonday.NewPolicy()
	body.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	body.AllowAttrs("href").OnElements("a")
	body.AllowURLSchemes("https", "mailto")
	body.AllowRelativeURLs(false)
	body.RequireNoReferrerOnLinks(true)

	return &EmailSanitizer{
		body:    body,
		subject: bluemonday.StrictPolicy(),
	}
}

// Body はメール本文をサニタイズする。
func (s *EmailSanitizer) Body(raw string) string {
	return strings.TrimSpace(s.body.Sanitize(raw))
}

// Subject はメール件名からタグを除去し、改行を空白に置き換える。
// 件名はプレーンテキストのため、StrictPolicyがエスケープした文字参照は元に戻す。
func (s *EmailSanitizer) Subject(raw string) string {
	cleaned := html.UnescapeString(s.subject.Sanitize(raw))
	cleaned = strings.NewReplacer("\r", " ", "\n", " ").Replace(cleaned)
	return strings.TrimSpace(cleaned)
}

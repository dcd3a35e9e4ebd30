package normalize

import (
	"bytes"
	"net/http"
)

var (
	phraseNotFoundForDate  = []byte("not found for date")
	phraseInvoiceNotFound  = []byte("invoice not found")
	messageInvoiceNotFound = "Invoice not found."
	messageBadRequest      = "Bad Request"
)

// IsNotFoundForDate は404応答が「指定日のデータなし」を表すかを判定する。
// 該当する場合、呼び出し側はエラーではなく200とnullを返す。
func IsNotFoundForDate(statusCode int, body []byte) bool {
	if statusCode != http.StatusNotFound {
		return false
	}
	return bytes.Contains(bytes.ToLower(body), phraseNotFoundForDate)
}

// InvoiceWriteError は請求書の書き込み操作（submit/fail）が失敗した際の利用者向けメッセージを決める。
// ステータスコードはプロバイダーのものをそのまま返す。
func InvoiceWriteError(statusCode int, body []byte) (int, string) {
	if bytes.Contains(bytes.ToLower(body), phraseInvoiceNotFound) {
		return statusCode, messageInvoiceNotFound
	}
	return statusCode, messageBadRequest
}

// IsInvoiceNotFound はInvoiceWriteErrorが返したメッセージが請求書なしを表すかを返す。
func IsInvoiceNotFound(message string) bool {
	return message == messageInvoiceNotFound
}

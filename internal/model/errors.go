// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeInvoiceNotFound     = "INVOICE_NOT_FOUND"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeSessionStore        = "SESSION_STORE_ERROR"
)

// NewNotAuthenticatedError は未認証エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// プロバイダーの応答内容は含めない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewValidationError は必須項目不足などの入力エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Fix the request and try again.",
	}
}

// NewUpstreamUnavailableError はプロバイダー呼び出し失敗エラーを生成する。
// operationは失敗した操作を利用者向けに表す文言（例: "fetch EZ-Pass charges"）。
func NewUpstreamUnavailableError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("Failed to %s", operation),
		Category: "upstream",
		Action:   "Please wait a moment and try again.",
	}
}

// NewInvoiceNotFoundError は請求書が存在しない場合のエラーを生成する。
func NewInvoiceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeInvoiceNotFound,
		Message:  "Invoice not found.",
		Category: "upstream",
	}
}

// NewBadRequestError は請求書操作がプロバイダーに拒否された場合の汎用エラーを生成する。
func NewBadRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  "Bad Request",
		Category: "upstream",
	}
}

// NewSessionStoreError はセッションストアの操作失敗エラーを生成する。
func NewSessionStoreError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionStore,
		Message:  "Failed to update session",
		Category: "system",
		Action:   "Please sign in again.",
	}
}

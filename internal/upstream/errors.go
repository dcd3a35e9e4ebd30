package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError はプロバイダーが2xx以外のステータスを返したことを表す。
type StatusError struct {
	Path       string
	StatusCode int
	Body       []byte
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Path, e.StatusCode)
}

// TimeoutError は接続タイムアウトまたはクライアント側の打ち切りを表す。
type TimeoutError struct {
	Path string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out: %v", e.Path, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// UnavailableError はタイムアウト以外の通信エラー（接続拒否、DNS失敗など）を表す。
type UnavailableError struct {
	Path string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Path, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// AsStatusError はerrのチェーンからStatusErrorを取り出す。
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsNotFound はプロバイダーが404を返したかを判定する。
func IsNotFound(err error) bool {
	se, ok := AsStatusError(err)
	return ok && se.StatusCode == http.StatusNotFound
}

// IsTimeout はタイムアウトによる失敗かを判定する。
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsUnavailable はプロバイダーに到達できなかった（応答を得られなかった）かを判定する。
// 5xx応答もここに含める。
func IsUnavailable(err error) bool {
	if IsTimeout(err) {
		return true
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return true
	}
	se, ok := AsStatusError(err)
	return ok && se.StatusCode >= http.StatusInternalServerError
}

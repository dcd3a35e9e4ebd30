package upstream

import (
	"net/url"
	"strings"
	"time"
)

// TimeoutClass は操作の重さに応じたタイムアウト区分。
type TimeoutClass int

const (
	// TimeoutRead は一覧・参照系。
	TimeoutRead TimeoutClass = iota
	// TimeoutAuth はサインイン・トークン検証。
	TimeoutAuth
	// TimeoutWrite は通常の更新系。
	TimeoutWrite
	// TimeoutHeavy はメール送信や車両・請求書作成などの重い操作。
	TimeoutHeavy
)

// Timeouts はタイムアウト区分ごとの時間。
type Timeouts struct {
	Auth  time.Duration
	Read  time.Duration
	Write time.Duration
	Heavy time.Duration
}

// For は区分に対応するタイムアウトを返す。
func (t Timeouts) For(c TimeoutClass) time.Duration {
	switch c {
	case TimeoutAuth:
		return t.Auth
	case TimeoutWrite:
		return t.Write
	case TimeoutHeavy:
		return t.Heavy
	default:
		return t.Read
	}
}

// Operation はプロバイダーに対する1つの論理操作。
// GET操作は候補パスを複数持てる。書き込み操作の正規パスは常に1つ。
type Operation struct {
	Name        string // ログ・メトリクス用の識別子
	Description string // 利用者向けの文言（例: "fetch EZ-Pass charges"）
	Method      string
	Paths       []string
	Timeout     TimeoutClass
}

// Path は先頭の（書き込み操作では唯一の）パスを返す。
func (o Operation) Path() string {
	if len(o.Paths) == 0 {
		return ""
	}
	return o.Paths[0]
}

// Expand はパステンプレートの{name}をパスエスケープした値で置き換えたコピーを返す。
func (o Operation) Expand(params map[string]string) Operation {
	if len(params) == 0 {
		return o
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", url.PathEscape(v))
	}
	r := strings.NewReplacer(pairs...)

	expanded := o
	expanded.Paths = make([]string, len(o.Paths))
	for i, p := range o.Paths {
		expanded.Paths[i] = r.Replace(p)
	}
	return expanded
}

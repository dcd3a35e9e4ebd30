// Package normalize はプロバイダー応答の形の違いを吸収し、フロントエンド向けの形へ変換する。
package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind はプロバイダー応答ボディの形の分類。
type Kind int

const (
	// KindEmpty は空ボディまたはnull。
	KindEmpty Kind = iota
	// KindResultArray は {"result": [...]} 形式。
	KindResultArray
	// KindBareArray は配列そのもの。
	KindBareArray
	// KindString はJSON文字列、またはJSONとして解釈できないテキスト。
	KindString
	// KindObject は上記以外のJSONオブジェクト（resultが配列でないものを含む）。
	KindObject
)

// String はログ用の名前を返す。
func (k Kind) String() string {
	switch k {
	case KindResultArray:
		return "result_array"
	case KindBareArray:
		return "bare_array"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return "empty"
	}
}

// Record はプロバイダー応答の1要素。フィールドの欠落や型の揺れはアクセサで吸収する。
type Record map[string]any

// Payload は分類済みの応答ボディ。Kindに応じて有効なフィールドが決まる。
type Payload struct {
	Kind   Kind
	Raw    json.RawMessage // 元のボディ（KindBareArray/KindObjectの素通し用）
	Items  []Record        // KindResultArray
	Text   string          // KindString
	Object Record          // KindObject
}

// Decode は応答ボディを分類する。失敗することはなく、解釈できないボディはKindStringになる。
func Decode(body []byte) Payload {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Payload{Kind: KindEmpty}
	}

	switch trimmed[0] {
	case '[':
		if json.Valid(trimmed) {
			return Payload{Kind: KindBareArray, Raw: json.RawMessage(trimmed)}
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return Payload{Kind: KindString, Text: s}
		}
	case '{':
		var obj Record
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			if items, ok := resultArray(obj); ok {
				return Payload{Kind: KindResultArray, Items: items, Raw: json.RawMessage(trimmed)}
			}
			return Payload{Kind: KindObject, Object: obj, Raw: json.RawMessage(trimmed)}
		}
	}

	return Payload{Kind: KindString, Text: string(trimmed)}
}

// resultArray は {"result": [...]} の配列要素を取り出す。オブジェクト以外の要素は空レコードになる。
func resultArray(obj Record) ([]Record, bool) {
	raw, ok := obj["result"].([]any)
	if !ok {
		return nil, false
	}
	items := make([]Record, 0, len(raw))
	for _, v := range raw {
		m, _ := v.(map[string]any)
		items = append(items, Record(m))
	}
	return items, true
}

// lookup はkeysのうち最初に存在するnullでない値を返す。
func (r Record) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String は文字列フィールドを返す。欠落時は""。数値や真偽値は文字列化する。
func (r Record) String(keys ...string) string {
	v, ok := r.lookup(keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// NullableString は文字列フィールドを返す。欠落時または空文字列の場合はnil。
func (r Record) NullableString(keys ...string) *string {
	s := r.String(keys...)
	if s == "" {
		return nil
	}
	return &s
}

// Int は整数フィールドを返す。欠落時は0。数値文字列も受け付ける。
func (r Record) Int(keys ...string) int64 {
	n, _ := r.intValue(keys...)
	return n
}

// NullableInt は整数フィールドを返す。欠落時または解釈できない場合はnil。
func (r Record) NullableInt(keys ...string) *int64 {
	n, ok := r.intValue(keys...)
	if !ok {
		return nil
	}
	return &n
}

func (r Record) intValue(keys ...string) (int64, bool) {
	v, ok := r.lookup(keys...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float は数値フィールドを返す。欠落時は0。"$12.50" のような金額文字列も受け付ける。
func (r Record) Float(keys ...string) float64 {
	v, ok := r.lookup(keys...)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "$"))
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool は真偽値フィールドを返す。欠落時はfalse。"true"/"1" や 1 も真として扱う。
func (r Record) Bool(keys ...string) bool {
	v, ok := r.lookup(keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	default:
		return false
	}
}

// Object はネストしたオブジェクトフィールドを返す。欠落時は空レコード。
func (r Record) Object(keys ...string) Record {
	v, ok := r.lookup(keys...)
	if !ok {
		return Record{}
	}
	m, _ := v.(map[string]any)
	if m == nil {
		return Record{}
	}
	return Record(m)
}

// Reason はプロバイダーの業務結果コード（reason）を返す。0が成功。フィールドがない場合はfalse。
func (r Record) Reason() (int64, bool) {
	return r.intValue("reason", "Reason")
}

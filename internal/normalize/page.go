package normalize

import "encoding/json"

// DefaultPageSize は一覧のページサイズ。
const DefaultPageSize = 10

// Page はフロントエンドが期待する一覧の共通形式。
// プロバイダーは全件を返すため、TotalCountは常にlen(Data)になる。
type Page struct {
	Data       any `json:"data"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// TotalPages は件数とページサイズから総ページ数を求める（切り上げ）。
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if count <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// EmptyPage は0件の一覧を返す。一覧操作でプロバイダーが404を返した場合に使う。
func EmptyPage(page int) Page {
	return Page{
		Data:       []any{},
		TotalCount: 0,
		Page:       normalizePage(page),
		TotalPages: 0,
	}
}

// List は一覧操作の応答ボディをフロントエンド向けの値に変換する。
//
//  1. {"result": [...]} は各要素をprojectで射影しPageに包む
//  2. 配列そのものは再ラップせずそのまま返す
//  3. 空ボディは0件のPageにする
//  4. それ以外の形は元のボディをそのまま返す
func List[T any](body []byte, page, pageSize int, project func(Record) T) any {
	payload := Decode(body)
	switch payload.Kind {
	case KindResultArray:
		data := make([]T, 0, len(payload.Items))
		for _, item := range payload.Items {
			data = append(data, project(item))
		}
		return Page{
			Data:       data,
			TotalCount: len(data),
			Page:       normalizePage(page),
			TotalPages: TotalPages(len(data), pageSize),
		}
	case KindBareArray:
		return payload.Raw
	case KindEmpty:
		return EmptyPage(page)
	case KindString:
		return payload.Text
	default:
		return payload.Raw
	}
}

// Passthrough は非ページング操作の応答ボディをそのまま返せる値にする。
// JSONとして解釈できないテキストはJSON文字列として返す。
func Passthrough(body []byte) any {
	payload := Decode(body)
	switch payload.Kind {
	case KindEmpty:
		return nil
	case KindString:
		return payload.Text
	default:
		if payload.Raw != nil {
			return payload.Raw
		}
		return json.RawMessage(body)
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Package upstream はプロバイダー（フリート管理API）への呼び出しを提供する。
// 環境の解決、転送する認証情報の選択、HTTPクライアント、パスのフォールバック呼び出しを含む。
package upstream

const (
	// EnvironmentHeader は接続先環境を指定するリクエストヘッダー。
	EnvironmentHeader = "X-Environment"

	// EnvProduction は本番環境を示すヘッダー値。
	EnvProduction = "production"
	// EnvDevelopment は開発環境を示すヘッダー値（デフォルト）。
	EnvDevelopment = "development"
)

// Environments は環境ごとのプロバイダーのベースURL。
type Environments struct {
	DevelopmentURL string
	ProductionURL  string
	DefaultURL     string
}

// EnvironmentResolver は環境ヒントをベースURLに対応付ける。
// 起動時に1回生成し、以降は変更しない。
type EnvironmentResolver struct {
	envs Environments
}

// NewEnvironmentResolver はEnvironmentResolverを生成する。
func NewEnvironmentResolver(envs Environments) *EnvironmentResolver {
	return &EnvironmentResolver{envs: envs}
}

// Environment はヒントを正規化する。"production"以外はすべて"development"として扱う。
func (r *EnvironmentResolver) Environment(hint string) string {
	if hint == EnvProduction {
		return EnvProduction
	}
	return EnvDevelopment
}

// Resolve はヒントに対応するベースURLを返す。
// 環境固有のURLが未設定の場合はデフォルトURLを返す。
func (r *EnvironmentResolver) Resolve(hint string) string {
	var url string
	switch r.Environment(hint) {
	case EnvProduction:
		url = r.envs.ProductionURL
	default:
		url = r.envs.DevelopmentURL
	}
	if url == "" {
		return r.envs.DefaultURL
	}
	return url
}

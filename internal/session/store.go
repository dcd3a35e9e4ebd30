// Package session はブラウザCookieに紐づくサーバー側セッションの保存と管理を提供する。
package session

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/rydora/internal/model"
)

// ErrInvalidSession はIDのないセッションを保存しようとしたことを表す。
var ErrInvalidSession = errors.New("session ID is required")

// Store はセッションのキーバリューストア。
// Getは存在しないまたは期限切れのセッションに対して(nil, nil)を返す。
type Store interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Set(ctx context.Context, s *model.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Purger は期限切れセッションの一括削除に対応するストア。
// 有効期限を自前で管理するストア（Redisなど）は実装しない。
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

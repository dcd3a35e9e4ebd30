// Package database はPostgreSQLセッションストアの接続とスキーマ管理を提供する。
// スキーマはsessionsテーブル1つだけで、メモリ・Redisストアでは使用しない。
package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsFS はsessionsテーブルを作成するマイグレーション。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator は埋め込みのsessionsマイグレーションを適用するmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load session migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はsessionsテーブルのスキーマを最新にする。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("session schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to migrate session schema: %w", err)
	}

	version, _, err := m.Version()
	if err == nil {
		slog.Info("session schema migrated", slog.Uint64("version", uint64(version)))
	}
	return nil
}

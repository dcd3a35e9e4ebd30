package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper は期限切れセッションを定期的に削除するジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type Sweeper struct {
	purger   Purger
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewSweeper はSweeperを生成する。scheduleはcron式（"@every 10m" などの記述子を含む）。
func NewSweeper(purger Purger, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		purger:   purger,
		schedule: schedule,
		logger:   logger.With("component", "session.sweeper"),
		cron:     cron.New(),
	}
}

// Run は期限切れセッションを1回削除する。
func (s *Sweeper) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("session sweep failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}

	s.logger.Info("session sweep completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はスケジュールに従った定期実行を開始する。
// scheduleが空の場合は何もしない。ctxがキャンセルされると停止する。
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		_ = s.Run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("session sweeper started", slog.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop は定期実行を停止し、実行中のジョブの完了を待つ。
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("session sweeper stopped")
}

// Running は定期実行中かを返す。
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

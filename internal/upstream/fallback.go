package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// maxLoggedBody はログに残す応答ボディの最大長。
const maxLoggedBody = 512

// フォールバック試行結果（メトリクスのラベル値）
const (
	outcomeSuccess  = "success"
	outcomeNotFound = "not_found"
	outcomeTimeout  = "timeout"
	outcomeAborted  = "aborted"
)

// ErrNoCandidatePaths は候補パスが1つも指定されなかったことを表す。
var ErrNoCandidatePaths = errors.New("no candidate paths")

// FallbackInvoker はGET操作の候補パスを順に試し、最初に成功した応答を返す。
//
// 404はそのパスが存在しないものとして次の候補へ進む。
// タイムアウトは一時的な失敗として次の候補へ進む。
// それ以外のエラー（404以外の4xx、5xx、通信エラー）は即座に返し、残りの候補は試さない。
// 同じパスを再試行することはない。全候補が尽きた場合は最後のエラーを返す。
type FallbackInvoker struct {
	logger *slog.Logger
}

// NewFallbackInvoker はFallbackInvokerを生成する。
func NewFallbackInvoker(logger *slog.Logger) *FallbackInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackInvoker{logger: logger}
}

// Get は候補パスを順にGETで呼び出す。req.Pathとreq.Methodは無視される。
func (f *FallbackInvoker) Get(ctx context.Context, client *Client, paths []string, req Request) (*Response, error) {
	if len(paths) == 0 {
		return nil, ErrNoCandidatePaths
	}

	var lastErr error
	for i, path := range paths {
		// 受信リクエストが切断済みなら残りの候補は試さない
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, &UnavailableError{Path: path, Err: err}
		}

		attempt := req
		attempt.Method = http.MethodGet
		attempt.Path = path

		resp, err := client.Do(ctx, attempt)
		if err == nil {
			client.recorder.RecordFallbackAttempt(req.Operation, outcomeSuccess)
			if i > 0 {
				f.logger.Info("upstream fallback path succeeded",
					slog.String("operation", req.Operation),
					slog.String("path", path),
					slog.Int("attempt", i+1),
				)
			}
			return resp, nil
		}
		lastErr = err

		switch {
		case IsNotFound(err):
			client.recorder.RecordFallbackAttempt(req.Operation, outcomeNotFound)
			f.logAttempt(req.Operation, path, err)
			continue
		case IsTimeout(err):
			client.recorder.RecordFallbackAttempt(req.Operation, outcomeTimeout)
			f.logAttempt(req.Operation, path, err)
			continue
		default:
			client.recorder.RecordFallbackAttempt(req.Operation, outcomeAborted)
			f.logAttempt(req.Operation, path, err)
			return nil, err
		}
	}

	f.logger.Warn("upstream fallback paths exhausted",
		slog.String("operation", req.Operation),
		slog.Int("candidates", len(paths)),
		slog.String("error", lastErr.Error()),
	)
	return nil, lastErr
}

// logAttempt は失敗した試行をサーバー側ログにのみ記録する。
func (f *FallbackInvoker) logAttempt(operation, path string, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("path", path),
		slog.String("error", err.Error()),
	}
	if se, ok := AsStatusError(err); ok {
		attrs = append(attrs,
			slog.Int("status", se.StatusCode),
			slog.String("body", truncate(se.Body, maxLoggedBody)),
		)
	}
	f.logger.Warn("upstream attempt failed", attrs...)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

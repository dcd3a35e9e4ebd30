package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// reclaimWait はSIGTERM送信後にポートが解放されるのを待つ時間。
var reclaimWait = 2 * time.Second

// portHolders はポートを使用中のプロセスIDを返す。差し替えはテスト用。
var portHolders = func(ctx context.Context, port string) ([]int, error) {
	out, err := exec.CommandContext(ctx, "lsof", "-ti", "tcp:"+port).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(out) == 0 {
			// 該当プロセスなし
			return nil, nil
		}
		return nil, fmt.Errorf("failed to run lsof: %w", err)
	}
	return parsePIDs(string(out)), nil
}

// terminate はプロセスにSIGTERMを送る。差し替えはテスト用。
var terminate = func(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// listen はポートでリッスンを開始する。
// ポートが使用中でreclaimが有効な場合、使用中のプロセスを終了させて1回だけ再試行する。
func listen(ctx context.Context, port string, reclaim bool) (net.Listener, error) {
	addr := ":" + port
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln, nil
	}
	if !reclaim || !errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	slog.Warn("port in use, reclaiming", slog.String("port", port))
	if err := reclaimPort(ctx, port); err != nil {
		return nil, err
	}

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s after reclaiming: %w", addr, err)
	}
	return ln, nil
}

// reclaimPort はポートを使用中のプロセス（自分自身を除く）にSIGTERMを送り、解放を待つ。
func reclaimPort(ctx context.Context, port string) error {
	pids, err := portHolders(ctx, port)
	if err != nil {
		return err
	}

	self := os.Getpid()
	signaled := 0
	for _, pid := range pids {
		if pid == self {
			continue
		}
		if err := terminate(pid); err != nil {
			slog.Warn("failed to terminate port holder",
				slog.Int("pid", pid),
				slog.String("error", err.Error()),
			)
			continue
		}
		slog.Info("terminated port holder", slog.Int("pid", pid), slog.String("port", port))
		signaled++
	}
	if signaled == 0 {
		return fmt.Errorf("port %s is in use and no process could be terminated", port)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(reclaimWait):
		return nil
	}
}

// parsePIDs はlsof -tの出力（1行に1つのPID）を解析する。
func parsePIDs(out string) []int {
	var pids []int
	for _, line := range strings.Fields(out) {
		pid, err := strconv.Atoi(line)
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

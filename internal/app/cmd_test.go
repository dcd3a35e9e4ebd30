package app

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	for _, name := range []Command{CommandServe, CommandMigrate, CommandHealthcheck} {
		t.Run(string(name), func(t *testing.T) {
			cmd, _, err := root.Find([]string{string(name)})
			if err != nil {
				t.Fatalf("Find(%q): %v", name, err)
			}
			if cmd.Name() != string(name) {
				t.Errorf("command name = %q, want %q", cmd.Name(), name)
			}
		})
	}
}

func TestNewRootCommand_UnknownSubcommand(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})
	root.SetArgs([]string{"worker"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected error for unknown subcommand")
	}
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DATABASE_URL", "")

	root := NewRootCommand(&bytes.Buffer{})
	root.SetArgs([]string{string(CommandMigrate)})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("err = %v, want DATABASE_URL error", err)
	}
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("COOKIE_SAMESITE", "sideways")

	root := NewRootCommand(&bytes.Buffer{})
	root.SetArgs([]string{string(CommandServe)})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected config error")
	}
}

// serverPort はhttptest.Serverのポート番号を返す。
func serverPort(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	return port
}

func TestHealthcheckCommand(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "healthy", status: http.StatusOK},
		{name: "unhealthy", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %q, want /health", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			root := NewRootCommand(&bytes.Buffer{})
			root.SetArgs([]string{string(CommandHealthcheck), "--port", serverPort(t, srv)})

			err := root.ExecuteContext(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthcheckCommand_DefaultPortFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "5999")
	cmd := newHealthcheckCommand()
	if got := cmd.Flags().Lookup("port").DefValue; got != "5999" {
		t.Errorf("default port = %q, want 5999", got)
	}

	t.Setenv("SERVER_PORT", "")
	cmd = newHealthcheckCommand()
	if got := cmd.Flags().Lookup("port").DefValue; got != defaultPort {
		t.Errorf("default port = %q, want %q", got, defaultPort)
	}
}

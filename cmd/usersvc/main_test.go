package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/usersvc/internal/testutil"
)

func noEnv(string) string { return "" }

func startRun(t *testing.T, args []string) (string, func() error) {
	t.Helper()

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, noEnv, os.Getwd, append([]string{"--address", listenAddr}, args...))
	}()

	// Wait until server accepts connections
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", listenAddr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 10*time.Second, 20*time.Millisecond, "server did not start")

	stop := func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}

	return "http://" + listenAddr, stop
}

func createAlice(t *testing.T, url string) {
	resp, err := http.Post(url+"/users", "application/json", strings.NewReader(`{"username":"alice"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"id":1,"username":"alice"}`, string(body))
}

func Test_run(t *testing.T) {
	t.Run("serve sqlite and stop with signal", func(t *testing.T) {
		dsn := "sqlite://" + filepath.Join(t.TempDir(), "users.db")

		url, stop := startRun(t, []string{"--database", dsn, "--log-level", "debug", "--workers", "2"})
		createAlice(t, url)

		require.NoError(t, stop(), "on correct stop should not return error")
	})

	t.Run("serve postgres and stop with signal", func(t *testing.T) {
		pg := testutil.StartPostgresContainer(t)
		t.Cleanup(pg.Terminate)

		url, stop := startRun(t, []string{"--database", pg.DSN, "--identity-mode", "requery"})
		createAlice(t, url)

		require.NoError(t, stop(), "on correct stop should not return error")
	})

	t.Run("stop with srv error", func(t *testing.T) {
		// Occupy port so server can't listen
		ln, err := net.Listen("tcp", "localhost:0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = ln.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		t.Cleanup(cancel)

		err = run(ctx, noEnv, os.Getwd, []string{
			"--address", ln.Addr().String(),
			"--database", "sqlite://" + filepath.Join(t.TempDir(), "users.db"),
		})

		require.Error(t, err, "on listen failure should return error")
	})

	t.Run("fail to start", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"no database", nil},
			{"unknown scheme", []string{"--database", "mysql://localhost/users"}},
			{"empty sqlite path", []string{"--database", "sqlite://"}},
			{"unknown identity mode", []string{"--database", "sqlite://users.db", "--identity-mode", "guess"}},
			{"unknown log level", []string{"--database", "sqlite://users.db", "--log-level", "loud"}},
			{"invalid flag", []string{"--secret-key", "secret"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := run(t.Context(), noEnv, func() (string, error) { return t.TempDir(), nil }, tt.args)

				require.Error(t, err)
			})
		}
	})
}

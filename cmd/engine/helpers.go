package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const shutdownTokenEnv = "LCA_ENGINE_SHUTDOWN_TOKEN"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newHTTPServer derives every request context from ctx, so stopping the
// engine also cancels in-flight dispatches and SSE streams.
func newHTTPServer(ctx context.Context, h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shutdownToken returns the token the desktop shell must present on
// POST /shutdown. It is written to dataDir/engine.token for the shell to read.
func shutdownToken(dataDir string) (string, error) {
	tok := os.Getenv(shutdownTokenEnv)
	if tok == "" {
		var err error
		if tok, err = randomToken(32); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(filepath.Join(dataDir, "engine.token"), []byte(tok+"\n"), 0o600); err != nil {
		return "", err
	}
	return tok, nil
}

func shutdownHandler(token string, stop func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Local-only guard
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host != "127.0.0.1" && host != "::1" && host != "localhost" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Respond first; the serve loop drains in-flight requests.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))
		stop()
	}
}

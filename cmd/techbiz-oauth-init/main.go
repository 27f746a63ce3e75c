// Command techbiz-oauth-init runs the one-time OAuth consent flow and stores
// the refresh token the worker uses to mirror records into a user-owned sheet.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"

	"techbiz/internal/cli"
	"techbiz/internal/log"
	gsheet "techbiz/internal/sheets/google"
)

const (
	defaultRedirectPort = "8085"
	defaultTokenFile    = "token.json"
	authTimeout         = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentSheets)

	cfg, err := gsheet.OAuthConfig(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"), os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))
	if err != nil {
		logger.Error("Failed to load OAuth client", log.FieldError, err,
			"error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	// The OAuth client must list this URI among its authorized redirect URIs
	port := envOr("OAUTH_REDIRECT_PORT", defaultRedirectPort)
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	state, err := newState()
	if err != nil {
		logger.Error("Failed to generate OAuth state", log.FieldError, err)
		os.Exit(1)
	}

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Callback server failed", log.FieldError, err, "port", port)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code string
	select {
	case code = <-codeCh:
	case <-time.After(authTimeout):
		logger.Error("Authorization timed out", "timeout", authTimeout,
			"error_type", log.ErrorTypeTimeout)
		os.Exit(1)
	case <-ctx.Done():
		logger.Warn("Authorization interrupted")
		os.Exit(1)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", log.FieldError, err,
			"error_type", log.ErrorTypeAuth)
		os.Exit(1)
	}

	out := envOr("GOOGLE_OAUTH_TOKEN_FILE", defaultTokenFile)
	if err := gsheet.SaveToken(out, tok); err != nil {
		logger.Error("Failed to save token", log.FieldError, err, "path", out)
		os.Exit(1)
	}
	logger.Info("Saved OAuth token", "path", out)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

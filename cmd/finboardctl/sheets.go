package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	gsheet "finboard/internal/sheets/google"
)

func sheetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Spreadsheet ledger utilities",
	}

	var port, out string
	var timeout time.Duration
	authorize := &cobra.Command{
		Use:   "authorize",
		Short: "Obtain an OAuth token for the ledger spreadsheet",
		Long: `authorize runs the OAuth consent flow for the client in
GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE and saves the token
the worker reads from GOOGLE_OAUTH_TOKEN_FILE.

The client must list http://localhost:<port>/callback as a redirect URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = a.cfg.OAuthRedirectPort
			}
			if out == "" {
				out = a.cfg.GoogleOAuthTokenFile
			}
			oc := gsheet.OAuthConfig{
				ClientJSON: a.cfg.GoogleOAuthClientJSON,
				ClientFile: a.cfg.GoogleOAuthClientFile,
			}
			cfg, err := oc.ClientConfig()
			if err != nil {
				return err
			}
			cfg.RedirectURL = "http://localhost:" + port + "/callback"

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			tok, err := a.authorize(ctx, cmd, cfg, port)
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(out, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", out)
			return nil
		},
	}
	authorize.Flags().StringVar(&port, "port", "", "local callback port (default: OAUTH_REDIRECT_PORT)")
	authorize.Flags().StringVar(&out, "out", "", "token file (default: GOOGLE_OAUTH_TOKEN_FILE)")
	authorize.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	cmd.AddCommand(authorize)
	return cmd
}

type callback struct {
	code string
	err  error
}

// authorize serves the redirect on port until the consent comes back or ctx
// ends, then exchanges the code.
func (a *app) authorize(ctx context.Context, cmd *cobra.Command, cfg *oauth2.Config, port string) (*oauth2.Token, error) {
	state := uuid.NewString()
	result := make(chan callback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var cb callback
		switch {
		case q.Get("error") != "":
			cb.err = fmt.Errorf("oauth error: %s", q.Get("error"))
		case q.Get("state") != state:
			cb.err = errors.New("oauth state mismatch")
		case q.Get("code") == "":
			cb.err = errors.New("oauth callback without code")
		default:
			cb.code = q.Get("code")
		}
		if cb.err != nil {
			http.Error(w, cb.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case result <- cb:
		default:
		}
	})

	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("OAuth callback server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case cb := <-result:
		if cb.err != nil {
			return nil, cb.err
		}
		tok, err := cfg.Exchange(ctx, cb.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.New("authorization timed out")
		}
		return nil, ctx.Err()
	}
}

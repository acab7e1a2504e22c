package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig authorizes the ledger as a Google user instead of a service
// account. The token is obtained once with "finboardctl sheets authorize".
type OAuthConfig struct {
	ClientJSON string
	ClientFile string
	TokenJSON  string
	TokenFile  string
}

// Enabled reports whether an OAuth client is configured.
func (c OAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.ClientJSON) != "" || strings.TrimSpace(c.ClientFile) != ""
}

// ClientConfig parses the OAuth client for the spreadsheets scope.
func (c OAuthConfig) ClientConfig() (*oauth2.Config, error) {
	raw, err := inlineOrFile(c.ClientJSON, c.ClientFile, "oauth client")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := goauth.ConfigFromJSON(raw, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// Token loads the stored user token.
func (c OAuthConfig) Token() (*oauth2.Token, error) {
	raw, err := inlineOrFile(c.TokenJSON, c.TokenFile, "oauth token")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token has neither access nor refresh token")
	}
	return &tok, nil
}

// HTTPClient returns a client that refreshes the user token as needed.
func (c OAuthConfig) HTTPClient(ctx context.Context) (*http.Client, error) {
	cfg, err := c.ClientConfig()
	if err != nil {
		return nil, err
	}
	tok, err := c.Token()
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return cfg.Client(ctx, tok), nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func inlineOrFile(inline, file, what string) ([]byte, error) {
	inline, file = strings.TrimSpace(inline), strings.TrimSpace(file)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return raw, nil
	}
	return nil, nil
}

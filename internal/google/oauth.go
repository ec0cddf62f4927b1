package google

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// cacheDirName is the directory under the user cache dir holding tokens.
const cacheDirName = "calagent"

// Scopes required by the agent. Full calendar access is needed for event
// creation and deletion.
var Scopes = []string{calendar.CalendarScope}

// GetOAuthConfig returns the OAuth2 configuration for Google Calendar.
// Client credentials come from the environment so deployments never embed
// them in the binary.
func GetOAuthConfig() *oauth2.Config {
	const oob = "urn:ietf:wg:oauth:2.0:oob"
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		RedirectURL:  oob,
		Scopes:       Scopes,
	}
}

// GetAuthURL returns the OAuth URL for user authorization.
func GetAuthURL() string {
	return GetOAuthConfig().AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// HasToken checks if a stored OAuth token exists.
func HasToken() bool {
	_, err := os.ReadFile(tokenFile())
	return err == nil
}

// SaveToken exchanges an authorization code for tokens and saves them.
func SaveToken(ctx context.Context, authCode string) error {
	conf := GetOAuthConfig()

	token, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	dir := filepath.Dir(tokenFile())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data := token.AccessToken + " " + token.RefreshToken
	if err := os.WriteFile(tokenFile(), []byte(data), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// TokenSource returns an OAuth2 token source for the stored user token.
func TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf := GetOAuthConfig()

	slurp, err := os.ReadFile(tokenFile())
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found; run the auth command first")
	}

	fields := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(fields) != 2 {
		return nil, fmt.Errorf("invalid token format in %s", tokenFile())
	}

	// Expiry in the past forces an immediate refresh, so a stale access
	// token never reaches the API.
	return conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  fields[0],
		TokenType:    "Bearer",
		RefreshToken: fields[1],
		Expiry:       time.Unix(1, 0),
	}), nil
}

// ServiceAccountTokenSource builds a token source from a service account key
// file. Preferred for server deployments where no interactive OAuth flow is
// possible; the target calendar must be shared with the service account.
func ServiceAccountTokenSource(ctx context.Context, keyFile string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account file: %w", err)
	}

	return conf.TokenSource(ctx), nil
}

// NewTokenSource returns the preferred token source: the service account
// when a key file is configured, the stored user token otherwise.
func NewTokenSource(ctx context.Context, serviceAccountFile string) (oauth2.TokenSource, error) {
	if serviceAccountFile != "" {
		return ServiceAccountTokenSource(ctx, serviceAccountFile)
	}
	return TokenSource(ctx)
}

func tokenFile() string {
	return filepath.Join(userCacheDir(), cacheDirName, "google.token")
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return "."
}

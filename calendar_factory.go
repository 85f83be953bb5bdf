package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	providerGoogle = "google"
	providerCalDAV = "caldav"
)

// authorizedUser is the on-disk format written by Google's client
// libraries for an end-user credential.
type authorizedUser struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// CalendarFactory hands out authenticated calendar providers. Each call to
// Acquire builds a fresh handle; nothing is cached between syncs.
type CalendarFactory struct {
	config CalendarConfig

	// googleOptions are appended when building the Google service.
	googleOptions []option.ClientOption
}

func NewCalendarFactory(config CalendarConfig, googleOptions ...option.ClientOption) *CalendarFactory {
	return &CalendarFactory{
		config:        config,
		googleOptions: googleOptions,
	}
}

// ProviderName is the human-readable backend name used in auth failures.
func (cf *CalendarFactory) ProviderName() string {
	if cf.config.Provider == providerCalDAV {
		return "CalDAV"
	}
	return "Google Calendar"
}

// Acquire returns a provider or an *AuthError.
func (cf *CalendarFactory) Acquire(ctx context.Context) (CalendarProvider, error) {
	switch cf.config.Provider {
	case providerCalDAV:
		provider, err := NewCalDAVProvider(ctx, cf.config.CalDAVURL, cf.config.CalDAVUsername, cf.config.CalDAVPassword)
		if err != nil {
			return nil, newAuthError(cf.ProviderName(), err)
		}
		return provider, nil

	case providerGoogle, "":
		oauthConfig, token, err := readAuthorizedUserFile(cf.config.CredentialsPath)
		if err != nil {
			return nil, newAuthError(cf.ProviderName(), err)
		}
		provider, err := NewGoogleCalendarProvider(ctx, oauthConfig.Client(ctx, token), cf.googleOptions...)
		if err != nil {
			return nil, newAuthError(cf.ProviderName(), err)
		}
		return provider, nil

	default:
		return nil, errors.Newf("unsupported provider type: %s", cf.config.Provider)
	}
}

func readAuthorizedUserFile(path string) (*oauth2.Config, *oauth2.Token, error) {
	if path == "" {
		return nil, nil, errors.New("no credentials path configured (set GOOGLE_CREDENTIALS_PATH)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading authorized user file")
	}

	var user authorizedUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, nil, errors.Wrap(err, "parsing authorized user file")
	}

	if user.ClientID == "" || user.ClientSecret == "" || user.RefreshToken == "" {
		return nil, nil, errors.New("authorized user file is missing client_id, client_secret or refresh_token")
	}

	scopes := user.Scopes
	if len(scopes) == 0 {
		scopes = []string{calendar.CalendarScope}
	}

	endpoint := google.Endpoint
	if user.TokenURI != "" {
		endpoint.TokenURL = user.TokenURI
	}

	oauthConfig := &oauth2.Config{
		ClientID:     user.ClientID,
		ClientSecret: user.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}

	token := &oauth2.Token{
		AccessToken:  user.Token,
		RefreshToken: user.RefreshToken,
		TokenType:    "Bearer",
	}
	// An unparseable expiry leaves the zero time, which oauth2 treats as
	// never-expiring; clear the access token so it is refreshed instead.
	if user.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339, user.Expiry)
		if err != nil {
			token.AccessToken = ""
		} else {
			token.Expiry = expiry
		}
	}

	return oauthConfig, token, nil
}

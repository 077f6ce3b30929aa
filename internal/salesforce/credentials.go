package salesforce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/patient-support-platform/pkg/logging"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrNoRefreshToken is returned when a refresh is requested without a stored refresh token.
var ErrNoRefreshToken = errors.New("salesforce: no refresh token configured")

// Credentials is a point-in-time copy of the connected-app credentials.
type Credentials struct {
	InstanceURL  string
	ClientID     string
	AccessToken  string
	RefreshToken string
}

// TokenStoreConfig seeds a TokenStore from process configuration.
type TokenStoreConfig struct {
	InstanceURL  string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// HTTPClient is used for the token endpoint; defaults to a 30s client.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// TokenStore is the single writer for the Salesforce access token. Reads take a
// snapshot; refreshes are collapsed so concurrent callers share one token
// request and a stale token never overwrites a newer one.
type TokenStore struct {
	mu           sync.RWMutex
	creds        Credentials
	clientSecret string
	refreshedAt  time.Time

	group      singleflight.Group
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTokenStore creates a credential holder.
func NewTokenStore(cfg TokenStoreConfig) *TokenStore {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenStore{
		creds: Credentials{
			InstanceURL:  strings.TrimRight(strings.TrimSpace(cfg.InstanceURL), "/"),
			ClientID:     strings.TrimSpace(cfg.ClientID),
			AccessToken:  strings.TrimSpace(cfg.AccessToken),
			RefreshToken: strings.TrimSpace(cfg.RefreshToken),
		},
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Snapshot returns the current credentials.
func (s *TokenStore) Snapshot() Credentials {
	if s == nil {
		return Credentials{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// RefreshedAt reports when the access token was last replaced by a refresh.
func (s *TokenStore) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// Refresh exchanges the stored refresh token for a new access token. staleToken
// is the token the caller saw rejected; when the store already holds a
// different token, that token is returned without contacting Salesforce.
func (s *TokenStore) Refresh(ctx context.Context, staleToken string) (string, error) {
	if s == nil {
		return "", &ConfigurationError{Missing: []string{"SALESFORCE_REFRESH_TOKEN"}}
	}
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		current := s.Snapshot()
		if current.AccessToken != "" && current.AccessToken != staleToken {
			return current.AccessToken, nil
		}
		if current.RefreshToken == "" {
			return "", ErrNoRefreshToken
		}
		var missing []string
		if current.InstanceURL == "" {
			missing = append(missing, "SALESFORCE_INSTANCE_URL")
		}
		if current.ClientID == "" {
			missing = append(missing, "SALESFORCE_CLIENT_ID")
		}
		if len(missing) > 0 {
			return "", &ConfigurationError{Missing: missing}
		}

		conf := &oauth2.Config{
			ClientID:     current.ClientID,
			ClientSecret: s.clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  current.InstanceURL + "/services/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
		tok, err := conf.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
		if err != nil {
			return "", fmt.Errorf("salesforce: token refresh failed: %w", err)
		}
		if tok.AccessToken == "" {
			return "", errors.New("salesforce: token refresh returned no access token")
		}

		s.mu.Lock()
		s.creds.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			s.creds.RefreshToken = tok.RefreshToken
		}
		if instanceURL, ok := tok.Extra("instance_url").(string); ok && strings.TrimSpace(instanceURL) != "" {
			s.creds.InstanceURL = strings.TrimRight(strings.TrimSpace(instanceURL), "/")
		}
		s.refreshedAt = time.Now().UTC()
		s.mu.Unlock()

		s.logger.Info("salesforce access token refreshed")
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Package spotify talks to the Spotify Web API with client-credentials auth.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/httpclient"
	"github.com/erenuysaldev/Erotify/internal/logger"
)

// tokenSkew renews a cached token this long before it actually expires.
const tokenSkew = 30 * time.Second

// AuthError is a rejected token request.
type AuthError struct {
	Body       string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("Invalid credentials. Status code: %d", e.StatusCode)
}

// Valid is the result of a successful credentials check.
type Valid struct {
	TokenType string `json:"token_type"`
}

// CredentialsSource yields the credentials currently in effect.
type CredentialsSource interface {
	Get() domain.Credentials
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type cachedToken struct {
	expiresAt time.Time
	creds     domain.Credentials
	value     string
}

type Client struct {
	http    *httpclient.Client
	creds   CredentialsSource
	logger  *logger.Logger
	token   *cachedToken
	authURL string
	apiURL  string
	mu      sync.Mutex
}

func NewClient(authURL, apiURL string, creds CredentialsSource, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		http:    httpclient.NewClient(nil, httpclient.Options{Timeout: constants.DefaultSearchTimeout}),
		creds:   creds,
		logger:  log.WithComponent("spotify"),
		authURL: authURL,
		apiURL:  strings.TrimRight(apiURL, "/"),
	}
}

// Validate performs one live token request for the given pair. Nothing is cached.
func (c *Client) Validate(ctx context.Context, creds domain.Credentials) (*Valid, error) {
	if !creds.Configured() {
		return nil, domain.ErrCredentialsMissing
	}
	tok, err := c.requestToken(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &Valid{TokenType: tok.TokenType}, nil
}

// Search looks up tracks. It returns domain.ErrCredentialsMissing when no
// credentials are configured.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(constants.MaxSearchResult))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(payload.Tracks.Items))
	for _, item := range payload.Tracks.Items {
		results = append(results, item.toResult())
	}
	c.logger.Debug("Search completed", "query", query, "results", len(results))
	return results, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	creds := c.creds.Get()
	if !creds.Configured() {
		return "", domain.ErrCredentialsMissing
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.creds == creds && time.Now().Before(c.token.expiresAt) {
		return c.token.value, nil
	}

	tok, err := c.requestToken(ctx, creds)
	if err != nil {
		return "", err
	}
	c.token = &cachedToken{
		value:     tok.AccessToken,
		creds:     creds,
		expiresAt: time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew),
	}
	return tok.AccessToken, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *Client) requestToken(ctx context.Context, creds domain.Credentials) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tok, nil
}

type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMS int `json:"duration_ms"`
}

func (t trackItem) toResult() domain.SearchResult {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	res := domain.SearchResult{
		Title:    t.Name,
		Artist:   strings.Join(artists, ", "),
		Album:    t.Album.Name,
		Duration: t.DurationMS / 1000,
		URL:      t.ExternalURLs.Spotify,
	}
	// images are ordered largest first
	if len(t.Album.Images) > 0 {
		res.CoverURL = t.Album.Images[0].URL
	}
	return res
}

package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gogitlab "github.com/xanzy/go-gitlab"
	"golang.org/x/oauth2"
)

// Authentication modes.
const (
	// AuthPrivateToken sends the token in the PRIVATE-TOKEN header.
	AuthPrivateToken = "private"

	// AuthBearer sends the token as an OAuth2 bearer token.
	AuthBearer = "bearer"
)

// Defaults applied by NewClient.
const (
	DefaultURL        = "https://gitlab.com/"
	DefaultPerPage    = 100
	DefaultMaxRetries = 3

	// maxPerPage is the largest page size GitLab accepts.
	maxPerPage = 100
)

// Config configures a Client.
type Config struct {
	// URL is the GitLab instance, e.g. "https://gitlab.example.com/".
	// The API path is appended by the client.
	URL string

	// Token is a personal, project or group access token.
	Token string

	// AuthMode is AuthPrivateToken (default) or AuthBearer.
	AuthMode string

	// MaxRetries bounds the retries on 429 and 5xx responses.
	// Negative values keep the library default.
	MaxRetries int

	// PerPage is the page size used for listings (1-100).
	PerPage int

	// KeptWhenNoExpiry reports jobs whose artifacts never expire as kept.
	// GitLab clears the expiry date when the "Keep" button is used.
	KeptWhenNoExpiry bool

	// HTTPClient overrides the underlying HTTP client (private token mode only).
	HTTPClient *http.Client
}

// DefaultConfig returns a Config for gitlab.com with the given token.
func DefaultConfig(token string) Config {
	return Config{
		URL:              DefaultURL,
		Token:            token,
		AuthMode:         AuthPrivateToken,
		MaxRetries:       DefaultMaxRetries,
		PerPage:          DefaultPerPage,
		KeptWhenNoExpiry: true,
	}
}

// Client is a GitLab API handle. It is built once per run and is safe to share.
type Client struct {
	api              *gogitlab.Client
	perPage          int
	keptWhenNoExpiry bool
}

// NewClient creates a GitLab client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	baseURL, err := apiURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	opts := []gogitlab.ClientOptionFunc{gogitlab.WithBaseURL(baseURL)}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, gogitlab.WithCustomRetryMax(cfg.MaxRetries))
	}

	var api *gogitlab.Client
	switch strings.ToLower(cfg.AuthMode) {
	case "", AuthPrivateToken:
		if cfg.HTTPClient != nil {
			opts = append(opts, gogitlab.WithHTTPClient(cfg.HTTPClient))
		}
		api, err = gogitlab.NewClient(cfg.Token, opts...)
	case AuthBearer:
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		opts = append(opts, gogitlab.WithHTTPClient(oauth2.NewClient(context.Background(), ts)))
		api, err = gogitlab.NewOAuthClient(cfg.Token, opts...)
	default:
		return nil, fmt.Errorf("unknown auth mode %q (want %q or %q)", cfg.AuthMode, AuthPrivateToken, AuthBearer)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &Client{
		api:              api,
		perPage:          perPage,
		keptWhenNoExpiry: cfg.KeptWhenNoExpiry,
	}, nil
}

// apiURL turns an instance URL into the v4 API base URL.
func apiURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		u = DefaultURL
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "", fmt.Errorf("invalid GitLab URL %q: scheme must be http or https", raw)
	}
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/api/v4") {
		u += "/api/v4"
	}
	return u + "/", nil
}

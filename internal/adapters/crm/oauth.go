package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	model "github.com/pulseboard/pulseboard/internal/domain/model"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"

	// userType values the token endpoint reports.
	userTypeAgency   = "Company"
	userTypeLocation = "Location"

	tokenPath = "/oauth/token"
)

// OAuthClient exchanges authorization codes and refresh tokens at the
// platform's token endpoint. It satisfies credentials.Exchanger.
type OAuthClient struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	now          func() time.Time
}

// OAuthOption applies a configuration option to the OAuthClient.
type OAuthOption func(*OAuthClient)

// WithOAuthHTTPClient overrides the HTTP client used for token calls.
func WithOAuthHTTPClient(hc *http.Client) OAuthOption {
	return func(c *OAuthClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewOAuthClient creates a token-endpoint client.
func NewOAuthClient(baseURL, clientID, clientSecret, redirectURI string, opts ...OAuthOption) *OAuthClient {
	c := &OAuthClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExchangeAuthCode trades an authorization code for a credential. Used by
// the OAuth callback flow when a tenant first connects.
func (c *OAuthClient) ExchangeAuthCode(ctx context.Context, code string) (model.Credential, error) {
	form := url.Values{
		"grant_type":   {grantAuthorizationCode},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}

	return c.exchange(ctx, form)
}

// ExchangeRefreshToken trades a refresh token for a new credential.
func (c *OAuthClient) ExchangeRefreshToken(ctx context.Context, refreshToken string) (model.Credential, error) {
	form := url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {refreshToken},
	}

	return c.exchange(ctx, form)
}

func (c *OAuthClient) exchange(ctx context.Context, form url.Values) (model.Credential, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Credential{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Credential{}, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Credential{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		return model.Credential{}, &AuthError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return model.Credential{}, &ValidationError{Resource: "token", Cause: err}
	}
	if token.AccessToken == "" {
		return model.Credential{}, &ValidationError{Resource: "token", Cause: fmt.Errorf("missing access_token")}
	}

	return c.toCredential(token), nil
}

// toCredential maps the wire token onto a credential, inferring the
// authorization class once so request shaping never re-parses it.
func (c *OAuthClient) toCredential(token tokenResponse) model.Credential {
	class := model.AuthClassLocation
	if token.UserType == userTypeAgency {
		class = model.AuthClassAgency
	}

	var scopes []string
	if token.Scope != "" {
		scopes = strings.Fields(token.Scope)
	}

	return model.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(token.ExpiresIn) * time.Second),
		AuthClass:    class,
		Scopes:       scopes,
		LocationID:   token.LocationID,
	}
}

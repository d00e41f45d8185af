package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Auth0UserInfo is the profile returned by Auth0's /userinfo endpoint.
type Auth0UserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserInfoProvider fetches the profile behind an access token.
type UserInfoProvider interface {
	GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error)
}

// Auth0Client calls the Auth0 authentication API.
type Auth0Client struct {
	domain     string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewAuth0Client(domain string, log zerolog.Logger) *Auth0Client {
	return &Auth0Client{
		domain:     domain,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *Auth0Client) userInfoURL() string {
	// Tests point the client at an httptest server with an explicit scheme.
	if strings.HasPrefix(c.domain, "http://") || strings.HasPrefix(c.domain, "https://") {
		return strings.TrimSuffix(c.domain, "/") + "/userinfo"
	}
	return fmt.Sprintf("https://%s/userinfo", c.domain)
}

// GetUserInfo fetches the profile of the user the access token was issued to.
func (c *Auth0Client) GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("failed to close userinfo response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var info Auth0UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	return &info, nil
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/identity"
	"golang.org/x/oauth2"
)

const (
	slackAuthorizeURL = "https://slack.com/openid/connect/authorize"
	slackTokenURL     = "https://slack.com/api/openid.connect.token"
	slackUserInfoURL  = "https://slack.com/api/openid.connect.userInfo"
	slackProviderName = "slack"
)

type SlackConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides, defaulting to Slack's OpenID Connect endpoints.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

type Slack struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	client      *http.Client
	now         func() time.Time
}

type slackUserInfo struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Sub      string `json:"sub"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Picture  string `json:"picture"`
	TeamName string `json:"https://slack.com/team_name"`
}

func NewSlack(cfg SlackConfig) (*Slack, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("slack oauth config missing required fields")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = slackAuthorizeURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = slackTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = slackUserInfoURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Slack{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "profile", "email"},
		},
		userInfoURL: cfg.UserInfoURL,
		client:      cfg.HTTPClient,
		now:         time.Now,
	}, nil
}

func (p *Slack) Name() string {
	return slackProviderName
}

func (p *Slack) AuthCodeURL(state, verifier string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (p *Slack) Exchange(ctx context.Context, code, verifier string) (*identity.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: slack token exchange: %w", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building userinfo request: %w", ErrExchangeFailed, err)
	}
	resp, err := p.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: slack userinfo: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: slack userinfo returned status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var info slackUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decoding slack userinfo: %w", ErrExchangeFailed, err)
	}
	if !info.OK {
		return nil, fmt.Errorf("%w: slack userinfo error %q", ErrExchangeFailed, info.Error)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: slack userinfo missing subject", ErrExchangeFailed)
	}

	return &identity.Identity{
		ID:        info.Sub,
		Name:      info.Name,
		Email:     info.Email,
		AvatarURL: info.Picture,
		Team:      info.TeamName,
		LastLogin: p.now().UTC(),
	}, nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// OAuth2Provider talks to any authorization-code provider described by endpoint
// URLs. The userinfo document is read with a few common field names.
type OAuth2Provider struct {
	name        string
	cfg         *oauth2.Config
	userInfoURL string
}

func NewOAuth2Provider(name, clientID, clientSecret, authURL, tokenURL, userInfoURL, redirectURL string, scopes []string) *OAuth2Provider {
	return &OAuth2Provider{
		name: name,
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
			RedirectURL:  redirectURL,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
	}
}

func (p *OAuth2Provider) Name() string { return p.name }

func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.cfg.Exchange(ctx, code)
}

func (p *OAuth2Provider) FetchUser(ctx context.Context, token *oauth2.Token) (*IdentityUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status: %d", resp.StatusCode)
	}

	var doc map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	user := &IdentityUser{
		ProviderUserID: firstField(doc, "id", "sub"),
		Username:       firstField(doc, "username", "preferred_username", "login", "name"),
		Email:          strings.ToLower(firstField(doc, "email")),
		Avatar:         firstField(doc, "avatar", "avatar_url", "picture"),
	}
	if user.ProviderUserID == "" || user.Email == "" {
		return nil, ErrInvalidUserInfo
	}
	if user.Username == "" {
		user.Username = user.Email
	}
	return user, nil
}

func firstField(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := doc[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

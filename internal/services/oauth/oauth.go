// Package oauth adapts OAuth2 identity providers to auth.SocialProfile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/nourabuild/advisory-service/internal/config"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/services/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/idtoken"
)

var (
	ErrUnknownProvider = errors.New("unknown or unconfigured provider")
	ErrExchangeFailed  = errors.New("failed to exchange provider code")
	ErrProfileFailed   = errors.New("failed to fetch provider profile")
)

const (
	googleUserInfoURL    = "https://openidconnect.googleapis.com/v1/userinfo"
	linkedInUserInfoURL  = "https://api.linkedin.com/v2/userinfo"
	microsoftUserInfoURL = "https://graph.microsoft.com/oidc/userinfo"
)

// Provider turns an authorization code into a normalized profile.
type Provider interface {
	Name() models.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code, redirectURI string) (auth.SocialProfile, error)
}

// userInfo is the OIDC standard claim set every supported provider returns.
type userInfo struct {
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
	Picture    string `json:"picture"`
}

func (u userInfo) profile(p models.Provider) auth.SocialProfile {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = strings.TrimSpace(u.GivenName + " " + u.FamilyName)
	}
	return auth.SocialProfile{
		ExternalID:  u.Sub,
		DisplayName: name,
		Email:       u.Email,
		PictureURL:  u.Picture,
		Provider:    p,
	}
}

type idTokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// oidcProvider covers Google, LinkedIn and Microsoft. They differ only in
// endpoints and whether an ID token is checked first.
type oidcProvider struct {
	name        models.Provider
	conf        *oauth2.Config
	userInfoURL string
	validate    idTokenValidator
}

func (p *oidcProvider) Name() models.Provider { return p.name }

func (p *oidcProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *oidcProvider) Exchange(ctx context.Context, code, redirectURI string) (auth.SocialProfile, error) {
	conf := *p.conf
	if redirectURI != "" {
		conf.RedirectURL = redirectURI
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return auth.SocialProfile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	if p.validate != nil {
		if raw, _ := tok.Extra("id_token").(string); raw != "" {
			payload, err := p.validate(ctx, raw, conf.ClientID)
			if err != nil {
				return auth.SocialProfile{}, fmt.Errorf("%w: id token: %v", ErrProfileFailed, err)
			}
			return claimsProfile(p.name, payload), nil
		}
	}

	info, err := p.fetchUserInfo(ctx, conf.Client(ctx, tok))
	if err != nil {
		return auth.SocialProfile{}, err
	}
	return info.profile(p.name), nil
}

func (p *oidcProvider) fetchUserInfo(ctx context.Context, client *http.Client) (userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return userInfo{}, fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return userInfo{}, fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("%w: userinfo status %d", ErrProfileFailed, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	return info, nil
}

func claimsProfile(p models.Provider, payload *idtoken.Payload) auth.SocialProfile {
	claim := func(k string) string {
		v, _ := payload.Claims[k].(string)
		return v
	}
	return userInfo{
		Sub:        payload.Subject,
		Name:       claim("name"),
		GivenName:  claim("given_name"),
		FamilyName: claim("family_name"),
		Email:      claim("email"),
		Picture:    claim("picture"),
	}.profile(p)
}

// Registry holds the providers that have credentials configured.
type Registry struct {
	providers map[models.Provider]Provider
}

func NewRegistry(cfg config.OAuth) *Registry {
	r := &Registry{providers: make(map[models.Provider]Provider)}

	if cfg.GoogleClientID != "" {
		r.Register(&oidcProvider{
			name: models.ProviderGoogle,
			conf: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.GoogleRedirectURL,
				Endpoint:     endpoints.Google,
				Scopes:       []string{"openid", "email", "profile"},
			},
			userInfoURL: googleUserInfoURL,
			validate:    idtoken.Validate,
		})
	}

	if cfg.LinkedInClientID != "" {
		r.Register(&oidcProvider{
			name: models.ProviderLinkedIn,
			conf: &oauth2.Config{
				ClientID:     cfg.LinkedInClientID,
				ClientSecret: cfg.LinkedInClientSecret,
				RedirectURL:  cfg.LinkedInRedirectURL,
				Endpoint:     endpoints.LinkedIn,
				Scopes:       []string{"openid", "profile", "email"},
			},
			userInfoURL: linkedInUserInfoURL,
		})
	}

	if cfg.MicrosoftClientID != "" {
		r.Register(&oidcProvider{
			name: models.ProviderMicrosoft,
			conf: &oauth2.Config{
				ClientID:     cfg.MicrosoftClientID,
				ClientSecret: cfg.MicrosoftClientSecret,
				RedirectURL:  cfg.MicrosoftRedirectURL,
				Endpoint:     endpoints.AzureAD(cfg.MicrosoftTenant),
				Scopes:       []string{"openid", "profile", "email", "User.Read"},
			},
			userInfoURL: microsoftUserInfoURL,
		})
	}

	return r
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[models.Provider(strings.ToLower(name))]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the configured providers in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

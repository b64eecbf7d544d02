package service

import (
	"context"

	"golang.org/x/oauth2"
)

// RoleResolver answers which roles a user holds.
type RoleResolver interface {
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
}

// IdentityProvider is the outbound OAuth collaborator. The exchange itself lives
// behind this contract.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUser(ctx context.Context, token *oauth2.Token) (*IdentityUser, error)
}

type IdentityUser struct {
	ProviderUserID string
	Username       string
	Email          string
	Avatar         string
}

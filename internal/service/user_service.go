package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandeepkv93/session-guard/internal/domain"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
)

const RoleAdmin = "ADMIN"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBanned         = errors.New("user is banned")
	ErrInvalidUserInput   = errors.New("username, email and password are required")
)

type RoleWriter interface {
	RoleResolver
	SetRoles(ctx context.Context, userID int64, roles []string) error
}

type UserService struct {
	userRepo   repository.UserRepository
	roles      RoleWriter
	bcryptCost int
}

func NewUserService(userRepo repository.UserRepository, roles RoleWriter, bcryptCost int) *UserService {
	return &UserService{userRepo: userRepo, roles: roles, bcryptCost: bcryptCost}
}

func (s *UserService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidUserInput
	}
	hash, err := security.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong passwords
// are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.FindByName(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" || security.CheckPassword(user.PasswordHash, password) != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Banned {
		return nil, ErrUserBanned
	}
	return user, nil
}

func (s *UserService) FindOrCreateOAuthUser(ctx context.Context, identity *IdentityUser) (*domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if user.Banned {
			return nil, ErrUserBanned
		}
		return user, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}

	user = &domain.User{
		Username: identity.Username,
		Email:    identity.Email,
		Avatar:   identity.Avatar,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BootstrapAdmin creates the first administrator from bootstrap identity claims, or
// promotes the existing account with that email.
func (s *UserService) BootstrapAdmin(ctx context.Context, username, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidUserInput
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		if strings.TrimSpace(username) == "" {
			username = email
		}
		user = &domain.User{Username: strings.TrimSpace(username), Email: email}
		err = s.userRepo.Create(ctx, user)
	}
	if err != nil {
		return nil, err
	}
	if err := s.GrantRole(ctx, user.ID, RoleAdmin); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GrantRole(ctx context.Context, userID int64, role string) error {
	held, err := s.roles.RolesForUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.roles.SetRoles(ctx, userID, append(held, role))
}

func (s *UserService) SetRoles(ctx context.Context, userID int64, roles []string) error {
	return s.roles.SetRoles(ctx, userID, roles)
}

func (s *UserService) SetBanned(ctx context.Context, userID int64, banned bool) error {
	return s.userRepo.SetBanned(ctx, userID, banned)
}

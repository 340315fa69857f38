package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pettycash/internal/model"
	"pettycash/internal/repository"
	"pettycash/internal/utils"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// AuthService provides authentication related services
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*model.User, error)
	CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error)
	SeedDefaultUsers(ctx context.Context, password string) (bool, error)
}

type authService struct {
	userRepo    repository.UserRepository
	revocations repository.RevocationRepository
	jwtUtil     *utils.JWTUtil
	validate    *validator.Validate
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository, revocations repository.RevocationRepository, jwtUtil *utils.JWTUtil) AuthService {
	if revocations == nil {
		revocations = repository.NewNopRevocationRepository()
	}
	return &authService{
		userRepo:    userRepo,
		revocations: revocations,
		jwtUtil:     jwtUtil,
		validate:    newValidator(),
	}
}

// Login authenticates a user and returns a session token
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	// stored emails are lowercased by CreateUser
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("error finding user by email: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials // User not found
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials // Password mismatch
	}

	token, _, err := s.jwtUtil.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Logout revokes the token until it would have expired. Invalid tokens are ignored.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return err
	}
	slog.InfoContext(ctx, "user logged out", "user_id", claims.UserID)
	return nil
}

// Authenticate resolves a session token to the current user
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidSession)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d no longer exists", ErrInvalidSession, claims.UserID)
	}
	return user, nil
}

// CreateUser registers an account with the given role
func (s *authService) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	nu.Username = strings.TrimSpace(nu.Username)
	nu.FullName = strings.TrimSpace(nu.FullName)
	if err := validateStruct(s.validate, nu).OrNil(); err != nil {
		return nil, err
	}

	existingUser, err := s.userRepo.FindByEmail(ctx, nu.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: hashedPassword,
		FullName:     nu.FullName,
		Role:         nu.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}
	return user, nil
}

var defaultUsers = []model.NewUser{
	{Username: "employee", Email: "employee@example.com", FullName: "John Employee", Role: model.RoleEmployee},
	{Username: "senior", Email: "senior@example.com", FullName: "Jane Senior", Role: model.RoleSenior},
}

// SeedDefaultUsers creates one employee and one senior when no users exist.
// It reports whether anything was created.
func (s *authService) SeedDefaultUsers(ctx context.Context, password string) (bool, error) {
	n, err := s.userRepo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "database already initialized", "users", n)
		return false, nil
	}

	for _, nu := range defaultUsers {
		nu.Password = password
		if _, err := s.CreateUser(ctx, nu); err != nil {
			return false, fmt.Errorf("failed to seed user %s: %w", nu.Email, err)
		}
		slog.InfoContext(ctx, "seeded default user", "email", nu.Email, "role", nu.Role)
	}
	return true, nil
}

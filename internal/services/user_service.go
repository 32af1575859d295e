// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/drawatale/drawatale-backend/internal/auth"
	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/drawatale/drawatale-backend/internal/utils"
)

const (
	minPasswordLength = 6
	// bcrypt refuses longer input.
	maxPasswordBytes = 72
)

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	UserType string  `json:"user_type"`
	Age      *int    `json:"age,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserService handles accounts and sessions.
type UserService struct {
	store  storage.UserStore
	tokens *auth.TokenConfig
}

func NewUserService(store storage.UserStore, tokens *auth.TokenConfig) *UserService {
	return &UserService{store: store, tokens: tokens}
}

// Register creates an account. A taken email is a validation error.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("A valid email is required", err)
	}
	if strings.TrimSpace(req.Username) == "" {
		return nil, apperrors.NewValidationError("Username is required", nil)
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("Password must be at least 6 characters", nil)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, apperrors.NewValidationError("Password must be at most 72 bytes", nil)
	}

	userType := req.UserType
	if userType == "" {
		userType = models.UserTypeChild
	}
	if userType != models.UserTypeChild && userType != models.UserTypeParent {
		return nil, apperrors.NewValidationError("user_type must be child or parent", nil)
	}
	if req.Age != nil && (*req.Age < 1 || *req.Age > 120) {
		return nil, apperrors.NewValidationError("age is out of range", nil)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to hash password", err)
	}

	user := &models.User{
		Email:          email,
		Username:       strings.TrimSpace(req.Username),
		UserType:       userType,
		Age:            req.Age,
		ParentID:       req.ParentID,
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.NewValidationError("Email already registered", err)
		}
		return nil, apperrors.NewProcessingError("failed to create user", err)
	}

	utils.GetLogger().Info("user registered", map[string]interface{}{
		"user_id":   user.ID,
		"user_type": user.UserType,
	})
	return user, nil
}

// Login checks credentials and issues a bearer token.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	invalid := apperrors.NewUnauthorizedError("Incorrect email or password", nil)

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperrors.NewProcessingError("failed to load user", err)
	}
	if !user.IsActive || !auth.CheckPassword(user.HashedPassword, password) {
		return nil, invalid
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.tokens)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to issue token", err)
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := auth.ParseToken(tokenString, s.tokens)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Could not validate credentials", err)
	}
	user, err := s.store.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError("Could not validate credentials", err)
		}
		return nil, apperrors.NewProcessingError("failed to load user", err)
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorizedError("Could not validate credentials", nil)
	}
	return user, nil
}

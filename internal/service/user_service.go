package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/service/auth"
	"github.com/phrazzld/forge-api/internal/store"
)

// UserService provides registration and login.
type UserService interface {
	// Register creates a new user with a hashed password and returns the
	// user plus a signed access token.
	Register(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error)

	// Login verifies the credentials and returns the user plus a signed
	// access token. Returns auth.ErrInvalidCredentials when either the
	// email or password is wrong; callers cannot distinguish the two.
	Login(ctx context.Context, email, password string) (*domain.User, string, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// userServiceImpl implements the UserService interface
type userServiceImpl struct {
	users     store.UserStore
	jwt       auth.JWTService
	passwords auth.PasswordVerifier
	logger    *slog.Logger
}

// NewUserService creates a new UserService.
// It returns an error if any of the required dependencies are nil.
func NewUserService(
	users store.UserStore,
	jwt auth.JWTService,
	passwords auth.PasswordVerifier,
	logger *slog.Logger,
) (UserService, error) {
	if users == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "user store cannot be nil"}
	}
	if jwt == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jwt service cannot be nil"}
	}
	if passwords == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "password verifier cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &userServiceImpl{
		users:     users,
		jwt:       jwt,
		passwords: passwords,
		logger:    logger.With("component", "user_service"),
	}, nil
}

// Register creates a new user and issues a token.
func (s *userServiceImpl) Register(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error) {
	hashed, err := s.passwords.Hash(password)
	if err != nil {
		return nil, "", newServiceError("register", "failed to hash password", err)
	}

	user, err := domain.NewUser(email, hashed, role)
	if err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, "", ErrEmailExists
		}
		return nil, "", newServiceError("register", "failed to save user", err)
	}

	token, err := s.jwt.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return nil, "", newServiceError("register", "failed to issue token", err)
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"role", user.Role)
	return user, token, nil
}

// Login verifies credentials and issues a token.
func (s *userServiceImpl) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, "", auth.ErrInvalidCredentials
		}
		return nil, "", newServiceError("login", "failed to look up user", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		s.logger.Warn("login failed: password mismatch", "user_id", user.ID)
		return nil, "", auth.ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return nil, "", newServiceError("login", "failed to issue token", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// GetUser retrieves a user by ID.
func (s *userServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, newServiceError("get_user", "failed to retrieve user", err)
	}
	return user, nil
}

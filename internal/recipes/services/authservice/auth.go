package authservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/pkg/jwtauth"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/tokenrepo"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/userrepo"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 5
	maxEmailLen    = 255
	maxNameLen     = 50
)

var (
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrUnauthenticated    = errors.New("authentication required")
)

type AuthService struct {
	userRepo Repository
	tokens   TokenStore
	cfg      config.Auth
}

type Repository interface {
	CreateUser(context.Context, models.User) (int64, error)
	GetUserByEmail(context.Context, string) (models.User, error)
	GetUserByID(context.Context, int64) (models.User, error)
	UpdateUser(context.Context, models.User) error
}

type TokenStore interface {
	Save(ctx context.Context, token string, userID int64) error
	UserID(ctx context.Context, token string) (int64, error)
	TokenForUser(ctx context.Context, userID int64) (string, error)
}

func New(userRepo Repository, tokens TokenStore, cfg config.Auth) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cfg:      cfg,
	}
}

// Register creates a regular user. The email is lowercased before
// storage so lookups are case-insensitive; the password is only ever
// stored as a bcrypt hash.
func (as *AuthService) Register(ctx context.Context, req RegisterUserRequest) (models.User, error) {
	return as.register(ctx, req, false)
}

// RegisterSuperuser is Register plus elevation of the staff and
// superuser flags. Not exposed over HTTP.
func (as *AuthService) RegisterSuperuser(ctx context.Context, req RegisterUserRequest) (models.User, error) {
	return as.register(ctx, req, true)
}

func (as *AuthService) register(ctx context.Context, req RegisterUserRequest, super bool) (models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return models.User{}, err
	}

	if len(req.Password) < minPasswordLen {
		return models.User{}, models.Invalid("password", "must be at least %d characters", minPasswordLen)
	}

	if len(req.Name) > maxNameLen {
		return models.User{}, models.Invalid("name", "must be at most %d characters", maxNameLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("generate from password error: %w", err)
	}

	u := models.User{ //nolint:exhaustruct
		Email:        email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Active:       true,
		Staff:        super,
		Superuser:    super,
	}

	id, err := as.userRepo.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, userrepo.ErrAlreadyExists) {
			return models.User{}, models.Invalid("email", "user with this email already exists")
		}

		return models.User{}, fmt.Errorf("create user error: %w", err)
	}

	u.ID = id

	return u, nil
}

// Login verifies credentials and returns the user's bearer token.
// While a previously issued token is still bound in the store it is
// returned again, so a user holds one active token at a time.
func (as *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	u, err := as.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return "", ErrInvalidCredentials
		}

		return "", fmt.Errorf("get user error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := as.tokens.TokenForUser(ctx, u.ID)
	if err == nil {
		return token, nil
	}

	if !errors.Is(err, tokenrepo.ErrNotFound) {
		return "", fmt.Errorf("get token error: %w", err)
	}

	token, err = jwtauth.GetToken(u.ID, as.cfg.TTL, as.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("can't get token error: %w", err)
	}

	if err := as.tokens.Save(ctx, token, u.ID); err != nil {
		return "", fmt.Errorf("save token error: %w", err)
	}

	return token, nil
}

// Authenticate resolves a bearer token to its user. The token must
// carry a valid signature and still be the active binding in the
// store; anything else is ErrUnauthenticated.
func (as *AuthService) Authenticate(ctx context.Context, token string) (models.User, error) {
	userID, err := jwtauth.ValidateToken(token, as.cfg.Secret)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}

	boundID, err := as.tokens.UserID(ctx, token)
	if err != nil {
		if errors.Is(err, tokenrepo.ErrNotFound) {
			return models.User{}, ErrUnauthenticated
		}

		return models.User{}, fmt.Errorf("get token binding error: %w", err)
	}

	if boundID != userID {
		return models.User{}, ErrUnauthenticated
	}

	u, err := as.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return models.User{}, ErrUnauthenticated
		}

		return models.User{}, fmt.Errorf("get user error: %w", err)
	}

	return u, nil
}

// UpdateProfile applies a partial update to the user's own record.
func (as *AuthService) UpdateProfile(ctx context.Context, user models.User, req UpdateProfileRequest) (models.User, error) {
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return models.User{}, err
		}

		user.Email = email
	}

	if req.Name != nil {
		if len(*req.Name) > maxNameLen {
			return models.User{}, models.Invalid("name", "must be at most %d characters", maxNameLen)
		}

		user.Name = *req.Name
	}

	if req.Password != nil {
		if len(*req.Password) < minPasswordLen {
			return models.User{}, models.Invalid("password", "must be at least %d characters", minPasswordLen)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, fmt.Errorf("generate from password error: %w", err)
		}

		user.PasswordHash = string(hash)
	}

	if err := as.userRepo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrAlreadyExists) {
			return models.User{}, models.Invalid("email", "user with this email already exists")
		}

		return models.User{}, fmt.Errorf("update user error: %w", err)
	}

	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", models.Invalid("email", "must not be empty")
	}

	if len(email) > maxEmailLen {
		return "", models.Invalid("email", "must be at most %d characters", maxEmailLen)
	}

	return email, nil
}

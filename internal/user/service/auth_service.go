package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codearena/internal/common/http/middleware"
	"codearena/internal/user/repository"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	minPasswordLength = 8
)

// AuthConfig bundles the auth service dependencies.
type AuthConfig struct {
	Users     repository.UserRepository
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

// AuthService handles registration, login and token verification.
type AuthService struct {
	users    repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
	issuer   string
}

// NewAuthService creates an auth service from cfg.
func NewAuthService(cfg AuthConfig) (*AuthService, error) {
	if cfg.Users == nil {
		return nil, errors.New("user repository is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "codearena"
	}
	return &AuthService{
		users:    cfg.Users,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: ttl,
		issuer:   issuer,
	}, nil
}

type tokenClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Register creates a new account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*repository.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return nil, appErrors.ValidationError("name", "is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, appErrors.ValidationError("email", "is not a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, appErrors.ValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.InternalError(err)
	}

	user := &repository.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         repository.RoleUser,
		EloRating:    repository.DefaultEloRating,
	}
	if err := s.users.Create(ctx, nil, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, appErrors.New(appErrors.EmailAlreadyExists)
		}
		return nil, appErrors.InternalError(err)
	}
	logger.Info(ctx, "user registered", zap.Int64("user_id", user.ID), zap.String("name", user.Name))
	return user, nil
}

// Login verifies credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *repository.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, appErrors.New(appErrors.InvalidCredentials)
		}
		return "", nil, appErrors.InternalError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, appErrors.New(appErrors.InvalidCredentials)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, appErrors.Wrapf(err, appErrors.TokenGenerationFailed, "sign token: %v", err)
	}
	return token, user, nil
}

// Authenticate validates a bearer token and resolves the caller identity.
// It satisfies middleware.TokenVerifier.
func (s *AuthService) Authenticate(ctx context.Context, token string) (middleware.Identity, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return middleware.Identity{}, appErrors.New(appErrors.TokenExpired)
		}
		return middleware.Identity{}, appErrors.Wrapf(err, appErrors.TokenInvalid, "parse token: %v", err)
	}
	if !parsed.Valid {
		return middleware.Identity{}, appErrors.New(appErrors.TokenInvalid)
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil || userID <= 0 {
		return middleware.Identity{}, appErrors.New(appErrors.TokenInvalid).WithMessage("malformed subject")
	}
	return middleware.Identity{
		UserID: userID,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}

func (s *AuthService) issueToken(user *repository.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizwrap/internal/cache"
	"quizwrap/internal/config"
	"quizwrap/internal/logger"
	"quizwrap/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Authenticator checks an instructor credential pair
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) error
}

// StaticAuthenticator compares against one configured pair. It keeps casual
// viewers away from the records and nothing more.
type StaticAuthenticator struct {
	Username string
	Password string
}

func (a StaticAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	if username != a.Username || password != a.Password {
		return ErrInvalidCredentials
	}
	return nil
}

// AuthService issues and checks instructor and client tokens
type AuthService struct {
	authenticator Authenticator
	tokens        cache.TokenCache
	jwtSecret     []byte
	clientTTL     time.Duration
	nowFunc       func() time.Time
}

// NewAuthService creates a new auth service. Client tokens live for clientTTL.
func NewAuthService(authn Authenticator, tokens cache.TokenCache, secret string, clientTTL time.Duration) *AuthService {
	return &AuthService{
		authenticator: authn,
		tokens:        tokens,
		jwtSecret:     []byte(secret),
		clientTTL:     clientTTL,
		nowFunc:       time.Now,
	}
}

// NewStaticAuthService wires the configured credential pair
func NewStaticAuthService(cfg config.InstructorConfig, tokens cache.TokenCache, clientTTL time.Duration) *AuthService {
	return NewAuthService(StaticAuthenticator{Username: cfg.Username, Password: cfg.Password}, tokens, cfg.JWTSecret, clientTTL)
}

// Login validates credentials and returns a permanent instructor token
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	if err := s.authenticator.Authenticate(ctx, username, password); err != nil {
		logger.Log.Info("instructor login rejected", zap.String("username", username))
		return nil, err
	}

	instructorID := "inst_" + uuid.New().String()[:8]
	claims := &model.InstructorClaims{
		InstructorID: instructorID,
		Role:         model.RoleInstructor,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.New().String(),
			IssuedAt: jwt.NewNumericDate(s.nowFunc()),
			// no expiry, logout revokes the token ID
		},
	}

	tokenString, err := s.sign(claims)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("instructor logged in", zap.String("instructorId", instructorID))
	return &model.LoginResponse{
		Token:        tokenString,
		InstructorID: instructorID,
		IsInstructor: true,
	}, nil
}

// Logout revokes the token. Missing or invalid tokens are already logged out.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	if tokenString == "" {
		return nil
	}
	claims, err := s.parseInstructor(tokenString)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, claims.ID, 0); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	logger.Log.Info("instructor logged out", zap.String("instructorId", claims.InstructorID))
	return nil
}

// ValidateInstructorToken validates an instructor JWT and returns claims
func (s *AuthService) ValidateInstructorToken(ctx context.Context, tokenString string) (*model.InstructorClaims, error) {
	claims, err := s.parseInstructor(tokenString)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateClientToken creates a token bound to one client context
func (s *AuthService) GenerateClientToken(clientID string) (string, error) {
	now := s.nowFunc()
	claims := &model.ClientClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.clientTTL)),
		},
	}
	return s.sign(claims)
}

// ValidateClientToken validates a client JWT and returns claims
func (s *AuthService) ValidateClientToken(tokenString string) (*model.ClientClaims, error) {
	claims := &model.ClientClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.ClientID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parseInstructor(tokenString string) (*model.InstructorClaims, error) {
	claims := &model.InstructorClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Role != model.RoleInstructor {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *AuthService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// IdentityService is the stateless credential and token surface of the
// identity provider: it verifies passwords and mints/parses HS256 session
// tokens. Per-client session state lives in SessionClient.
type IdentityService struct {
	repo      ports.IdentityRepository
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewIdentityService(repo ports.IdentityRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *IdentityService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &IdentityService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
		now:       time.Now,
	}
}

// Authenticate verifies credentials and issues a session. Every failure
// path returns domain.ErrInvalidCredentials: an unknown email and a wrong
// password are indistinguishable to the caller.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*domain.Session, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	id, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Warn().Err(err).Msg("identity lookup failed")
		}
		return nil, domain.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issueSession(id.ID, id.Email)
}

// ParseToken validates a bearer token and reconstructs its session.
func (s *IdentityService) ParseToken(token string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("parse token: %w", domain.ErrInvalidCredentials)
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	exp, expErr := claims.GetExpirationTime()
	if sub == "" || expErr != nil || exp == nil {
		return nil, fmt.Errorf("parse token: %w", domain.ErrInvalidCredentials)
	}

	return &domain.Session{
		Token:      token,
		IdentityID: sub,
		Email:      email,
		ExpiresAt:  exp.Time,
	}, nil
}

// Refresh reissues the token for an existing session, extending expiry.
func (s *IdentityService) Refresh(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if sess == nil {
		return nil, domain.ErrNoSession
	}
	return s.issueSession(sess.IdentityID, sess.Email)
}

// Register creates a credential record and returns its identity id.
func (s *IdentityService) Register(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &ports.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *IdentityService) issueSession(identityID, email string) (*domain.Session, error) {
	expires := s.now().Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"sub":   identityID,
		"email": email,
		"exp":   expires.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &domain.Session{
		Token:      token,
		IdentityID: identityID,
		Email:      email,
		ExpiresAt:  expires,
	}, nil
}

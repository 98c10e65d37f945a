package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"dilemma_webapp/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrAuthDisabled         = errors.New("JWT authentication is not enabled")
	ErrUnsupportedGrantType = errors.New("only client_credentials grant type is supported")
	ErrMissingCredentials   = errors.New("client_id and client_secret are required")
	ErrInvalidClient        = errors.New("invalid client credentials")
	ErrInvalidToken         = errors.New("invalid token")
)

// настройки выдачи токенов
type AuthConfig struct {
	Enabled  bool
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	// client_id -> client_secret
	Clients map[string]string
}

// claims токена клиента
type ClientClaims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// выданный токен
type IssuedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// выдает и проверяет JWT по схеме client_credentials
type AuthService struct {
	cfg   AuthConfig
	audit *AuditService
	now   func() time.Time
}

// создает сервис авторизации. audit может быть nil
func NewAuthService(cfg AuthConfig, audit *AuditService) *AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &AuthService{cfg: cfg, audit: audit, now: time.Now}
}

func (s *AuthService) Enabled() bool {
	return s.cfg.Enabled
}

// IssueToken проверяет учетные данные клиента по таблице из конфигурации
func (s *AuthService) IssueToken(ctx context.Context, grantType, clientID, clientSecret, scope string) (*IssuedToken, error) {
	if !s.cfg.Enabled {
		return nil, ErrAuthDisabled
	}
	if grantType != "client_credentials" {
		return nil, ErrUnsupportedGrantType
	}
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	expected, ok := s.cfg.Clients[clientID]
	if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(clientSecret)) != 1 {
		return nil, ErrInvalidClient
	}

	now := s.now()
	claims := ClientClaims{
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, "", "", domain.AuditActionTokenIssued, domain.AuditCategoryAuth,
			map[string]interface{}{"client_id": clientID, "scope": scope})
	}

	return &IssuedToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.TTL / time.Second),
		Scope:       scope,
	}, nil
}

// ParseToken проверяет подпись, срок, издателя и аудиторию
func (s *AuthService) ParseToken(raw string) (*ClientClaims, error) {
	claims := &ClientClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

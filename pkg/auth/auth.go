package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"cryptotrack/pkg/logger"
)

// Claims represents JWT claims
type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// Service issues and verifies HMAC-signed bearer tokens for the write
// endpoints.
type Service struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// Config holds authentication configuration
type Config struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// NewConfig creates a new auth configuration from environment variables
func NewConfig() *Config {
	cfg := &Config{
		Secret:     os.Getenv("JWT_SECRET"),
		Issuer:     "cryptotrack",
		Expiration: 24 * time.Hour,
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		cfg.Issuer = issuer
	}
	if exp := os.Getenv("JWT_EXPIRATION"); exp != "" {
		if d, err := time.ParseDuration(exp); err == nil {
			cfg.Expiration = d
		}
	}
	return cfg
}

// New creates an auth Service.
func New(config *Config) (*Service, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("missing required config: JWT_SECRET")
	}
	return &Service{
		secret:     []byte(config.Secret),
		issuer:     config.Issuer,
		expiration: config.Expiration,
	}, nil
}

// GenerateToken issues a signed token for a subject.
func (s *Service) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			http.Error(w, "Bearer token required", http.StatusUnauthorized)
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			logger.Log.Warn("rejected token", zap.Error(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Set("X-Auth-Subject", claims.Subject)
		next.ServeHTTP(w, r)
	})
}

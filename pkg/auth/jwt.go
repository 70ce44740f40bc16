package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the identity carried by access and refresh tokens. Role is
// the session's stored role value; the session gate may still fall back
// to the profile document when it is empty.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Config mirrors the jwt section of the application config.
type Config struct {
	Secret        string
	RefreshSecret string
	Expiry        time.Duration
	RefreshExpiry time.Duration
}

// JWTService issues and validates signed session tokens.
type JWTService interface {
	GenerateAccessToken(userID, email, role string) (string, error)
	GenerateRefreshToken(userID, email, role string) (string, error)
	ValidateToken(token string) (*Claims, error)
	ValidateRefreshToken(token string) (*Claims, error)
}

type jwtService struct {
	cfg Config
}

// NewJWTService builds a JWTService from config. Zero expiries get
// sensible defaults (24h access, 7d refresh).
func NewJWTService(cfg Config) JWTService {
	if cfg.Expiry == 0 {
		cfg.Expiry = 24 * time.Hour
	}
	if cfg.RefreshExpiry == 0 {
		cfg.RefreshExpiry = 7 * 24 * time.Hour
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.Secret
	}
	return &jwtService{cfg: cfg}
}

func (s *jwtService) GenerateAccessToken(userID, email, role string) (string, error) {
	return s.sign(userID, email, role, s.cfg.Secret, s.cfg.Expiry)
}

func (s *jwtService) GenerateRefreshToken(userID, email, role string) (string, error) {
	return s.sign(userID, email, role, s.cfg.RefreshSecret, s.cfg.RefreshExpiry)
}

func (s *jwtService) ValidateToken(token string) (*Claims, error) {
	return s.parse(token, s.cfg.Secret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.parse(token, s.cfg.RefreshSecret)
}

func (s *jwtService) sign(userID, email, role, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) parse(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
)

var (
	// ErrTokenInvalid covers malformed, unsigned or tampered tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired indicates an expired token.
	ErrTokenExpired = errors.New("auth: token expired")
)

// Claims carries the actor snapshot inside a bearer token.
type Claims struct {
	UserID   int64  `json:"user_id,omitempty"`
	Role     string `json:"role"`
	BranchID *int64 `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 bearer tokens. The API and the relay
// share one instance configuration.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{signingKey: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for actor.
func (s *TokenService) Issue(actor identity.Actor) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   actor.ID,
		Role:     string(actor.Role),
		BranchID: actor.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates raw and returns the actor it carries. The actor id is read
// from user_id, falling back to sub.
func (s *TokenService) Parse(raw string) (identity.Actor, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Actor{}, ErrTokenExpired
		}
		return identity.Actor{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return identity.Actor{}, ErrTokenInvalid
	}
	id := claims.UserID
	if id == 0 && claims.Subject != "" {
		id, err = strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return identity.Actor{}, fmt.Errorf("%w: subject", ErrTokenInvalid)
		}
	}
	if id <= 0 {
		return identity.Actor{}, fmt.Errorf("%w: missing actor id", ErrTokenInvalid)
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.Actor{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return identity.Actor{ID: id, Role: role, BranchID: claims.BranchID}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

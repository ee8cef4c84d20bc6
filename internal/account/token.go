package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/domain"
)

// Claims is the JWT payload of an access token.
type Claims struct {
	UserID   int64  `json:"uid,string"`
	Username string `json:"username"`
	IsStaff  bool   `json:"staff"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the identity passed to core operations.
func (c *Claims) Actor() *access.Actor {
	return &access.Actor{UserID: c.UserID, Username: c.Username, Privileged: c.IsStaff}
}

type Token struct {
	Access    string    `json:"access"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer signs HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (ti *TokenIssuer) Secret() []byte {
	return ti.secret
}

func (ti *TokenIssuer) Issue(u *domain.User) (*Token, error) {
	now := time.Now()
	exp := now.Add(ti.ttl)
	claims := &Claims{
		UserID:   u.ID,
		Username: u.Username,
		IsStaff:  u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return nil, errors.Wrap(err, "sign token")
	}
	return &Token{Access: signed, ExpiresAt: exp}, nil
}

// Parse verifies a token string and returns its claims.
func (ti *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "famtasks"

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

type familyClaims struct {
	jwt.RegisteredClaims
	FamilyID string `json:"fid"`
}

// TokenIssuer signs and verifies HS256 family access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the family and its expiry.
func (ti *TokenIssuer) Issue(familyID string) (string, time.Time, error) {
	now := ti.now()
	expires := now.Add(ti.ttl)
	claims := familyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   familyID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		FamilyID: familyID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses the token and returns the auth context it grants.
func (ti *TokenIssuer) Verify(token string) (AuthContext, error) {
	var claims familyClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AuthContext{}, ErrTokenExpired
		}
		return AuthContext{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.FamilyID == "" {
		return AuthContext{}, fmt.Errorf("%w: missing family", ErrTokenInvalid)
	}
	return AuthContext{FamilyID: claims.FamilyID, TokenID: claims.ID}, nil
}

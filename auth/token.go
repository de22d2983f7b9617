package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims
type Claims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 session tokens bound to a wallet.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: now}
}

func (i *TokenIssuer) Issue(wallet common.Address) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Wallet: wallet.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   wallet.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Parse validates the token and returns the wallet it was issued to.
func (i *TokenIssuer) Parse(tokenString string) (common.Address, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || !common.IsHexAddress(claims.Wallet) {
		return common.Address{}, ErrInvalidToken
	}
	return common.HexToAddress(claims.Wallet), nil
}

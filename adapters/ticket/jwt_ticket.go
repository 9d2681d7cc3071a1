// Package ticket issues the short-lived JWTs that authenticate realtime
// handshakes. A ticket is minted only for a logged-in session, so a
// connection presenting one has proven control of its address.
package ticket

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
)

const AudienceRealtime = "realtime:ticket"

// DefaultTTL bounds how long a minted ticket stays usable.
const DefaultTTL = 2 * time.Minute

// JWTIssuer implements ports.TicketIssuer with ES256 tokens.
type JWTIssuer struct {
	signKey *ecdsa.PrivateKey
	ttl     time.Duration
}

// NewJWTIssuer creates an issuer signing with signKey. ttl <= 0 selects
// DefaultTTL.
func NewJWTIssuer(signKey *ecdsa.PrivateKey, ttl time.Duration) ports.TicketIssuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTIssuer{signKey: signKey, ttl: ttl}
}

// Issue mints a ticket bound to address.
func (i *JWTIssuer) Issue(address string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   address,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		Audience:  jwt.ClaimStrings{AudienceRealtime},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signed, err := token.SignedString(i.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return signed, nil
}

// Verify checks the ticket and returns the address it was bound to.
func (i *JWTIssuer) Verify(ticketStr string) (string, error) {
	token, err := jwt.ParseWithClaims(ticketStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &i.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceRealtime))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", core.ErrTicketExpired
		}
		return "", fmt.Errorf("failed to parse ticket: %w", core.ErrInvalidTicket)
	}
	if !token.Valid {
		return "", core.ErrInvalidTicket
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", core.ErrInvalidTicket
	}

	return claims.Subject, nil
}

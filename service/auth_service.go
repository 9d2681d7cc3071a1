// Package service orchestrates the authentication state machine and the
// notification delivery engine over the ports.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
	"github.com/rs/zerolog"
)

const nonceBytes = 32

// AuthService drives the session state machine:
// Anonymous -> NonceIssued -> Authenticated -> Anonymous.
type AuthService struct {
	log      zerolog.Logger
	sessions ports.SessionStore
	users    ports.UserDirectory
	verifier ports.SignatureVerifier
	tickets  ports.TicketIssuer
	events   ports.EventPublisher
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	log zerolog.Logger,
	sessions ports.SessionStore,
	users ports.UserDirectory,
	verifier ports.SignatureVerifier,
	tickets ports.TicketIssuer,
	events ports.EventPublisher,
) *AuthService {
	return &AuthService{
		log:      log,
		sessions: sessions,
		users:    users,
		verifier: verifier,
		tickets:  tickets,
		events:   events,
	}
}

// IssueNonce generates a fresh single-use nonce, stores it on the
// session, and persists the session. Reissuing overwrites and thereby
// invalidates any prior nonce.
func (s *AuthService) IssueNonce(ctx context.Context, sid string, session core.Session) (string, core.Session, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", session, fmt.Errorf("failed to generate nonce: %w", err)
	}

	session.Nonce = hex.EncodeToString(buf)
	if err := s.sessions.Save(ctx, sid, session); err != nil {
		return "", session, fmt.Errorf("failed to save session: %w", err)
	}

	return session.Nonce, session, nil
}

// Login attempts the NonceIssued -> Authenticated transition.
//
// A verification failure is a negative result, not an error: the session
// comes back UNCHANGED and the caller learns nothing about which check
// failed. Errors are reserved for malformed input and storage faults.
func (s *AuthService) Login(ctx context.Context, sid string, session core.Session, message, signature string) (core.Session, error) {
	// Without an issued nonce there is nothing to verify against.
	if session.Nonce == "" {
		return session, nil
	}

	address, ok, err := s.verifier.Verify(message, signature, session.Nonce)
	if err != nil {
		return session, err
	}
	if !ok {
		return session, nil
	}

	// Lookup-then-create: "already exists" is success here.
	if _, err := s.users.EnsureUser(ctx, address); err != nil {
		return session, fmt.Errorf("failed to ensure user: %w", err)
	}

	session.IsLoggedIn = true
	session.Address = address
	if err := s.sessions.Save(ctx, sid, session); err != nil {
		return session, fmt.Errorf("failed to save session: %w", err)
	}

	if err := s.events.PublishLogin(ctx, address); err != nil {
		s.log.Warn().Err(err).Str("address", address).Msg("failed to publish login event")
	}

	return session, nil
}

// VerifyOnly reports whether the message and signature verify against
// the session's current nonce. It never mutates state.
func (s *AuthService) VerifyOnly(session core.Session, message, signature string) bool {
	_, ok, err := s.verifier.Verify(message, signature, session.Nonce)
	return err == nil && ok
}

// Logout destroys the session and returns the anonymous default.
func (s *AuthService) Logout(ctx context.Context, sid string, session core.Session) (core.Session, error) {
	if err := s.sessions.Destroy(ctx, sid); err != nil {
		return session, fmt.Errorf("failed to destroy session: %w", err)
	}

	if session.IsLoggedIn {
		if err := s.events.PublishLogout(ctx, session.Address); err != nil {
			s.log.Warn().Err(err).Str("address", session.Address).Msg("failed to publish logout event")
		}
	}

	return core.Session{}, nil
}

// Ticket mints a realtime handshake ticket for an authenticated session.
func (s *AuthService) Ticket(session core.Session) (string, error) {
	if !session.IsLoggedIn || session.Address == "" {
		return "", core.ErrNotAuthenticated
	}
	return s.tickets.Issue(session.Address)
}

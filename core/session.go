package core

// Session holds the authentication state for a single client context.
// The zero value is the anonymous default returned before any challenge
// has been issued and after logout.
type Session struct {
	Nonce      string `json:"nonce"`
	IsLoggedIn bool   `json:"isLoggedIn"`
	Address    string `json:"address"`
}

// AuthState is the coarse position of a session in the authentication
// state machine.
type AuthState string

const (
	StateAnonymous     AuthState = "anonymous"
	StateNonceIssued   AuthState = "nonce_issued"
	StateAuthenticated AuthState = "authenticated"
)

// State derives the machine state from the session fields.
func (s Session) State() AuthState {
	switch {
	case s.IsLoggedIn:
		return StateAuthenticated
	case s.Nonce != "":
		return StateNonceIssued
	default:
		return StateAnonymous
	}
}

// Reset returns the session to the anonymous default.
func (s *Session) Reset() {
	*s = Session{}
}

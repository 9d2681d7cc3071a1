package ports

// SignatureVerifier validates a signed authentication message against an
// expected nonce.
//
// err is non-nil only for malformed input. All semantic failures (nonce
// mismatch, bad signature, expired message) are ok=false with no detail
// on which check failed.
type SignatureVerifier interface {
	Verify(message, signature, expectedNonce string) (address string, ok bool, err error)
}

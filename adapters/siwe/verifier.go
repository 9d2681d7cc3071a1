package siwe

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/herald/core"
)

// Verifier validates signed authentication messages. It is pure: no
// session or identity state is touched, callers decide what to do with
// the result.
type Verifier struct {
	// Domain restricts accepted messages to a single origin when set.
	Domain string

	// now is stubbed in tests.
	now func() time.Time
}

// NewVerifier creates a verifier. domain may be empty to accept any.
func NewVerifier(domain string) *Verifier {
	return &Verifier{Domain: domain, now: time.Now}
}

// Verify checks message against signature and expectedNonce.
//
// The returned error is non-nil only for malformed input. Every semantic
// failure (nonce mismatch, bad signature, recovered address mismatch,
// expired message) yields ok=false with no further detail, so callers
// cannot distinguish which check failed.
func (v *Verifier) Verify(message, signature, expectedNonce string) (address string, ok bool, err error) {
	msg, err := Parse(message)
	if err != nil {
		return "", false, err
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", false, core.NewFault(core.FaultValidation, "malformed signature", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", false, core.NewFault(core.FaultValidation,
			fmt.Sprintf("signature must be %d bytes", crypto.SignatureLength), nil)
	}

	if v.Domain != "" && msg.Domain != v.Domain {
		return "", false, nil
	}
	if expectedNonce == "" || msg.Nonce != expectedNonce {
		return "", false, nil
	}
	if !msg.ExpirationTime.IsZero() && v.now().After(msg.ExpirationTime) {
		return "", false, nil
	}

	recovered, recoverErr := recoverAddress([]byte(message), sig)
	if recoverErr != nil {
		// An unrecoverable signature is a negative result, not an error.
		return "", false, nil
	}
	if !strings.EqualFold(recovered.Hex(), msg.Address) {
		return "", false, nil
	}

	return recovered.Hex(), true, nil
}

// recoverAddress recovers the signer from an EIP-191 personal_sign
// signature over msg.
func recoverAddress(msg, sig []byte) (common.Address, error) {
	digest := personalDigest(msg)

	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// personalDigest hashes msg with the EIP-191 personal message prefix.
func personalDigest(msg []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}

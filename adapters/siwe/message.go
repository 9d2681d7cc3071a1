// Package siwe parses and verifies EIP-4361 ("Sign-In With Ethereum")
// authentication messages signed with EIP-191 personal_sign.
package siwe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/herald/core"
)

const headerSuffix = " wants you to sign in with your Ethereum account:"

// Message is a parsed EIP-4361 authentication message.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time // zero when absent
}

// Parse decodes the plain-text message format. Errors are Validation
// faults: the input is structurally malformed, as opposed to a message
// that parses but fails verification.
func Parse(raw string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, core.NewFault(core.FaultValidation, "message too short", nil)
	}

	if !strings.HasSuffix(lines[0], headerSuffix) {
		return nil, core.NewFault(core.FaultValidation, "missing sign-in header", nil)
	}

	msg := &Message{
		Domain:  strings.TrimSuffix(lines[0], headerSuffix),
		Address: strings.TrimSpace(lines[1]),
	}
	if msg.Domain == "" {
		return nil, core.NewFault(core.FaultValidation, "empty domain", nil)
	}
	if !common.IsHexAddress(msg.Address) {
		return nil, core.NewFault(core.FaultValidation, "malformed address", core.ErrInvalidAddress)
	}

	// An optional statement sits between the address and the field block,
	// separated by blank lines.
	rest := lines[2:]
	for len(rest) > 0 && rest[0] == "" {
		rest = rest[1:]
	}
	if len(rest) > 0 && !strings.Contains(rest[0], ": ") {
		msg.Statement = rest[0]
		rest = rest[1:]
	}

	for _, line := range rest {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, core.NewFault(core.FaultValidation, fmt.Sprintf("malformed field line %q", line), nil)
		}
		if err := msg.setField(key, value); err != nil {
			return nil, err
		}
	}

	if msg.Nonce == "" {
		return nil, core.NewFault(core.FaultValidation, "missing nonce", nil)
	}
	if msg.Version == "" {
		return nil, core.NewFault(core.FaultValidation, "missing version", nil)
	}

	return msg, nil
}

func (m *Message) setField(key, value string) error {
	switch key {
	case "URI":
		m.URI = value
	case "Version":
		m.Version = value
	case "Chain ID":
		id, err := strconv.Atoi(value)
		if err != nil {
			return core.NewFault(core.FaultValidation, "malformed chain id", err)
		}
		m.ChainID = id
	case "Nonce":
		m.Nonce = value
	case "Issued At":
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return core.NewFault(core.FaultValidation, "malformed issued-at", err)
		}
		m.IssuedAt = ts
	case "Expiration Time":
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return core.NewFault(core.FaultValidation, "malformed expiration-time", err)
		}
		m.ExpirationTime = ts
	case "Not Before", "Request ID", "Resources":
		// Recognized but not enforced.
	default:
		return core.NewFault(core.FaultValidation, fmt.Sprintf("unknown field %q", key), nil)
	}
	return nil
}

// Format renders the message in the canonical EIP-4361 layout. Clients
// sign exactly these bytes.
func (m *Message) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n%s\n", m.Domain, headerSuffix, m.Address)
	if m.Statement != "" {
		fmt.Fprintf(&b, "\n%s\n", m.Statement)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339))
	if !m.ExpirationTime.IsZero() {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime.UTC().Format(time.RFC3339))
	}
	return b.String()
}

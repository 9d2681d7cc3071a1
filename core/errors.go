package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTicket    = errors.New("invalid ticket")
	ErrTicketExpired    = errors.New("ticket has expired")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrConnectionClosed = errors.New("connection closed")
)

// FaultKind classifies failures that cross a component boundary.
type FaultKind string

const (
	FaultValidation FaultKind = "validation"
	FaultUpstream   FaultKind = "upstream"
	FaultUnknown    FaultKind = "unknown"
)

// Fault is a tagged error variant: callers branch on Kind instead of
// inspecting error shapes at runtime.
type Fault struct {
	Kind   FaultKind
	Detail string
	Err    error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault wraps err with a kind and a short detail message.
func NewFault(kind FaultKind, detail string, err error) *Fault {
	return &Fault{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the FaultKind carried by err, or FaultUnknown.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultUnknown
}

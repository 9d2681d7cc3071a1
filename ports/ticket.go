package ports

// TicketIssuer mints and verifies short-lived realtime handshake tickets.
// A ticket proves that the presenting connection belongs to a session that
// completed signature verification for the embedded address.
type TicketIssuer interface {
	// Issue returns a ticket bound to the verified address.
	Issue(address string) (string, error)

	// Verify checks the ticket and returns the address it was bound to.
	Verify(ticket string) (string, error)
}

package types

// Event represents a typed event emitted while applying a ledger transaction.
// Sequence is assigned by the node when the event commits; it increases
// monotonically across the stream and lets consumers resume from a cursor.
type Event struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

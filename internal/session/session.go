// Package session provides in-memory conversation storage for the chat API.
//
// A session is an opaque UUID mapped to an append-only, ordered message
// history. The store is safe for concurrent use: operations on distinct
// sessions never block each other, and callers that need exclusive access
// to one session across a multi-step operation (read history, stream from
// the provider, append the reply) serialize through Serialize.
//
// The store is bounded: a configurable capacity evicts the least recently
// used session, and a configurable TTL expires idle sessions lazily on
// access. Both default to unlimited.
package session

import "errors"

// ErrNotFound indicates the requested session does not exist in the store.
// Expired and evicted sessions are indistinguishable from ones that never
// existed.
var ErrNotFound = errors.New("session not found")

// Role identifies the author of a message.
type Role string

// Message roles. The system persona is never stored in a session; it is
// synthesized on every provider call from the Dotprompt.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Messages are immutable once
// appended; insertion order is the conversation order sent back to the
// model on the next turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

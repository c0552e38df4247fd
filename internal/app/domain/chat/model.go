// Package chat defines the tutor conversation model.
package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one conversation turn. Messages are append-only; the only
// mutation is a bulk clear of a user's history.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// GetID implements storage.Record.
func (m Message) GetID() string { return m.ID }

// OwnerID implements storage.Record.
func (m Message) OwnerID() string { return m.UserID }

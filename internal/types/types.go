package types

import (
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Role         Role      `json:"role,omitempty"`
	Password     string    `json:"-"`
	LastSeenAt   time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Participant is a room member as presented to clients, annotated with
// live presence.
type Participant struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Online   bool   `json:"online"`
}

type Room struct {
	Id            int           `json:"id"`
	ExternalId    string        `json:"external_id"`
	Topic         string        `json:"topic"`
	Participants  []Participant `json:"participants,omitempty"`
	UnreadCount   int           `json:"unread_count"`
	LastMessageAt time.Time     `json:"last_message_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
}

type Message struct {
	Id         int         `json:"id"`
	RoomId     string      `json:"room_id"`
	SenderId   int         `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"kind"`
	Read       bool        `json:"read"`
	Timestamp  time.Time   `json:"timestamp"`
}

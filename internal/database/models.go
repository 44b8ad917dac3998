package database

import (
	"time"

	"github.com/smallcorp/deskchat/internal/types"
)

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	Role         types.Role
	LastSeenAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id            int
	ExternalId    string
	AdminId       int
	AdminName     string
	MemberId      int
	MemberName    string
	Topic         string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// IsParticipant reports whether the account is one of the room's two
// fixed participants.
func (r Room) IsParticipant(accountId int) bool {
	return r.AdminId == accountId || r.MemberId == accountId
}

// OtherParticipant returns the participant opposite the given account.
func (r Room) OtherParticipant(accountId int) int {
	if r.AdminId == accountId {
		return r.MemberId
	}
	return r.AdminId
}

type Message struct {
	Id        int
	RoomId    int
	SenderId  int
	Content   string
	Kind      types.MessageKind
	IsRead    bool
	IsDeleted bool
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	Role         types.Role
}

type CreateMessageParams struct {
	RoomId   int
	SenderId int
	Content  string
	Kind     types.MessageKind
}

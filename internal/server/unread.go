package server

import (
	"log"

	"github.com/smallcorp/deskchat/internal/database"
)

type mutationKind int

const (
	mutationSent mutationKind = iota
	mutationRead
	mutationDeleted
)

// unreadCoordinator recomputes unread counts from the store after each
// state-changing event and pushes them to live connections. Counts are
// never cached or incremented client-side, so they cannot drift.
type unreadCoordinator struct {
	db       database.DeskChatRepository
	presence *PresenceRegistry
	log      *log.Logger
}

// afterMutation pushes a fresh count to every online participant other
// than the actor. A read sweep also refreshes the reader's own devices,
// so a badge cleared on one device clears everywhere.
func (u *unreadCoordinator) afterMutation(r *Room, actorId int, kind mutationKind) {
	for _, userId := range r.participantIds() {
		if userId == actorId && kind != mutationRead {
			continue
		}

		clients := u.presence.ClientsFor(userId)
		if len(clients) == 0 {
			continue
		}

		count, err := u.db.UnreadCount(r.id, userId)
		if err != nil {
			u.log.Println("UnreadCount:", err)
			continue
		}

		note := &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Notification: &Notification{
				UnreadUpdate: &UnreadUpdate{RoomId: r.externalId, Count: count},
			},
		}
		for _, c := range clients {
			c.queueMessage(note)
		}
	}
}

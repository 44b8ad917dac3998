package server

import (
	"log"
	"sync"
	"time"

	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/types"
)

const (
	idleRoomTimeout = time.Minute * 5
	historyPageSize = 50
)

type exitReq struct {
	done chan struct{}
}

// typingState holds the most recent typing signal seen in the room. It
// is advisory only and never persisted.
type typingState struct {
	userId   int
	username string
	isTyping bool
}

// Room is the live counterpart of a durable two-party room: the set of
// connections currently subscribed plus the actor goroutine that
// serializes every event for the room, which is what gives publishes
// their per-room FIFO ordering.
type Room struct {
	id         int
	externalId string
	topic      string
	adminId    int
	adminName  string
	memberId   int
	memberName string

	cs            *ChatServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	clients       map[*Client]struct{}
	userMap       map[int]map[*Client]struct{}
	clientLock    sync.RWMutex
	lastTyping    *typingState
	log           *log.Logger
	// killTimer unloads the room once no connections remain subscribed
	killTimer *time.Timer
	exit      chan exitReq
}

func newRoom(dbRoom database.Room, cs *ChatServer) *Room {
	return &Room{
		id:            dbRoom.Id,
		externalId:    dbRoom.ExternalId,
		topic:         dbRoom.Topic,
		adminId:       dbRoom.AdminId,
		adminName:     dbRoom.AdminName,
		memberId:      dbRoom.MemberId,
		memberName:    dbRoom.MemberName,
		cs:            cs,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[int]map[*Client]struct{}),
		log:           cs.log,
		killTimer:     time.NewTimer(idleRoomTimeout),
		exit:          make(chan exitReq, 1),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			switch {
			case msg.Publish != nil:
				r.handlePublish(msg)
			case msg.Read != nil:
				r.handleRead(msg)
			case msg.Typing != nil:
				r.handleTyping(msg)
			case msg.Delete != nil:
				r.handleDelete(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) isParticipant(userId int) bool {
	return r.adminId == userId || r.memberId == userId
}

func (r *Room) participantIds() []int {
	return []int{r.adminId, r.memberId}
}

func (r *Room) participants() []types.Participant {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return []types.Participant{
		{Id: r.adminId, Username: r.adminName, Role: types.RoleAdmin, Online: r.cs.presence.IsOnline(r.adminId)},
		{Id: r.memberId, Username: r.memberName, Role: types.RoleMember, Online: r.cs.presence.IsOnline(r.memberId)},
	}
}

func (r *Room) usernameFor(userId int) string {
	if userId == r.adminId {
		return r.adminName
	}
	if userId == r.memberId {
		return r.memberName
	}
	return ""
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	if !r.isParticipant(c.user.Id) {
		r.log.Printf("user %q is not a participant of room %q", c.user.Username, r.externalId)
		c.queueMessage(ErrForbidden(join.Id))
		r.resetTimerIfEmpty()
		return
	}

	r.addClient(c)

	// read sweep: everything the other participant sent is now seen
	rows, err := r.cs.db.MarkRead(r.id, c.user.Id)
	if err != nil {
		r.log.Println("MarkRead:", err)
		c.queueMessage(ErrInternalError(join.Id))
		return
	}

	if rows > 0 {
		r.broadcast(&ServerMessage{
			Notification: &Notification{
				MessagesRead: &MessagesRead{RoomId: r.externalId, ReaderId: c.user.Id},
			},
			SkipUserId: c.user.Id,
		})
		r.cs.unread.afterMutation(r, c.user.Id, mutationRead)
	}

	history, err := r.recentMessages()
	if err != nil {
		r.log.Println("GetMessages:", err)
		c.queueMessage(ErrInternalError(join.Id))
		return
	}

	c.queueMessage(NoErrOK(join.Id, RoomInfo{
		Room: types.Room{
			Id:           r.id,
			ExternalId:   r.externalId,
			Topic:        r.topic,
			Participants: r.participants(),
		},
		Messages: history,
	}))
}

func (r *Room) recentMessages() ([]types.Message, error) {
	dbMsgs, err := r.cs.db.GetMessages(r.id, 0, historyPageSize)
	if err != nil {
		return nil, err
	}

	msgs := make([]types.Message, len(dbMsgs))
	for i, m := range dbMsgs {
		msgs[i] = types.Message{
			Id:         m.Id,
			RoomId:     r.externalId,
			SenderId:   m.SenderId,
			SenderName: r.usernameFor(m.SenderId),
			Content:    m.Content,
			Kind:       m.Kind,
			Read:       m.IsRead,
			Timestamp:  m.CreatedAt,
		}
	}
	return msgs, nil
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	r.removeClient(leaveMsg.client)

	if !leaveMsg.disconnect {
		leaveMsg.client.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}
}

func (r *Room) handlePublish(msg *ClientMessage) {
	if !r.isParticipant(msg.UserId) {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	dbMsg, err := r.cs.db.CreateMessage(database.CreateMessageParams{
		RoomId:   r.id,
		SenderId: msg.UserId,
		Content:  msg.Publish.Content,
		Kind:     msg.Publish.Kind,
	})
	if err != nil {
		r.log.Println("CreateMessage:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if err := r.cs.db.UpdateRoomOnMessage(r.id); err != nil {
		r.log.Println("UpdateRoomOnMessage:", err)
	}

	msg.client.queueMessage(NoErrAccepted(msg.Id))
	r.cs.stats.Incr("NumMessagesSent")

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Id: msg.Id},
		Message: &types.Message{
			Id:         dbMsg.Id,
			RoomId:     r.externalId,
			SenderId:   dbMsg.SenderId,
			SenderName: msg.client.user.Username,
			Content:    dbMsg.Content,
			Kind:       dbMsg.Kind,
			Timestamp:  dbMsg.CreatedAt,
		},
	})

	r.cs.unread.afterMutation(r, msg.UserId, mutationSent)
}

func (r *Room) handleRead(msg *ClientMessage) {
	rows, err := r.cs.db.MarkRead(r.id, msg.UserId)
	if err != nil {
		r.log.Println("MarkRead:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	if rows > 0 {
		r.broadcast(&ServerMessage{
			Notification: &Notification{
				MessagesRead: &MessagesRead{RoomId: r.externalId, ReaderId: msg.UserId},
			},
			SkipUserId: msg.UserId,
		})
		r.cs.unread.afterMutation(r, msg.UserId, mutationRead)
	}
}

// handleTyping relays the signal to every other participant's
// connections in the room. Nothing is persisted and no ack is sent;
// dropped signals are harmless.
func (r *Room) handleTyping(msg *ClientMessage) {
	r.lastTyping = &typingState{
		userId:   msg.UserId,
		username: msg.client.user.Username,
		isTyping: msg.Typing.IsTyping,
	}

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			Typing: &TypingNotification{
				RoomId:   r.externalId,
				UserId:   msg.UserId,
				Username: msg.client.user.Username,
				IsTyping: msg.Typing.IsTyping,
			},
		},
		SkipUserId: msg.UserId,
	})
}

// handleDelete flips the soft-delete flag on a message already loaded
// and sender-checked by the chat server, then notifies subscribers.
func (r *Room) handleDelete(msg *ClientMessage) {
	deleted, err := r.cs.db.SoftDeleteMessage(msg.Delete.MessageId, msg.UserId)
	if err != nil {
		r.log.Println("SoftDeleteMessage:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	// a second delete of the same message flips nothing and owes no
	// broadcast
	if !deleted {
		return
	}

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			MessageDeleted: &MessageDeleted{MessageId: msg.Delete.MessageId, RoomId: r.externalId},
		},
	})

	r.cs.unread.afterMutation(r, msg.UserId, mutationDeleted)
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.cs.unloadRoomChan <- r.externalId:
	default:
		r.log.Printf("unload channel full, retrying room %q later", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.externalId)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.externalId)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		close(e.done)
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Id] == nil {
		r.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Id][c] = struct{}{}

	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()

	if _, ok := r.clients[c]; !ok {
		r.clientLock.Unlock()
		return
	}

	delete(r.clients, c)
	c.delRoom(r.externalId)

	if userClients, ok := r.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Id)
		}
	}

	lastOfUser := r.userMap[c.user.Id] == nil
	empty := len(r.clients) == 0
	r.clientLock.Unlock()

	// clear a stuck typing indicator if the typer's last connection in
	// the room is gone
	if lastOfUser && r.lastTyping != nil && r.lastTyping.userId == c.user.Id && r.lastTyping.isTyping {
		r.lastTyping = &typingState{userId: c.user.Id, username: r.lastTyping.username}
		r.broadcast(&ServerMessage{
			Notification: &Notification{
				Typing: &TypingNotification{
					RoomId:   r.externalId,
					UserId:   c.user.Id,
					Username: r.usernameFor(c.user.Id),
					IsTyping: false,
				},
			},
			SkipUserId: c.user.Id,
		})
	}

	if empty {
		r.log.Printf("no clients in %q, starting kill timer", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) resetTimerIfEmpty() {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	if len(r.clients) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// broadcast delivers an event to every connection currently subscribed
// to the room. Delivery order matches the order broadcast is invoked
// from the room's actor loop.
func (r *Room) broadcast(msg *ServerMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = Now()
	}

	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}
		if msg.SkipUserId != 0 && client.user.Id == msg.SkipUserId {
			continue
		}

		client.queueMessage(msg)
	}
}

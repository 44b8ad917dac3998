package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/stats"
)

// ChatServer coordinates every inbound session event: it is the sole
// mutator of presence state and the only component that loads and
// unloads room actors.
type ChatServer struct {
	log            *log.Logger
	db             database.DeskChatRepository
	stats          stats.StatsProvider
	presence       *PresenceRegistry
	unread         *unreadCoordinator
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	deleteChan     chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.DeskChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	presence := NewPresenceRegistry()
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		presence:       presence,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		deleteChan:     make(chan *ClientMessage, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan string, 16),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	cs.unread = &unreadCoordinator{db: db, presence: presence, log: logger}

	for _, metric := range []string{"NumActiveClients", "NumOnlineUsers", "NumActiveRooms", "NumMessagesSent"} {
		sp.RegisterMetric(metric)
	}

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.removeClient(client)
		case joinMsg := <-cs.joinChan:
			cs.handleJoin(joinMsg)
		case delMsg := <-cs.deleteChan:
			cs.handleDelete(delMsg)
		case id := <-cs.unloadRoomChan:
			cs.unloadRoom(id)
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				done := make(chan struct{})
				r.exit <- exitReq{done: done}
				<-done
			}
			cs.rooms = make(map[string]*Room)

			close(cs.done)
			return
		}
	}
}

// RegisterClient hands a freshly authenticated connection to the
// coordinator loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// IsOnline reports whether a user currently holds at least one live
// connection.
func (cs *ChatServer) IsOnline(userId int) bool {
	return cs.presence.IsOnline(userId)
}

func (cs *ChatServer) addClient(c *Client) {
	cs.log.Printf("adding connection %s for %q", c.id, c.user.Username)

	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()
	cs.stats.Incr("NumActiveClients")

	wentOnline := cs.presence.Register(c.user.Id, c)

	if err := cs.db.UpdateLastSeen(c.user.Id); err != nil {
		cs.log.Println("UpdateLastSeen:", err)
	}

	// seed the new connection with the current online set
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Presence: &Presence{
				UserId:      c.user.Id,
				Online:      true,
				OnlineUsers: cs.presence.OnlineUsers(),
			},
		},
	})

	if wentOnline {
		cs.stats.Incr("NumOnlineUsers")
		cs.broadcastPresence(c.user.Id, true)
	}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.log.Printf("removing connection %s for %q", c.id, c.user.Username)

	cs.clientsLock.Lock()
	if _, ok := cs.clients[c]; !ok {
		// duplicate close signal
		cs.clientsLock.Unlock()
		return
	}
	delete(cs.clients, c)
	cs.clientsLock.Unlock()
	cs.stats.Decr("NumActiveClients")

	wentOffline := cs.presence.Unregister(c.user.Id, c)

	if err := cs.db.UpdateLastSeen(c.user.Id); err != nil {
		cs.log.Println("UpdateLastSeen:", err)
	}

	c.stopClient()

	if wentOffline {
		cs.stats.Decr("NumOnlineUsers")
		cs.broadcastPresence(c.user.Id, false)
	}
}

// broadcastPresence announces an online/offline edge to every live
// connection in the process.
func (cs *ChatServer) broadcastPresence(userId int, online bool) {
	note := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Presence: &Presence{
				UserId:      userId,
				Online:      online,
				OnlineUsers: cs.presence.OnlineUsers(),
			},
		},
	}

	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	for c := range cs.clients {
		c.queueMessage(note)
	}
}

func (cs *ChatServer) handleJoin(joinMsg *ClientMessage) {
	if room, ok := cs.rooms[joinMsg.Join.RoomId]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			cs.log.Printf("join channel full on room %q", room.externalId)
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	dbRoom, err := cs.db.GetRoomByExternalId(joinMsg.Join.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			joinMsg.client.queueMessage(ErrRoomNotFound(joinMsg.Id))
		} else {
			cs.log.Println("GetRoomByExternalId:", err)
			joinMsg.client.queueMessage(ErrInternalError(joinMsg.Id))
		}
		return
	}

	room := cs.loadRoom(dbRoom)
	room.joinChan <- joinMsg
}

// handleDelete resolves a delete request to its room and routes it
// through the room's actor so the deletion notice keeps its place in
// the room's event order. The requester does not need to be subscribed.
func (cs *ChatServer) handleDelete(delMsg *ClientMessage) {
	dbMsg, err := cs.db.GetMessageById(delMsg.Delete.MessageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			delMsg.client.queueMessage(ErrMessageNotFound(delMsg.Id))
		} else {
			cs.log.Println("GetMessageById:", err)
			delMsg.client.queueMessage(ErrInternalError(delMsg.Id))
		}
		return
	}

	if dbMsg.SenderId != delMsg.UserId {
		cs.log.Printf("user %d may not delete message %d", delMsg.UserId, dbMsg.Id)
		delMsg.client.queueMessage(ErrForbidden(delMsg.Id))
		return
	}

	dbRoom, err := cs.db.GetRoomById(dbMsg.RoomId)
	if err != nil {
		cs.log.Println("GetRoomById:", err)
		delMsg.client.queueMessage(ErrInternalError(delMsg.Id))
		return
	}

	room, ok := cs.rooms[dbRoom.ExternalId]
	if !ok {
		room = cs.loadRoom(dbRoom)
	}

	select {
	case room.clientMsgChan <- delMsg:
	default:
		cs.log.Printf("clientMsgChan full for room %q", room.externalId)
		delMsg.client.queueMessage(ErrServiceUnavailable(delMsg.Id))
	}
}

func (cs *ChatServer) loadRoom(dbRoom database.Room) *Room {
	room := newRoom(dbRoom, cs)
	cs.rooms[room.externalId] = room
	cs.stats.Incr("NumActiveRooms")
	go room.start()

	return room
}

func (cs *ChatServer) unloadRoom(roomId string) {
	r, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	cs.log.Printf("unloading room %q", r.externalId)
	delete(cs.rooms, roomId)
	cs.stats.Decr("NumActiveRooms")

	done := make(chan struct{})
	r.exit <- exitReq{done: done}
	<-done
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

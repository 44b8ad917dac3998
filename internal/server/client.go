package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smallcorp/deskchat/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live connection for a user. A user may hold several
// concurrently.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	rooms      map[string]*Room
	roomsLock  sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		id:         shortid.MustGenerate(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]*Room),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		c.joinRoom(msg)
	case msg.Leave != nil:
		c.sendToRoom(msg.Leave.RoomId, msg, roomChanLeave)
	case msg.Publish != nil:
		c.sendToRoom(msg.Publish.RoomId, msg, roomChanMsg)
	case msg.Read != nil:
		c.sendToRoom(msg.Read.RoomId, msg, roomChanMsg)
	case msg.Typing != nil:
		c.sendToRoom(msg.Typing.RoomId, msg, roomChanMsg)
	case msg.Delete != nil:
		c.deleteMessage(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

type roomChanKind int

const (
	roomChanMsg roomChanKind = iota
	roomChanLeave
)

// sendToRoom routes an event to a room this connection is subscribed to.
func (c *Client) sendToRoom(roomId string, msg *ClientMessage, kind roomChanKind) {
	r := c.getRoom(roomId)
	if r == nil {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	ch := r.clientMsgChan
	if kind == roomChanLeave {
		ch = r.leaveChan
	}

	select {
	case ch <- msg:
	default:
		c.log.Printf("room channel full for room %q", r.externalId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) joinRoom(msg *ClientMessage) {
	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) deleteMessage(msg *ClientMessage) {
	select {
	case c.chatServer.deleteChan <- msg:
	default:
		c.log.Printf("deleteChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.leaveAllRooms()
	c.chatServer.deRegisterChan <- c
	c.stopClient()
}

// leaveAllRooms unsubscribes the connection from every room it belongs
// to; O(subscribed-room-count).
func (c *Client) leaveAllRooms() {
	c.roomsLock.RLock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.roomsLock.RUnlock()

	for _, room := range rooms {
		room.leaveChan <- &ClientMessage{
			Leave:      &Leave{RoomId: room.externalId},
			UserId:     c.user.Id,
			client:     c,
			disconnect: true,
		}
	}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, id)
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.externalId] = r
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	return c.rooms[id]
}

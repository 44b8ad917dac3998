package server

import (
	"testing"
	"time"

	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/stats"
	"github.com/smallcorp/deskchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClient_queueMessage(t *testing.T) {
	cs := newTestChatServer(t, &database.MockDeskChatRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)

	msg := NoErrOK(1, nil)
	assert.True(t, c.queueMessage(msg), "expected message to be queued")
	assert.Equal(t, msg, <-c.send, "expected queued message on send channel")

	// a full channel drops the message instead of blocking
	c.send = make(chan *ServerMessage, 1)
	assert.True(t, c.queueMessage(msg), "expected first message to fit")
	assert.False(t, c.queueMessage(msg), "expected overflow message to be dropped")
}

func TestClient_dispatch(t *testing.T) {
	cs := newTestChatServer(t, &database.MockDeskChatRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)

	t.Run("join routes to the chat server", func(t *testing.T) {
		msg := &ClientMessage{BaseMessage: BaseMessage{Id: 1}, Join: &Join{RoomId: "room1"}, client: c}
		c.dispatch(msg)

		select {
		case got := <-cs.joinChan:
			assert.Equal(t, msg, got, "expected join to be forwarded to the chat server")
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected join on chat server join channel")
		}
	})

	t.Run("delete routes to the chat server", func(t *testing.T) {
		msg := &ClientMessage{BaseMessage: BaseMessage{Id: 2}, Delete: &Delete{MessageId: 5}, client: c}
		c.dispatch(msg)

		select {
		case got := <-cs.deleteChan:
			assert.Equal(t, msg, got, "expected delete to be forwarded to the chat server")
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected delete on chat server delete channel")
		}
	})

	t.Run("room events route to the subscribed room", func(t *testing.T) {
		room := newRoom(testDbRoom, cs)
		c.addRoom(room)
		defer c.delRoom(room.externalId)

		publish := &ClientMessage{BaseMessage: BaseMessage{Id: 3}, Publish: &Publish{RoomId: room.externalId, Content: "hi"}, client: c}
		c.dispatch(publish)

		select {
		case got := <-room.clientMsgChan:
			assert.Equal(t, publish, got, "expected publish to be forwarded to the room")
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected publish on room channel")
		}

		leave := &ClientMessage{BaseMessage: BaseMessage{Id: 4}, Leave: &Leave{RoomId: room.externalId}, client: c}
		c.dispatch(leave)

		select {
		case got := <-room.leaveChan:
			assert.Equal(t, leave, got, "expected leave to be forwarded to the room leave channel")
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected leave on room leave channel")
		}
	})

	t.Run("events for an unsubscribed room are rejected", func(t *testing.T) {
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 5}, Publish: &Publish{RoomId: "missing", Content: "hi"}, client: c})

		msg := nextMessage(t, c)
		assert.Equal(t, 404, msg.Response.ResponseCode, "expected room not found response")
	})

	t.Run("empty message is invalid", func(t *testing.T) {
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 6}, client: c})

		msg := nextMessage(t, c)
		assert.Equal(t, 400, msg.Response.ResponseCode, "expected invalid message response")
	})
}

func TestClient_roomBookkeeping(t *testing.T) {
	cs := newTestChatServer(t, &database.MockDeskChatRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)
	room := newRoom(testDbRoom, cs)

	assert.Nil(t, c.getRoom(room.externalId), "expected no room before subscribing")

	c.addRoom(room)
	assert.Equal(t, room, c.getRoom(room.externalId), "expected room after subscribing")

	c.delRoom(room.externalId)
	assert.Nil(t, c.getRoom(room.externalId), "expected no room after unsubscribing")
}

func TestClient_leaveAllRooms(t *testing.T) {
	cs := newTestChatServer(t, &database.MockDeskChatRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)

	room := newRoom(testDbRoom, cs)
	other := newRoom(database.Room{Id: 11, ExternalId: "room2", AdminId: 1, MemberId: 2}, cs)
	c.addRoom(room)
	c.addRoom(other)

	c.leaveAllRooms()

	for _, r := range []*Room{room, other} {
		select {
		case leave := <-r.leaveChan:
			assert.True(t, leave.disconnect, "expected teardown leave to be marked as a disconnect")
			assert.Equal(t, c, leave.client, "expected leave to carry the leaving client")
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("expected leave on room %q", r.externalId)
		}
	}
}

func TestClient_stopClient(t *testing.T) {
	cs := newTestChatServer(t, &database.MockDeskChatRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)

	c.stopClient()
	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}

	// second stop must not panic
	c.stopClient()
}

package server

import (
	"errors"
	"testing"

	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/stats"
	"github.com/smallcorp/deskchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUnreadCoordinator_afterMutation(t *testing.T) {
	t.Run("send pushes a fresh count to the online recipient only", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		db.On("UnreadCount", testDbRoom.Id, 2).Return(4, nil)
		defer db.AssertExpectations(t)

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		room := newRoom(testDbRoom, cs)

		sender := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)
		recipient := newTestClient(types.User{Id: 2, Username: "bob"}, cs, t)
		cs.presence.Register(1, sender)
		cs.presence.Register(2, recipient)

		cs.unread.afterMutation(room, 1, mutationSent)

		msg := nextMessage(t, recipient)
		assert.NotNil(t, msg.Notification.UnreadUpdate, "expected unread update for recipient")
		assert.Equal(t, room.externalId, msg.Notification.UnreadUpdate.RoomId, "expected room id in update")
		assert.Equal(t, 4, msg.Notification.UnreadUpdate.Count, "expected recomputed count")

		// the actor's own devices are untouched on a send
		assertNoMessage(t, sender)
		db.AssertNotCalled(t, "UnreadCount", testDbRoom.Id, 1)
	})

	t.Run("offline participants cost no store query", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		defer db.AssertExpectations(t)

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		room := newRoom(testDbRoom, cs)

		cs.unread.afterMutation(room, 1, mutationSent)

		db.AssertNotCalled(t, "UnreadCount", mock.Anything, mock.Anything)
	})

	t.Run("read sweep refreshes the reader's other devices too", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		db.On("UnreadCount", testDbRoom.Id, 1).Return(0, nil)
		defer db.AssertExpectations(t)

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		room := newRoom(testDbRoom, cs)

		readerLaptop := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)
		readerPhone := newTestClient(types.User{Id: 1, Username: "alice"}, cs, t)
		cs.presence.Register(1, readerLaptop)
		cs.presence.Register(1, readerPhone)

		cs.unread.afterMutation(room, 1, mutationRead)

		for _, c := range []*Client{readerLaptop, readerPhone} {
			msg := nextMessage(t, c)
			assert.NotNil(t, msg.Notification.UnreadUpdate, "expected unread update on every reader device")
			assert.Equal(t, 0, msg.Notification.UnreadUpdate.Count, "expected cleared badge after read sweep")
		}
	})

	t.Run("store errors are logged and skipped", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		db.On("UnreadCount", testDbRoom.Id, 2).Return(0, errors.New("db down"))
		defer db.AssertExpectations(t)

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		room := newRoom(testDbRoom, cs)

		recipient := newTestClient(types.User{Id: 2, Username: "bob"}, cs, t)
		cs.presence.Register(2, recipient)

		cs.unread.afterMutation(room, 1, mutationSent)

		assertNoMessage(t, recipient)
	})
}

func TestUnreadCoordinator_multiDeviceFanout(t *testing.T) {
	db := &database.MockDeskChatRepository{}
	db.On("UnreadCount", testDbRoom.Id, 2).Return(2, nil)
	defer db.AssertExpectations(t)

	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
	room := newRoom(testDbRoom, cs)

	laptop := newTestClient(types.User{Id: 2, Username: "bob"}, cs, t)
	phone := newTestClient(types.User{Id: 2, Username: "bob"}, cs, t)
	cs.presence.Register(2, laptop)
	cs.presence.Register(2, phone)

	cs.unread.afterMutation(room, 1, mutationSent)

	for _, c := range []*Client{laptop, phone} {
		msg := nextMessage(t, c)
		assert.Equal(t, 2, msg.Notification.UnreadUpdate.Count, "expected same count on every device")
	}

	// the count was computed once, not per device
	db.AssertNumberOfCalls(t, "UnreadCount", 1)
}

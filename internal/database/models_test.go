package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoom_IsParticipant(t *testing.T) {
	room := Room{Id: 10, AdminId: 1, MemberId: 2}

	assert.True(t, room.IsParticipant(1), "expected admin to be a participant")
	assert.True(t, room.IsParticipant(2), "expected member to be a participant")
	assert.False(t, room.IsParticipant(3), "expected outsider not to be a participant")
}

func TestRoom_OtherParticipant(t *testing.T) {
	room := Room{Id: 10, AdminId: 1, MemberId: 2}

	assert.Equal(t, 2, room.OtherParticipant(1), "expected member opposite the admin")
	assert.Equal(t, 1, room.OtherParticipant(2), "expected admin opposite the member")
}

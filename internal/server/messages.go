package server

import (
	"net/http"
	"time"

	"github.com/smallcorp/deskchat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Publish *Publish `json:"publish,omitempty"`
	Delete  *Delete  `json:"delete,omitempty"`
	Read    *Read    `json:"read,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`
	UserId  int      `json:"-"`
	client  *Client

	// disconnect marks a leave synthesized by connection teardown; no
	// response is owed to the client.
	disconnect bool
}

type Join struct {
	RoomId string `json:"room_id"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

type Publish struct {
	RoomId  string            `json:"room_id"`
	Content string            `json:"content"`
	Kind    types.MessageKind `json:"kind,omitempty"`
}

type Delete struct {
	MessageId int `json:"message_id"`
}

type Read struct {
	RoomId string `json:"room_id"`
}

type Typing struct {
	RoomId   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`

	// SkipClient suppresses delivery to a single connection, SkipUserId
	// to every connection of a user.
	SkipClient *Client `json:"-"`
	SkipUserId int     `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Presence       *Presence           `json:"presence,omitempty"`
	MessagesRead   *MessagesRead       `json:"messages_read,omitempty"`
	UnreadUpdate   *UnreadUpdate       `json:"unread_update,omitempty"`
	MessageDeleted *MessageDeleted     `json:"message_deleted,omitempty"`
	Typing         *TypingNotification `json:"typing,omitempty"`
}

type Presence struct {
	UserId      int   `json:"user_id"`
	Online      bool  `json:"online"`
	OnlineUsers []int `json:"online_users"`
}

type MessagesRead struct {
	RoomId   string `json:"room_id"`
	ReaderId int    `json:"reader_id"`
}

type UnreadUpdate struct {
	RoomId string `json:"room_id"`
	Count  int    `json:"count"`
}

type MessageDeleted struct {
	MessageId int    `json:"message_id"`
	RoomId    string `json:"room_id"`
}

type TypingNotification struct {
	RoomId   string `json:"room_id"`
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// RoomInfo is the payload of a successful join response.
type RoomInfo struct {
	Room     types.Room      `json:"room"`
	Messages []types.Message `json:"messages"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrMessageNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "message not found",
		},
	}
}

func ErrForbidden(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "forbidden",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/server"
	"github.com/smallcorp/deskchat/internal/types"
)

func (s *DeskChatApp) writeJson(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Println("write json:", err)
	}
}

func (s *DeskChatApp) roomToApi(dbRoom database.Room, forUserId int) (types.Room, error) {
	unread, err := s.db.UnreadCount(dbRoom.Id, forUserId)
	if err != nil {
		return types.Room{}, err
	}

	return types.Room{
		Id:         dbRoom.Id,
		ExternalId: dbRoom.ExternalId,
		Topic:      dbRoom.Topic,
		Participants: []types.Participant{
			{Id: dbRoom.AdminId, Username: dbRoom.AdminName, Role: types.RoleAdmin, Online: s.cs.IsOnline(dbRoom.AdminId)},
			{Id: dbRoom.MemberId, Username: dbRoom.MemberName, Role: types.RoleMember, Online: s.cs.IsOnline(dbRoom.MemberId)},
		},
		UnreadCount:   unread,
		LastMessageAt: dbRoom.LastMessageAt,
		CreatedAt:     dbRoom.CreatedAt,
	}, nil
}

// getRooms lists the caller's rooms with live presence and fresh unread
// counts, seeding the client's room list on login.
func (s *DeskChatApp) getRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRooms, err := s.db.ListRoomsForAccount(userId)
	if err != nil {
		s.log.Println("list rooms:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, dbRoom := range dbRooms {
		room, err := s.roomToApi(dbRoom, userId)
		if err != nil {
			s.log.Println("unread count:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		rooms = append(rooms, room)
	}

	s.writeJson(w, http.StatusOK, rooms)
}

type CreateRoomsRequest struct {
	MemberId int `json:"member_id"`
}

// createRooms provisions the operations/feedback room pair between the
// calling admin and a member.
func (s *DeskChatApp) createRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if account.Role != types.RoleAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateRoomsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MemberId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(req.MemberId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRooms, err := s.db.CreateRoomPair(userId, req.MemberId)
	if err != nil {
		s.log.Println("create room pair:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, dbRoom := range dbRooms {
		room, err := s.roomToApi(dbRoom, userId)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		rooms = append(rooms, room)
	}

	s.writeJson(w, http.StatusCreated, rooms)
}

func (s *DeskChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("room_id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !room.IsParticipant(userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var before, limit int

	beforeStr := r.URL.Query().Get("before")
	if beforeStr != "" {
		before, err = strconv.Atoi(beforeStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	messages, err := s.db.GetMessages(room.Id, before, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	nameFor := func(senderId int) string {
		if senderId == room.AdminId {
			return room.AdminName
		}
		return room.MemberName
	}

	userMessages := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		userMessages = append(userMessages, types.Message{
			Id:         msg.Id,
			RoomId:     room.ExternalId,
			SenderId:   msg.SenderId,
			SenderName: nameFor(msg.SenderId),
			Content:    msg.Content,
			Kind:       msg.Kind,
			Read:       msg.IsRead,
			Timestamp:  msg.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, userMessages)
}

// serveWs authenticates the handshake credential and upgrades the
// connection. The token may arrive as a query parameter or as the
// session cookie; a rejected credential closes the transport before any
// registration happens.
func (s *DeskChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		if tokenCookie, err := r.Cookie(tokenCookieKey); err == nil {
			tokenString = tokenCookie.Value
		}
	}

	if tokenString == "" {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	userId, err := s.extractUserIdFromToken(tokenString)
	if err != nil {
		s.log.Println("ws handshake:", err)
		errResp := NewUnauthorizedError()
		if errors.Is(err, ErrTokenExpired) {
			errResp = NewTokenExpiredError()
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.User{
		Id:           account.Id,
		Username:     account.Username,
		EmailAddress: account.EmailAddress,
		Role:         account.Role,
	}, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}

package database

import (
	"fmt"
	"time"

	"github.com/smallcorp/deskchat/internal/types"
	"github.com/teris-io/shortid"
)

const roomSelect = "SELECT r.id, r.external_id, r.admin_id, adm.username, r.member_id, mem.username, r.topic, r.last_message_at, r.created_at " +
	"FROM rooms r " +
	"JOIN accounts adm ON adm.id = r.admin_id " +
	"JOIN accounts mem ON mem.id = r.member_id "

func (db *PgDeskChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, role",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		params.Role,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Role,
	)

	return a, err
}

func (db *PgDeskChatRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, role, last_seen_at, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Role,
		&a.LastSeenAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDeskChatRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, role, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.Role,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDeskChatRepository) UpdateLastSeen(accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET last_seen_at = $2 WHERE id = $1",
		accountId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgDeskChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(roomSelect+"WHERE r.external_id = $1 LIMIT 1", externalId)
	return scanRoom(row)
}

func (db *PgDeskChatRepository) GetRoomById(roomId int) (Room, error) {
	row := db.conn.QueryRow(roomSelect+"WHERE r.id = $1 LIMIT 1", roomId)
	return scanRoom(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.AdminId,
		&room.AdminName,
		&room.MemberId,
		&room.MemberName,
		&room.Topic,
		&room.LastMessageAt,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgDeskChatRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	rows, err := db.conn.Query(
		roomSelect+"WHERE r.admin_id = $1 OR r.member_id = $1 ORDER BY r.last_message_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateRoomPair creates the fixed operations/feedback room pair between
// an admin and a member in a single transaction.
func (db *PgDeskChatRepository) CreateRoomPair(adminId, memberId int) ([]Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var ids []int
	for _, topic := range []string{"operations", "feedback"} {
		externalId, genErr := shortid.Generate()
		if genErr != nil {
			err = fmt.Errorf("generate room id: %w", genErr)
			return nil, err
		}

		var id int
		err = tx.QueryRow(
			"INSERT INTO rooms (external_id, admin_id, member_id, topic, last_message_at, created_at) "+
				"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id",
			externalId,
			adminId,
			memberId,
			topic,
			time.Now().UTC(),
		).Scan(&id)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	var rooms []Room
	for _, id := range ids {
		room, err := db.GetRoomById(id)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}

func (db *PgDeskChatRepository) UpdateRoomOnMessage(roomId int) error {
	_, err := db.conn.Exec(
		"UPDATE rooms SET last_message_at = $2 WHERE id = $1",
		roomId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgDeskChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	kind := params.Kind
	if kind == "" {
		kind = types.KindText
	}

	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, sender_id, content, kind, is_read, is_deleted, created_at) "+
			"VALUES ($1, $2, $3, $4, false, false, $5) "+
			"RETURNING id, room_id, sender_id, content, kind, is_read, is_deleted, created_at",
		params.RoomId,
		params.SenderId,
		params.Content,
		kind,
		time.Now().UTC(),
	)

	return scanMessage(res)
}

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.Content,
		&msg.Kind,
		&msg.IsRead,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgDeskChatRepository) GetMessageById(messageId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, sender_id, content, kind, is_read, is_deleted, created_at FROM messages "+
			"WHERE id = $1 LIMIT 1",
		messageId,
	)

	return scanMessage(row)
}

// GetMessages returns the newest non-deleted messages in a room, oldest
// first. A positive before value restricts results to messages with a
// smaller id, forming a simple backward cursor.
func (db *PgDeskChatRepository) GetMessages(roomId, before, limit int) ([]Message, error) {
	var upper = 1<<31 - 1
	if before > 0 {
		upper = before - 1
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, sender_id, content, kind, is_read, is_deleted, created_at FROM messages "+
			"WHERE room_id = $1 AND is_deleted = false AND id <= $2 ORDER BY id DESC LIMIT $3",
		roomId,
		upper,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead flips the read flag on every message in the room not authored
// by the reader and returns the number of rows affected.
func (db *PgDeskChatRepository) MarkRead(roomId, readerId int) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET is_read = true "+
			"WHERE room_id = $1 AND sender_id <> $2 AND is_read = false",
		roomId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// SoftDeleteMessage marks a message deleted if and only if the requester
// is its original sender and it is not already deleted.
func (db *PgDeskChatRepository) SoftDeleteMessage(messageId, senderId int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET is_deleted = true "+
			"WHERE id = $1 AND sender_id = $2 AND is_deleted = false",
		messageId,
		senderId,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (db *PgDeskChatRepository) UnreadCount(roomId, accountId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT count(id) FROM messages "+
			"WHERE room_id = $1 AND sender_id <> $2 AND is_read = false AND is_deleted = false",
		roomId,
		accountId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

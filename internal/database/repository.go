package database

type DeskChatRepository interface {
	Ping() error
	Close() error

	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	UpdateLastSeen(accountId int) error

	GetRoomByExternalId(externalId string) (Room, error)
	GetRoomById(roomId int) (Room, error)
	ListRoomsForAccount(accountId int) ([]Room, error)
	CreateRoomPair(adminId, memberId int) ([]Room, error)
	UpdateRoomOnMessage(roomId int) error

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(messageId int) (Message, error)
	GetMessages(roomId, before, limit int) ([]Message, error)
	MarkRead(roomId, readerId int) (int64, error)
	SoftDeleteMessage(messageId, senderId int) (bool, error)
	UnreadCount(roomId, accountId int) (int, error)
}

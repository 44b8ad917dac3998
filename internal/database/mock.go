package database

import (
	"github.com/stretchr/testify/mock"
)

type MockDeskChatRepository struct {
	mock.Mock
}

func (m *MockDeskChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockDeskChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockDeskChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDeskChatRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDeskChatRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDeskChatRepository) UpdateLastSeen(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockDeskChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDeskChatRepository) GetRoomById(roomId int) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDeskChatRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockDeskChatRepository) CreateRoomPair(adminId, memberId int) ([]Room, error) {
	args := m.Called(adminId, memberId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockDeskChatRepository) UpdateRoomOnMessage(roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockDeskChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockDeskChatRepository) GetMessageById(messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockDeskChatRepository) GetMessages(roomId, before, limit int) ([]Message, error) {
	args := m.Called(roomId, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockDeskChatRepository) MarkRead(roomId, readerId int) (int64, error) {
	args := m.Called(roomId, readerId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockDeskChatRepository) SoftDeleteMessage(messageId, senderId int) (bool, error) {
	args := m.Called(messageId, senderId)
	return args.Bool(0), args.Error(1)
}
func (m *MockDeskChatRepository) UnreadCount(roomId, accountId int) (int, error) {
	args := m.Called(roomId, accountId)
	return args.Int(0), args.Error(1)
}

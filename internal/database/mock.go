package database

import (
	"context"

	"github.com/npezzotti/go-duochat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(ctx context.Context, id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) ListAccounts(ctx context.Context, excludeId string) ([]User, error) {
	args := m.Called(excludeId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockChatRepository) SetOnline(ctx context.Context, id string, online bool) error {
	args := m.Called(id, online)
	return args.Error(0)
}
func (m *MockChatRepository) AppendMessage(ctx context.Context, params AppendMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetHistory(ctx context.Context, userA, userB string) ([]Message, error) {
	args := m.Called(userA, userB)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) UpdateMessageStatus(ctx context.Context, id string, status types.Status) (Message, bool, error) {
	args := m.Called(id, status)
	return args.Get(0).(Message), args.Bool(1), args.Error(2)
}
func (m *MockChatRepository) MarkAllSeen(ctx context.Context, from, to string) (int64, error) {
	args := m.Called(from, to)
	return args.Get(0).(int64), args.Error(1)
}

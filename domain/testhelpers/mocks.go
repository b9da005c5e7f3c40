package testhelpers

import (
	"context"

	"cybot/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockConfigStore is a mock implementation of ConfigStore
type MockConfigStore struct {
	mock.Mock
}

func (m *MockConfigStore) Load(ctx context.Context, guildID string) (*entities.GuildConfig, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GuildConfig), args.Error(1)
}

func (m *MockConfigStore) Save(ctx context.Context, cfg *entities.GuildConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockRoomWatcher is a mock implementation of RoomWatcher
type MockRoomWatcher struct {
	mock.Mock
}

func (m *MockRoomWatcher) Info(ctx context.Context, room string) (*entities.RoomInfo, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RoomInfo), args.Error(1)
}

func (m *MockRoomWatcher) Watch(ctx context.Context, room string, onChange func(*entities.RoomInfo)) error {
	args := m.Called(ctx, room, onChange)
	return args.Error(0)
}

func (m *MockRoomWatcher) Unwatch(room string) {
	m.Called(room)
}

func (m *MockRoomWatcher) Close() {
	m.Called()
}

// MockJokeFetcher is a mock implementation of JokeFetcher
type MockJokeFetcher struct {
	mock.Mock
}

func (m *MockJokeFetcher) Random(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

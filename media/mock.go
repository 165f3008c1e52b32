package media

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) (ObjectInfo, error) {
	args := m.Called(ctx, key, data, size, contentType)
	return args.Get(0).(ObjectInfo), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	args := m.Called(ctx, key)
	body, _ := args.Get(0).(io.ReadCloser)
	return body, args.Get(1).(ObjectInfo), args.Error(2)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	objects, _ := args.Get(0).([]ObjectInfo)
	return objects, args.Error(1)
}

package mocks

import (
	"bytes"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
)

var _ storage.FileStorage = (*MockFileStorage)(nil)

// MockFileStorage implements storage.FileStorage
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Save(teamID uint, filename string, content io.Reader) (string, error) {
	args := m.Called(teamID, filename, content)
	return args.String(0), args.Error(1)
}

func (m *MockFileStorage) Get(filePath string) (io.ReadCloser, error) {
	args := m.Called(filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockFileStorage) Delete(filePath string) error {
	return m.Called(filePath).Error(0)
}

// StoredFile returns a reader for Get expectations, e.g.
// On("Get", key).Return(mocks.StoredFile("%PDF-1.4"), nil)
func StoredFile(content string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte(content)))
}

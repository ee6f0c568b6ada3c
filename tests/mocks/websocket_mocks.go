package mocks

import (
	"sync"

	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

// NotificationRecord records an event published through the mock notifier
type NotificationRecord struct {
	TeamID     uint
	NewMessage *websocket.NewMessagePayload
	Classified *websocket.ThreadClassifiedPayload
}

// MockNotifier records ingestion and classification broadcasts. It
// satisfies both ingest.Notifier and classifier.Notifier.
type MockNotifier struct {
	mu            sync.Mutex
	notifications []NotificationRecord
}

// NewMockNotifier creates a new MockNotifier instance
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// BroadcastNewMessage records a new_message event
func (m *MockNotifier) BroadcastNewMessage(teamID uint, payload *websocket.NewMessagePayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, NotificationRecord{TeamID: teamID, NewMessage: payload})
}

// BroadcastThreadClassified records a thread_classified event
func (m *MockNotifier) BroadcastThreadClassified(teamID uint, payload *websocket.ThreadClassifiedPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, NotificationRecord{TeamID: teamID, Classified: payload})
}

// GetNotifications returns a copy of all recorded events
func (m *MockNotifier) GetNotifications() []NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NotificationRecord(nil), m.notifications...)
}

// ClearNotifications clears all recorded events
func (m *MockNotifier) ClearNotifications() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = nil
}

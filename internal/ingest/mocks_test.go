package ingest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/welldanyogia/webrana-inbox-backend/internal/classifier"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

type mockTeamLookup struct {
	mock.Mock
}

func (m *mockTeamLookup) GetByDomain(ctx context.Context, domain string) (*models.Team, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

type mockMessageFinder struct {
	mock.Mock
}

func (m *mockMessageFinder) FindByMessageID(ctx context.Context, teamID uint, messageID string) (*models.Message, error) {
	args := m.Called(ctx, teamID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// staticTeams resolves domains from a fixed map
type staticTeams map[string]*models.Team

func (s staticTeams) GetByDomain(ctx context.Context, domain string) (*models.Team, error) {
	if team, ok := s[domain]; ok {
		return team, nil
	}
	return nil, errNotFound
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []classifier.Job
}

func (d *recordingDispatcher) Dispatch(job classifier.Job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return true
}

func (d *recordingDispatcher) Jobs() []classifier.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]classifier.Job{}, d.jobs...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*websocket.NewMessagePayload
}

func (n *recordingNotifier) BroadcastNewMessage(teamID uint, payload *websocket.NewMessagePayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, payload)
}

func (n *recordingNotifier) Events() []*websocket.NewMessagePayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*websocket.NewMessagePayload{}, n.events...)
}

package classifier

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, content string) (*models.Classification, error) {
	args := m.Called(ctx, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Classification), args.Error(1)
}

type mockThreads struct {
	mock.Mock
}

func (m *mockThreads) UpdateClassification(ctx context.Context, id uint, c models.Classification, at time.Time) error {
	return m.Called(ctx, id, c, at).Error(0)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*websocket.ThreadClassifiedPayload
}

func (n *recordingNotifier) BroadcastThreadClassified(teamID uint, payload *websocket.ThreadClassifiedPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, payload)
}

// panicClassifier panics on content "boom"
type panicClassifier struct {
	calls atomic.Int32
}

func (p *panicClassifier) Classify(ctx context.Context, content string) (*models.Classification, error) {
	p.calls.Add(1)
	if content == "boom" {
		panic("classifier exploded")
	}
	return &models.Classification{Category: "general", Priority: models.PriorityLow, Confidence: 0.5}, nil
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

var fixedNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestDispatcher(c Classifier, threads ThreadUpdater, opts ...DispatcherOption) *Dispatcher {
	opts = append([]DispatcherOption{WithDispatcherClock(func() time.Time { return fixedNow })}, opts...)
	return NewDispatcher(c, threads, DispatcherConfig{Workers: 1, QueueSize: 4, Policy: fastPolicy()}, opts...)
}

func TestDispatcher_Handle_StoresClassification(t *testing.T) {
	c := new(mockClassifier)
	threads := new(mockThreads)
	notifier := &recordingNotifier{}
	verdict := &models.Classification{Category: "billing", Priority: models.PriorityUrgent, Confidence: 0.93}

	c.On("Classify", mock.Anything, "refund please").Return(verdict, nil).Once()
	threads.On("UpdateClassification", mock.Anything, uint(42), *verdict, fixedNow).Return(nil).Once()

	d := newTestDispatcher(c, threads, WithDispatcherNotifier(notifier))
	err := d.Handle(context.Background(), Job{TeamID: 1, ThreadID: 42, MessageID: 7, Content: "refund please"})

	require.NoError(t, err)
	c.AssertExpectations(t)
	threads.AssertExpectations(t)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, uint(42), notifier.events[0].ThreadID)
	assert.Equal(t, "urgent", notifier.events[0].Priority)
}

func TestDispatcher_Handle_RetriesTransientFailures(t *testing.T) {
	c := new(mockClassifier)
	threads := new(mockThreads)
	verdict := &models.Classification{Category: "support", Priority: models.PriorityNormal, Confidence: 0.6}

	c.On("Classify", mock.Anything, "hi").
		Return(nil, &apperrors.ClassificationError{StatusCode: 503, Retryable: true, Err: errors.New("busy")}).Twice()
	c.On("Classify", mock.Anything, "hi").Return(verdict, nil).Once()
	threads.On("UpdateClassification", mock.Anything, uint(1), *verdict, fixedNow).Return(nil).Once()

	d := newTestDispatcher(c, threads)
	require.NoError(t, d.Handle(context.Background(), Job{ThreadID: 1, Content: "hi"}))

	c.AssertNumberOfCalls(t, "Classify", 3)
	threads.AssertExpectations(t)
}

func TestDispatcher_Handle_PermanentFailureLeavesThreadUntouched(t *testing.T) {
	c := new(mockClassifier)
	threads := new(mockThreads)

	c.On("Classify", mock.Anything, "hi").
		Return(nil, &apperrors.ClassificationError{StatusCode: 401, Err: errors.New("unauthorized")}).Once()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	d := newTestDispatcher(c, threads, WithDispatcherMetrics(m))
	err := d.Handle(context.Background(), Job{ThreadID: 1, Content: "hi"})

	require.Error(t, err)
	c.AssertNumberOfCalls(t, "Classify", 1)
	threads.AssertNotCalled(t, "UpdateClassification", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, scrape(t, m), `inbox_classifications_total{result="failed"} 1`)
}

func TestDispatcher_Handle_EmptyContentSkipped(t *testing.T) {
	c := new(mockClassifier)
	threads := new(mockThreads)

	d := newTestDispatcher(c, threads)
	require.NoError(t, d.Handle(context.Background(), Job{ThreadID: 1}))

	c.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestDispatcher_PanicIsolatedToJob(t *testing.T) {
	pc := &panicClassifier{}
	threads := new(mockThreads)
	threads.On("UpdateClassification", mock.Anything, uint(2), mock.Anything, fixedNow).Return(nil).Once()

	d := newTestDispatcher(pc, threads)
	d.Start()

	assert.True(t, d.Dispatch(Job{ThreadID: 1, Content: "boom"}))
	assert.True(t, d.Dispatch(Job{ThreadID: 2, Content: "fine"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, int32(2), pc.calls.Load())
	threads.AssertExpectations(t)
}

func TestDispatcher_DispatchDropsWhenQueueFull(t *testing.T) {
	c := new(mockClassifier)
	threads := new(mockThreads)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	// not started, so nothing drains the queue
	d := newTestDispatcher(c, threads, WithDispatcherMetrics(m))

	for i := 0; i < 4; i++ {
		require.True(t, d.Dispatch(Job{ThreadID: uint(i + 1), Content: "x"}))
	}
	assert.False(t, d.Dispatch(Job{ThreadID: 99, Content: "x"}))
	assert.Contains(t, scrape(t, m), "inbox_classification_dropped_total 1")
}

func TestDispatcher_DispatchAfterStopRejected(t *testing.T) {
	d := newTestDispatcher(new(mockClassifier), new(mockThreads))
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.False(t, d.Dispatch(Job{ThreadID: 1, Content: "x"}))
	// second stop is a no-op
	assert.NoError(t, d.Stop(context.Background()))
}

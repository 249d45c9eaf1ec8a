package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/internal/job"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRagService tracks which jobs reached the pipeline.
type MockRagService struct {
	ProcessedCount int32
	IngestedCount  int32
	OnProcess      func(j jobModel.Job) jobModel.Job
}

func (m *MockRagService) ProcessRequest(ctx context.Context, j jobModel.Job, hist []string) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	if m.OnProcess != nil {
		return m.OnProcess(j)
	}
	j.JobPayload.Answer = "answer"
	return j
}

func (m *MockRagService) IngestDocument(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.IngestedCount, 1)
	j.JobPayload.IngestDocId = "doc-1"
	return j
}

type MockJobStore struct {
	mu    sync.Mutex
	saved []jobModel.Job
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].Id == jobId {
			return m.saved[i], true
		}
	}
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, j)
	return nil
}

// MockMessageStore handles chat history
type MockMessageStore struct {
	saves int32
}

func (m *MockMessageStore) ValidateChatId(ctx context.Context, id string) bool { return true }

func (m *MockMessageStore) InitNewChat(ctx context.Context, id string) error { return nil }

func (m *MockMessageStore) GetMessageHistory(ctx context.Context, id string) (error, []string) {
	return nil, []string{}
}

func (m *MockMessageStore) TrySaveChat(ctx context.Context, id string, p jobModel.JobPayload) error {
	atomic.AddInt32(&m.saves, 1)
	return nil
}

func TestWorkerPool_Flow(t *testing.T) {
	store := &MockJobStore{}
	messages := &MockMessageStore{}
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          store,
		MessageStore:      messages,
	}
	mockRag := &MockRagService{
		OnProcess: func(j jobModel.Job) jobModel.Job {
			if j.Id == "fails" {
				j.Status = jobModel.JobStatusError
			}
			return j
		},
	}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag)
	InitWorkerPool(stopChan, wg)
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true

		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&currentWorkerCount) >= 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Worker processes a query job", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "query-1", JobType: jobModel.JobTypeQuery}

		assert.Eventually(t, func() bool {
			j, ok := store.GetJob(context.Background(), "query-1")
			return ok && j.Status == jobModel.JobStatusComplete
		}, time.Second, 10*time.Millisecond)
		assert.EqualValues(t, 1, atomic.LoadInt32(&messages.saves))
	})

	t.Run("Failed job keeps its error status", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "fails", JobType: jobModel.JobTypeQuery}

		assert.Eventually(t, func() bool {
			j, ok := store.GetJob(context.Background(), "fails")
			return ok && j.Status == jobModel.JobStatusError
		}, time.Second, 10*time.Millisecond)
		assert.EqualValues(t, 1, atomic.LoadInt32(&messages.saves), "failed answers are not stored as history")
	})

	t.Run("Worker ingests an upload", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "ingest-1", JobType: jobModel.JobTypeIngest}

		assert.Eventually(t, func() bool {
			j, ok := store.GetJob(context.Background(), "ingest-1")
			return ok && j.Status == jobModel.JobStatusComplete && j.JobPayload.IngestDocId == "doc-1"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the idle timeout")
	}
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 2)
	defer atomic.StoreInt64(&minWorkerCount, config.MinWorkerCount)
	logger = logger_i.NewLogger("TestWorkerPool")
	jobSvc := &job.Service{
		JobChannel: make(chan jobModel.Job),
	}
	InitServices(jobSvc, &MockRagService{})

	wg := &sync.WaitGroup{}
	workerWaitGroup = wg
	stopWorkerChannel = make(chan bool)

	createWorker()
	time.Sleep(config.IdleWorkerTimeout + 100*time.Millisecond)

	require.Zero(t, atomic.LoadInt64(&currentWorkerCount), "worker should have retired after the idle timeout")
}

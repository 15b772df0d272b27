package jobs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/faqline/faqline/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDecisionLogStore is a mock implementation of DecisionLogStore
type MockDecisionLogStore struct {
	mock.Mock
}

func (m *MockDecisionLogStore) ListUnarchived(ctx context.Context, limit int) ([]repository.DecisionRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.DecisionRecord), args.Error(1)
}

func (m *MockDecisionLogStore) MarkArchived(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// MockObjectStore is a mock implementation of ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

func decisionRecords() []repository.DecisionRecord {
	created := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	return []repository.DecisionRecord{
		{
			ID:        "rec-1",
			TenantID:  "tenant-1",
			QueryHash: "abc",
			Branch:    "fact_hit",
			TopScore:  0.9,
			LatencyMS: 42,
			CreatedAt: created,
		},
		{
			ID:        "rec-2",
			TenantID:  "tenant-1",
			QueryHash: "def",
			Branch:    "fact_miss",
			CreatedAt: created.Add(time.Second),
		},
	}
}

func TestArchiveWorker_ProcessJobs(t *testing.T) {
	logs := new(MockDecisionLogStore)
	store := new(MockObjectStore)

	logs.On("ListUnarchived", mock.Anything, archiveBatchSize).Return(decisionRecords(), nil)

	var uploadedKey string
	var uploadedBody []byte
	store.On("PutObject", mock.Anything, mock.Anything, "application/x-ndjson", mock.Anything).
		Run(func(args mock.Arguments) {
			uploadedKey = args.String(1)
			uploadedBody = args.Get(3).([]byte)
		}).Return(nil)
	logs.On("MarkArchived", mock.Anything, []string{"rec-1", "rec-2"}).Return(nil)

	w := NewArchiveWorker(logs, store)
	w.now = func() time.Time { return time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC) }

	err := w.ProcessJobs(context.Background())
	require.NoError(t, err)

	assert.Contains(t, uploadedKey, "decisions/2026-08-24/batch-")
	assert.Contains(t, uploadedKey, ".jsonl")

	// One JSON object per line.
	scanner := bufio.NewScanner(bytes.NewReader(uploadedBody))
	var lines []map[string]interface{}
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "rec-1", lines[0]["id"])
	assert.Equal(t, "fact_hit", lines[0]["branch"])
	assert.Equal(t, "2026-08-24T10:30:00Z", lines[0]["created_at"])
	assert.Equal(t, "rec-2", lines[1]["id"])

	logs.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestArchiveWorker_ProcessJobs_NothingToArchive(t *testing.T) {
	logs := new(MockDecisionLogStore)
	store := new(MockObjectStore)

	logs.On("ListUnarchived", mock.Anything, archiveBatchSize).Return([]repository.DecisionRecord{}, nil)

	w := NewArchiveWorker(logs, store)
	err := w.ProcessJobs(context.Background())

	assert.NoError(t, err)
	store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestArchiveWorker_ProcessJobs_UploadFailureLeavesRows checks that a failed
// upload does not stamp any row, so the batch is retried next cycle.
func TestArchiveWorker_ProcessJobs_UploadFailureLeavesRows(t *testing.T) {
	logs := new(MockDecisionLogStore)
	store := new(MockObjectStore)

	logs.On("ListUnarchived", mock.Anything, archiveBatchSize).Return(decisionRecords(), nil)
	store.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket unreachable"))

	w := NewArchiveWorker(logs, store)
	err := w.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload archive batch")
	logs.AssertNotCalled(t, "MarkArchived", mock.Anything, mock.Anything)
}

func TestArchiveWorker_ProcessJobs_ListError(t *testing.T) {
	logs := new(MockDecisionLogStore)
	store := new(MockObjectStore)

	logs.On("ListUnarchived", mock.Anything, archiveBatchSize).Return(nil, errors.New("database error"))

	w := NewArchiveWorker(logs, store)
	err := w.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list unarchived decisions")
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/adverant/nexus/passport-worker/internal/errors"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/processor"
)

type statusUpdate struct {
	jobID    string
	status   string
	metadata map[string]interface{}
}

type fakeProcessor struct {
	mu       sync.Mutex
	err      error
	requests []*processor.ProcessRequest
	updates  []statusUpdate
	deadline bool
}

func (f *fakeProcessor) ProcessPassport(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &processor.ProcessResult{JobID: req.JobID, Status: processor.StatusExtracted, RecordID: "r1"}, nil
}

func (f *fakeProcessor) UpdateJobStatus(_ context.Context, jobID, status string, metadata map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{jobID, status, metadata})
	return nil
}

func testConsumer(proc processor.PassportProcessorInterface) *Consumer {
	return &Consumer{
		processor: proc,
		config:    &ConsumerConfig{QueueName: DefaultQueueName, ProcessingTimeout: 1000},
		logger:    logging.Nop(),
	}
}

func task(t *testing.T, payload *JobPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeExtract, data)
}

func TestHandleExtractPassport_Success(t *testing.T) {
	proc := &fakeProcessor{}
	c := testConsumer(proc)

	err := c.handleExtractPassport(context.Background(), task(t, &JobPayload{
		JobID:      "11111111-1111-1111-1111-111111111111",
		Filename:   "scan.jpg",
		FileBuffer: []byte{0xff, 0xd8, 0xff},
	}))
	require.NoError(t, err)

	require.Len(t, proc.requests, 1)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, proc.requests[0].FileBuffer)
	assert.True(t, proc.deadline, "processing runs under the job timeout")
	require.Len(t, proc.updates, 1)
	assert.Equal(t, processor.StatusProcessing, proc.updates[0].status)
}

func TestHandleExtractPassport_NonRetriableSkipsRetry(t *testing.T) {
	proc := &fakeProcessor{err: perrors.NewUnsupportedFormatError("j", "application/pdf")}
	c := testConsumer(proc)

	err := c.handleExtractPassport(context.Background(), task(t, &JobPayload{JobID: "j", FilePath: "/tmp/a.pdf"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	require.Len(t, proc.updates, 2)
	assert.Equal(t, processor.StatusFailed, proc.updates[1].status)
	assert.Equal(t, "UNSUPPORTED_FORMAT", proc.updates[1].metadata["error_code"])
}

func TestHandleExtractPassport_RetriableIsRetried(t *testing.T) {
	proc := &fakeProcessor{err: perrors.NewStorageFailedError("j", errors.New("down"))}
	c := testConsumer(proc)

	err := c.handleExtractPassport(context.Background(), task(t, &JobPayload{JobID: "j", FilePath: "/tmp/a.jpg"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.True(t, perrors.Is(err, perrors.ErrorStorageFailed))
	assert.Len(t, proc.updates, 1, "no failed status while retries remain")
}

func TestHandleExtractPassport_BadPayload(t *testing.T) {
	proc := &fakeProcessor{}
	c := testConsumer(proc)

	err := c.handleExtractPassport(context.Background(), asynq.NewTask(TaskTypeExtract, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = c.handleExtractPassport(context.Background(), task(t, &JobPayload{JobID: "j"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry), "a job without an image is never retried")
	assert.Empty(t, proc.requests)
}

func TestAsynqLogger(t *testing.T) {
	var buf safeBuffer
	l := logging.NewLogger("asynq")
	l.SetOutput(&buf)
	l.SetLevel(logging.LevelDebug)

	al := &asynqLogger{logger: l}
	al.Info("server ", "started")
	al.Warn("slow")
	assert.Contains(t, buf.String(), "[INFO] server started")
	assert.Contains(t, buf.String(), "[WARN] slow")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

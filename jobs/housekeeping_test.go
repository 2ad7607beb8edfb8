package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/leavedesk/leavedesk/internal/jobs"
	"github.com/leavedesk/leavedesk/jobs"
	_ "github.com/leavedesk/leavedesk/testing"
)

type fakeSessions struct {
	n   int64
	err error
}

func (f *fakeSessions) PurgeExpiredSessions(context.Context) (int64, error) { return f.n, f.err }

type fakeKeys struct {
	n         int64
	retention time.Duration
}

func (f *fakeKeys) Purge(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return f.n, nil
}

func TestHousekeepingHandle(t *testing.T) {
	keys := &fakeKeys{n: 4}
	job := jobs.NewHousekeepingJob(&fakeSessions{n: 2}, keys, 24*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := jobs.NewHousekeepingTask(jobs.HousekeepingPayload{})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskHousekeeping, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 24*time.Hour, keys.retention)

	body, err := json.Marshal(jobs.HousekeepingPayload{IdempotencyRetention: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskHousekeeping, body)))
	assert.Equal(t, time.Hour, keys.retention)
}

func TestHousekeepingContinuesAfterFailure(t *testing.T) {
	keys := &fakeKeys{}
	boom := errors.New("db down")
	job := jobs.NewHousekeepingJob(&fakeSessions{err: boom}, keys, time.Hour, nil, nil)

	err := job.Run(context.Background(), jobs.HousekeepingPayload{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, time.Hour, keys.retention, "key purge still ran")
}

func TestHousekeepingRejectsMalformedPayload(t *testing.T) {
	job := jobs.NewHousekeepingJob(&fakeSessions{}, &fakeKeys{}, time.Hour, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskHousekeeping, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestJobsHealth(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3}}, nil).MountRoutes)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3}`, res.Body.String())

	r = chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Retry: 2, Paused: true}}, nil).MountRoutes)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.JSONEq(t, `{"queue":"default","pending":0,"retry":2,"paused":true}`, res.Body.String())

	r = chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(fakeInspector{err: errors.New("redis down")}, nil).MountRoutes)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestNewWorkerRequiresHousekeeping(t *testing.T) {
	_, err := jobs.NewWorker(jobs.WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	require.Error(t, err)
}

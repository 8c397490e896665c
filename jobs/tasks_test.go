package jobs

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
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/agrohub/agrohub/internal/jobs"
)

type fakeStore struct {
	open       map[int64]bool
	backfilled []HRTask
	err        error
	notifiedAt time.Time
}

func (f *fakeStore) MarkNotified(_ context.Context, taskID int64, at time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if !f.open[taskID] {
		return false, nil
	}
	f.open[taskID] = false
	f.notifiedAt = at
	return true, nil
}

func (f *fakeStore) BackfillPaid(context.Context) ([]HRTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.backfilled, nil
}

func newJobs(store HRTaskStore) *HRTaskJobs {
	j := NewHRTaskJobs(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	j.clock = func() time.Time { return time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC) }
	return j
}

func TestHandleNotifyMarksTaskOnce(t *testing.T) {
	store := &fakeStore{open: map[int64]bool{11: true}}
	j := newJobs(store)
	task, err := NewHRTaskNotifyTask(HRTaskNotifyPayload{TaskID: 11, IncidentID: 7, Amount: 50})
	require.NoError(t, err)
	require.Equal(t, TaskHRTaskNotify, task.Type())

	require.NoError(t, j.HandleNotify(context.Background(), task))
	require.False(t, store.open[11])
	require.Equal(t, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), store.notifiedAt)

	// A redelivered task is a no-op.
	require.NoError(t, j.HandleNotify(context.Background(), task))
}

func TestHandleNotifySkipsBadPayload(t *testing.T) {
	j := newJobs(&fakeStore{})
	err := j.HandleNotify(context.Background(), asynq.NewTask(TaskHRTaskNotify, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(HRTaskNotifyPayload{})
	err = j.HandleNotify(context.Background(), asynq.NewTask(TaskHRTaskNotify, payload))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleNotifyPropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	j := newJobs(&fakeStore{err: boom})
	task, _ := NewHRTaskNotifyTask(HRTaskNotifyPayload{TaskID: 1})
	require.ErrorIs(t, j.HandleNotify(context.Background(), task), boom)
}

func TestHandleReconcile(t *testing.T) {
	store := &fakeStore{backfilled: []HRTask{{ID: 3, IncidentID: 9, Title: HRTaskTitle(9), Amount: 50}}}
	j := newJobs(store)
	require.NoError(t, j.HandleReconcile(context.Background(), NewHRTaskReconcileTask()))
	require.Equal(t, "Pay bonus for incident #9", HRTaskTitle(9))
}

func TestHRTaskHandlersRegistersBoth(t *testing.T) {
	handlers := HRTaskHandlers(newJobs(&fakeStore{}))
	require.Len(t, handlers, 2)
	require.Equal(t, TaskHRTaskNotify, handlers[0].Type)
	require.Equal(t, TaskHRTaskReconcile, handlers[1].Type)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"success":true,"data":{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0,"paused":false}}`, rr.Body.String())
}

func TestNewWorkerRejectsIncompleteRegistrations(t *testing.T) {
	opts := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}

	_, err := NewWorker(WorkerConfig{RedisOpts: opts, Handlers: []TaskHandler{{Type: TaskHRTaskNotify}}})
	require.Error(t, err)

	_, err = NewWorker(WorkerConfig{RedisOpts: opts, Cron: []CronRegistration{{Spec: ReconcileSpec}}})
	require.Error(t, err)
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(asynq.RedisClientOpt{})
	require.Error(t, err)
}

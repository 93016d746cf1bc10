package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
	"github.com/proerror77/Nova-sub006/services/notification/internal/channel"
	channelmock "github.com/proerror77/Nova-sub006/services/notification/internal/channel/mock"
	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
	"github.com/proerror77/Nova-sub006/services/notification/internal/provider"
	providermock "github.com/proerror77/Nova-sub006/services/notification/internal/provider/mock"
	"github.com/proerror77/Nova-sub006/services/notification/internal/service"
)

// fakeRepo keeps jobs in a map.
type fakeRepo struct {
	jobs map[string]*domain.Job
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[string]*domain.Job)}
}

func (r *fakeRepo) Create(_ context.Context, job *domain.Job) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("job", id)
	}
	return job, nil
}

func (r *fakeRepo) SelectPending(context.Context, int) ([]domain.Job, error) { return nil, nil }

func (r *fakeRepo) MarkSent(_ context.Context, id string) error {
	job, ok := r.jobs[id]
	if !ok || job.Status != domain.StatusPending {
		return apperrors.Conflict("not pending")
	}
	now := time.Now().UTC()
	job.Status = domain.StatusSent
	job.SentAt = &now
	return nil
}

func (r *fakeRepo) RecordFailure(context.Context, string, string, int) error { return nil }

func (r *fakeRepo) Cancel(_ context.Context, id string) error {
	job, ok := r.jobs[id]
	if !ok || job.Status != domain.StatusPending {
		return apperrors.Conflict("not pending")
	}
	job.Status = domain.StatusFailed
	job.LastError = "canceled"
	return nil
}

func newTestRouter(t *testing.T, repo *fakeRepo) http.Handler {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	svc := service.NewNotificationService(repo,
		provider.Registry{domain.PlatformIOS: providermock.NewAPNs(log)},
		map[string]channel.Sender{domain.ChannelEmail: channelmock.NewEmail(log)},
		nil,
		resilience.Policy{Backoff: time.Millisecond, MaxBackoff: time.Millisecond},
		log,
	)
	return NewRouter(svc, health.NewHandler(), log, middleware.DefaultCORSConfig())
}

func TestEnqueue_Created(t *testing.T) {
	router := newTestRouter(t, newFakeRepo())

	body := `{"device_token":"tok-1","platform":"ios","title":"hello","body":"world","badge":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data domain.Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, domain.StatusPending, resp.Data.Status)
}

func TestEnqueue_InvalidPlatformRejected(t *testing.T) {
	router := newTestRouter(t, newFakeRepo())

	body := `{"device_token":"tok-1","platform":"windows_phone","title":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGet_NotFound(t *testing.T) {
	router := newTestRouter(t, newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancel_PendingJob(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(t, repo)

	id := uuid.NewString()
	repo.jobs[id] = &domain.Job{ID: id, Status: domain.StatusPending}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+id+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusFailed, repo.jobs[id].Status)
}

func TestCancel_SentJobConflicts(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(t, repo)

	id := uuid.NewString()
	repo.jobs[id] = &domain.Job{ID: id, Status: domain.StatusSent}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+id+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.StatusSent, repo.jobs[id].Status)
}

func TestDispatch_ReturnsPerChannelResults(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(t, repo)

	body, err := json.Marshal(map[string]any{
		"user_id":      uuid.NewString(),
		"channels":     []string{"push", "email", "in_app"},
		"title":        "hello",
		"device_token": "tok-1",
		"platform":     "ios",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/dispatch", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []service.ChannelResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, service.ResultQueued, resp.Data[0].Status)
	assert.Equal(t, service.ResultSent, resp.Data[1].Status)
	assert.Equal(t, service.ResultAbandoned, resp.Data[2].Status)
	assert.Len(t, repo.jobs, 1)
}

func TestDispatch_UnknownChannelRejected(t *testing.T) {
	router := newTestRouter(t, newFakeRepo())

	body := `{"user_id":"` + uuid.NewString() + `","channels":["sms"],"title":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/dispatch", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

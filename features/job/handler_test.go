package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"marketlens/features/job"
)

// MockRepo implements job.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
func (m *MockRepo) List(ctx context.Context, limit int) ([]job.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
func (m *MockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestHandler_List(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil))

	mockRepo.On("List", mock.Anything, job.DefaultListLimit).Return(nil, nil)

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	assert.Equal(t, []interface{}{}, body["data"])
	assert.Equal(t, 0.0, body["meta"].(map[string]interface{})["count"])
}

func TestHandler_List_StorageError(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil))

	mockRepo.On("List", mock.Anything, job.DefaultListLimit).Return(nil, errors.New("db down"))

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)
}

func TestHandler_Retry_NotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub))

	mockRepo.On("Get", mock.Anything, "99").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("POST", "/jobs/99/retry", nil)
	req.SetPathValue("id", "99")
	w := httptest.NewRecorder()

	handler.Retry(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandler_Retry(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub))

	jobID := "job-123"
	j := &job.Job{
		ID:      jobID,
		Topic:   "index.sync",
		Payload: []byte(`{"folder":"data/documents"}`),
	}

	mockRepo.On("Get", mock.Anything, jobID).Return(j, nil)
	mockPub.On("Publish", "index.sync", []byte(`{"folder":"data/documents"}`)).Return(nil)
	mockRepo.On("Delete", mock.Anything, jobID).Return(nil)

	req := httptest.NewRequest("POST", "/jobs/"+jobID+"/retry", nil)
	req.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusAccepted, w.Result().StatusCode)
	var body struct {
		Data job.RetryResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, job.RetryResponse{ID: jobID, Topic: "index.sync", Status: "requeued"}, body.Data)
	mockRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

func TestHandler_Retry_PublishFailureKeepsJob(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub))

	mockRepo.On("Get", mock.Anything, "j1").Return(&job.Job{ID: "j1", Topic: "index.sync", Payload: []byte(`{}`)}, nil)
	mockPub.On("Publish", "index.sync", mock.Anything).Return(errors.New("nsqd unreachable"))

	req := httptest.NewRequest("POST", "/jobs/j1/retry", nil)
	req.SetPathValue("id", "j1")
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestHandler_List_Limit(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantStatus int
	}{
		{"explicit", "?limit=5", 5, http.StatusOK},
		{"clamped", "?limit=10000", job.MaxListLimit, http.StatusOK},
		{"not a number", "?limit=abc", 0, http.StatusBadRequest},
		{"zero", "?limit=0", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepo)
			handler := job.NewHandler(job.NewService(mockRepo, nil))
			if tt.wantLimit > 0 {
				mockRepo.On("List", mock.Anything, tt.wantLimit).
					Return([]job.Job{{ID: "j1", Topic: "index.sync"}}, nil)
			}

			req := httptest.NewRequest("GET", "/jobs/failed"+tt.query, nil)
			w := httptest.NewRecorder()
			handler.List(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			mockRepo.AssertExpectations(t)
		})
	}
}

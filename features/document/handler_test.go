package document_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketlens/features/document"
	"marketlens/internal/config"
	"marketlens/internal/worker"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) List(ctx context.Context) ([]document.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockChunks struct{ mock.Mock }

func (m *MockChunks) DeleteByDocID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

func newHandler(repo *MockRepo, chunks *MockChunks, pub *MockPublisher) *document.Handler {
	return document.NewHandler(document.NewService(repo, chunks, pub, "data/documents"))
}

func TestHandler_List_Empty(t *testing.T) {
	repo := new(MockRepo)
	repo.On("List", mock.Anything).Return(nil, nil)

	w := httptest.NewRecorder()
	newHandler(repo, nil, nil).List(w, httptest.NewRequest("GET", "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, []interface{}{}, body["data"])
}

func TestHandler_Get(t *testing.T) {
	tests := []struct {
		name     string
		doc      *document.Document
		err      error
		wantCode int
	}{
		{"found", &document.Document{DocID: "d1", Source: "a.pdf"}, nil, http.StatusOK},
		{"missing", nil, sql.ErrNoRows, http.StatusNotFound},
		{"db down", nil, errors.New("conn refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepo)
			repo.On("Get", mock.Anything, "d1").Return(tt.doc, tt.err)

			req := httptest.NewRequest("GET", "/documents/d1", nil)
			req.SetPathValue("id", "d1")
			w := httptest.NewRecorder()
			newHandler(repo, nil, nil).Get(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestHandler_Sync(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFolder string
		wantMode   string
	}{
		{"no body uses default folder", "", "data/documents", worker.ModeSync},
		{"explicit folder", `{"folder":"/srv/docs"}`, "/srv/docs", worker.ModeSync},
		{"force reindexes", `{"force":true}`, "data/documents", worker.ModeReindex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := new(MockPublisher)
			pub.On("Publish", config.TopicIndexSync, mock.MatchedBy(func(body []byte) bool {
				var task worker.IndexTask
				return json.Unmarshal(body, &task) == nil && task.Folder == tt.wantFolder && task.Mode == tt.wantMode
			})).Return(nil)

			w := httptest.NewRecorder()
			newHandler(new(MockRepo), nil, pub).Sync(w, httptest.NewRequest("POST", "/documents/sync", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusAccepted, w.Code)
			pub.AssertExpectations(t)
		})
	}
}

func TestHandler_Sync_InvalidBody(t *testing.T) {
	pub := new(MockPublisher)
	w := httptest.NewRecorder()
	newHandler(new(MockRepo), nil, pub).Sync(w, httptest.NewRequest("POST", "/documents/sync", strings.NewReader("{bad")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandler_Sync_PublishFails(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd down"))

	w := httptest.NewRecorder()
	newHandler(new(MockRepo), nil, pub).Sync(w, httptest.NewRequest("POST", "/documents/sync", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandler_Delete(t *testing.T) {
	repo := new(MockRepo)
	chunks := new(MockChunks)
	repo.On("Get", mock.Anything, "d1").Return(&document.Document{DocID: "d1"}, nil)
	chunks.On("DeleteByDocID", mock.Anything, "d1").Return(nil)
	repo.On("Delete", mock.Anything, "d1").Return(nil)

	req := httptest.NewRequest("DELETE", "/documents/d1", nil)
	req.SetPathValue("id", "d1")
	w := httptest.NewRecorder()
	newHandler(repo, chunks, nil).Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	repo.AssertExpectations(t)
	chunks.AssertExpectations(t)
}

func TestHandler_Delete_VectorFailureKeepsManifest(t *testing.T) {
	repo := new(MockRepo)
	chunks := new(MockChunks)
	repo.On("Get", mock.Anything, "d1").Return(&document.Document{DocID: "d1"}, nil)
	chunks.On("DeleteByDocID", mock.Anything, "d1").Return(errors.New("weaviate down"))

	req := httptest.NewRequest("DELETE", "/documents/d1", nil)
	req.SetPathValue("id", "d1")
	w := httptest.NewRecorder()
	newHandler(repo, chunks, nil).Delete(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestHandler_Delete_NotFound(t *testing.T) {
	repo := new(MockRepo)
	chunks := new(MockChunks)
	repo.On("Get", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("DELETE", "/documents/nope", nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()
	newHandler(repo, chunks, nil).Delete(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	chunks.AssertNotCalled(t, "DeleteByDocID", mock.Anything, mock.Anything)
}

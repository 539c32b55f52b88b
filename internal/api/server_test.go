package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCore struct {
	answer   domain.Answer
	err      error
	deleted  []int64
	lastAsk  string
	lastProj int64
}

func (f *fakeCore) AnswerQuestion(ctx context.Context, question string, projectID int64) (domain.Answer, error) {
	f.lastAsk, f.lastProj = question, projectID
	return f.answer, f.err
}

func (f *fakeCore) GetProjectStats(ctx context.Context, projectID int64) (domain.ProjectStats, error) {
	return domain.ProjectStats{TotalDocuments: 2, TotalChunks: 5, FileIDs: []int64{1, 2}}, f.err
}

func (f *fakeCore) Summarize(ctx context.Context, projectID int64) (domain.Answer, error) {
	return f.AnswerQuestion(ctx, "summary", projectID)
}

func (f *fakeCore) Compare(ctx context.Context, projectID int64) (domain.Answer, error) {
	return f.AnswerQuestion(ctx, "compare", projectID)
}

func (f *fakeCore) DeleteProjectIndex(ctx context.Context, projectID int64) error {
	f.deleted = append(f.deleted, projectID)
	return f.err
}

type fakeQueue struct {
	jobs []domain.FileJob
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job domain.FileJob) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, job)
	return fmt.Sprintf("job-%d", len(q.jobs)), nil
}

type fakeTracker map[string]domain.JobState

func (t fakeTracker) Status(id string) (domain.JobState, bool) {
	st, ok := t[id]
	return st, ok
}

func newTestServer(t *testing.T, core *fakeCore, queue *fakeQueue) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	tracker := fakeTracker{"job-1": {ID: "job-1", FileID: 3, Status: domain.StatusCompleted}}
	return New(core, queue, tracker, Config{UploadDir: dir, MaxFileSize: 1 << 20}, logger.Discard()), dir
}

func do(s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fileID, filename string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileID != "" {
		require.NoError(t, mw.WriteField("file_id", fileID))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestAsk(t *testing.T) {
	core := &fakeCore{answer: domain.Answer{
		Answer:  "42",
		Sources: []domain.Source{{Content: "ctx", Page: 2, FileID: 1, ChunkIndex: 1, Score: 0.9}},
	}}
	s, _ := newTestServer(t, core, &fakeQueue{})

	w := do(s, http.MethodPost, "/projects/7/ask", []byte(`{"question":"what?"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, core.answer, got)
	assert.Equal(t, "what?", core.lastAsk)
	assert.Equal(t, int64(7), core.lastProj)
}

func TestAskValidation(t *testing.T) {
	s, _ := newTestServer(t, &fakeCore{}, &fakeQueue{})

	w := do(s, http.MethodPost, "/projects/7/ask", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/projects/abc/ask", []byte(`{"question":"q"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_project_id")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"generation", &domain.GenerationServiceError{Model: "m", Err: fmt.Errorf("timeout")}, http.StatusBadGateway, "generation_failed"},
		{"embedding", &domain.EmbeddingServiceError{Model: "m", Err: fmt.Errorf("timeout")}, http.StatusBadGateway, "embedding_failed"},
		{"breaker", &domain.EmbeddingServiceError{Model: "m", Err: domain.ErrCircuitOpen}, http.StatusServiceUnavailable, "service_unavailable"},
		{"storage", &domain.StorageError{Op: "load", ProjectID: 1, Err: domain.ErrCorruptIndex}, http.StatusInternalServerError, "storage_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, &fakeCore{err: tt.err}, &fakeQueue{})
			w := do(s, http.MethodPost, "/projects/1/summarize", nil, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestStatsAndDelete(t *testing.T) {
	core := &fakeCore{}
	s, _ := newTestServer(t, core, &fakeQueue{})

	w := do(s, http.MethodGet, "/projects/3/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_documents":2,"total_chunks":5,"file_ids":[1,2]}`, w.Body.String())

	w = do(s, http.MethodDelete, "/projects/3/index", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{3}, core.deleted)
}

func TestCompareUsesProject(t *testing.T) {
	core := &fakeCore{answer: domain.Answer{Answer: "diff", Sources: []domain.Source{}}}
	s, _ := newTestServer(t, core, &fakeQueue{})

	w := do(s, http.MethodPost, "/projects/4/compare", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "compare", core.lastAsk)
	assert.JSONEq(t, `{"answer":"diff","sources":[]}`, w.Body.String())
}

func TestUploadEnqueuesJob(t *testing.T) {
	queue := &fakeQueue{}
	s, dir := newTestServer(t, &fakeCore{}, queue)

	body, ct := multipartBody(t, "12", "paper.PDF", []byte("%PDF-1.4 test"))
	w := do(s, http.MethodPost, "/projects/5/files", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, int64(12), job.FileID)
	assert.Equal(t, int64(5), job.ProjectID)
	assert.True(t, strings.HasPrefix(job.Path, dir))
	assert.True(t, strings.HasSuffix(job.Path, ".pdf"))

	saved, err := os.ReadFile(job.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(saved))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, "pending", resp["status"])
}

func TestUploadRejects(t *testing.T) {
	tests := []struct {
		name     string
		fileID   string
		filename string
		content  []byte
		code     string
	}{
		{"missing file id", "", "a.pdf", []byte("x"), "invalid_file_id"},
		{"missing file", "1", "", nil, "no_file"},
		{"not a pdf", "1", "notes.txt", []byte("x"), "invalid_file_type"},
		{"empty", "1", "a.pdf", []byte{}, "invalid_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &fakeQueue{}
			s, _ := newTestServer(t, &fakeCore{}, queue)
			body, ct := multipartBody(t, tt.fileID, tt.filename, tt.content)

			w := do(s, http.MethodPost, "/projects/1/files", body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.Empty(t, queue.jobs)
		})
	}
}

func TestUploadQueueFullRemovesFile(t *testing.T) {
	queue := &fakeQueue{err: domain.ErrQueueFull}
	s, dir := newTestServer(t, &fakeCore{}, queue)

	body, ct := multipartBody(t, "1", "a.pdf", []byte("%PDF"))
	w := do(s, http.MethodPost, "/projects/1/files", body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	entries, err := os.ReadDir(dir + "/project_1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobStatus(t *testing.T) {
	s, _ := newTestServer(t, &fakeCore{}, &fakeQueue{})

	w := do(s, http.MethodGet, "/jobs/job-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(s, http.MethodGet, "/jobs/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	untracked := New(&fakeCore{}, &fakeQueue{}, nil, Config{UploadDir: t.TempDir()}, logger.Discard())
	w = do(untracked, http.MethodGet, "/jobs/job-1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_tracked")
}

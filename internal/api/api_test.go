package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kdimtricp/copyscan/internal/assessment"
	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/session"
	"github.com/kdimtricp/copyscan/internal/storage"
)

const testVideoBody = "0123456789abcdefghijklmnopqrstuvwxyz"

type testEnv struct {
	app     *App
	handler http.Handler
	mem     *storage.MemoryStorage
}

func newTestEnv(t *testing.T, scale float64) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := storage.NewMemoryStorage()
	svc := session.NewService(assessment.NewSeededEngine(7), mem, nil,
		session.Config{StageTimeScale: scale}, logger)
	t.Cleanup(func() { svc.Close(context.Background()) })

	app := &App{
		Sessions:      svc,
		MaxUploadSize: 1 << 20,
		Logger:        logger,
	}
	return &testEnv{app: app, handler: NewRouter(app), mem: mem}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T, variant string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sessions?variant="+variant, nil)
	rec := e.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.ID)
	return snap.ID
}

// uploadRequest builds a multipart body with one "video" part per filename.
// An empty contentType leaves the part as application/octet-stream.
func uploadRequest(t *testing.T, target, contentType string, filenames ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range filenames {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, name))
		if contentType != "" {
			header.Set("Content-Type", contentType)
		} else {
			header.Set("Content-Type", "application/octet-stream")
		}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(testVideoBody))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) waitForResult(t *testing.T, id string) assessment.AnalysisResult {
	t.Helper()
	var result assessment.AnalysisResult
	require.Eventually(t, func() bool {
		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/result", nil))
		if rec.Code != http.StatusOK {
			return false
		}
		return json.Unmarshal(rec.Body.Bytes(), &result) == nil
	}, 2*time.Second, 5*time.Millisecond)
	return result
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	env.createSession(t, "static")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "copyscan_active_sessions")
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name       string
		variant    string
		wantStatus int
	}{
		{"default is static", "", http.StatusCreated},
		{"static", "static", http.StatusCreated},
		{"crowdsourced", "crowdsourced", http.StatusCreated},
		{"unknown", "psychic", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, httptest.NewRequest(http.MethodPost, "/sessions?variant="+tt.variant, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, path := range []string{"/sessions/nope", "/sessions/nope/result", "/sessions/nope/patterns"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestStaticFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "", "holiday.mp4"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotNil(t, snap.Candidate)
	assert.Equal(t, "video/mp4", snap.Candidate.ContentType)
	assert.True(t, snap.CanAnalyze)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/analysis", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	result := env.waitForResult(t, id)
	assert.Equal(t, assessment.OverallRisk(result.Issues), result.OverallRisk)
	assert.Equal(t, assessment.Recommendation(result.OverallRisk), result.Recommendation)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="copyright-report.txt"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Copyright Analysis Report\n\nFile: holiday.mp4\n"))
}

func TestStreamCandidate_Ranges(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/candidate/stream", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/webm", "clip.webm"))
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		rangeHdr   string
		wantStatus int
		wantBody   string
	}{
		{"full content", "", http.StatusOK, testVideoBody},
		{"range", "bytes=0-9", http.StatusPartialContent, testVideoBody[:10]},
		{"suffix range", "bytes=-6", http.StatusPartialContent, testVideoBody[len(testVideoBody)-6:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/candidate/stream", nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			rec := env.do(t, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
			assert.Equal(t, "video/webm", rec.Header().Get("Content-Type"))
		})
	}
}

// Empty reference database: the analysis request is refused and no result
// appears.
func TestCrowdsourced_AnalysisNeedsReferences(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "crowdsourced")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/mp4", "clip.mp4"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/analysis", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, session.ErrNoReferences.Error(), errorMessage(t, rec))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpload_RejectsNonVideo(t *testing.T) {
	env := newTestEnv(t, 0)
	static := env.createSession(t, "static")
	crowd := env.createSession(t, "crowdsourced")

	rec := env.do(t, uploadRequest(t, "/sessions/"+static+"/candidate", "", "document.pdf"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Zero(t, env.mem.Len())

	rec = env.do(t, uploadRequest(t, "/sessions/"+crowd+"/references", "application/pdf", "document.pdf"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+crowd+"/references", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var refs []patterns.ReferenceEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refs))
	assert.Empty(t, refs)
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, 0)
	env.app.MaxUploadSize = 8
	id := env.createSession(t, "static")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/mp4", "clip.mp4"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_RateLimited(t *testing.T) {
	env := newTestEnv(t, 0)
	env.app.UploadLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	id := env.createSession(t, "static")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/mp4", "a.mp4"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/mp4", "b.mp4"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

// A learned filename keyword surfaces as a medium metadata issue, and reset
// keeps what the session learned.
func TestCrowdsourcedFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "crowdsourced")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/references", "", "OfficialTrailer.mp4"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added []patterns.ReferenceEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Len(t, added, 1)
	assert.Contains(t, added[0].ExtractedKeywords, "officialtrailer")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/patterns", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var store patternsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &store))
	assert.Contains(t, store.MetadataKeywords, "officialtrailer")
	assert.Nil(t, store.Catalog)

	rec = env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "", "My_OfficialTrailer_Copy.mp4"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/analysis", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	result := env.waitForResult(t, id)
	require.NotNil(t, result.PatternsUsed)
	assert.Equal(t, store.Total, *result.PatternsUsed)

	var meta *assessment.Issue
	for i := range result.Issues {
		if result.Issues[i].Type == assessment.IssueMetadata {
			meta = &result.Issues[i]
		}
	}
	require.NotNil(t, meta)
	assert.Equal(t, assessment.SeverityMedium, meta.Severity)
	assert.InDelta(t, 0.8, meta.Confidence, 1e-9)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "copyright-analysis-report.txt")
	assert.Contains(t, rec.Body.String(), "- [metadata] Metadata matches learned keywords: officialtrailer (confidence 80%)")

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Nil(t, snap.Candidate)
	assert.Nil(t, snap.Result)
	assert.Zero(t, snap.Progress)
	assert.Equal(t, 1, snap.ReferenceCount)
	assert.Zero(t, env.mem.Len())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/patterns", nil))
	var after patternsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, store.MetadataKeywords, after.MetadataKeywords)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/references/"+added[0].ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/references/"+added[0].ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticSession_ReferenceOpsUnsupported(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/references", "video/mp4", "ref.mp4"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/patterns", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var store patternsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &store))
	require.NotNil(t, store.Catalog)
	assert.Len(t, store.Catalog.Audio, 3)
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelAnalysis_NotRunning(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/analysis", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestAnalysisStream_Idle(t *testing.T) {
	env := newTestEnv(t, 0)
	id := env.createSession(t, "static")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/analysis/stream", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body)
	require.Len(t, events, 1)
	assert.Equal(t, "snapshot", events[0].name)
}

func TestAnalysisStream_Result(t *testing.T) {
	env := newTestEnv(t, 0.05)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	id := env.createSession(t, "static")
	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/mp4", "clip.mp4"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/analysis", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/analysis/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "snapshot", events[0].name)

	last := events[len(events)-1]
	assert.Equal(t, "result", last.name)
	var result assessment.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(last.data), &result))
	assert.Equal(t, assessment.OverallRisk(result.Issues), result.OverallRisk)

	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, "progress", ev.name)
	}
}

func TestAnalysisStream_Cancelled(t *testing.T) {
	env := newTestEnv(t, 1)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	id := env.createSession(t, "static")
	rec := env.do(t, uploadRequest(t, "/sessions/"+id+"/candidate", "video/mp4", "clip.mp4"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/analysis", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/analysis/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/sessions/"+id+"/analysis", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	events := readEvents(t, resp.Body)
	require.NotEmpty(t, events)
	assert.Equal(t, "cancelled", events[len(events)-1].name)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

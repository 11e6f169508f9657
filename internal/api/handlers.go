package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/kdimtricp/copyscan/internal/assessment"
	"github.com/kdimtricp/copyscan/internal/models"
	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/session"
)

type App struct {
	Sessions      *session.Service
	MaxUploadSize int64
	// UploadLimiter throttles candidate and reference uploads. Nil disables it.
	UploadLimiter *rate.Limiter
	Logger        *slog.Logger
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		return slog.Default()
	}
	return app.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) limitUploads(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.UploadLimiter != nil && !app.UploadLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			renderError(w, http.StatusTooManyRequests, "too many uploads, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (app *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := app.Sessions.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		app.renderFailure(w, r, err)
		return nil, false
	}
	return sess, true
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	variant, ok := assessment.ParseVariant(r.FormValue("variant"))
	if !ok {
		renderError(w, http.StatusBadRequest, fmt.Sprintf("unknown variant %q", r.FormValue("variant")))
		return
	}

	sess := app.Sessions.CreateSession(variant)
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	renderJSON(w, http.StatusCreated, snap)
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, snap)
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Sessions.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		app.renderFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseUpload reads a multipart body bounded by MaxUploadSize and returns
// the files under the "video" field.
func (app *App) parseUpload(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		renderError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}

	files := r.MultipartForm.File["video"]
	if len(files) == 0 {
		renderError(w, http.StatusBadRequest, "missing video file")
		return nil, false
	}
	return files, true
}

func (app *App) UploadCandidateHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	files, ok := app.parseUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	header := files[0]
	file, err := header.Open()
	if err != nil {
		renderError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	defer file.Close()

	contentType := models.DeclaredType(header.Filename, header.Header.Get("Content-Type"))
	if _, err := sess.SetCandidate(header.Filename, contentType, header.Size, file); err != nil {
		app.renderFailure(w, r, err)
		return
	}

	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, snap)
}

func (app *App) StreamCandidateHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}

	file, video, err := sess.OpenCandidate()
	if err != nil {
		if errors.Is(err, session.ErrNoCandidate) {
			renderError(w, http.StatusNotFound, err.Error())
			return
		}
		app.renderFailure(w, r, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", video.ContentType)

	// ServeContent answers Range requests with 206 and sets Accept-Ranges.
	http.ServeContent(w, r, video.Filename, video.UploadTime, file)
}

func (app *App) ListReferencesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	refs, err := sess.References(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, refs)
}

// AddReferencesHandler learns from every file in the "video" field. Files
// are processed in order and the first failure stops the batch; entries
// added before it stay added.
func (app *App) AddReferencesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	files, ok := app.parseUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	added := make([]patterns.ReferenceEntry, 0, len(files))
	for _, header := range files {
		contentType := models.DeclaredType(header.Filename, header.Header.Get("Content-Type"))
		entry, err := sess.AddReference(r.Context(), header.Filename, contentType)
		if err != nil {
			app.renderFailure(w, r, err)
			return
		}
		added = append(added, entry)
	}
	renderJSON(w, http.StatusCreated, added)
}

func (app *App) RemoveReferenceHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveReference(r.Context(), chi.URLParam(r, "refID")); err != nil {
		app.renderFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type patternsResponse struct {
	Variant          assessment.Variant `json:"variant"`
	AudioPatterns    []string           `json:"audio_patterns"`
	VisualPatterns   []string           `json:"visual_patterns"`
	MetadataKeywords []string           `json:"metadata_keywords"`
	Total            int                `json:"total"`
	Catalog          *patterns.Catalog  `json:"catalog,omitempty"`
}

func (app *App) PatternsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}

	store := sess.Patterns()
	resp := patternsResponse{
		Variant:          sess.Variant,
		AudioPatterns:    store.AudioPatterns,
		VisualPatterns:   store.VisualPatterns,
		MetadataKeywords: store.MetadataKeywords,
		Total:            store.Total(),
	}
	if catalog, static := sess.Catalog(); static {
		resp.Catalog = &catalog
	}
	renderJSON(w, http.StatusOK, resp)
}

func (app *App) StartAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := sess.StartAnalysis(r.Context()); err != nil {
		app.renderFailure(w, r, err)
		return
	}

	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	renderJSON(w, http.StatusAccepted, snap)
}

func (app *App) CancelAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := sess.CancelAnalysis(); err != nil {
		app.renderFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (app *App) ResultHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	result, err := sess.Result()
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

func (app *App) ReportHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	filename, body, err := sess.Report()
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}
	sess.Reset()

	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, snap)
}

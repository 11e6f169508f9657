package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kdimtricp/copyscan/internal/assessment"
	"github.com/kdimtricp/copyscan/internal/metrics"
	"github.com/kdimtricp/copyscan/internal/models"
	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/progress"
	"github.com/kdimtricp/copyscan/internal/report"
	"github.com/kdimtricp/copyscan/internal/storage"
)

// Session is one user's scan workspace: a candidate video, the latest
// result and, for the crowdsourced variant, a learned pattern library.
type Session struct {
	ID        string
	Variant   assessment.Variant
	CreatedAt time.Time

	engine  *assessment.Engine
	storage storage.Storage
	stager  *progress.Stager
	logger  *slog.Logger

	mu          sync.Mutex
	candidate   *models.Video
	result      *assessment.AnalysisResult
	status      Status
	progress    float64
	stage       string
	startedAt   *time.Time
	completedAt *time.Time
	cancel      context.CancelFunc
	// run identifies the current analysis; a reset bumps it so a stale
	// goroutine cannot publish into the cleared state.
	run uint64

	catalog patterns.Catalog
	library *patterns.Library
	refs    patterns.ReferenceRepository

	subs map[chan Update]struct{}
}

// SetCandidate stores the uploaded video and makes it the scan target.
// Non-video uploads are refused with patterns.ErrNotVideo and change
// nothing.
func (s *Session) SetCandidate(filename, contentType string, size int64, body io.Reader) (*models.Video, error) {
	if !models.IsVideoType(contentType) {
		metrics.UploadsTotal.WithLabelValues(metrics.KindCandidate, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("candidate %q (%s): %w", filename, contentType, patterns.ErrNotVideo)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusAnalyzing {
		return nil, ErrAnalysisRunning
	}

	storedName, err := s.storage.SaveFile(body, storage.FileInfo{
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.KindCandidate, metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("saving candidate: %w", err)
	}

	s.dropCandidateLocked()
	s.candidate = models.NewVideo(filename, storedName, contentType, size)
	s.clearRunLocked()

	metrics.UploadsTotal.WithLabelValues(metrics.KindCandidate, metrics.OutcomeAccepted).Inc()
	s.logger.Info("candidate set", "filename", filename, "size", size)
	return s.candidate, nil
}

// OpenCandidate opens the stored candidate blob for playback.
func (s *Session) OpenCandidate() (io.ReadSeekCloser, *models.Video, error) {
	s.mu.Lock()
	candidate := s.candidate
	s.mu.Unlock()

	if candidate == nil {
		return nil, nil, ErrNoCandidate
	}

	file, err := s.storage.OpenFile(candidate.StoredName)
	if err != nil {
		return nil, nil, fmt.Errorf("opening candidate: %w", err)
	}
	return file, candidate, nil
}

func (s *Session) AddReference(ctx context.Context, filename, contentType string) (patterns.ReferenceEntry, error) {
	if s.library == nil {
		return patterns.ReferenceEntry{}, ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.library.AddReferenceVideo(ctx, filename, contentType)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, patterns.ErrNotVideo) || errors.Is(err, patterns.ErrKeywordCapacity) {
			outcome = metrics.OutcomeRejected
		}
		metrics.UploadsTotal.WithLabelValues(metrics.KindReference, outcome).Inc()
		return patterns.ReferenceEntry{}, err
	}

	metrics.UploadsTotal.WithLabelValues(metrics.KindReference, metrics.OutcomeAccepted).Inc()
	metrics.LearnedKeywords.Observe(float64(len(s.library.Store().MetadataKeywords)))
	s.logger.Info("reference added", "reference", entry.ID, "filename", filename,
		"keywords", len(s.library.Store().MetadataKeywords))
	return entry, nil
}

func (s *Session) RemoveReference(ctx context.Context, referenceID string) error {
	if s.library == nil {
		return ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.library.RemoveReferenceVideo(ctx, referenceID); err != nil {
		return err
	}
	s.logger.Info("reference removed", "reference", referenceID)
	return nil
}

func (s *Session) References(ctx context.Context) ([]patterns.ReferenceEntry, error) {
	if s.library == nil {
		return nil, ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.library.References(ctx)
}

// Patterns returns a copy of the store the next assessment would read.
func (s *Session) Patterns() *patterns.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked().Snapshot()
}

// Catalog is the static variant's simulated database.
func (s *Session) Catalog() (patterns.Catalog, bool) {
	return s.catalog, s.library == nil
}

// StartAnalysis begins the staged analysis of the current candidate. The
// result is published on the update stream once every stage has elapsed.
func (s *Session) StartAnalysis(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusAnalyzing {
		return ErrAnalysisRunning
	}
	if s.candidate == nil {
		return ErrNoCandidate
	}
	if s.library != nil {
		count, err := s.library.ReferenceCount(ctx)
		if err != nil {
			return fmt.Errorf("counting references: %w", err)
		}
		if count == 0 {
			return ErrNoReferences
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s.run++
	s.cancel = cancel
	s.status = StatusAnalyzing
	s.result = nil
	s.progress = 0
	s.stage = ""
	s.startedAt = &now
	s.completedAt = nil

	go s.runAnalysis(runCtx, s.run, s.candidate.Filename)

	s.logger.Info("analysis started", "filename", s.candidate.Filename)
	return nil
}

// CancelAnalysis stops a running analysis before it produces a result.
func (s *Session) CancelAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusAnalyzing || s.cancel == nil {
		return ErrNotRunning
	}
	s.cancel()
	return nil
}

// Reset clears the candidate, result and progress. The pattern store and
// reference list are left alone.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropCandidateLocked()
	s.clearRunLocked()
	s.publishLocked(Update{Type: UpdateReset})
	s.logger.Info("session reset")
}

func (s *Session) Result() (*assessment.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return nil, ErrNoResult
	}
	return s.result, nil
}

// Report renders the downloadable text report for the current result.
func (s *Session) Report() (filename, body string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil || s.candidate == nil {
		return "", "", ErrNoResult
	}
	return report.Filename(s.Variant), report.Render(s.Variant, s.candidate.Filename, s.result), nil
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ctx)
}

// Subscribe returns a stream of updates together with the state at the
// moment of subscription. Call the returned func to unsubscribe.
func (s *Session) Subscribe(ctx context.Context) (<-chan Update, func(), Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshotLocked(ctx)
	if err != nil {
		return nil, nil, Snapshot{}, err
	}

	ch := make(chan Update, len(progress.DefaultStages)+4)
	s.subs[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe, snap, nil
}

func (s *Session) runAnalysis(ctx context.Context, run uint64, filename string) {
	started := time.Now()

	for update := range s.stager.Start(ctx) {
		s.mu.Lock()
		if s.run == run {
			s.progress = update.Percent
			s.stage = update.Stage
			s.publishLocked(Update{Type: UpdateProgress, Data: update})
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != run {
		return
	}

	cancelled := ctx.Err() != nil
	s.releaseRunLocked()

	if cancelled {
		s.status = StatusCancelled
		s.progress = 0
		s.stage = ""
		s.publishLocked(Update{Type: UpdateCancelled, Data: map[string]string{
			"message": "Analysis cancelled",
		}})
		metrics.AnalysesCancelled.Inc()
		s.logger.Info("analysis cancelled")
		return
	}

	result := s.assessLocked(context.WithoutCancel(ctx), filename)
	now := time.Now()

	s.result = result
	s.status = StatusComplete
	s.progress = 100
	s.completedAt = &now
	s.publishLocked(Update{Type: UpdateResult, Data: result})

	metrics.AssessmentsTotal.WithLabelValues(string(s.Variant), string(result.OverallRisk)).Inc()
	metrics.AnalysisDuration.WithLabelValues(string(s.Variant)).Observe(time.Since(started).Seconds())
	for _, issue := range result.Issues {
		metrics.IssuesTotal.WithLabelValues(string(issue.Type), string(issue.Severity)).Inc()
	}

	s.logger.Info("analysis complete",
		"filename", filename,
		"risk", result.OverallRisk,
		"issues", len(result.Issues),
		"elapsed", time.Since(started))
}

func (s *Session) assessLocked(ctx context.Context, filename string) *assessment.AnalysisResult {
	if s.library == nil {
		return s.engine.AssessStatic(filename, s.catalog)
	}

	count, err := s.library.ReferenceCount(ctx)
	if err != nil {
		s.logger.Warn("failed to count references", "error", err)
	}
	return s.engine.AssessCrowdsourced(filename, s.library.Store(), count)
}

func (s *Session) storeLocked() *patterns.Store {
	if s.library != nil {
		return s.library.Store()
	}
	return s.catalog.Store()
}

func (s *Session) snapshotLocked(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		ID:          s.ID,
		Variant:     s.Variant,
		Status:      s.status,
		Progress:    s.progress,
		Stage:       s.stage,
		Result:      s.result,
		CreatedAt:   s.CreatedAt,
		StartedAt:   s.startedAt,
		CompletedAt: s.completedAt,
	}

	if c := s.candidate; c != nil {
		snap.Candidate = &CandidateInfo{
			ID:          c.ID,
			Filename:    c.Filename,
			ContentType: c.ContentType,
			Size:        c.Size,
			HumanSize:   humanize.Bytes(uint64(max(c.Size, 0))),
			UploadTime:  c.UploadTime,
		}
	}

	if s.library != nil {
		count, err := s.library.ReferenceCount(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("counting references: %w", err)
		}
		snap.ReferenceCount = count
	}

	snap.CanAnalyze = s.candidate != nil &&
		s.status != StatusAnalyzing &&
		(s.library == nil || snap.ReferenceCount > 0)

	return snap, nil
}

func (s *Session) releaseRunLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) clearRunLocked() {
	s.releaseRunLocked()
	s.run++
	s.result = nil
	s.status = StatusIdle
	s.progress = 0
	s.stage = ""
	s.startedAt = nil
	s.completedAt = nil
}

func (s *Session) dropCandidateLocked() {
	if s.candidate == nil {
		return
	}
	if err := s.storage.DeleteFile(s.candidate.StoredName); err != nil {
		s.logger.Warn("failed to delete candidate blob", "blob", s.candidate.StoredName, "error", err)
	}
	s.candidate = nil
}

// publishLocked fans an update out without blocking; a subscriber that
// falls behind misses updates.
func (s *Session) publishLocked(update Update) {
	for ch := range s.subs {
		select {
		case ch <- update:
		default:
			s.logger.Debug("dropping update for slow subscriber", "type", update.Type)
		}
	}
}

func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	s.dropCandidateLocked()
	s.clearRunLocked()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()

	if purger, ok := s.refs.(Purger); ok {
		if err := purger.Purge(ctx); err != nil {
			return fmt.Errorf("purging references: %w", err)
		}
	}
	s.logger.Info("session discarded")
	return nil
}

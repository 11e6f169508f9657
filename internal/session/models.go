package session

import (
	"errors"
	"time"

	"github.com/kdimtricp/copyscan/internal/assessment"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoCandidate     = errors.New("no candidate video selected")
	ErrNoReferences    = errors.New("reference database is empty")
	ErrAnalysisRunning = errors.New("analysis already running")
	ErrNotRunning      = errors.New("no analysis running")
	ErrNoResult        = errors.New("no analysis result")
	ErrUnsupported     = errors.New("operation requires the crowdsourced variant")
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// Update event types published on a session's stream.
const (
	UpdateProgress  = "progress"
	UpdateResult    = "result"
	UpdateCancelled = "cancelled"
	UpdateReset     = "reset"
)

type Update struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Terminal reports whether no further updates follow for the current run.
func (u Update) Terminal() bool {
	switch u.Type {
	case UpdateResult, UpdateCancelled, UpdateReset:
		return true
	}
	return false
}

type CandidateInfo struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	HumanSize   string    `json:"human_size"`
	UploadTime  time.Time `json:"upload_time"`
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID             string                     `json:"id"`
	Variant        assessment.Variant         `json:"variant"`
	Status         Status                     `json:"status"`
	Progress       float64                    `json:"progress"`
	Stage          string                     `json:"stage,omitempty"`
	Candidate      *CandidateInfo             `json:"candidate,omitempty"`
	Result         *assessment.AnalysisResult `json:"result,omitempty"`
	ReferenceCount int                        `json:"reference_count"`
	CanAnalyze     bool                       `json:"can_analyze"`
	CreatedAt      time.Time                  `json:"created_at"`
	StartedAt      *time.Time                 `json:"started_at,omitempty"`
	CompletedAt    *time.Time                 `json:"completed_at,omitempty"`
}

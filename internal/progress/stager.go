// Package progress animates an analysis as a fixed sequence of named
// stages. It never touches the result; callers subscribe to the update
// stream for display only.
package progress

import (
	"context"
	"time"
)

type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// DefaultStages is the sequence every analysis walks through.
var DefaultStages = []Stage{
	{Name: "Extracting audio fingerprint", Duration: 1500 * time.Millisecond},
	{Name: "Analyzing video frames", Duration: 2000 * time.Millisecond},
	{Name: "Processing metadata", Duration: 1000 * time.Millisecond},
	{Name: "Comparing against database", Duration: 1500 * time.Millisecond},
	{Name: "Generating report", Duration: 1000 * time.Millisecond},
}

type Update struct {
	Stage   string  `json:"stage"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Stager walks Stages in order. TimeScale multiplies every stage duration;
// zero makes the walk instant.
type Stager struct {
	Stages    []Stage
	TimeScale float64
}

func NewStager(timeScale float64) *Stager {
	return &Stager{Stages: DefaultStages, TimeScale: timeScale}
}

// Percent is the progress reported when stage index begins.
func Percent(index, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(index+1) / float64(total) * 100
}

// TotalDuration is the scaled wall time of a full walk.
func (s *Stager) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range s.Stages {
		total += s.scaled(st.Duration)
	}
	return total
}

// Run emits one update as each stage begins, then waits out that stage
// before starting the next. The channel is closed when the walk ends. It
// returns ctx.Err() if the walk was cut short.
func (s *Stager) Run(ctx context.Context, updates chan<- Update) error {
	defer close(updates)

	total := len(s.Stages)
	for i, st := range s.Stages {
		update := Update{
			Stage:   st.Name,
			Index:   i,
			Total:   total,
			Percent: Percent(i, total),
		}

		select {
		case updates <- update:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := sleep(ctx, s.scaled(st.Duration)); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the walk in its own goroutine and returns the stream.
func (s *Stager) Start(ctx context.Context) <-chan Update {
	updates := make(chan Update, len(s.Stages))
	go s.Run(ctx, updates)
	return updates
}

func (s *Stager) scaled(d time.Duration) time.Duration {
	if s.TimeScale <= 0 {
		return 0
	}
	return time.Duration(float64(d) * s.TimeScale)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

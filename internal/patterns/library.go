package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/kdimtricp/copyscan/internal/models"
)

// Library couples a keyword store with the reference videos that fed it.
// It is not safe for concurrent use; the owning session serializes access.
type Library struct {
	store *Store
	refs  ReferenceRepository
	rng   Rand
	now   func() time.Time
}

func NewLibrary(store *Store, refs ReferenceRepository, rng Rand) *Library {
	return &Library{
		store: store,
		refs:  refs,
		rng:   rng,
		now:   time.Now,
	}
}

func (l *Library) Store() *Store {
	return l.store
}

// AddReferenceVideo mines filename for keywords, merges the new ones into
// the store and records the reference. Non-video uploads are refused
// before anything changes.
func (l *Library) AddReferenceVideo(ctx context.Context, filename, contentType string) (ReferenceEntry, error) {
	if !models.IsVideoType(contentType) {
		return ReferenceEntry{}, fmt.Errorf("reference %q (%s): %w", filename, contentType, ErrNotVideo)
	}

	keywords := ExtractKeywords(filename, l.rng)
	if !l.store.CanMerge(keywords) {
		return ReferenceEntry{}, fmt.Errorf("reference %q: %w", filename, ErrKeywordCapacity)
	}

	entry := ReferenceEntry{
		ID:                newReferenceID(),
		Filename:          filename,
		ExtractedKeywords: keywords,
		UploadDate:        l.now(),
	}

	if err := l.refs.Insert(ctx, entry); err != nil {
		return ReferenceEntry{}, fmt.Errorf("recording reference %q: %w", filename, err)
	}

	if _, err := l.store.Merge(keywords); err != nil {
		return entry, fmt.Errorf("merging keywords from %q: %w", filename, err)
	}

	return entry, nil
}

// RemoveReferenceVideo drops the entry with id. Keywords it contributed
// remain in the store.
func (l *Library) RemoveReferenceVideo(ctx context.Context, id string) error {
	if err := l.refs.Delete(ctx, id); err != nil {
		return fmt.Errorf("removing reference %s: %w", id, err)
	}
	return nil
}

func (l *Library) References(ctx context.Context) ([]ReferenceEntry, error) {
	return l.refs.List(ctx)
}

func (l *Library) ReferenceCount(ctx context.Context) (int, error) {
	return l.refs.Count(ctx)
}

package patterns

import (
	"errors"
	"fmt"
)

var (
	ErrNotVideo          = errors.New("only video files are accepted")
	ErrReferenceNotFound = errors.New("reference video not found")
	ErrKeywordCapacity   = errors.New("metadata keyword capacity reached")
)

// Store is an ordered collection of pattern labels. MetadataKeywords has set
// semantics: a keyword is appended at most once, in first-seen order.
type Store struct {
	AudioPatterns    []string
	VisualPatterns   []string
	MetadataKeywords []string

	// MaxKeywords bounds MetadataKeywords when positive. Zero means unbounded.
	MaxKeywords int

	seen map[string]struct{}
}

var (
	defaultAudioPatterns    = []string{"Orchestral Score", "Pop Music Hook", "Electronic Beat"}
	defaultVisualPatterns   = []string{"Studio Logo", "Broadcast Overlay", "Animated Character"}
	defaultMetadataKeywords = []string{"copyright", "trademark", "licensed-content"}
)

// SeedDefaults returns the store a crowdsourced session starts from.
func SeedDefaults() *Store {
	return NewStore(defaultAudioPatterns, defaultVisualPatterns, defaultMetadataKeywords)
}

func NewStore(audio, visual, keywords []string) *Store {
	s := &Store{
		AudioPatterns:  append([]string(nil), audio...),
		VisualPatterns: append([]string(nil), visual...),
		seen:           make(map[string]struct{}, len(keywords)),
	}
	for _, kw := range keywords {
		if _, err := s.AddKeyword(kw); err != nil {
			break
		}
	}
	return s
}

// HasKeyword reports whether kw is already in MetadataKeywords.
func (s *Store) HasKeyword(kw string) bool {
	s.ensureIndex()
	_, ok := s.seen[kw]
	return ok
}

// AddKeyword appends kw unless it is empty or already present. It reports
// whether the keyword was added.
func (s *Store) AddKeyword(kw string) (bool, error) {
	if kw == "" || s.HasKeyword(kw) {
		return false, nil
	}
	if s.MaxKeywords > 0 && len(s.MetadataKeywords) >= s.MaxKeywords {
		return false, fmt.Errorf("adding %q: %w", kw, ErrKeywordCapacity)
	}
	s.MetadataKeywords = append(s.MetadataKeywords, kw)
	s.seen[kw] = struct{}{}
	return true, nil
}

// Merge adds every keyword in order and returns the ones that were new.
// It stops at the first capacity error.
func (s *Store) Merge(keywords []string) ([]string, error) {
	var added []string
	for _, kw := range keywords {
		ok, err := s.AddKeyword(kw)
		if err != nil {
			return added, err
		}
		if ok {
			added = append(added, kw)
		}
	}
	return added, nil
}

// CanMerge reports whether every new keyword in keywords fits under
// MaxKeywords.
func (s *Store) CanMerge(keywords []string) bool {
	if s.MaxKeywords <= 0 {
		return true
	}
	fresh := make(map[string]struct{})
	for _, kw := range keywords {
		if kw != "" && !s.HasKeyword(kw) {
			fresh[kw] = struct{}{}
		}
	}
	return len(s.MetadataKeywords)+len(fresh) <= s.MaxKeywords
}

// Total is the number of patterns across all three collections.
func (s *Store) Total() int {
	return len(s.AudioPatterns) + len(s.VisualPatterns) + len(s.MetadataKeywords)
}

// Snapshot returns a copy that shares no slices with s.
func (s *Store) Snapshot() *Store {
	cp := NewStore(s.AudioPatterns, s.VisualPatterns, nil)
	cp.MaxKeywords = s.MaxKeywords
	cp.MetadataKeywords = append([]string(nil), s.MetadataKeywords...)
	for _, kw := range cp.MetadataKeywords {
		cp.seen[kw] = struct{}{}
	}
	return cp
}

func (s *Store) ensureIndex() {
	if s.seen != nil {
		return
	}
	s.seen = make(map[string]struct{}, len(s.MetadataKeywords))
	for _, kw := range s.MetadataKeywords {
		s.seen[kw] = struct{}{}
	}
}

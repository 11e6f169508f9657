package patterns

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	tokenProfessionalAudio = "professional-audio"
	tokenHighDefinition    = "high-definition"
)

// Coin-flip alternatives for the third constant token.
var contentTokens = [2]string{"entertainment-content", "commercial-media"}

// ReferenceEntry is a reference video a user contributed to the
// crowdsourced database. Only its filename is mined.
type ReferenceEntry struct {
	ID                string    `json:"id"`
	Filename          string    `json:"filename"`
	ExtractedKeywords []string  `json:"extracted_keywords"`
	UploadDate        time.Time `json:"upload_date"`
}

// ReferenceRepository keeps the ordered reference list of one session.
type ReferenceRepository interface {
	Insert(ctx context.Context, entry ReferenceEntry) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]ReferenceEntry, error)
	Count(ctx context.Context) (int, error)
}

// Rand is the slice of a uniform random source the pattern store needs.
type Rand interface {
	Float64() float64
}

// ExtractKeywords derives the tokens a reference video contributes: the
// lowercased filename stem, two constant tokens and one coin-flipped token.
// An empty stem is dropped.
func ExtractKeywords(filename string, rng Rand) []string {
	base := filepath.Base(filename)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	tokens := make([]string, 0, 4)
	if stem != "" && stem != "." {
		tokens = append(tokens, stem)
	}
	tokens = append(tokens, tokenProfessionalAudio, tokenHighDefinition)
	if rng.Float64() < 0.5 {
		tokens = append(tokens, contentTokens[0])
	} else {
		tokens = append(tokens, contentTokens[1])
	}
	return tokens
}

func newReferenceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// MemoryReferences is an in-process ReferenceRepository.
type MemoryReferences struct {
	mu      sync.RWMutex
	entries []ReferenceEntry
}

func NewMemoryReferences() *MemoryReferences {
	return &MemoryReferences{}
}

func (m *MemoryReferences) Insert(_ context.Context, entry ReferenceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryReferences) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ErrReferenceNotFound
}

func (m *MemoryReferences) List(_ context.Context) ([]ReferenceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ReferenceEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *MemoryReferences) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

package policy

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/veriscript-health/clarity/internal/domain"
)

// Store publishes the active policy snapshot. Loads replace the whole
// document atomically; readers always see either the previous or the
// new snapshot, never a partial one.
type Store struct {
	current atomic.Pointer[domain.PolicyConfiguration]
}

// NewStore creates an empty store. Current returns nil until the first
// successful load; the engine degrades gracefully on a nil document.
func NewStore() *Store {
	return &Store{}
}

// Current returns the active snapshot, or nil when nothing is loaded.
func (s *Store) Current() *domain.PolicyConfiguration {
	return s.current.Load()
}

// Replace publishes a new snapshot. The document must not be mutated
// after this call.
func (s *Store) Replace(cfg *domain.PolicyConfiguration) {
	s.current.Store(cfg)
}

// LoadBytes parses, validates, and publishes a raw policy document.
// Returns validation warnings for quarantined rules; only a parse
// failure keeps the previous snapshot active.
func (s *Store) LoadBytes(raw []byte, year int, compiler ExprCompiler) ([]string, error) {
	cfg, err := Parse(raw, year)
	if err != nil {
		return nil, err
	}
	warnings := Validate(cfg, compiler)
	s.Replace(cfg)
	return warnings, nil
}

// LoadFile loads a policy document from disk.
func (s *Store) LoadFile(path string, year int, compiler ExprCompiler) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return s.LoadBytes(raw, year, compiler)
}

// LoadEmbedded loads the default policy document shipped with the
// binary.
func (s *Store) LoadEmbedded(year int, compiler ExprCompiler) ([]string, error) {
	return s.LoadBytes(defaultPolicy, year, compiler)
}

// LoadFromRepository loads the most recently stored policy document,
// enabling reload without filesystem access.
func (s *Store) LoadFromRepository(ctx context.Context, repo domain.Repository, year int, compiler ExprCompiler) ([]string, error) {
	doc, err := repo.GetLatestPolicyDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy from repository: %w", err)
	}
	return s.LoadBytes(doc.Raw, year, compiler)
}

// CurrentYear is the template year used for {{YEAR}} substitution.
func CurrentYear() int {
	return time.Now().Year()
}

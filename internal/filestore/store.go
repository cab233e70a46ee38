// Package filestore holds the authoritative mapping of project file
// paths to full text content.
//
// The store is the single shared resource across generation steps. It is
// updated synchronously under a lock so that the next outbound request is
// always built from the result of the previous one, never from a stale
// snapshot captured in a callback.
package filestore

import (
	"log"
	"sync"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
	"github.com/shojbahmed330/OneClickStudio/internal/patch"
)

// GuardPolicy configures the integrity guard that blocks suspicious
// automatic overwrites. An unattended whole-file replacement is rejected
// when the existing content is at least MinProtectedLen characters and
// the incoming content is shorter than MaxSuspectLen characters. This
// defends against the backend returning a placeholder or summary instead
// of real content during long unattended chains.
type GuardPolicy struct {
	MinProtectedLen int
	MaxSuspectLen   int
}

// DefaultGuardPolicy returns the default truncation heuristic.
func DefaultGuardPolicy() GuardPolicy {
	return GuardPolicy{
		MinProtectedLen: 300,
		MaxSuspectLen:   100,
	}
}

// Update is one batch of changes from a generation result or a direct
// user edit. Files are whole-file replacements; Diffs are edit blocks
// applied to current content via the patch merger. Automatic marks
// unattended steps, which are subject to the integrity guard.
type Update struct {
	Files     map[string]string
	Diffs     map[string][]models.EditBlock
	Automatic bool
}

// Rejection records one path blocked by the integrity guard.
type Rejection struct {
	Path        string `json:"path"`
	ExistingLen int    `json:"existing_len"`
	IncomingLen int    `json:"incoming_len"`
}

// Result reports what an Apply did. PatchMisses counts edit blocks whose
// search text was not found, per path; misses are soft warnings, not
// errors.
type Result struct {
	Applied     []string
	Rejected    []Rejection
	PatchMisses map[string]int
}

// AllRejected reports whether the batch carried updates but every one of
// them was blocked by the guard.
func (r Result) AllRejected() bool {
	return len(r.Applied) == 0 && len(r.Rejected) > 0
}

// Store is the authoritative project file mapping. All reads and writes
// go through the store's lock; Snapshot returns copies so callers can
// never observe a partially-merged state.
type Store struct {
	mu     sync.RWMutex
	files  map[string]string
	policy GuardPolicy
}

// New creates an empty store with the given guard policy.
func New(policy GuardPolicy) *Store {
	return &Store{
		files:  make(map[string]string),
		policy: policy,
	}
}

// FromSnapshot creates a store seeded with a loaded project snapshot.
func FromSnapshot(files map[string]string, policy GuardPolicy) *Store {
	s := New(policy)
	for path, content := range files {
		s.files[path] = content
	}
	return s
}

// Snapshot returns a copy of the current mapping.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.files))
	for path, content := range s.files {
		snapshot[path] = content
	}
	return snapshot
}

// Get returns the content of one path.
func (s *Store) Get(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[path]
	return content, ok
}

// Len returns the number of files in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.files)
}

// Apply merges one update batch into the store. Whole-file replacements
// and diffs are applied under a single lock hold, so concurrent readers
// see either none or all of the batch. Per-path guard rejections do not
// fail the rest of the batch.
func (s *Store) Apply(update Update) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Result{PatchMisses: make(map[string]int)}

	for path, incoming := range update.Files {
		existing := s.files[path]
		if update.Automatic && s.suspectedTruncation(existing, incoming) {
			rejection := Rejection{
				Path:        path,
				ExistingLen: len(existing),
				IncomingLen: len(incoming),
			}
			result.Rejected = append(result.Rejected, rejection)
			log.Printf(`{"level":"warn","message":"Integrity guard rejected automatic overwrite","path":"%s","existing_len":%d,"incoming_len":%d}`,
				path, rejection.ExistingLen, rejection.IncomingLen)
			continue
		}
		s.files[path] = incoming
		result.Applied = append(result.Applied, path)
	}

	for path, blocks := range update.Diffs {
		content := s.files[path]
		patched, misses := patch.Apply(content, blocks)
		if misses > 0 {
			result.PatchMisses[path] = misses
			log.Printf(`{"level":"warn","message":"Patch blocks missed their search text","path":"%s","misses":%d}`, path, misses)
		}
		if patched != content {
			s.files[path] = patched
			result.Applied = append(result.Applied, path)
		}
	}

	return result
}

// suspectedTruncation is the guard heuristic: non-trivial existing
// content being replaced by far shorter content.
func (s *Store) suspectedTruncation(existing, incoming string) bool {
	return len(existing) >= s.policy.MinProtectedLen && len(incoming) < s.policy.MaxSuspectLen
}

// Write sets one path's content directly. Direct user edits bypass the
// guard; the guard exists for unattended steps only.
func (s *Store) Write(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[path] = content
}

// Delete removes one path.
func (s *Store) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, path)
}

// Rename moves a path's content to a new path. It returns false when the
// old path does not exist.
func (s *Store) Rename(oldPath, newPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.files[oldPath]
	if !ok {
		return false
	}
	s.files[newPath] = content
	delete(s.files, oldPath)
	return true
}

// Restore replaces the whole mapping, used for snapshot rollback.
func (s *Store) Restore(files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string]string, len(files))
	for path, content := range files {
		s.files[path] = content
	}
}

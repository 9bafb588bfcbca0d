package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sharehub/pkg/types"

	"go.uber.org/zap"
)

// OwnershipStore maps filenames of one category directory to the identities
// that own them. A filename lives in at most one category across the whole
// server; the coordinator enforces that by fixing the category at upload
// time. The store persists as a JSON object of filename -> identity array,
// written to the category's control file.
type OwnershipStore struct {
	dir         string
	controlFile string
	logger      *zap.Logger

	mu     sync.Mutex
	owners map[string][]types.Identity
}

// NewOwnershipStore creates an empty store for the given category directory.
func NewOwnershipStore(dir, controlFile string, logger *zap.Logger) *OwnershipStore {
	return &OwnershipStore{
		dir:         dir,
		controlFile: controlFile,
		logger:      logger,
		owners:      make(map[string][]types.Identity),
	}
}

// Category returns the category name, the base name of the store directory.
func (s *OwnershipStore) Category() string {
	return filepath.Base(s.dir)
}

// Dir returns the category directory path.
func (s *OwnershipStore) Dir() string {
	return s.dir
}

// Exists reports whether the filename is registered in this category.
func (s *OwnershipStore) Exists(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.owners[filename]
	return ok
}

// Register adds a freshly uploaded filename with its first owner. Replaces
// nothing if the filename is already known; the owner is merged instead.
func (s *OwnershipStore) Register(filename string, owner types.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[filename]; !ok {
		s.owners[filename] = []types.Identity{}
	}
	s.addOwnerLocked(filename, owner)
}

// AddOwner grants ownership of filename to the identity. It returns false
// when the filename is unknown to this store or the identity is empty.
// Adding an owner that is already present is a no-op returning true.
func (s *OwnershipStore) AddOwner(filename string, owner types.Identity) bool {
	if owner.IsEmpty() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[filename]; !ok {
		return false
	}
	s.addOwnerLocked(filename, owner)
	return true
}

func (s *OwnershipStore) addOwnerLocked(filename string, owner types.Identity) {
	if owner.IsEmpty() {
		return
	}
	for _, existing := range s.owners[filename] {
		if existing.Same(owner) {
			return
		}
	}
	s.owners[filename] = append(s.owners[filename], owner)
}

// Owners returns the identities owning the filename in registration order,
// so the first entry is the original uploader. Empty for unknown filenames.
func (s *OwnershipStore) Owners(filename string) []types.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Identity(nil), s.owners[filename]...)
}

// RemoveOwner revokes ownership and reports whether a removal happened.
func (s *OwnershipStore) RemoveOwner(filename string, owner types.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.owners[filename]
	if !ok {
		return false
	}
	for i, existing := range list {
		if existing.Same(owner) {
			s.owners[filename] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// FilenamesFor returns all filenames in this category owned by the identity,
// sorted for deterministic output.
func (s *OwnershipStore) FilenamesFor(owner types.Identity) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for filename, list := range s.owners {
		for _, existing := range list {
			if existing.Same(owner) {
				names = append(names, filename)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of the full contents for serialization.
func (s *OwnershipStore) Snapshot() map[string][]types.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]types.Identity, len(s.owners))
	for filename, list := range s.owners {
		out[filename] = append([]types.Identity(nil), list...)
	}
	return out
}

// Load replaces the contents. A nil mapping loads as empty.
func (s *OwnershipStore) Load(contents map[string][]types.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = make(map[string][]types.Identity, len(contents))
	for filename, list := range contents {
		s.owners[filename] = append([]types.Identity(nil), list...)
	}
}

// Save writes the current contents to the category's control file.
func (s *OwnershipStore) Save() error {
	snapshot := s.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ownership map for %s: %w", s.Category(), err)
	}
	path := filepath.Join(s.dir, s.controlFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.logger.Debug("ownership map saved",
		zap.String("category", s.Category()),
		zap.Int("files", len(snapshot)))
	return nil
}

// LoadFromDisk reads the control file into the store. An absent or empty
// file loads as an empty map and is not an error.
func (s *OwnershipStore) LoadFromDisk() error {
	path := filepath.Join(s.dir, s.controlFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Load(nil)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		s.Load(nil)
		return nil
	}
	var contents map[string][]types.Identity
	if err := json.Unmarshal(data, &contents); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	s.Load(contents)
	s.logger.Debug("ownership map loaded",
		zap.String("category", s.Category()),
		zap.Int("files", len(contents)))
	return nil
}

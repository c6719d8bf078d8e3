package suites

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pario-ai/routebench/pkg/models"
)

var (
	// ErrNotCustom is returned when deleting an id that is not a custom suite.
	ErrNotCustom = errors.New("not a custom suite")
	// ErrBuiltinSuite is returned when deleting a built-in suite that has no custom override.
	ErrBuiltinSuite = fmt.Errorf("cannot delete built-in suite: %w", ErrNotCustom)
	// ErrUnknownSuite is returned when no suite has the requested id.
	ErrUnknownSuite = errors.New("suite not found")
	// ErrNoValidSuites is returned when an import contains nothing usable.
	ErrNoValidSuites = errors.New("no valid suites to import")
)

// ExportFileName is the suggested file name for exported custom suites.
const ExportFileName = "routebench-custom-suites.json"

type suitesFile struct {
	Suites []models.TestSuite `yaml:"suites" json:"suites"`
}

// Store persists custom suites in a YAML file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path. The file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Custom returns the stored custom suites. A missing file yields none.
func (s *Store) Custom() ([]models.TestSuite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// List returns built-in suites merged with custom ones.
func (s *Store) List() ([]models.TestSuite, error) {
	custom, err := s.Custom()
	if err != nil {
		return nil, err
	}
	return Merge(Builtin(), custom), nil
}

// Get returns the merged suite with the given id.
func (s *Store) Get(id string) (models.TestSuite, error) {
	all, err := s.List()
	if err != nil {
		return models.TestSuite{}, err
	}
	suite, ok := Find(all, id)
	if !ok {
		return models.TestSuite{}, fmt.Errorf("%w: %s", ErrUnknownSuite, id)
	}
	return suite, nil
}

// Upsert validates and stores a custom suite, replacing any with the same id.
func (s *Store) Upsert(suite models.TestSuite) error {
	suite = Normalize(suite)
	if err := Validate(suite); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	custom, err := s.read()
	if err != nil {
		return err
	}
	return s.write(Merge(custom, []models.TestSuite{suite}))
}

// Delete removes a custom suite. Built-in suites cannot be deleted, but a
// custom override of a built-in id can.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	custom, err := s.read()
	if err != nil {
		return err
	}
	kept := custom[:0]
	found := false
	for _, c := range custom {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		if _, ok := Find(Builtin(), id); ok {
			return fmt.Errorf("delete %s: %w", id, ErrBuiltinSuite)
		}
		return fmt.Errorf("delete %s: %w", id, ErrNotCustom)
	}
	return s.write(kept)
}

// ImportResult reports how many suites an import stored and why others were skipped.
type ImportResult struct {
	Imported []string
	Skipped  []error
}

// ImportJSON merges suites from a JSON document into the custom set. The
// document may be an array of suites, an object with a "suites" array, or a
// single suite object. Invalid entries are skipped.
func (s *Store) ImportJSON(data []byte) (*ImportResult, error) {
	entries, err := importEntries(data)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	var valid []models.TestSuite
	for i, entry := range entries {
		if err := ValidateDocument(entry); err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		var suite models.TestSuite
		if err := json.Unmarshal(raw, &suite); err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		suite = Normalize(suite)
		valid = append(valid, suite)
		res.Imported = append(res.Imported, suite.ID)
	}
	if len(valid) == 0 {
		return res, ErrNoValidSuites
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	custom, err := s.read()
	if err != nil {
		return nil, err
	}
	if err := s.write(Merge(custom, valid)); err != nil {
		return nil, err
	}
	return res, nil
}

// ExportJSON encodes the custom suites as {"suites": [...]} with two-space indent.
func (s *Store) ExportJSON() ([]byte, error) {
	custom, err := s.Custom()
	if err != nil {
		return nil, err
	}
	if custom == nil {
		custom = []models.TestSuite{}
	}
	return json.MarshalIndent(suitesFile{Suites: custom}, "", "  ")
}

func importEntries(data []byte) ([]any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse import: %w", err)
	}
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v["suites"].([]any); ok {
			return list, nil
		}
		return []any{v}, nil
	default:
		return nil, ErrNoValidSuites
	}
}

func (s *Store) read() ([]models.TestSuite, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read suites: %w", err)
	}
	var f suitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse suites %s: %w", s.path, err)
	}
	return f.Suites, nil
}

func (s *Store) write(custom []models.TestSuite) error {
	if custom == nil {
		custom = []models.TestSuite{}
	}
	data, err := yaml.Marshal(suitesFile{Suites: custom})
	if err != nil {
		return fmt.Errorf("encode suites: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create suites dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write suites: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace suites: %w", err)
	}
	return nil
}

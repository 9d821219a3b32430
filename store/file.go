package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/petal-labs/spellbook/spell"
)

const (
	defaultStoreDir  = ".spellbook"
	defaultStoreFile = "spells.json"
)

// Option configures a store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report skipped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// DefaultFilePath returns the default JSON store location relative to the
// working directory.
func DefaultFilePath() string {
	return filepath.Join(defaultStoreDir, defaultStoreFile)
}

// FileStore persists the collection as a JSON array in a single file.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, opts ...Option) *FileStore {
	o := buildOptions(opts)
	return &FileStore{path: path, logger: o.logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load reads the collection. A missing, empty or unparsable file yields an
// empty collection; entries that fail validation are skipped and counted.
func (s *FileStore) Load(ctx context.Context) (result LoadResult, err error) {
	started := time.Now()
	defer func() {
		emitObservation(DriverFile, OpLoad, started, len(result.Spells), result.Skipped, err)
	}()

	if err := ctx.Err(); err != nil {
		return LoadResult{}, err
	}
	if strings.TrimSpace(s.path) == "" {
		return LoadResult{}, ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path is configured by the caller.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LoadResult{Spells: Collection{}}, nil
		}
		return LoadResult{}, fmt.Errorf("store: read spells: %w", err)
	}
	return decodeEntries(data, s.path, s.logger), nil
}

func decodeEntries(data []byte, source string, logger *slog.Logger) LoadResult {
	result := LoadResult{Spells: Collection{}}
	if len(strings.TrimSpace(string(data))) == 0 {
		return result
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("spell store is not a JSON array, starting empty",
			"path", source,
			"error", err,
		)
		return result
	}

	for i, entry := range entries {
		s, err := spell.Parse(entry)
		if err != nil {
			result.Skipped++
			logger.Warn("skipping invalid stored spell",
				"path", source,
				"index", i,
				"error", err,
			)
			continue
		}
		result.Spells.Put(s)
	}
	return result
}

// Save replaces the file with spells, ordered by ID. The write goes through a
// temporary file renamed into place.
func (s *FileStore) Save(ctx context.Context, spells Collection) (err error) {
	started := time.Now()
	defer func() {
		emitObservation(DriverFile, OpSave, started, len(spells), 0, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.path) == "" {
		return ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(spells.byID(), "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode spells: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("store: create store dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: replace store file: %w", err)
	}
	return nil
}

// Clear deletes the backing file. A missing file is not an error.
func (s *FileStore) Clear(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		emitObservation(DriverFile, OpClear, started, 0, 0, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.path) == "" {
		return ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: remove store file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)

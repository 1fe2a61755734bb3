// Package artifact reads and writes per-stage JSON artifacts at
// deterministic paths under the data root. The store never touches the
// journal; callers record returned paths there themselves.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/storage"
)

// Sentinel errors returned by artifact loads.
var (
	// ErrMissing indicates no artifact exists where one was expected.
	ErrMissing = errors.New("artifact missing")

	// ErrCorrupt indicates an artifact exists but is not valid JSON.
	ErrCorrupt = errors.New("artifact corrupt")
)

// Store is a file-backed key-value store mapping
// (environment, speaker, stage, content type, item id) to a JSON file.
type Store struct {
	sandbox     *storage.Sandbox
	environment string
	logger      *slog.Logger
}

// NewStore creates a Store for one environment inside the sandbox.
func NewStore(sandbox *storage.Sandbox, environment string) *Store {
	return &Store{
		sandbox:     sandbox,
		environment: environment,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger.With("component", "artifact_store")
	return s
}

// PathFor returns the sandbox-relative path for an item's stage artifact:
// {environment}/{speaker}/{stage}/{content_type}/{id}.json. Items whose
// content type is not yet known fall under "unknown".
func (s *Store) PathFor(state *models.PipelineState, stage models.Stage) string {
	return s.pathFor(state.Speaker, stage, state.ContentType, state.ID)
}

func (s *Store) pathFor(speaker string, stage models.Stage, ct models.ContentType, id string) string {
	if ct == "" {
		ct = models.ContentTypeUnknown
	}
	return path.Join(s.environment, speaker, stage.String(), string(ct), id+".json")
}

// SaveDiscover writes the initial artifact for a discovered item, which
// exists before any journal record does. Returns the sandbox-relative
// path to seed the new record's file_paths with.
func (s *Store) SaveDiscover(art models.DiscoverArtifact) (string, error) {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding discover artifact for %s: %w", art.ID, err)
	}
	data = append(data, '\n')

	relPath := s.pathFor(art.Speaker, models.StageDiscover, art.ContentType, art.ID)
	if err := s.sandbox.AtomicWrite(relPath, data); err != nil {
		return "", fmt.Errorf("writing discover artifact for %s: %w", art.ID, err)
	}
	return relPath, nil
}

// Save marshals the artifact and writes it atomically at the policy
// path, overwriting any previous attempt's output. Returns the
// sandbox-relative path for the caller to record in the journal.
func (s *Store) Save(state *models.PipelineState, stage models.Stage, artifact any) (string, error) {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s artifact for %s: %w", stage, state.ID, err)
	}
	data = append(data, '\n')

	relPath := s.PathFor(state, stage)
	if err := s.sandbox.AtomicWrite(relPath, data); err != nil {
		return "", fmt.Errorf("writing %s artifact for %s: %w", stage, state.ID, err)
	}

	s.logger.Debug("artifact saved",
		slog.String("item", state.ID),
		slog.String("stage", stage.String()),
		slog.String("path", relPath),
	)
	return relPath, nil
}

// Load reads and decodes the artifact at a sandbox-relative path.
func (s *Store) Load(relPath string, out any) error {
	raw, err := s.Raw(relPath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, relPath, err)
	}
	return nil
}

// Raw reads the artifact at a sandbox-relative path without binding it
// to a schema beyond being well-formed JSON.
func (s *Store) Raw(relPath string) (json.RawMessage, error) {
	data, err := s.sandbox.ReadFile(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, relPath)
		}
		return nil, fmt.Errorf("reading artifact %s: %w", relPath, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, relPath)
	}
	return data, nil
}

// LoadFor decodes the artifact a state recorded for a stage, resolving
// the path through file_paths. A stage with no recorded path is missing.
func (s *Store) LoadFor(state *models.PipelineState, stage models.Stage, out any) error {
	raw, err := s.RawFor(state, stage)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s for %s: %v", ErrCorrupt, stage, state.ID, err)
	}
	return nil
}

// RawFor reads the artifact a state recorded for a stage.
func (s *Store) RawFor(state *models.PipelineState, stage models.Stage) (json.RawMessage, error) {
	relPath, ok := state.FilePaths[stage]
	if !ok {
		return nil, fmt.Errorf("%w: no recorded %s artifact for %s", ErrMissing, stage, state.ID)
	}
	return s.Raw(relPath)
}

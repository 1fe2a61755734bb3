// Package speakers loads and resolves the speaker registry.
//
// The registry is a JSON object mapping registry keys to speaker
// records, stored per environment at {environment}/speakers.json inside
// the data root. Lookups fold case and Unicode forms so "Jane Doe" and
// "jane doe" resolve to the same entry.
package speakers

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/storage"
)

// ErrUnknown is returned when a speaker has no registry entry.
var ErrUnknown = errors.New("unknown speaker")

// registryFile is the registry location inside an environment tree.
const registryFile = "speakers.json"

// Entry is one resolved registry entry: the key the pipeline uses for
// journal records and artifact paths, plus the speaker record.
type Entry struct {
	Key     string
	Speaker *models.Speaker
}

// Registry resolves speakers by registry key.
type Registry struct {
	byName  map[string]*Entry
	ordered []*Entry
}

// Load reads the registry for environment from the data root sandbox. A
// missing file yields an empty registry rather than an error so fresh
// environments start clean.
func Load(sandbox *storage.Sandbox, environment string) (*Registry, error) {
	relPath := path.Join(environment, registryFile)

	exists, err := sandbox.Exists(relPath)
	if err != nil {
		return nil, fmt.Errorf("checking registry: %w", err)
	}
	if !exists {
		return &Registry{byName: make(map[string]*Entry)}, nil
	}

	data, err := sandbox.ReadFile(relPath)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	registry, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", relPath, err)
	}
	return registry, nil
}

// Parse decodes registry JSON, validating every record. Two keys that
// fold to the same canonical form are rejected.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]*models.Speaker
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	registry := &Registry{byName: make(map[string]*Entry, len(raw))}
	for key, speaker := range raw {
		if speaker == nil {
			return nil, fmt.Errorf("speaker %q: empty record", key)
		}
		speaker.Sanitize()
		if err := speaker.Validate(); err != nil {
			return nil, fmt.Errorf("speaker %q: %w", key, err)
		}

		canonical := models.CanonicalName(key)
		if canonical == "" {
			return nil, fmt.Errorf("speaker key %q: blank after normalization", key)
		}
		if _, dup := registry.byName[canonical]; dup {
			return nil, fmt.Errorf("speaker %q: key collides with another entry", key)
		}

		entry := &Entry{Key: key, Speaker: speaker}
		registry.byName[canonical] = entry
		registry.ordered = append(registry.ordered, entry)
	}

	sort.Slice(registry.ordered, func(i, j int) bool {
		return registry.ordered[i].Key < registry.ordered[j].Key
	})
	return registry, nil
}

// Get resolves name to a registry entry, folding case and Unicode
// forms. Unknown names return ErrUnknown.
func (r *Registry) Get(name string) (*Entry, error) {
	entry, ok := r.byName[models.CanonicalName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return entry, nil
}

// Has reports whether name resolves to a registry entry.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[models.CanonicalName(name)]
	return ok
}

// List returns all entries sorted by registry key.
func (r *Registry) List() []*Entry {
	out := make([]*Entry, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registry entries.
func (r *Registry) Len() int {
	return len(r.ordered)
}

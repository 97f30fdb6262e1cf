// Package registry loads and serves survey definitions. Definitions are
// declared in YAML, validated once at load time, and treated as read-only
// afterwards. A built-in survey ships embedded so the service is usable
// without external configuration.
package registry

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/SurveyPipe/internal/models"
	"github.com/BTreeMap/SurveyPipe/internal/tone"
)

//go:embed surveys/*.yaml
var builtinSurveys embed.FS

// Registry holds validated survey definitions keyed by survey id.
type Registry struct {
	mu      sync.RWMutex
	surveys map[string]*models.SurveyDefinition
}

// New creates a registry preloaded with the built-in surveys.
func New() (*Registry, error) {
	r := &Registry{surveys: make(map[string]*models.SurveyDefinition)}
	if err := r.loadFS(builtinSurveys, "surveys"); err != nil {
		return nil, fmt.Errorf("failed to load built-in surveys: %w", err)
	}
	return r, nil
}

// LoadDir registers every .yaml/.yml survey definition found in dir,
// replacing built-in definitions with the same id.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read survey directory %s: %w", dir, err)
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read survey file %s: %w", entry.Name(), err)
		}
		if err := r.registerYAML(data, entry.Name()); err != nil {
			return err
		}
		loaded++
	}
	slog.Info("Registry.LoadDir: surveys loaded", "dir", dir, "count", loaded)
	return nil
}

// Register validates a definition and adds it to the registry, replacing any
// existing definition with the same id. Tone tags are cleaned against the
// whitelist; unknown tags are dropped rather than rejected.
func (r *Registry) Register(def *models.SurveyDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid survey definition %s: %w", def.ID, err)
	}
	def.ToneTags = tone.ValidateTags(def.ToneTags)

	r.mu.Lock()
	r.surveys[def.ID] = def
	r.mu.Unlock()
	slog.Debug("Registry.Register: survey registered", "surveyID", def.ID, "questions", len(def.Questions))
	return nil
}

// Definition returns the definition for a survey id.
func (r *Registry) Definition(surveyID string) (*models.SurveyDefinition, error) {
	r.mu.RLock()
	def, ok := r.surveys[surveyID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSurvey, surveyID)
	}
	return def, nil
}

// List returns all registered definitions ordered by survey id.
func (r *Registry) List() []*models.SurveyDefinition {
	r.mu.RLock()
	defs := make([]*models.SurveyDefinition, 0, len(r.surveys))
	for _, def := range r.surveys {
		defs = append(defs, def)
	}
	r.mu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

func (r *Registry) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return err
		}
		if err := r.registerYAML(data, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerYAML(data []byte, name string) error {
	var def models.SurveyDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse survey file %s: %w", name, err)
	}
	if err := r.Register(&def); err != nil {
		return fmt.Errorf("survey file %s: %w", name, err)
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

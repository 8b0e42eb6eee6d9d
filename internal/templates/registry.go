package templates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
)

// Registry maintains an in-memory catalogue of compiled pipeline templates.
// Embedded templates are always present; a template directory may add to
// them or override them and can be reloaded while the process runs.
type Registry struct {
	mu        sync.RWMutex
	builtins  map[string]Entry
	templates map[string]Entry
}

// Entry captures a loaded template alongside bookkeeping data.
type Entry struct {
	Key         string
	Compiled    *Compiled
	SourcePath  string
	ContentHash string
	LoadedAt    time.Time
	Builtin     bool
}

// TemplateSummary exposes lightweight information about a registered template.
type TemplateSummary struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Key         string `json:"key"`
	ContentHash string `json:"content_hash"`
	SourcePath  string `json:"source_path"`
	Stages      int    `json:"stages"`
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]Entry), templates: make(map[string]Entry)}
}

// MakeKey produces the canonical map key for a template name/version pair.
func MakeKey(name, version string) string {
	n := strings.TrimSpace(name)
	v := strings.TrimSpace(version)
	if v == "" {
		return n
	}
	return fmt.Sprintf("%s@%s", n, v)
}

func newEntry(c *Compiled, source string, data []byte, builtin bool) Entry {
	hash := sha256.Sum256(data)
	return Entry{
		Key:         MakeKey(c.Template.Name, c.Template.Version),
		Compiled:    c,
		SourcePath:  source,
		ContentHash: hex.EncodeToString(hash[:]),
		LoadedAt:    time.Now().UTC(),
		Builtin:     builtin,
	}
}

func (r *Registry) add(c *Compiled, source string, data []byte, builtin bool) error {
	entry := newEntry(c, source, data, builtin)
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.templates[entry.Key]; exists && !(prev.Builtin && !builtin) {
		metrics.TemplateValidationErrors.WithLabelValues("duplicate").Inc()
		return fmt.Errorf("duplicate template key '%s'", entry.Key)
	}
	if builtin {
		r.builtins[entry.Key] = entry
	}
	r.templates[entry.Key] = entry
	metrics.TemplatesLoaded.WithLabelValues(c.Template.Name).Inc()
	return nil
}

// LoadDirectory loads every YAML template under root. The directory's
// templates replace any previously loaded from disk only when all of them
// load cleanly; otherwise the registry is left untouched.
func (r *Registry) LoadDirectory(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat template directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template path %s is not a directory", root)
	}

	staged := make(map[string]Entry)
	var failures []string
	walkFn := func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, walkErr))
			return nil
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		entry, err := loadFile(path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		if prev, dup := staged[entry.Key]; dup {
			metrics.TemplateValidationErrors.WithLabelValues("duplicate").Inc()
			failures = append(failures, fmt.Sprintf("%s: duplicate template key '%s' (also in %s)", path, entry.Key, prev.SourcePath))
			return nil
		}
		staged[entry.Key] = entry
		return nil
	}
	if err := filepath.WalkDir(root, walkFn); err != nil {
		return fmt.Errorf("walk template directory %s: %w", root, err)
	}
	if len(failures) > 0 {
		sort.Strings(failures)
		return &LoadError{Failures: failures}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]Entry, len(r.builtins)+len(staged))
	for key, entry := range r.builtins {
		next[key] = entry
	}
	for key, entry := range staged {
		next[key] = entry
		metrics.TemplatesLoaded.WithLabelValues(entry.Compiled.Template.Name).Inc()
	}
	r.templates = next
	return nil
}

func loadFile(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("read file: %w", err)
	}
	tpl, err := ParseTemplate(data)
	if err != nil {
		metrics.TemplateValidationErrors.WithLabelValues("decode").Inc()
		return Entry{}, err
	}
	compiled, err := CompileTemplate(tpl)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			for _, code := range vErr.Codes() {
				metrics.TemplateValidationErrors.WithLabelValues(code).Inc()
			}
		} else {
			metrics.TemplateValidationErrors.WithLabelValues("validate").Inc()
		}
		return Entry{}, err
	}
	return newEntry(compiled, path, data, false), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Get returns the template entry that matches the supplied key.
func (r *Registry) Get(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.templates[key]
	return entry, ok
}

// Find locates a template by name and optional version. Without a version
// the highest version (by string order) wins.
func (r *Registry) Find(name, version string) (Entry, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, false
	}
	if entry, ok := r.Get(MakeKey(name, version)); ok {
		return entry, true
	}
	if strings.TrimSpace(version) != "" {
		return Entry{}, false
	}

	summaries := r.List()
	for i := len(summaries) - 1; i >= 0; i-- {
		if summaries[i].Name == name {
			return r.Get(summaries[i].Key)
		}
	}
	return Entry{}, false
}

// Lookup returns the compiled template for name, as used by the orchestrator.
func (r *Registry) Lookup(name string) (*Compiled, bool) {
	entry, ok := r.Find(name, "")
	if !ok {
		return nil, false
	}
	return entry.Compiled, true
}

// List summaries of all currently loaded templates.
func (r *Registry) List() []TemplateSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]TemplateSummary, 0, len(r.templates))
	for _, entry := range r.templates {
		summaries = append(summaries, TemplateSummary{
			Name:        entry.Compiled.Template.Name,
			Version:     entry.Compiled.Template.Version,
			Key:         entry.Key,
			ContentHash: entry.ContentHash,
			SourcePath:  entry.SourcePath,
			Stages:      len(entry.Compiled.Stages),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Name == summaries[j].Name {
			return summaries[i].Version < summaries[j].Version
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

// Watch reloads root whenever a YAML file under it changes, until ctx is
// done. Bursts of events are coalesced into one reload.
func (r *Registry) Watch(ctx context.Context, root string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch template directory %s: %w", root, err)
	}

	const debounce = 250 * time.Millisecond
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Template watcher error", zap.Error(err))
		case <-timer.C:
			if err := r.LoadDirectory(root); err != nil {
				logger.Warn("Template reload failed, keeping previous templates",
					zap.String("dir", root), zap.Error(err))
				continue
			}
			logger.Info("Templates reloaded", zap.String("dir", root), zap.Int("count", len(r.List())))
		}
	}
}

// LoadError aggregates template loading failures.
type LoadError struct {
	Failures []string
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Failures) == 0 {
		return "template load failed"
	}
	return fmt.Sprintf("%d template(s) failed to load: %s", len(e.Failures), strings.Join(e.Failures, "; "))
}

// IsLoadError returns true when err represents aggregated template load failures.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

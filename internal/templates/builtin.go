package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"
)

// CanonicalName is the template conductResearch runs by default.
const CanonicalName = "research"

//go:embed builtin/*.yaml
var builtinFS embed.FS

var (
	canonicalOnce sync.Once
	canonical     *Compiled
	canonicalErr  error
)

// Canonical returns the embedded research template.
func Canonical() (*Compiled, error) {
	canonicalOnce.Do(func() {
		canonical, _, canonicalErr = LoadTemplateFS(builtinFS, "builtin/research.yaml")
	})
	return canonical, canonicalErr
}

// LoadBuiltins registers every embedded template with r.
func (r *Registry) LoadBuiltins() error {
	paths, err := fs.Glob(builtinFS, "builtin/*.yaml")
	if err != nil {
		return fmt.Errorf("list builtin templates: %w", err)
	}
	var failures []string
	for _, p := range paths {
		compiled, data, err := LoadTemplateFS(builtinFS, p)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		if err := r.add(compiled, "builtin:"+p, data, true); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p, err))
		}
	}
	if len(failures) > 0 {
		return &LoadError{Failures: failures}
	}
	return nil
}

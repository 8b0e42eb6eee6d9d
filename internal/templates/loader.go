package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// ParseTemplate decodes one YAML document. Unknown keys are rejected so a
// typo in a stage definition fails at load time instead of being ignored.
func ParseTemplate(data []byte) (*Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var tpl Template
	if err := dec.Decode(&tpl); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode template: empty document")
		}
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &tpl, nil
}

// LoadTemplateFS reads and compiles a template stored in fsys.
func LoadTemplateFS(fsys fs.FS, path string) (*Compiled, []byte, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, nil, fmt.Errorf("read template %s: %w", path, err)
	}
	tpl, err := ParseTemplate(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	compiled, err := CompileTemplate(tpl)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return compiled, data, nil
}

package edenlayer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

//go:embed manifests/*.yaml
var manifestFS embed.FS

// Manifest is an agent registration plus the env variable that holds the
// id it is assigned.
type Manifest struct {
	EnvVar       string            `yaml:"env_var"`
	Capability   string            `yaml:"capability"`
	Orchestrator bool              `yaml:"orchestrator"`
	Registration AgentRegistration `yaml:"registration"`
}

// Manifests renders the embedded agent manifests for agents served at
// baseURL. Worker manifests come first in pipeline order, then the
// orchestrator.
func Manifests(baseURL string) ([]Manifest, error) {
	paths, err := fs.Glob(manifestFS, "manifests/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	data := struct{ BaseURL string }{BaseURL: strings.TrimRight(baseURL, "/")}

	out := make([]Manifest, 0, len(paths))
	for _, p := range paths {
		raw, err := manifestFS.ReadFile(p)
		if err != nil {
			return nil, err
		}
		tpl, err := template.New(p).Option("missingkey=error").Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", p, err)
		}
		var buf bytes.Buffer
		if err := tpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render manifest %s: %w", p, err)
		}
		var m Manifest
		dec := yaml.NewDecoder(&buf)
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", p, err)
		}
		if m.EnvVar == "" || m.Registration.Name == "" {
			return nil, fmt.Errorf("manifest %s: env_var and registration.name are required", p)
		}
		if !m.Orchestrator {
			if _, err := workers.ParseCapability(m.Capability); err != nil {
				return nil, fmt.Errorf("manifest %s: %w", p, err)
			}
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return manifestRank(out[i]) < manifestRank(out[j]) })
	return out, nil
}

func manifestRank(m Manifest) int {
	if m.Orchestrator {
		return len(workers.Capabilities())
	}
	for i, c := range workers.Capabilities() {
		if string(c) == m.Capability {
			return i
		}
	}
	return len(workers.Capabilities())
}

// Registration is the outcome of registering one manifest.
type Registration struct {
	Manifest Manifest
	AgentID  string
	Err      error
}

// EnvLine is the NAME=id line an operator saves after registration.
func (r Registration) EnvLine() string {
	return r.Manifest.EnvVar + "=" + r.AgentID
}

// RegisterAll registers each manifest in turn. A failed registration is
// recorded and does not stop the rest.
func (c *Client) RegisterAll(ctx context.Context, manifests []Manifest) []Registration {
	out := make([]Registration, 0, len(manifests))
	for _, m := range manifests {
		id, err := c.RegisterAgent(ctx, m.Registration)
		if err != nil {
			c.log.Error("Failed to register agent", zap.String("agent", m.Registration.Name), zap.Error(err))
		} else {
			c.log.Info("Registered agent", zap.String("agent", m.Registration.Name), zap.String("agent_id", id))
		}
		out = append(out, Registration{Manifest: m, AgentID: id, Err: err})
	}
	return out
}

// AgentIDs maps capabilities to the ids of successfully registered workers.
func AgentIDs(regs []Registration) map[workers.Capability]string {
	ids := make(map[workers.Capability]string)
	for _, r := range regs {
		if r.Err != nil || r.Manifest.Orchestrator {
			continue
		}
		ids[workers.Capability(r.Manifest.Capability)] = r.AgentID
	}
	return ids
}

// Package prompt renders role-specific system prompts from a YAML catalog.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

//go:embed roles.yaml
var defaultCatalog []byte

type roleSpec struct {
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

type catalog struct {
	Roles map[string]roleSpec `yaml:"roles"`
}

type Renderer struct {
	templates    map[domain.Role]*template.Template
	descriptions map[domain.Role]string
}

type templateData struct {
	Question string
	Context  string
}

// New loads the embedded catalog and overlays roles from overridePath, if set.
func New(overridePath string) (*Renderer, error) {
	r := &Renderer{
		templates:    make(map[domain.Role]*template.Template),
		descriptions: make(map[domain.Role]string),
	}
	if err := r.load(defaultCatalog, "embedded roles"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overridePath) == "" {
		return r, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read prompt roles", err)
	}
	if err := r.load(data, overridePath); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) load(data []byte, source string) error {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return domain.WrapError(domain.ErrConfiguration, "parse prompt roles", fmt.Errorf("%s: %w", source, err))
	}
	for name, spec := range c.Roles {
		role, err := domain.ParseRole(name)
		if err != nil {
			return domain.WrapError(domain.ErrConfiguration, "parse prompt roles", fmt.Errorf("%s: %w", source, err))
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(spec.Template)
		if err != nil {
			return domain.WrapError(domain.ErrConfiguration, "parse prompt roles", fmt.Errorf("%s: role %s: %w", source, name, err))
		}
		r.templates[role] = tmpl
		r.descriptions[role] = spec.Description
	}
	return nil
}

func (r *Renderer) Render(question, context string, role domain.Role) (string, error) {
	if role == "" {
		role = domain.RoleDefault
	}
	tmpl, ok := r.templates[role]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "render prompt", fmt.Errorf("no template for role %q", role))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Question: question, Context: context}); err != nil {
		return "", fmt.Errorf("execute %s template: %w", role, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Roles lists loaded roles with their descriptions, sorted by name.
func (r *Renderer) Roles() []string {
	out := make([]string, 0, len(r.descriptions))
	for role, desc := range r.descriptions {
		out = append(out, fmt.Sprintf("%s: %s", role, desc))
	}
	sort.Strings(out)
	return out
}

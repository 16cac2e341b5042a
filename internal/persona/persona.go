// Package persona answers themed questions. Each persona is data: a system
// prompt, an output schema in its instructions, and a fallback field used
// when the model does not return a JSON object.
package persona

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var builtin []byte

const assistantPlaceholder = "{assistant}"

type Persona struct {
	ID            string `yaml:"id"`
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	System        string `yaml:"system"`
	Instructions  string `yaml:"instructions"`
	FallbackField string `yaml:"fallback_field"`
	// Conversation personas take the caller's chat history instead of a
	// single question.
	Conversation bool `yaml:"conversation"`
}

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

// Catalog is an immutable set of personas keyed by id.
type Catalog struct {
	byID map[string]Persona
}

// Builtin returns the personas shipped with the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// Parse decodes a persona catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("persona: catalog is empty")
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("persona: decode catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Persona, len(f.Personas))}
	for i, p := range f.Personas {
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		if p.ID == "" {
			return nil, fmt.Errorf("persona: entry %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate id %q", p.ID)
		}
		if strings.TrimSpace(p.System) == "" {
			return nil, fmt.Errorf("persona: %s has no system prompt", p.ID)
		}
		if p.FallbackField == "" {
			p.FallbackField = "answer"
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

func (c *Catalog) Get(id string) (Persona, bool) {
	p, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// IDs lists persona ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p Persona) systemFor(assistant string) string {
	return strings.TrimSpace(strings.ReplaceAll(p.System, assistantPlaceholder, assistant))
}

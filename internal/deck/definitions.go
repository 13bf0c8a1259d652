// Package deck loads the declarative description of a deck: its note types,
// notes and media.
package deck

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model types accepted in definitions files.
const (
	TypeStandard = "standard"
	TypeCloze    = "cloze"
)

// ModelDef declares a note type.
type ModelDef struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	Fields []string `yaml:"fields"`
	CSS    []string `yaml:"css"`
	// HTML holds the front and back template files.
	HTML []string `yaml:"html"`

	Line int `yaml:"-"`
}

// Front returns the front template file.
func (m *ModelDef) Front() string {
	if len(m.HTML) > 0 {
		return m.HTML[0]
	}
	return ""
}

// Back returns the back template file.
func (m *ModelDef) Back() string {
	if len(m.HTML) > 1 {
		return m.HTML[1]
	}
	return ""
}

// IsCloze reports whether the model is a cloze note type.
func (m *ModelDef) IsCloze() bool {
	return m.Type == TypeCloze
}

// NoteDef declares a note.
type NoteDef struct {
	Model  string            `yaml:"model"`
	GUID   string            `yaml:"guid"`
	Fields map[string]string `yaml:"fields"`
	Tags   []string          `yaml:"tags"`

	Line int `yaml:"-"`
}

// Definitions is the content of a definitions file.
type Definitions struct {
	// Deck renames the default deck when set.
	Deck string `yaml:"deck"`
	// DeckConfig names a deck options group to create.
	DeckConfig   string     `yaml:"deck_config"`
	CommonFields []string   `yaml:"common_fields"`
	Models       []ModelDef `yaml:"models"`
	Notes        []NoteDef  `yaml:"notes"`
	Media        []string   `yaml:"media"`

	Path string `yaml:"-"`
}

// Load reads a definitions file.
func Load(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}

	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defs.Path = path
	return defs, nil
}

// Parse decodes definitions from YAML and records the line of every model and
// note entry.
func Parse(data []byte) (*Definitions, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	defs := &Definitions{}
	if len(root.Content) == 0 {
		return defs, nil
	}

	doc := root.Content[0]
	if err := doc.Decode(defs); err != nil {
		return nil, fmt.Errorf("failed to decode definitions: %w", err)
	}

	if seq := mappingValue(doc, "models"); seq != nil {
		for i, item := range seq.Content {
			if i < len(defs.Models) {
				defs.Models[i].Line = item.Line
			}
		}
	}
	if seq := mappingValue(doc, "notes"); seq != nil {
		for i, item := range seq.Content {
			if i < len(defs.Notes) {
				defs.Notes[i].Line = item.Line
			}
		}
	}

	for i := range defs.Models {
		if defs.Models[i].Type == "" {
			defs.Models[i].Type = TypeStandard
		}
	}

	return defs, nil
}

// Model returns the definition with the given name.
func (d *Definitions) Model(name string) (*ModelDef, bool) {
	for i := range d.Models {
		if d.Models[i].Name == name {
			return &d.Models[i], true
		}
	}
	return nil, false
}

// ModelNames returns the declared model names in order.
func (d *Definitions) ModelNames() []string {
	names := make([]string, len(d.Models))
	for i, m := range d.Models {
		names[i] = m.Name
	}
	return names
}

// IsCommon reports whether field is sticky across note types.
func (d *Definitions) IsCommon(field string) bool {
	for _, f := range d.CommonFields {
		if f == field {
			return true
		}
	}
	return false
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

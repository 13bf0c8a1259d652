package anki

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ModelType distinguishes regular note types from cloze note types.
type ModelType int

const (
	ModelStandard ModelType = 0
	ModelCloze    ModelType = 1
)

func (t ModelType) String() string {
	switch t {
	case ModelStandard:
		return "standard"
	case ModelCloze:
		return "cloze"
	default:
		return "unknown"
	}
}

const defaultLatexPre = `\documentclass[12pt]{article}
\special{papersize=3in,5in}
\usepackage[utf8]{inputenc}
\usepackage{amssymb,amsmath}
\pagestyle{empty}
\setlength{\parindent}{0in}
\begin{document}
`

const defaultLatexPost = `\end{document}`

const defaultCSS = `.card {
  font-family: arial;
  font-size: 20px;
  text-align: center;
  color: black;
  background-color: white;
}
`

// Field is one field of a note type.
type Field struct {
	Name   string   `json:"name"`
	Ord    int      `json:"ord"`
	Sticky bool     `json:"sticky"`
	RTL    bool     `json:"rtl"`
	Font   string   `json:"font"`
	Size   int      `json:"size"`
	Media  []string `json:"media"`
}

// Template is one card template of a note type.
type Template struct {
	Name                  string `json:"name"`
	Ord                   int    `json:"ord"`
	QuestionFormat        string `json:"qfmt"`
	AnswerFormat          string `json:"afmt"`
	DeckID                *int64 `json:"did"`
	BrowserQuestionFormat string `json:"bqfmt"`
	BrowserAnswerFormat   string `json:"bafmt"`
}

// Model is a note type: its fields, card templates and styling.
type Model struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Type      ModelType   `json:"type"`
	Mod       int64       `json:"mod"`
	USN       int         `json:"usn"`
	SortField int         `json:"sortf"`
	DeckID    int64       `json:"did"`
	Templates []*Template `json:"tmpls"`
	Fields    []*Field    `json:"flds"`
	CSS       string      `json:"css"`
	LatexPre  string      `json:"latexPre"`
	LatexPost string      `json:"latexPost"`
	LatexSVG  bool        `json:"latexsvg"`
	Req       [][]any     `json:"req"`
	Tags      []string    `json:"tags"`
	Vers      []any       `json:"vers"`
}

// FieldNames returns the model's field names in order.
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldIndex returns the position of the named field, or -1.
func (m *Model) FieldIndex(name string) int {
	for i, f := range m.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Models is the note type registry of a collection.
type Models struct {
	col   *Collection
	byID  map[int64]*Model
	order []int64
}

func newModels(col *Collection) *Models {
	return &Models{
		col:  col,
		byID: make(map[int64]*Model),
	}
}

// New returns an unregistered standard model with default styling.
func (ms *Models) New(name string) *Model {
	return &Model{
		Name:      name,
		Type:      ModelStandard,
		DeckID:    DefaultDeckID,
		USN:       -1,
		Templates: []*Template{},
		Fields:    []*Field{},
		CSS:       defaultCSS,
		LatexPre:  defaultLatexPre,
		LatexPost: defaultLatexPost,
		Tags:      []string{},
		Vers:      []any{},
	}
}

// NewField returns a field with Anki's default editor settings.
func (ms *Models) NewField(name string) *Field {
	return &Field{
		Name:  name,
		Font:  "Arial",
		Size:  20,
		Media: []string{},
	}
}

// AddField appends f to model. Field names must be unique within a model.
func (ms *Models) AddField(model *Model, f *Field) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("model %s: empty field name", model.Name)
	}
	if model.FieldIndex(f.Name) >= 0 {
		return fmt.Errorf("model %s: duplicate field %q", model.Name, f.Name)
	}
	f.Ord = len(model.Fields)
	model.Fields = append(model.Fields, f)
	return nil
}

// NewTemplate returns an empty card template.
func (ms *Models) NewTemplate(name string) *Template {
	return &Template{Name: name}
}

// AddTemplate appends t to model.
func (ms *Models) AddTemplate(model *Model, t *Template) error {
	for _, existing := range model.Templates {
		if existing.Name == t.Name {
			return fmt.Errorf("model %s: duplicate template %q", model.Name, t.Name)
		}
	}
	t.Ord = len(model.Templates)
	model.Templates = append(model.Templates, t)
	return nil
}

// Add registers model with the collection and assigns its id.
func (ms *Models) Add(model *Model) error {
	if err := ms.col.checkOpen(); err != nil {
		return err
	}
	if _, ok := ms.ByName(model.Name); ok {
		return fmt.Errorf("model %q already exists", model.Name)
	}
	if len(model.Fields) == 0 {
		return fmt.Errorf("model %s has no fields", model.Name)
	}
	if len(model.Templates) == 0 {
		return fmt.Errorf("model %s has no templates", model.Name)
	}
	if model.SortField < 0 || model.SortField >= len(model.Fields) {
		return fmt.Errorf("model %s: sort field %d out of range", model.Name, model.SortField)
	}

	model.ID = ms.col.newID()
	model.Mod = ms.col.modTime()
	ms.byID[model.ID] = model
	ms.order = append(ms.order, model.ID)
	return nil
}

// All returns the registered models in registration order.
func (ms *Models) All() []*Model {
	models := make([]*Model, 0, len(ms.order))
	for _, id := range ms.order {
		models = append(models, ms.byID[id])
	}
	return models
}

// ByName looks up a registered model.
func (ms *Models) ByName(name string) (*Model, bool) {
	for _, id := range ms.order {
		if m := ms.byID[id]; m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Get looks up a registered model by id.
func (ms *Models) Get(id int64) (*Model, bool) {
	m, ok := ms.byID[id]
	return m, ok
}

// Remove unregisters a model and deletes its notes and cards.
func (ms *Models) Remove(ctx context.Context, id int64) error {
	if err := ms.col.checkOpen(); err != nil {
		return err
	}
	if _, ok := ms.byID[id]; !ok {
		return fmt.Errorf("model %d not found", id)
	}

	if _, err := ms.col.tx.ExecContext(ctx, deleteModelCardsSQL, id); err != nil {
		return fmt.Errorf("failed to delete cards of model %d: %w", id, err)
	}
	if _, err := ms.col.tx.ExecContext(ctx, deleteModelNotesSQL, id); err != nil {
		return fmt.Errorf("failed to delete notes of model %d: %w", id, err)
	}

	delete(ms.byID, id)
	for i, existing := range ms.order {
		if existing == id {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}
	return nil
}

// addStock registers the "Basic" note type a fresh Anki collection ships with.
func (ms *Models) addStock() error {
	m := ms.New("Basic")
	for _, name := range []string{"Front", "Back"} {
		if err := ms.AddField(m, ms.NewField(name)); err != nil {
			return err
		}
	}
	t := ms.NewTemplate("Card 1")
	t.QuestionFormat = "{{Front}}"
	t.AnswerFormat = "{{FrontSide}}\n\n<hr id=answer>\n\n{{Back}}"
	if err := ms.AddTemplate(m, t); err != nil {
		return err
	}
	return ms.Add(m)
}

func (ms *Models) current() int64 {
	if len(ms.order) == 0 {
		return 0
	}
	return ms.order[len(ms.order)-1]
}

// export returns the models keyed by id, as stored in col.models.
func (ms *Models) export() map[string]*Model {
	out := make(map[string]*Model, len(ms.byID))
	for id, m := range ms.byID {
		m.Req = requirements(m)
		out[fmt.Sprint(id)] = m
	}
	return out
}

var fieldRefPattern = regexp.MustCompile(`\{\{[#^]?([^}#^/][^}]*)\}\}`)

// requirements lists, per template, the fields its question side references.
// Cards are generated when any of them is non-empty.
func requirements(m *Model) [][]any {
	if m.Type == ModelCloze {
		return [][]any{}
	}

	req := make([][]any, 0, len(m.Templates))
	for _, t := range m.Templates {
		ords := referencedFields(m, t.QuestionFormat)
		if len(ords) == 0 {
			req = append(req, []any{t.Ord, "none", []int{}})
			continue
		}
		req = append(req, []any{t.Ord, "any", ords})
	}
	return req
}

func referencedFields(m *Model, format string) []int {
	seen := make(map[int]bool)
	for _, match := range fieldRefPattern.FindAllStringSubmatch(format, -1) {
		name := strings.TrimSpace(match[1])
		// Filters such as text: or cloze: prefix the field name.
		if i := strings.LastIndex(name, ":"); i >= 0 {
			name = name[i+1:]
		}
		if idx := m.FieldIndex(name); idx >= 0 {
			seen[idx] = true
		}
	}

	ords := make([]int, 0, len(seen))
	for idx := range seen {
		ords = append(ords, idx)
	}
	sort.Ints(ords)
	return ords
}
